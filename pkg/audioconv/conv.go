// Package audioconv converts between the PCM shapes used across the daemon:
// int16 microphone frames, float32 model input, and the compressed formats
// returned by speech synthesis backends.
package audioconv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

// PCM is decoded mono audio.
type PCM struct {
	Samples []float32
	Rate    int
}

// Duration of the clip in seconds.
func (p PCM) Duration() float64 {
	if p.Rate <= 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.Rate)
}

// Decode parses compressed audio into mono PCM. The hint selects the decoder
// ("wav", "mp3", "ogg", "opus"); when empty the container is sniffed from the
// first bytes. Ogg containers are tried as Vorbis first, then Opus.
func Decode(data []byte, hint string) (PCM, error) {
	if len(data) == 0 {
		return PCM{}, errors.New("empty audio payload")
	}

	switch strings.ToLower(hint) {
	case "wav":
		return decodeWAV(data)
	case "mp3":
		return decodeMP3(data)
	case "ogg", "oga", "vorbis":
		if p, err := decodeOggVorbis(data); err == nil {
			return p, nil
		}
		return decodeOggOpus(data)
	case "opus":
		return decodeOggOpus(data)
	case "":
	default:
		return PCM{}, fmt.Errorf("unsupported format hint %q", hint)
	}

	if len(data) < 4 {
		return PCM{}, errors.New("audio payload too short to sniff")
	}
	switch string(data[:4]) {
	case "RIFF":
		return decodeWAV(data)
	case "OggS":
		if p, err := decodeOggVorbis(data); err == nil {
			return p, nil
		}
		return decodeOggOpus(data)
	default:
		return decodeMP3(data)
	}
}

func decodeWAV(data []byte) (PCM, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return PCM{}, errors.New("invalid wav")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil || pb == nil || pb.Data == nil {
		if err == nil {
			err = errors.New("empty wav")
		}
		return PCM{}, err
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = 16
	}
	x := intSliceToFloat32(pb.Data, bd)

	ch, sr := 1, 44100
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			ch = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			sr = pb.Format.SampleRate
		}
	}
	if ch > 1 {
		x = downmixInterleaved(x, ch)
	}
	return PCM{Samples: x, Rate: sr}, nil
}

func decodeMP3(data []byte) (PCM, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return PCM{}, err
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return PCM{}, err
	}
	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return PCM{}, err
	}
	x := Int16ToFloat32(ints)
	x = downmixInterleaved(x, 2) // go-mp3 always outputs stereo

	sr := dec.SampleRate()
	if sr <= 0 {
		sr = 44100
	}
	return PCM{Samples: x, Rate: sr}, nil
}

func decodeOggVorbis(data []byte) (PCM, error) {
	pcm, format, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return PCM{}, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return PCM{}, errors.New("invalid ogg/vorbis stream")
	}
	x := pcm
	if format.Channels > 1 {
		x = downmixInterleaved(pcm, format.Channels)
	}
	return PCM{Samples: x, Rate: format.SampleRate}, nil
}

func decodeOggOpus(data []byte) (PCM, error) {
	dec, err := popus.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return PCM{}, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	// Opus always decodes at 48k.
	var pcm48 []float32
	buf := make([]int16, 48_000*ch/2)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			pcm48 = append(pcm48, Int16ToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return PCM{}, err
		}
	}
	if len(pcm48) == 0 {
		return PCM{}, errors.New("empty opus stream")
	}
	if ch > 1 {
		pcm48 = downmixInterleaved(pcm48, ch)
	}
	return PCM{Samples: pcm48, Rate: 48000}, nil
}

// Resample converts mono PCM to the target rate with linear interpolation.
func Resample(p PCM, rate int) PCM {
	return PCM{Samples: resampleLinear(p.Samples, p.Rate, rate), Rate: rate}
}

// EncodeWAV writes mono int16 samples as a 16-bit PCM WAV file.
func EncodeWAV(samples []int16, rate int) ([]byte, error) {
	var buf seekBuffer
	enc := wav.NewEncoder(&buf, rate, 16, 1, 1)

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	ib := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(ib); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Int16ToFloat32 scales signed 16-bit samples into [-1, 1].
func Int16ToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	const scale = 1.0 / 32768.0
	for i, v := range data {
		out[i] = float32(float64(v) * scale)
	}
	return out
}

// Float32ToInt16 scales [-1, 1] samples to signed 16-bit with clipping.
func Float32ToInt16(data []float32) []int16 {
	out := make([]int16, len(data))
	for i, v := range data {
		s := clamp(float64(v), -1.0, 1.0) * 32767.0
		out[i] = int16(math.Round(s))
	}
	return out
}

func intSliceToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(clamp(float64(v)*scale, -1.0, 1.0))
	}
	return out
}

func downmixInterleaved(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	nFrames := len(in) / channels
	out := make([]float32, nFrames)
	for i := 0; i < nFrames; i++ {
		sum := 0.0
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(in[base+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

func resampleLinear(in []float32, inSR, outSR int) []float32 {
	if inSR == outSR || len(in) == 0 {
		return in
	}
	ratio := float64(outSR) / float64(inSR)
	outN := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, outN)
	for i := 0; i < outN; i++ {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		i1 := i0 + 1
		if i0 >= len(in) {
			out[i] = in[len(in)-1]
			continue
		}
		if i1 >= len(in) {
			out[i] = in[i0]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i1]*a
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// seekBuffer satisfies wav.NewEncoder's io.WriteSeeker without a temp file.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if b.pos+len(p) > len(b.data) {
		grown := make([]byte, b.pos+len(p))
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int
	switch whence {
	case io.SeekStart:
		next = int(offset)
	case io.SeekCurrent:
		next = b.pos + int(offset)
	case io.SeekEnd:
		next = len(b.data) + int(offset)
	default:
		return 0, errors.New("invalid whence")
	}
	if next < 0 {
		return 0, errors.New("negative seek position")
	}
	b.pos = next
	return int64(next), nil
}

func (b *seekBuffer) Bytes() []byte { return b.data }
