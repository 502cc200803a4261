package audio

import (
	"math"
	"time"
)

// Format describes the PCM layout of a frame stream.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat is mono 16 kHz signed 16-bit, what the transcriber expects.
var DefaultFormat = Format{SampleRate: 16000, Channels: 1, BitDepth: 16}

// Frame is one timestamped chunk of PCM samples from the microphone.
type Frame struct {
	Samples   []int16
	Format    Format
	Timestamp time.Time
}

// RMS computes root-mean-square amplitude normalized to [0, 1].
func (f Frame) RMS() float64 {
	if len(f.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range f.Samples {
		n := float64(s) / 32768.0
		sum += n * n
	}
	return math.Sqrt(sum / float64(len(f.Samples)))
}

// Duration of the frame.
func (f Frame) Duration() time.Duration {
	if f.Format.SampleRate <= 0 || f.Format.Channels <= 0 {
		return 0
	}
	n := len(f.Samples) / f.Format.Channels
	return time.Duration(n) * time.Second / time.Duration(f.Format.SampleRate)
}

// Utterance is one captured, bounded span of audio.
type Utterance struct {
	Frames   []Frame
	Format   Format
	EverLoud bool
	Started  time.Time
	Ended    time.Time
}

// Empty reports whether any samples were captured.
func (u Utterance) Empty() bool {
	for _, f := range u.Frames {
		if len(f.Samples) > 0 {
			return false
		}
	}
	return true
}

// Duration is the total audio length across frames.
func (u Utterance) Duration() time.Duration {
	var d time.Duration
	for _, f := range u.Frames {
		d += f.Duration()
	}
	return d
}

// Samples concatenates all frames into one PCM slice.
func (u Utterance) Samples() []int16 {
	n := 0
	for _, f := range u.Frames {
		n += len(f.Samples)
	}
	out := make([]int16, 0, n)
	for _, f := range u.Frames {
		out = append(out, f.Samples...)
	}
	return out
}
