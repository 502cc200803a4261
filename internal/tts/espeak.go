package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// espeakBaseWPM is espeak-ng's default speaking rate in words per minute.
const espeakBaseWPM = 175

// EspeakProvider is the offline fallback: espeak-ng writing WAV to stdout.
// Rate translates to words per minute, wpm = 175 * rate, so rate 0.5 speaks
// at ~88 wpm and rate 2.0 at 350 wpm — monotonic like the cloud backends.
type EspeakProvider struct {
	binary string
	voice  string
}

// NewEspeakProvider uses the given binary ("espeak-ng" when empty) and voice
// ("en-us" when empty).
func NewEspeakProvider(binary, voice string) *EspeakProvider {
	if binary == "" {
		binary = "espeak-ng"
	}
	if voice == "" {
		voice = "en-us"
	}
	return &EspeakProvider{binary: binary, voice: voice}
}

func (p *EspeakProvider) Name() string { return "espeak" }

// Available checks that the binary is on PATH. espeak-ng never exhausts a
// quota, so availability is stable across a session.
func (p *EspeakProvider) Available() bool {
	_, err := exec.LookPath(p.binary)
	return err == nil
}

func (p *EspeakProvider) Voices() []VoiceInfo {
	ids := []string{"en-us", "en-gb", "de", "fr", "ru"}
	out := make([]VoiceInfo, len(ids))
	for i, id := range ids {
		out[i] = VoiceInfo{ID: id, Name: id, Provider: p.Name(), Language: id}
	}
	return out
}

func (p *EspeakProvider) Synthesize(ctx context.Context, req SynthesizeRequest) (Clip, error) {
	voice := req.Voice
	if voice == "" {
		voice = p.voice
	}
	wpm := int(espeakBaseWPM * clampRate(req.Rate))

	cmd := exec.CommandContext(ctx, p.binary,
		"-v", voice,
		"-s", fmt.Sprintf("%d", wpm),
		"--stdout",
		req.Text,
	)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		return Clip{}, fmt.Errorf("%s: %w (%s)", p.binary, err, bytes.TrimSpace(errBuf.Bytes()))
	}
	if out.Len() == 0 {
		return Clip{}, fmt.Errorf("%s produced no audio", p.binary)
	}
	return Clip{Audio: out.Bytes(), Format: "wav"}, nil
}
