// Package tts selects among speech synthesis backends and plays their output.
// Providers are ranked by preference; availability can change at runtime and
// reselection happens on every Speak.
package tts

import (
	"context"
	"errors"
)

var (
	// ErrNoProviderAvailable means every configured backend is down; Speak
	// becomes a no-op reporting this.
	ErrNoProviderAvailable = errors.New("tts: no provider available")
	// ErrVoiceNotFound is returned by SetVoice for an unregistered voice id.
	ErrVoiceNotFound = errors.New("tts: voice not found")
)

// Rate bounds for the normalized speech-rate multiplier.
const (
	MinRate = 0.5
	MaxRate = 2.0
)

// VoiceInfo describes one selectable voice.
type VoiceInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Language string `json:"language,omitempty"`
}

// SynthesizeRequest carries one utterance to a provider. Rate is the
// normalized 0.5–2.0 multiplier; each provider translates it to its native
// parameter (see the provider files), and the translation is monotonic:
// higher rate always means faster perceived speech.
type SynthesizeRequest struct {
	Text  string
	Voice string
	Rate  float64
}

// Clip is synthesized audio plus its container format ("mp3", "wav", "ogg").
type Clip struct {
	Audio  []byte
	Format string
}

// Provider is one synthesis backend. Available may flip at runtime (auth
// failure, quota); the selector re-checks it on every Speak.
type Provider interface {
	Name() string
	Available() bool
	Voices() []VoiceInfo
	Synthesize(ctx context.Context, req SynthesizeRequest) (Clip, error)
}

func clampRate(r float64) float64 {
	if r == 0 {
		return 1.0
	}
	if r < MinRate {
		return MinRate
	}
	if r > MaxRate {
		return MaxRate
	}
	return r
}
