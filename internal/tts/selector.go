package tts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// playback is what the selector needs from the player; tests substitute it.
type playback interface {
	Play(ctx context.Context, clip Clip) error
	Stop()
	Playing() bool
}

// ModeAuto selects the first available provider in preference order. Any
// other mode value pins a provider by name, with fallback when it is down.
const ModeAuto = "auto"

// Selector owns the ranked provider list and the currently spoken voice and
// rate. Selection reruns on every Speak so a provider that went down
// mid-session is skipped without caller intervention.
type Selector struct {
	providers []Provider
	player    playback

	mu       sync.Mutex
	mode     string
	rate     float64
	voiceOf  map[string]string // provider name -> current voice id
	registry map[string]string // voice id -> provider name, fixed at build
	active   string            // last provider that produced audio
}

// NewSelector ranks providers by argument order. The voice registry is
// populated once from each provider's advertised voices.
func NewSelector(player playback, providers ...Provider) *Selector {
	s := &Selector{
		providers: providers,
		player:    player,
		mode:      ModeAuto,
		rate:      1.0,
		voiceOf:   make(map[string]string),
		registry:  make(map[string]string),
	}
	for _, p := range providers {
		for _, v := range p.Voices() {
			if _, taken := s.registry[v.ID]; !taken {
				s.registry[v.ID] = p.Name()
			}
		}
	}
	return s
}

// SetMode pins a provider by name, or ModeAuto for preference order.
func (s *Selector) SetMode(mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode == "" {
		mode = ModeAuto
	}
	s.mode = mode
}

// SetRate stores the normalized rate, clamped to [MinRate, MaxRate].
func (s *Selector) SetRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = clampRate(rate)
}

// Rate returns the current normalized rate.
func (s *Selector) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// SetVoice switches to a registered voice and pins its owning provider.
func (s *Selector) SetVoice(voiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.registry[voiceID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrVoiceNotFound, voiceID)
	}
	s.voiceOf[owner] = voiceID
	s.mode = owner
	return nil
}

// ListVoices concatenates every provider's advertised voices in rank order.
func (s *Selector) ListVoices() []VoiceInfo {
	var out []VoiceInfo
	for _, p := range s.providers {
		out = append(out, p.Voices()...)
	}
	return out
}

// ActiveProvider names the provider that last produced audio, or "" if none.
func (s *Selector) ActiveProvider() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// IsSpeaking reports whether playback is in progress.
func (s *Selector) IsSpeaking() bool { return s.player.Playing() }

// Stop cuts current playback.
func (s *Selector) Stop() { s.player.Stop() }

// Speak synthesizes and plays text through the best available provider,
// falling through the ranking on synthesis failure. With no provider
// available it is a no-op returning ErrNoProviderAvailable. Errors are
// reported, never panicked.
func (s *Selector) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	s.mu.Lock()
	rate := s.rate
	mode := s.mode
	voices := make(map[string]string, len(s.voiceOf))
	for k, v := range s.voiceOf {
		voices[k] = v
	}
	s.mu.Unlock()

	candidates := s.candidates(mode)
	if len(candidates) == 0 {
		slog.Warn("tts: no provider available, response stays silent")
		return ErrNoProviderAvailable
	}

	var lastErr error
	for _, p := range candidates {
		clip, err := p.Synthesize(ctx, SynthesizeRequest{
			Text:  text,
			Voice: voices[p.Name()],
			Rate:  rate,
		})
		if err != nil {
			slog.Warn("tts: synthesis failed, trying next provider", "provider", p.Name(), "err", err)
			lastErr = err
			continue
		}

		s.mu.Lock()
		s.active = p.Name()
		s.mu.Unlock()

		if err := s.player.Play(ctx, clip); err != nil {
			return fmt.Errorf("playback via %s: %w", p.Name(), err)
		}
		return nil
	}

	s.mu.Lock()
	s.active = ""
	s.mu.Unlock()
	return fmt.Errorf("all providers failed: %w", lastErr)
}

// candidates orders available providers: the pinned one first when the mode
// names it, then the remaining ranking. A pinned-but-down provider logs the
// downgrade once per call.
func (s *Selector) candidates(mode string) []Provider {
	var out []Provider
	if mode != ModeAuto {
		for _, p := range s.providers {
			if p.Name() == mode {
				if p.Available() {
					out = append(out, p)
				} else {
					slog.Info("tts: pinned provider unavailable, falling back", "provider", mode)
				}
				break
			}
		}
	}
	for _, p := range s.providers {
		if !p.Available() || (len(out) > 0 && p == out[0]) {
			continue
		}
		out = append(out, p)
	}
	return out
}
