package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

const elevenLabsEndpoint = "https://api.elevenlabs.io/v1"

// ElevenLabsProvider synthesizes through the ElevenLabs HTTP API. The API has
// no direct speed control; the normalized rate maps monotonically onto the
// voice stability setting — higher rate lowers stability, which produces
// faster, more animated delivery:
//
//	stability = clamp(1.05 - 0.55*rate, 0.0, 1.0)
//
// rate 0.5 -> 0.78 (slow, steady), rate 1.0 -> 0.50, rate 2.0 -> 0.0.
type ElevenLabsProvider struct {
	apiKey      string
	modelID     string
	voice       string
	endpoint    string
	client      *http.Client
	unavailable atomic.Bool
}

// NewElevenLabsProvider builds the provider. An empty API key makes it
// unavailable from the start. A nil client gets a default with a timeout.
func NewElevenLabsProvider(apiKey, voice string, client *http.Client) *ElevenLabsProvider {
	if voice == "" {
		voice = "21m00Tcm4TlvDq8ikWAM" // Rachel
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	p := &ElevenLabsProvider{
		apiKey:   apiKey,
		modelID:  "eleven_monolingual_v1",
		voice:    voice,
		endpoint: elevenLabsEndpoint,
		client:   client,
	}
	if apiKey == "" {
		p.unavailable.Store(true)
	}
	return p
}

func (p *ElevenLabsProvider) Name() string { return "elevenlabs" }

func (p *ElevenLabsProvider) Available() bool { return !p.unavailable.Load() }

// Ordered: voice listings are rendered to users, so the order is part of
// the contract.
var elevenLabsVoices = []struct{ id, name string }{
	{"21m00Tcm4TlvDq8ikWAM", "Rachel"},
	{"EXAVITQu4vr4xnSDxMaL", "Bella"},
	{"ErXwobaYiN019PkySvjV", "Antoni"},
	{"TxGEqnHWrfWFTfGW9XjX", "Josh"},
}

func (p *ElevenLabsProvider) Voices() []VoiceInfo {
	out := make([]VoiceInfo, 0, len(elevenLabsVoices))
	for _, v := range elevenLabsVoices {
		out = append(out, VoiceInfo{ID: v.id, Name: v.name, Provider: p.Name(), Language: "en"})
	}
	return out
}

func (p *ElevenLabsProvider) Synthesize(ctx context.Context, req SynthesizeRequest) (Clip, error) {
	if !p.Available() {
		return Clip{}, fmt.Errorf("elevenlabs: %w", ErrNoProviderAvailable)
	}

	voice := req.Voice
	if voice == "" {
		voice = p.voice
	}

	rate := clampRate(req.Rate)
	stability := 1.05 - 0.55*rate
	if stability < 0 {
		stability = 0
	}
	if stability > 1 {
		stability = 1
	}

	payload := map[string]any{
		"text":     req.Text,
		"model_id": p.modelID,
		"voice_settings": map[string]any{
			"stability":        stability,
			"similarity_boost": 0.75,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Clip{}, err
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", p.endpoint, voice)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Clip{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Clip{}, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusPaymentRequired, http.StatusTooManyRequests:
			p.unavailable.Store(true)
		}
		return Clip{}, fmt.Errorf("elevenlabs status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return Clip{}, fmt.Errorf("elevenlabs read: %w", err)
	}
	return Clip{Audio: audio, Format: "mp3"}, nil
}
