package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	openai "github.com/openai/openai-go/v3"
)

// OpenAIProvider synthesizes through the OpenAI speech endpoint. Rate maps
// directly onto the API's speed multiplier (0.25–4.0 accepts our 0.5–2.0
// range unchanged), so higher rate is faster by construction.
type OpenAIProvider struct {
	client      openai.Client
	model       string
	voice       string
	unavailable atomic.Bool
}

// NewOpenAIProvider wraps an existing client. The client carries the API key
// and any proxy transport.
func NewOpenAIProvider(client openai.Client, model, voice string) *OpenAIProvider {
	if model == "" {
		model = "tts-1"
	}
	if voice == "" {
		voice = "nova"
	}
	return &OpenAIProvider{client: client, model: model, voice: voice}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Available() bool { return !p.unavailable.Load() }

func (p *OpenAIProvider) Voices() []VoiceInfo {
	ids := []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}
	out := make([]VoiceInfo, len(ids))
	for i, id := range ids {
		out[i] = VoiceInfo{ID: id, Name: id, Provider: p.Name(), Language: "en"}
	}
	return out
}

func (p *OpenAIProvider) Synthesize(ctx context.Context, req SynthesizeRequest) (Clip, error) {
	voice := req.Voice
	if voice == "" {
		voice = p.voice
	}

	resp, err := p.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(p.model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		Input:          req.Text,
		Speed:          openai.Float(clampRate(req.Rate)),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		p.markIfFatal(err)
		return Clip{}, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return Clip{}, fmt.Errorf("openai speech read: %w", err)
	}
	return Clip{Audio: audio, Format: "mp3"}, nil
}

// markIfFatal flips availability off on auth or quota failures; transient
// errors leave the provider selectable.
func (p *OpenAIProvider) markIfFatal(err error) {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusPaymentRequired, http.StatusTooManyRequests:
		p.unavailable.Store(true)
	}
}
