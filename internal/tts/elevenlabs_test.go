package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func elevenLabsOn(t *testing.T, handler http.HandlerFunc) *ElevenLabsProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := NewElevenLabsProvider("test-key", "", srv.Client())
	p.endpoint = srv.URL
	return p
}

func TestElevenLabsSynthesize(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	p := elevenLabsOn(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "test-key", r.Header.Get("xi-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte("mp3-bytes"))
	})

	clip, err := p.Synthesize(context.Background(), SynthesizeRequest{Text: "hello", Rate: 1.0})
	require.NoError(t, err)
	assert.Equal(t, "mp3", clip.Format)
	assert.Equal(t, []byte("mp3-bytes"), clip.Audio)
	assert.Equal(t, "/text-to-speech/21m00Tcm4TlvDq8ikWAM", gotPath, "default voice is used")
	assert.Equal(t, "hello", gotBody["text"])
}

// The API has no speed knob; rate maps onto voice stability, inverted and
// clamped so faster speech means lower stability.
func TestElevenLabsRateToStability(t *testing.T) {
	cases := []struct {
		rate      float64
		stability float64
	}{
		{0.5, 0.775},
		{1.0, 0.50},
		{2.0, 0.0},
		{0, 0.50}, // unset rate defaults to 1.0
	}
	for _, c := range cases {
		var got float64
		p := elevenLabsOn(t, func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				VoiceSettings struct {
					Stability float64 `json:"stability"`
				} `json:"voice_settings"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			got = body.VoiceSettings.Stability
			w.Write([]byte("x"))
		})

		_, err := p.Synthesize(context.Background(), SynthesizeRequest{Text: "hi", Rate: c.rate})
		require.NoError(t, err)
		assert.InDelta(t, c.stability, got, 1e-9, "rate %v", c.rate)
	}
}

func TestElevenLabsAuthFailureMarksUnavailable(t *testing.T) {
	p := elevenLabsOn(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	})

	require.True(t, p.Available())
	_, err := p.Synthesize(context.Background(), SynthesizeRequest{Text: "hello"})
	require.Error(t, err)
	assert.False(t, p.Available(), "auth failure flips availability for the session")
}

func TestElevenLabsTransientFailureStaysAvailable(t *testing.T) {
	p := elevenLabsOn(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "flaky", http.StatusBadGateway)
	})

	_, err := p.Synthesize(context.Background(), SynthesizeRequest{Text: "hello"})
	require.Error(t, err)
	assert.True(t, p.Available(), "a 5xx is not a reason to drop the provider")
}

func TestElevenLabsVoicesStableOrder(t *testing.T) {
	p := NewElevenLabsProvider("key", "", nil)

	first := p.Voices()
	require.NotEmpty(t, first)
	assert.Equal(t, "Rachel", first[0].Name)

	for i := 0; i < 10; i++ {
		assert.Equal(t, first, p.Voices())
	}
}

func TestElevenLabsWithoutKeyIsUnavailable(t *testing.T) {
	p := NewElevenLabsProvider("", "", nil)
	assert.False(t, p.Available())
}
