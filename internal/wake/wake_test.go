package wake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigVariations(t *testing.T) {
	cfg := NewConfig("  Jarvis ", []string{"Service", " ", "jar vis"}, 0)

	assert.Equal(t, "jarvis", cfg.Phrase)
	assert.Equal(t, DefaultSensitivity, cfg.Sensitivity)
	assert.Equal(t, []string{
		"jarvis",
		"hey jarvis", "hi jarvis", "hello jarvis", "ok jarvis",
		"service", "jar vis",
	}, cfg.Variations())
}

func TestNewConfigSensitivityBounds(t *testing.T) {
	assert.Equal(t, DefaultSensitivity, NewConfig("jarvis", nil, 0).Sensitivity)
	assert.Equal(t, DefaultSensitivity, NewConfig("jarvis", nil, 1.5).Sensitivity)
	assert.Equal(t, 0.9, NewConfig("jarvis", nil, 0.9).Sensitivity)
}

func TestCheckExactMatch(t *testing.T) {
	cfg := NewConfig("jarvis", nil, 0)

	det := cfg.Check("Jarvis")
	require.True(t, det.Detected)
	assert.Equal(t, "jarvis", det.Variation)
	assert.Equal(t, 1.0, det.Confidence)
}

func TestCheckGreetingPrefix(t *testing.T) {
	cfg := NewConfig("jarvis", nil, 0)

	det := cfg.Check("hey jarvis")
	require.True(t, det.Detected)
	assert.Equal(t, "hey jarvis", det.Variation)
	assert.Equal(t, 1.0, det.Confidence)
}

// A truncated recognition like "hey jarv" should still trip detection: it is
// contained in "hey jarvis", so it scores 8/10 plus the containment bonus,
// capped at 1.0.
func TestCheckTruncatedRecognition(t *testing.T) {
	cfg := NewConfig("jarvis", nil, 0)

	det := cfg.Check("hey jarv")
	require.True(t, det.Detected)
	assert.Equal(t, "hey jarvis", det.Variation)
	assert.Equal(t, 1.0, det.Confidence)
}

func TestCheckSubstring(t *testing.T) {
	cfg := NewConfig("jarvis", nil, 0)

	det := cfg.Check("ok jarvis please")
	require.True(t, det.Detected)
	assert.Equal(t, "ok jarvis", det.Variation)
	assert.Equal(t, 0.9, det.Confidence)
}

func TestCheckAlias(t *testing.T) {
	cfg := NewConfig("jarvis", []string{"service"}, 0)

	det := cfg.Check("service")
	require.True(t, det.Detected)
	assert.Equal(t, "service", det.Variation)
}

func TestCheckUnrelatedText(t *testing.T) {
	cfg := NewConfig("jarvis", nil, 0)

	det := cfg.Check("open the window")
	assert.False(t, det.Detected)
	assert.Less(t, det.Confidence, cfg.Sensitivity)
	assert.Empty(t, det.Variation)
}

func TestCheckEmptyTranscript(t *testing.T) {
	cfg := NewConfig("jarvis", nil, 0)

	det := cfg.Check("   ")
	assert.False(t, det.Detected)
	assert.Zero(t, det.Confidence)
}

func TestCheckEmptyPhrase(t *testing.T) {
	cfg := NewConfig("", nil, 0)

	det := cfg.Check("jarvis")
	assert.False(t, det.Detected)
}

// Check is a pure function of config and text: repeated calls must agree.
func TestCheckDeterministic(t *testing.T) {
	cfg := NewConfig("jarvis", []string{"service"}, 0.5)
	for _, text := range []string{"jarvis", "hey jarv", "something else", "ok jarvis now"} {
		first := cfg.Check(text)
		for i := 0; i < 10; i++ {
			again := cfg.Check(text)
			assert.Equal(t, first.Detected, again.Detected, "text %q", text)
			assert.Equal(t, first.Confidence, again.Confidence, "text %q", text)
			assert.Equal(t, first.Variation, again.Variation, "text %q", text)
		}
	}
}
