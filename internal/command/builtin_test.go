package command

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aura/internal/osctl"
)

// fakeDesktop records the commands a controller would run and serves a
// canned pactl volume.
type fakeDesktop struct {
	mu     sync.Mutex
	calls  []string
	volume int
}

func (f *fakeDesktop) run(_ context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	if name == "pactl" && len(args) > 0 && args[0] == "get-sink-volume" {
		return fmt.Sprintf("Volume: front-left: 32768 /  %d%% / -18.06 dB", f.volume), nil
	}
	return "", nil
}

func (f *fakeDesktop) ran(cmd string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == cmd {
			return true
		}
	}
	return false
}

func builtins(t *testing.T, desk *fakeDesktop) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg, osctl.NewWithRunner(desk.run)))
	return reg
}

func TestVolumeSet(t *testing.T) {
	desk := &fakeDesktop{volume: 50}
	reg := builtins(t, desk)

	for _, text := range []string{
		"set the volume to 42 percent",
		"volume to 42",
		"turn volume to 42%",
		"put the volume at 42",
	} {
		m, ok := reg.Resolve(text)
		require.True(t, ok, "text %q", text)
		assert.Equal(t, "volume.set", m.Pattern.Name, "text %q", text)
		assert.Equal(t, "42", m.Entities["level"], "text %q", text)
	}

	m, _ := reg.Resolve("set the volume to 42 percent")
	res := m.Execute(context.Background())
	assert.True(t, res.Success)
	assert.True(t, res.ShouldSpeak)
	assert.Equal(t, "Volume set to 42%", res.Response)
	assert.True(t, desk.ran("pactl set-sink-volume @DEFAULT_SINK@ 42%"))
}

func TestVolumeStep(t *testing.T) {
	desk := &fakeDesktop{volume: 50}
	reg := builtins(t, desk)

	m, ok := reg.Resolve("louder")
	require.True(t, ok)
	res := m.Execute(context.Background())
	assert.Equal(t, "Volume up to 60%", res.Response)

	m, ok = reg.Resolve("volume down")
	require.True(t, ok)
	res = m.Execute(context.Background())
	assert.Equal(t, "Volume down to 40%", res.Response)
}

func TestMuteStaysSilent(t *testing.T) {
	desk := &fakeDesktop{}
	reg := builtins(t, desk)

	m, ok := reg.Resolve("mute")
	require.True(t, ok)
	res := m.Execute(context.Background())
	assert.True(t, res.Success)
	assert.False(t, res.ShouldSpeak, "nothing to say over a muted sink")
	assert.True(t, desk.ran("pactl set-sink-mute @DEFAULT_SINK@ 1"))
}

func TestAppCommands(t *testing.T) {
	desk := &fakeDesktop{}
	reg := builtins(t, desk)

	m, ok := reg.Resolve("open firefox")
	require.True(t, ok)
	assert.Equal(t, "app.open", m.Pattern.Name)
	res := m.Execute(context.Background())
	assert.Equal(t, "Opening firefox", res.Response)
	assert.True(t, desk.ran("setsid firefox"))

	m, ok = reg.Resolve("close firefox")
	require.True(t, ok)
	res = m.Execute(context.Background())
	assert.Equal(t, "Closing firefox", res.Response)
	assert.True(t, desk.ran("pkill -f firefox"))
}

func TestMediaTransport(t *testing.T) {
	desk := &fakeDesktop{}
	reg := builtins(t, desk)

	m, ok := reg.Resolve("pause the music")
	require.True(t, ok)
	m.Execute(context.Background())
	assert.True(t, desk.ran("playerctl play-pause"))

	m, ok = reg.Resolve("next track")
	require.True(t, ok)
	m.Execute(context.Background())
	assert.True(t, desk.ran("playerctl next"))
}

// Free text that matches no builtin must fall through to the chat path.
func TestUnmatchedFallsThrough(t *testing.T) {
	reg := builtins(t, &fakeDesktop{})

	for _, text := range []string{
		"what's the meaning of life",
		"play some relaxing jazz for studying",
		"volume to eleven",
	} {
		_, ok := reg.Resolve(text)
		assert.False(t, ok, "text %q", text)
	}
}
