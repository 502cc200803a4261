package osctl

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sinkInputListing = `Sink Input #12
	Driver: protocol-native.c
	Volume: front-left: 52428 /  80% / -5.81 dB,   front-right: 52428 /  80% / -5.81 dB
	Properties:
		application.name = "Firefox"
		media.name = "AudioStream"

Sink Input #31
	Driver: protocol-native.c
	Volume: front-left: 65536 /  100% / 0.00 dB
	Properties:
		application.name = "aura"

Sink Input #44
	Volume: front-left: 13107 /  20% / -41.94 dB
	Properties:
		application.name = "Spotify"
`

type cmdLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *cmdLog) run(_ context.Context, name string, args ...string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	call := name + " " + strings.Join(args, " ")
	l.calls = append(l.calls, call)
	if call == "pactl list sink-inputs" {
		return sinkInputListing, nil
	}
	return "", nil
}

func (l *cmdLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func TestDuckLowersForeignStreamsOnly(t *testing.T) {
	log := &cmdLog{}
	d := NewDucker(NewWithRunner(log.run), []string{"aura"}, 10)

	require.NoError(t, d.Duck(context.Background(), 0.3))

	calls := log.all()
	// Firefox at 80% ducks to 24%; Spotify at 20% would land below the floor
	// and is held at 10%; the assistant's own stream is untouched.
	assert.Contains(t, calls, "pactl set-sink-input-volume 12 24%")
	assert.Contains(t, calls, "pactl set-sink-input-volume 44 10%")
	for _, c := range calls {
		assert.NotContains(t, c, "set-sink-input-volume 31")
	}
}

func TestDuckIsIdempotentWhileActive(t *testing.T) {
	log := &cmdLog{}
	d := NewDucker(NewWithRunner(log.run), nil, 0)

	require.NoError(t, d.Duck(context.Background(), 0.5))
	before := len(log.all())
	require.NoError(t, d.Duck(context.Background(), 0.5))
	assert.Equal(t, before, len(log.all()), "second Duck must be a no-op")
}

func TestRestorePutsVolumesBack(t *testing.T) {
	log := &cmdLog{}
	d := NewDucker(NewWithRunner(log.run), []string{"aura"}, 10)

	require.NoError(t, d.Duck(context.Background(), 0.3))
	d.Restore(context.Background())

	calls := log.all()
	assert.Contains(t, calls, "pactl set-sink-input-volume 12 80%")
	assert.Contains(t, calls, "pactl set-sink-input-volume 44 20%")

	// A second Restore has nothing left to do.
	before := len(log.all())
	d.Restore(context.Background())
	assert.Equal(t, before, len(log.all()))
}

func TestListSinkInputsParsing(t *testing.T) {
	log := &cmdLog{}
	d := NewDucker(NewWithRunner(log.run), nil, 0)

	inputs, err := d.listSinkInputs(context.Background())
	require.NoError(t, err)
	require.Len(t, inputs, 3)
	assert.Equal(t, sinkInput{id: 12, volume: 80, appName: "Firefox"}, inputs[0])
	assert.Equal(t, sinkInput{id: 31, volume: 100, appName: "aura"}, inputs[1])
	assert.Equal(t, sinkInput{id: 44, volume: 20, appName: "Spotify"}, inputs[2])
}
