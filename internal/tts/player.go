package tts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"

	"aura/pkg/audioconv"
)

const playerRate = 48000

var (
	speakerOnce sync.Once
	speakerErr  error
)

// Player plays decoded clips through the shared speaker. The speaker is a
// process-wide singleton at a fixed rate; clips are resampled on the way in.
type Player struct {
	mu      sync.Mutex
	playing bool
	doneCh  chan struct{}
}

// NewPlayer initializes the speaker on first use.
func NewPlayer() (*Player, error) {
	speakerOnce.Do(func() {
		sr := beep.SampleRate(playerRate)
		speakerErr = speaker.Init(sr, sr.N(time.Second/10))
	})
	if speakerErr != nil {
		return nil, fmt.Errorf("init speaker: %w", speakerErr)
	}
	return &Player{}, nil
}

// Play decodes and plays a clip, blocking until playback finishes, Stop is
// called, or the context is cancelled.
func (p *Player) Play(ctx context.Context, clip Clip) error {
	pcm, err := audioconv.Decode(clip.Audio, clip.Format)
	if err != nil {
		return fmt.Errorf("decode clip: %w", err)
	}
	pcm = audioconv.Resample(pcm, playerRate)

	done := make(chan struct{})

	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return fmt.Errorf("player busy")
	}
	p.playing = true
	p.doneCh = done
	p.mu.Unlock()

	var once sync.Once
	finish := func() {
		once.Do(func() {
			p.mu.Lock()
			p.playing = false
			p.doneCh = nil
			p.mu.Unlock()
			close(done)
		})
	}

	speaker.Play(beep.Seq(&monoStreamer{samples: pcm.Samples}, beep.Callback(finish)))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		finish()
		return ctx.Err()
	}
}

// Stop cuts playback immediately. No-op when idle.
func (p *Player) Stop() {
	p.mu.Lock()
	done := p.doneCh
	p.mu.Unlock()
	if done == nil {
		return
	}
	speaker.Clear()
	select {
	case <-done:
	default:
		p.mu.Lock()
		if p.doneCh == done {
			p.playing = false
			p.doneCh = nil
			close(done)
		}
		p.mu.Unlock()
	}
}

// Playing reports whether a clip is currently audible.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// monoStreamer feeds mono float32 PCM to both speaker channels.
type monoStreamer struct {
	samples []float32
	pos     int
}

func (m *monoStreamer) Stream(samples [][2]float64) (int, bool) {
	if m.pos >= len(m.samples) {
		return 0, false
	}
	n := 0
	for i := range samples {
		if m.pos >= len(m.samples) {
			break
		}
		v := float64(m.samples[m.pos])
		samples[i][0] = v
		samples[i][1] = v
		m.pos++
		n++
	}
	return n, true
}

func (m *monoStreamer) Err() error { return nil }
