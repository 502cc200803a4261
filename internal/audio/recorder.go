// Package audio captures microphone frames and detects utterance boundaries
// from trailing silence.
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"aura/internal/sched"
)

// ErrAlreadyRecording is returned by Start while a capture is active.
var ErrAlreadyRecording = errors.New("recorder: already recording")

// Source delivers microphone frames. Exactly one capture may hold a source at
// a time. Stop must unblock a pending ReadFrame and tolerate repeated calls.
type Source interface {
	Start() error
	ReadFrame() (Frame, error)
	Stop() error
}

// EventKind tags recorder events.
type EventKind int

const (
	// FrameReceived is emitted once per captured frame.
	FrameReceived EventKind = iota
	// SilenceDetected is emitted when endpointing decides the utterance ended.
	SilenceDetected
	// DeviceError is emitted when the capture device fails mid-recording.
	DeviceError
)

// Event is one recorder notification.
type Event struct {
	Kind      EventKind
	Frame     Frame // FrameReceived only
	Err       error // DeviceError only
	NoSignal  bool  // SilenceDetected fired by the no-signal bound, not real silence
	Timestamp time.Time
}

// Config tunes endpointing. Zero values fall back to defaults.
type Config struct {
	Format            Format
	LoudnessThreshold float64       // RMS gate, default 0.015
	SilenceWindow     time.Duration // trailing silence before endpoint, default 600ms
	NoSignalBound     time.Duration // abort bound when nothing was ever loud, default 5s
	MaxDuration       time.Duration // hard capture cutoff, default 15s, negative disables
	TickInterval      time.Duration // endpoint check period, default 100ms
}

func (c Config) withDefaults() Config {
	if c.Format.SampleRate == 0 {
		c.Format = DefaultFormat
	}
	if c.LoudnessThreshold == 0 {
		c.LoudnessThreshold = 0.015
	}
	if c.SilenceWindow == 0 {
		c.SilenceWindow = 600 * time.Millisecond
	}
	if c.NoSignalBound == 0 {
		c.NoSignalBound = 5 * time.Second
	}
	// Continuously loud input never satisfies the silence window, so a
	// capture must always carry a hard bound.
	if c.MaxDuration == 0 {
		c.MaxDuration = 15 * time.Second
	}
	if c.TickInterval == 0 {
		c.TickInterval = 100 * time.Millisecond
	}
	return c
}

// Recorder owns the microphone source and produces endpointed utterances.
// It never retries a failed device; that policy belongs to the caller.
type Recorder struct {
	src Source
	cfg Config

	mu           sync.Mutex
	recording    bool
	stopping     bool
	silenceFired bool
	everLoud     bool
	lastLoud     time.Time
	started      time.Time
	frames       []Frame
	readerDone   chan struct{}
	ticker       *sched.Task

	subMu  sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// NewRecorder wraps the given source. The source handle is owned by the
// recorder from here on.
func NewRecorder(src Source, cfg Config) *Recorder {
	return &Recorder{
		src:  src,
		cfg:  cfg.withDefaults(),
		subs: make(map[int]chan Event),
	}
}

// Subscribe registers an event consumer. The returned cancel func must be
// called on teardown. Consumers that stop draining lose events.
func (r *Recorder) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 16 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	r.subMu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = ch
	r.subMu.Unlock()

	return ch, func() {
		r.subMu.Lock()
		if _, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(ch)
		}
		r.subMu.Unlock()
	}
}

func (r *Recorder) publish(ev Event) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
			if ev.Kind != FrameReceived {
				slog.Warn("recorder: dropped event on full subscriber", "kind", ev.Kind)
			}
		}
	}
}

// Recording reports whether a capture is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Start begins a capture. Fails with ErrAlreadyRecording if one is active.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	if err := r.src.Start(); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("open capture: %w", err)
	}
	r.recording = true
	r.stopping = false
	r.silenceFired = false
	r.everLoud = false
	r.frames = nil
	r.started = time.Now()
	r.readerDone = make(chan struct{})
	done := r.readerDone
	r.ticker = sched.Every(r.cfg.TickInterval, r.checkEndpoint)
	r.mu.Unlock()

	go r.readLoop(done)
	return nil
}

// Stop ends the capture and returns whatever was recorded. Idempotent:
// stopping an inactive recorder returns an empty utterance.
func (r *Recorder) Stop() Utterance {
	r.mu.Lock()
	ticker := r.ticker
	r.ticker = nil
	done := r.readerDone
	r.readerDone = nil
	wasActive := r.recording || done != nil
	r.stopping = true
	r.recording = false
	started := r.started
	r.mu.Unlock()

	if wasActive {
		_ = r.src.Stop()
	}
	if ticker != nil {
		ticker.Cancel()
	}
	if done != nil {
		<-done
	}

	r.mu.Lock()
	u := Utterance{
		Frames:   r.frames,
		Format:   r.cfg.Format,
		EverLoud: r.everLoud,
		Started:  started,
		Ended:    time.Now(),
	}
	r.frames = nil
	r.mu.Unlock()

	if !wasActive {
		u.Started = u.Ended
	}
	return u
}

func (r *Recorder) readLoop(done chan struct{}) {
	defer close(done)
	for {
		frame, err := r.src.ReadFrame()
		if err != nil {
			r.mu.Lock()
			expected := r.stopping
			r.recording = false
			r.mu.Unlock()
			if !expected {
				_ = r.src.Stop()
				r.publish(Event{Kind: DeviceError, Err: err, Timestamp: time.Now()})
			}
			return
		}

		r.mu.Lock()
		if !r.recording {
			r.mu.Unlock()
			return
		}
		r.frames = append(r.frames, frame)
		if frame.RMS() >= r.cfg.LoudnessThreshold {
			r.everLoud = true
			r.lastLoud = time.Now()
		}
		r.mu.Unlock()

		r.publish(Event{Kind: FrameReceived, Frame: frame, Timestamp: frame.Timestamp})
	}
}

// checkEndpoint runs on the ticker, independent of frame arrival, so a stalled
// device still endpoints at the no-signal bound.
func (r *Recorder) checkEndpoint() {
	r.mu.Lock()
	if !r.recording || r.silenceFired {
		r.mu.Unlock()
		return
	}
	now := time.Now()
	var fire, noSignal bool
	switch {
	case r.everLoud && now.Sub(r.lastLoud) > r.cfg.SilenceWindow:
		fire = true
	case !r.everLoud && now.Sub(r.started) > r.cfg.NoSignalBound:
		fire, noSignal = true, true
	case r.cfg.MaxDuration > 0 && now.Sub(r.started) > r.cfg.MaxDuration:
		fire = true
	}
	if fire {
		r.silenceFired = true
	}
	r.mu.Unlock()

	if fire {
		r.publish(Event{Kind: SilenceDetected, NoSignal: noSignal, Timestamp: now})
	}
}
