// Package assistant coordinates the whole interaction: wake-listen cycles,
// utterance capture, command resolution, chat fallback, and speech output.
// It is the sole owner of the assistant state and the conversation memory.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"aura/internal/audio"
	"aura/internal/command"
	"aura/internal/sched"
	"aura/internal/tts"
	"aura/internal/wake"
	"aura/pkg/audioconv"
)

// Source tags where user input came from.
type Source string

const (
	SourceVoice Source = "voice"
	SourceText  Source = "text"
)

// Transcript is the transcription service's answer for one utterance.
type Transcript struct {
	Text       string
	Confidence float64
}

// Transcriber is the opaque speech-to-text collaborator.
type Transcriber interface {
	Transcribe(ctx context.Context, u audio.Utterance) (Transcript, error)
}

// Speech is the slice of the TTS selector the orchestrator drives.
type Speech interface {
	Speak(ctx context.Context, text string) error
	Stop()
	IsSpeaking() bool
}

// AudioDucker fades other streams around the Speaking phase. Optional.
type AudioDucker interface {
	Duck(ctx context.Context, factor float64) error
	Restore(ctx context.Context)
}

// Earcons plays short cues around listening. Optional.
type Earcons interface {
	Listening()
}

// NotificationKind tags observer notifications.
type NotificationKind int

const (
	// StateChanged carries a StateChange.
	StateChanged NotificationKind = iota
	// TurnAppended carries a conversation Turn.
	TurnAppended
)

// Notification is one observer event.
type Notification struct {
	Kind        NotificationKind
	StateChange StateChange
	Turn        Turn
}

// Config tunes the orchestrator. Zero values fall back to defaults.
type Config struct {
	Wake           wake.Config
	SystemPrompt   string
	MaxTurns       int           // non-system turns kept in memory
	SessionTimeout time.Duration // memory expiry, 0 = never
	RequestTimeout time.Duration // transcription/chat bound
	ChatWindow     int           // recent non-system turns sent to chat
	DuckFactor     float64       // foreign stream volume multiplier while speaking
	DumpDir        string        // write captured utterances as WAV when set
}

func (c Config) withDefaults() Config {
	if c.MaxTurns <= 0 {
		c.MaxTurns = 20
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = 5 * time.Minute
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.ChatWindow <= 0 {
		c.ChatWindow = 8
	}
	if c.DuckFactor <= 0 || c.DuckFactor >= 1 {
		c.DuckFactor = 0.3
	}
	return c
}

// Deps are the orchestrator's collaborators. Recorder, Transcriber, Chat,
// Commands and Speech are required; Ducker and Earcons may be nil.
type Deps struct {
	Recorder    *audio.Recorder
	Transcriber Transcriber
	Chat        ChatService
	Commands    *command.Registry
	Speech      Speech
	Ducker      AudioDucker
	Earcons     Earcons
}

type requestKind int

const (
	reqListen requestKind = iota
	reqText
)

type request struct {
	kind   requestKind
	text   string
	source Source
}

// Assistant is the interaction orchestrator. Run serializes the wake-listen
// loop and interactions on one goroutine, so they are mutually exclusive by
// construction.
type Assistant struct {
	cfg    Config
	rec    *audio.Recorder
	stt    Transcriber
	chat   ChatService
	cmds   *command.Registry
	speech Speech
	ducker AudioDucker
	ears   Earcons
	memory *Memory

	mu            sync.Mutex
	state         State
	wakeCfg       wake.Config
	wakeOn        bool
	cancelCurrent context.CancelFunc

	reqCh     chan request
	interrupt chan struct{}

	subMu  sync.Mutex
	subs   map[int]chan Notification
	nextID int
}

// New wires the orchestrator. Wake listening starts disabled; call
// SetWakeListening(true) once the daemon is ready.
func New(cfg Config, deps Deps) *Assistant {
	cfg = cfg.withDefaults()
	return &Assistant{
		cfg:       cfg,
		rec:       deps.Recorder,
		stt:       deps.Transcriber,
		chat:      deps.Chat,
		cmds:      deps.Commands,
		speech:    deps.Speech,
		ducker:    deps.Ducker,
		ears:      deps.Earcons,
		memory:    NewMemory(cfg.MaxTurns, cfg.SessionTimeout),
		state:     StateIdle,
		wakeCfg:   cfg.Wake,
		reqCh:     make(chan request, 8),
		interrupt: make(chan struct{}, 1),
		subs:      make(map[int]chan Notification),
	}
}

// State returns the current assistant state.
func (a *Assistant) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// History returns a copy of the conversation memory.
func (a *Assistant) History() []Turn { return a.memory.All() }

// ClearMemory drops the conversation history, keeping system turns.
func (a *Assistant) ClearMemory() { a.memory.Clear() }

// WakeConfig returns the active wake-word configuration.
func (a *Assistant) WakeConfig() wake.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.wakeCfg
}

// SetWakeWord swaps the wake phrase, regenerating the variation set while
// keeping the cycle timings. Nil aliases and zero sensitivity carry the
// previous values over; pass an empty non-nil slice to drop aliases.
func (a *Assistant) SetWakeWord(phrase string, aliases []string, sensitivity float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if aliases == nil {
		aliases = a.wakeCfg.Aliases
	}
	if sensitivity <= 0 {
		sensitivity = a.wakeCfg.Sensitivity
	}
	next := wake.NewConfig(phrase, aliases, sensitivity)
	if a.wakeCfg.ListenFor > 0 {
		next.ListenFor = a.wakeCfg.ListenFor
	}
	if a.wakeCfg.CyclePause > 0 {
		next.CyclePause = a.wakeCfg.CyclePause
	}
	a.wakeCfg = next
}

// SetWakeListening enables or disables the wake-listen loop. Disabling also
// interrupts an in-flight wake cycle.
func (a *Assistant) SetWakeListening(on bool) {
	a.mu.Lock()
	a.wakeOn = on
	a.mu.Unlock()
	if !on {
		a.signalInterrupt()
	}
}

// WakeListening reports whether the wake loop is enabled.
func (a *Assistant) WakeListening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.wakeOn
}

// TriggerListen requests an interaction as if the wake word had fired.
func (a *Assistant) TriggerListen() {
	a.enqueue(request{kind: reqListen, source: SourceVoice})
}

// SubmitText runs an interaction over typed input, skipping capture.
func (a *Assistant) SubmitText(text string, source Source) {
	if source == "" {
		source = SourceText
	}
	a.enqueue(request{kind: reqText, text: text, source: source})
}

// Interrupt aborts the in-flight interaction: cancels its context, cuts
// playback, and halts any capture.
func (a *Assistant) Interrupt() {
	a.mu.Lock()
	cancel := a.cancelCurrent
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	a.speech.Stop()
	a.signalInterrupt()
}

func (a *Assistant) enqueue(req request) {
	select {
	case a.reqCh <- req:
		a.signalInterrupt() // halt the wake cycle so the request runs promptly
	default:
		slog.Warn("assistant: request queue full, dropping", "kind", req.kind)
	}
}

func (a *Assistant) signalInterrupt() {
	select {
	case a.interrupt <- struct{}{}:
	default:
	}
}

// Subscribe registers an observer for state changes and turns. Call the
// returned func on teardown.
func (a *Assistant) Subscribe(buffer int) (<-chan Notification, func()) {
	if buffer < 16 {
		buffer = 16
	}
	ch := make(chan Notification, buffer)

	a.subMu.Lock()
	id := a.nextID
	a.nextID++
	a.subs[id] = ch
	a.subMu.Unlock()

	return ch, func() {
		a.subMu.Lock()
		if _, ok := a.subs[id]; ok {
			delete(a.subs, id)
			close(ch)
		}
		a.subMu.Unlock()
	}
}

func (a *Assistant) broadcast(n Notification) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for _, ch := range a.subs {
		select {
		case ch <- n:
		default:
			slog.Warn("assistant: dropped notification on full subscriber")
		}
	}
}

// setState validates the edge and broadcasts the transition. An undefined
// edge is a programming error: it is logged and refused.
func (a *Assistant) setState(next State) bool {
	a.mu.Lock()
	prev := a.state
	if prev == next {
		a.mu.Unlock()
		return true
	}
	if !prev.CanTransition(next) {
		a.mu.Unlock()
		slog.Error("assistant: illegal state transition refused", "from", prev, "to", next)
		return false
	}
	a.state = next
	a.mu.Unlock()

	a.broadcast(Notification{
		Kind:        StateChanged,
		StateChange: StateChange{Previous: prev, Next: next, Timestamp: time.Now()},
	})
	return true
}

func (a *Assistant) appendTurn(t Turn) {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	a.memory.Append(t)
	a.broadcast(Notification{Kind: TurnAppended, Turn: t})
}

// Run is the main loop. It alternates wake cycles with queued requests until
// the context is cancelled. Interactions run inline, so the next wake cycle
// cannot start before the previous interaction's Speaking phase ended.
func (a *Assistant) Run(ctx context.Context) error {
	slog.Info("assistant ready", "wake", a.WakeConfig().Phrase)
	defer a.teardown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-a.reqCh:
			a.handle(ctx, req)
			continue
		default:
		}

		if a.WakeListening() && a.State() == StateIdle {
			if det, ok := a.wakeCycle(ctx); ok {
				slog.Info("wake word detected", "variation", det.Variation, "confidence", det.Confidence)
				a.runInteraction(ctx, "", SourceVoice)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-a.reqCh:
			a.handle(ctx, req)
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (a *Assistant) teardown() {
	a.rec.Stop()
	a.speech.Stop()
}

func (a *Assistant) handle(ctx context.Context, req request) {
	switch req.kind {
	case reqListen:
		a.runInteraction(ctx, "", SourceVoice)
	case reqText:
		a.runInteraction(ctx, req.text, req.source)
	}
}

// wakeCycle records one short listen window and checks it for the wake
// phrase. Returns ok=true when an interaction should start.
func (a *Assistant) wakeCycle(ctx context.Context) (wake.Detection, bool) {
	// Drop a stale interrupt from a previous cycle.
	select {
	case <-a.interrupt:
	default:
	}

	cfg := a.WakeConfig()
	if cfg.Phrase == "" {
		a.pause(ctx, time.Second)
		return wake.Detection{}, false
	}

	if err := a.rec.Start(); err != nil {
		slog.Warn("wake: capture start failed", "err", err)
		a.pause(ctx, time.Second)
		return wake.Detection{}, false
	}
	events, unsub := a.rec.Subscribe(64)
	defer unsub()

	timer := time.NewTimer(cfg.ListenFor)
	defer timer.Stop()

	aborted := false
wait:
	for {
		select {
		case <-ctx.Done():
			aborted = true
			break wait
		case <-a.interrupt:
			aborted = true
			break wait
		case <-timer.C:
			break wait
		case ev, ok := <-events:
			if !ok {
				break wait
			}
			switch ev.Kind {
			case audio.SilenceDetected:
				break wait
			case audio.DeviceError:
				slog.Warn("wake: audio device error", "err", ev.Err)
				aborted = true
				break wait
			}
		}
	}

	u := a.rec.Stop()
	if aborted || u.Empty() || !u.EverLoud {
		a.pause(ctx, cfg.CyclePause)
		return wake.Detection{}, false
	}

	tctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	tr, err := a.stt.Transcribe(tctx, u)
	cancel()
	if err != nil {
		slog.Debug("wake: transcription failed", "err", err)
		a.pause(ctx, cfg.CyclePause)
		return wake.Detection{}, false
	}

	det := cfg.Check(tr.Text)
	if det.Detected {
		return det, true
	}
	a.pause(ctx, cfg.CyclePause)
	return det, false
}

// pause waits out the cycle gap, cut short by cancellation or an interrupt.
func (a *Assistant) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	fired := make(chan struct{})
	t := sched.After(d, func() { close(fired) })
	defer t.Cancel()
	select {
	case <-ctx.Done():
	case <-a.interrupt:
	case <-fired:
	}
}

// runInteraction drives one full interaction through the state machine.
// Recoverable failures degrade to an apology that is still spoken; only
// device faults route through Error.
func (a *Assistant) runInteraction(parent context.Context, text string, src Source) {
	ctx, cancel := context.WithCancel(parent)
	a.mu.Lock()
	a.cancelCurrent = cancel
	a.mu.Unlock()
	defer func() {
		cancel()
		a.mu.Lock()
		a.cancelCurrent = nil
		a.mu.Unlock()
	}()

	if !a.setState(StateListening) {
		return
	}

	input, ok := a.gatherInput(ctx, text, src)
	if !ok {
		return // gatherInput already routed through Error
	}

	response, shouldSpeak := a.respond(ctx, input, src)

	a.appendTurn(Turn{Role: RoleAssistant, Text: response})

	if !a.setState(StateSpeaking) {
		return
	}
	if shouldSpeak && response != "" {
		a.speak(ctx, response)
	}
	a.setState(StateIdle)
}

// gatherInput produces the normalized user text for this interaction. Voice
// input is captured and transcribed; text input passes through. A device
// fault returns ok=false after Error→Idle; an unintelligible capture
// degrades to a placeholder so the user still gets a spoken reply.
func (a *Assistant) gatherInput(ctx context.Context, text string, src Source) (string, bool) {
	if src != SourceVoice {
		a.setState(StateProcessing)
		input := strings.TrimSpace(text)
		if input == "" {
			a.fail(errors.New("empty text input"))
			return "", false
		}
		a.appendTurn(Turn{Role: RoleUser, Text: input, Meta: map[string]string{"source": string(src)}})
		return input, true
	}

	if a.ears != nil {
		a.ears.Listening()
	}

	u, err := a.capture(ctx)
	if err != nil {
		a.fail(fmt.Errorf("capture: %w", err))
		return "", false
	}
	a.dump(u)

	a.setState(StateProcessing)

	if u.Empty() || !u.EverLoud {
		slog.Info("interaction: nothing captured")
		a.fail(errors.New("no speech captured"))
		return "", false
	}

	tctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	tr, err := a.stt.Transcribe(tctx, u)
	cancel()
	if err != nil {
		// Recoverable: degrade to an apology and keep going to Speaking.
		slog.Warn("interaction: transcription failed", "err", err)
		a.setState(StateThinking)
		a.appendTurn(Turn{Role: RoleAssistant, Text: "Sorry, I couldn't make that out."})
		a.setState(StateSpeaking)
		a.speak(ctx, "Sorry, I couldn't make that out.")
		a.setState(StateIdle)
		return "", false
	}

	input := strings.TrimSpace(tr.Text)
	if input == "" {
		a.fail(errors.New("empty transcript"))
		return "", false
	}
	a.appendTurn(Turn{
		Role: RoleUser,
		Text: input,
		Meta: map[string]string{"source": string(SourceVoice)},
	})
	return input, true
}

// respond resolves the input to a command or falls back to the chat service.
func (a *Assistant) respond(ctx context.Context, input string, src Source) (string, bool) {
	if m, ok := a.cmds.Resolve(input); ok {
		a.setState(StateExecuting)
		slog.Info("executing command", "command", m.Pattern.Name, "source", src)
		res := m.Execute(ctx)
		return res.Response, res.ShouldSpeak
	}

	a.setState(StateThinking)
	cctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	reply, err := a.chat.Chat(cctx, a.memory.Recent(a.cfg.ChatWindow), a.cfg.SystemPrompt)
	cancel()
	if err != nil {
		slog.Warn("chat service failed, using canned response", "err", err)
		reply = cannedResponse(input)
	}
	return reply, true
}

// capture records one full utterance, ending on silence, the safety cutoff,
// or cancellation.
func (a *Assistant) capture(ctx context.Context) (audio.Utterance, error) {
	if err := a.rec.Start(); err != nil {
		return audio.Utterance{}, err
	}
	events, unsub := a.rec.Subscribe(64)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			u := a.rec.Stop()
			return u, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return a.rec.Stop(), nil
			}
			switch ev.Kind {
			case audio.SilenceDetected:
				return a.rec.Stop(), nil
			case audio.DeviceError:
				a.rec.Stop()
				return audio.Utterance{}, fmt.Errorf("audio device: %w", ev.Err)
			}
		}
	}
}

// speak plays the response, ducking other audio around it. Total TTS
// unavailability leaves the interaction silent but otherwise complete; the
// response is already in memory and was broadcast to observers.
func (a *Assistant) speak(ctx context.Context, response string) {
	if a.ducker != nil {
		if err := a.ducker.Duck(ctx, a.cfg.DuckFactor); err != nil {
			slog.Debug("duck failed", "err", err)
		}
		defer a.ducker.Restore(context.WithoutCancel(ctx))
	}

	err := a.speech.Speak(ctx, response)
	switch {
	case err == nil:
	case errors.Is(err, tts.ErrNoProviderAvailable):
		slog.Warn("no TTS provider, response not spoken", "response", response)
	case errors.Is(err, context.Canceled):
	default:
		slog.Warn("speech failed", "err", err)
	}
}

func (a *Assistant) fail(err error) {
	slog.Error("interaction failed", "err", err)
	a.setState(StateError)
	a.setState(StateIdle)
}

// dump writes the utterance as WAV for debugging when DumpDir is set.
func (a *Assistant) dump(u audio.Utterance) {
	if a.cfg.DumpDir == "" || u.Empty() {
		return
	}
	data, err := audioconv.EncodeWAV(u.Samples(), u.Format.SampleRate)
	if err != nil {
		slog.Debug("utterance dump encode failed", "err", err)
		return
	}
	name := filepath.Join(a.cfg.DumpDir, u.Started.Format("20060102-150405.000")+".wav")
	if err := os.WriteFile(name, data, 0o644); err != nil {
		slog.Debug("utterance dump write failed", "path", name, "err", err)
	}
}
