package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"aura/internal/assistant"
	"aura/internal/audio"
	"aura/internal/bus"
	"aura/internal/command"
	"aura/internal/config"
	"aura/internal/ipc"
	"aura/internal/notify"
	"aura/internal/osctl"
	"aura/internal/proxy"
	"aura/internal/tts"
	"aura/internal/wake"
	"aura/pkg/audioconv"
	"aura/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "", "Log level (overrides AURA_LOG_LEVEL)")
	proxyAddr := cli.StringP("proxy", "p", "", "SOCKS proxy address (overrides AURA_PROXY)")
	noWake := cli.Bool("no-wake", false, "Start with wake listening disabled")
	cli.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if *logLevel == "" {
		*logLevel = cfg.LogLevel
	}
	if *proxyAddr != "" {
		cfg.ProxyAddr = *proxyAddr
	}

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	httpClient, err := proxy.NewSocksClient(cfg.ProxyAddr)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.ProxyAddr, "err", err)
		os.Exit(1)
	}

	source := audio.NewDeviceSource(audio.DefaultFormat, 320)
	if err := source.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}
	defer source.Close()
	rec := audio.NewRecorder(source, audio.Config{Format: audio.DefaultFormat})

	log.Debug("Loaded recorder")

	whisper, err := stt.NewTranscriber(cfg.WhisperModel)
	if err != nil {
		log.Error("Failed to init whisper", "model", cfg.WhisperModel, "err", err)
		os.Exit(1)
	}
	defer whisper.Close()

	log.Debug("Loaded whisper", "model", cfg.WhisperModel)

	player, err := tts.NewPlayer()
	if err != nil {
		log.Error("Failed to init speaker", "err", err)
		os.Exit(1)
	}

	var providers []tts.Provider
	if cfg.OpenAIAPIKey != "" {
		client := openai.NewClient(
			option.WithAPIKey(cfg.OpenAIAPIKey),
			option.WithHTTPClient(httpClient),
		)
		providers = append(providers, tts.NewOpenAIProvider(client, "", ""))
	}
	if cfg.ElevenLabsAPIKey != "" {
		providers = append(providers, tts.NewElevenLabsProvider(cfg.ElevenLabsAPIKey, "", httpClient))
	}
	providers = append(providers, tts.NewEspeakProvider("", ""))

	selector := tts.NewSelector(player, providers...)
	selector.SetMode(cfg.TTSMode)
	selector.SetRate(cfg.TTSRate)
	if cfg.Voice != "" {
		if err := selector.SetVoice(cfg.Voice); err != nil {
			log.Warn("Configured voice not found", "voice", cfg.Voice, "err", err)
		}
	}

	ctl := osctl.New()
	registry := command.NewRegistry()
	if err := command.RegisterBuiltins(registry, ctl); err != nil {
		log.Error("Failed to register commands", "err", err)
		os.Exit(1)
	}

	var chat assistant.ChatService
	if cfg.OpenAIAPIKey != "" {
		client := openai.NewClient(
			option.WithAPIKey(cfg.OpenAIAPIKey),
			option.WithHTTPClient(httpClient),
		)
		chat = assistant.NewOpenAIChat(client, cfg.ChatModel)
	} else {
		log.Warn("OPENAI_API_KEY not set, chat fallback uses canned responses only")
		chat = unreachableChat{}
	}

	var ears assistant.Earcons
	if cfg.Earcon != "" {
		e, err := notify.NewEarcons(cfg.Earcon, player)
		if err != nil {
			log.Warn("Failed to load earcon", "path", cfg.Earcon, "err", err)
		} else {
			ears = e
		}
	}

	a := assistant.New(assistant.Config{
		Wake:           wake.NewConfig(cfg.WakeWord, cfg.WakeAliases, cfg.WakeSensitivity),
		SystemPrompt:   cfg.SystemPrompt,
		MaxTurns:       cfg.MaxTurns,
		SessionTimeout: cfg.SessionTimeout,
		DumpDir:        cfg.DumpDir,
	}, assistant.Deps{
		Recorder:    rec,
		Transcriber: &whisperAdapter{tr: whisper, language: cfg.Language},
		Chat:        chat,
		Commands:    registry,
		Speech:      selector,
		Ducker:      osctl.NewDucker(ctl, []string{"aura"}, 10),
		Earcons:     ears,
	})

	ln, err := ipc.StartServer(cfg.SocketPath, func(msg ipc.ControlMessage) ipc.Response {
		return dispatch(a, selector, msg)
	})
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}
	defer ln.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.BusURL != "" {
		notes, unsub := a.Subscribe(64)
		defer unsub()
		hub := bus.New(cfg.BusURL, "aura", func(text string) {
			a.SubmitText(text, assistant.SourceText)
		}, func(verb string) {
			control(a, verb)
		})
		go hub.Run(ctx, notes)
	}

	a.SetWakeListening(!*noWake)

	log.Info("Boot up - successful")
	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("Assistant stopped", "err", err)
		os.Exit(1)
	}
	log.Info("Shut down")
}

func control(a *assistant.Assistant, verb string) {
	switch verb {
	case "listen":
		a.TriggerListen()
	case "stop":
		a.Interrupt()
	case "clear":
		a.ClearMemory()
	case "wake-on":
		a.SetWakeListening(true)
	case "wake-off":
		a.SetWakeListening(false)
	default:
		log.Warn("Unknown control verb", "verb", verb)
	}
}

func dispatch(a *assistant.Assistant, sel *tts.Selector, msg ipc.ControlMessage) ipc.Response {
	switch msg.Cmd {
	case "listen":
		a.TriggerListen()
		return ipc.Response{OK: true}
	case "stop":
		a.Interrupt()
		return ipc.Response{OK: true}
	case "text":
		if msg.Arg == "" {
			return ipc.Response{Message: "empty text"}
		}
		a.SubmitText(msg.Arg, assistant.SourceText)
		return ipc.Response{OK: true}
	case "clear":
		a.ClearMemory()
		return ipc.Response{OK: true}
	case "status":
		return ipc.Response{OK: true, Message: fmt.Sprintf(
			"state=%s wake=%t provider=%s rate=%.2f",
			a.State(), a.WakeListening(), sel.ActiveProvider(), sel.Rate())}
	case "wake-on":
		a.SetWakeListening(true)
		return ipc.Response{OK: true}
	case "wake-off":
		a.SetWakeListening(false)
		return ipc.Response{OK: true}
	case "wake-word":
		if msg.Arg == "" {
			return ipc.Response{Message: "empty wake word"}
		}
		a.SetWakeWord(msg.Arg, nil, 0)
		return ipc.Response{OK: true}
	case "voice":
		if err := sel.SetVoice(msg.Arg); err != nil {
			return ipc.Response{Message: err.Error()}
		}
		return ipc.Response{OK: true}
	case "voices":
		var b strings.Builder
		for _, v := range sel.ListVoices() {
			fmt.Fprintf(&b, "%s\t%s\t%s\n", v.ID, v.Provider, v.Name)
		}
		return ipc.Response{OK: true, Message: b.String()}
	case "rate":
		r, err := strconv.ParseFloat(msg.Arg, 64)
		if err != nil {
			return ipc.Response{Message: "rate must be a number"}
		}
		sel.SetRate(r)
		return ipc.Response{OK: true}
	default:
		return ipc.Response{Message: "unknown command: " + msg.Cmd}
	}
}

// whisperAdapter feeds captured utterances to whisper at its native 16 kHz.
type whisperAdapter struct {
	tr       *stt.Transcriber
	language string
}

func (w *whisperAdapter) Transcribe(ctx context.Context, u audio.Utterance) (assistant.Transcript, error) {
	pcm := audioconv.PCM{
		Samples: audioconv.Int16ToFloat32(u.Samples()),
		Rate:    u.Format.SampleRate,
	}
	pcm = audioconv.Resample(pcm, 16000)

	res, err := w.tr.TranscribePCM(ctx, pcm.Samples, stt.Options{Language: w.language})
	if err != nil {
		return assistant.Transcript{}, err
	}
	return assistant.Transcript{Text: res.Text, Confidence: 1}, nil
}

// unreachableChat forces the canned fallback when no API key is configured.
type unreachableChat struct{}

func (unreachableChat) Chat(context.Context, []assistant.Turn, string) (string, error) {
	return "", fmt.Errorf("chat service not configured")
}
