// Package config loads daemon configuration from the environment, with an
// optional .env file on top.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Speech services
	OpenAIAPIKey     string
	ElevenLabsAPIKey string
	ChatModel        string
	WhisperModel     string // path to a ggml model file
	Language         string // whisper language hint, "auto" by default

	// Wake word
	WakeWord        string
	WakeAliases     []string
	WakeSensitivity float64

	// Speech output
	TTSMode string // "auto" or a provider name
	TTSRate float64
	Voice   string // voice id to pin, empty = provider default
	Earcon  string // path to the listening cue, empty disables

	// Conversation
	SystemPrompt   string
	MaxTurns       int
	SessionTimeout time.Duration

	// Plumbing
	SocketPath string
	BusURL     string // websocket hub, empty disables
	ProxyAddr  string // SOCKS5 proxy, empty = direct
	DumpDir    string // write captured utterances as WAV when set
	LogLevel   string
}

// Load reads envFile (when it exists) and then the environment.
func Load(envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil {
		slog.Debug("no env file, using environment only", "path", envFile)
	}

	cfg := &Config{
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		ElevenLabsAPIKey: os.Getenv("ELEVENLABS_API_KEY"),
		ChatModel:        getEnvOrDefault("AURA_CHAT_MODEL", ""),
		WhisperModel:     getEnvOrDefault("AURA_WHISPER_MODEL", "models/ggml-base.en.bin"),
		Language:         getEnvOrDefault("AURA_LANGUAGE", "auto"),

		WakeWord:        getEnvOrDefault("AURA_WAKE_WORD", "aura"),
		WakeAliases:     splitList(os.Getenv("AURA_WAKE_ALIASES")),
		WakeSensitivity: getFloatEnvOrDefault("AURA_WAKE_SENSITIVITY", 0),

		TTSMode: getEnvOrDefault("AURA_TTS_MODE", "auto"),
		TTSRate: getFloatEnvOrDefault("AURA_TTS_RATE", 1.0),
		Voice:   os.Getenv("AURA_VOICE"),
		Earcon:  os.Getenv("AURA_EARCON"),

		SystemPrompt:   getEnvOrDefault("AURA_SYSTEM_PROMPT", defaultSystemPrompt),
		MaxTurns:       getIntEnvOrDefault("AURA_MAX_TURNS", 20),
		SessionTimeout: getDurationEnvOrDefault("AURA_SESSION_TIMEOUT", 5*time.Minute),

		SocketPath: getEnvOrDefault("AURA_SOCKET", "/tmp/aura.sock"),
		BusURL:     os.Getenv("AURA_BUS_URL"),
		ProxyAddr:  os.Getenv("AURA_PROXY"),
		DumpDir:    os.Getenv("AURA_DUMP_DIR"),
		LogLevel:   getEnvOrDefault("AURA_LOG_LEVEL", "info"),
	}

	return cfg, cfg.validate()
}

const defaultSystemPrompt = "You are Aura, a concise voice assistant. " +
	"Answer in one or two spoken-friendly sentences."

func (c *Config) validate() error {
	if c.WakeWord == "" {
		return fmt.Errorf("AURA_WAKE_WORD must not be empty")
	}
	if c.WhisperModel == "" {
		return fmt.Errorf("AURA_WHISPER_MODEL is required")
	}
	if c.TTSRate != 0 && (c.TTSRate < 0.5 || c.TTSRate > 2.0) {
		return fmt.Errorf("AURA_TTS_RATE must be between 0.5 and 2.0")
	}
	return nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnvOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnvOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
