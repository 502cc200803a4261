// Package notify plays short audible cues and desktop notifications around
// the listening phase.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"aura/internal/tts"
)

// Earcons plays a preloaded cue through the shared speaker. All failures are
// logged and swallowed; a missing cue never blocks an interaction.
type Earcons struct {
	player *tts.Player
	clip   tts.Clip
}

// NewEarcons loads the cue file once. Format is inferred from the extension.
func NewEarcons(path string, player *tts.Player) (*Earcons, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read earcon: %w", err)
	}
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	return &Earcons{
		player: player,
		clip:   tts.Clip{Audio: data, Format: format},
	}, nil
}

// Listening plays the cue without blocking the caller.
func (e *Earcons) Listening() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := e.player.Play(ctx, e.clip); err != nil {
			slog.Debug("earcon playback failed", "err", err)
		}
	}()
}

// Desktop sends a transient desktop notification via notify-send. Best
// effort only.
func Desktop(summary, body string) {
	cmd := exec.Command("notify-send", "-a", "aura", "-t", "2500", summary, body)
	if err := cmd.Run(); err != nil {
		slog.Debug("desktop notification failed", "err", err)
	}
}
