// Package osctl shells out to the desktop for side effects: PulseAudio
// volume, app lifecycle, media transport, notifications. Every call is a
// fallible one-shot; callers decide whether a failure matters.
package osctl

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

// Runner executes a command and returns its combined output. Replaceable in
// tests.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

func execRunner(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

// Controller is the OS control surface used by command executors.
type Controller struct {
	run     Runner
	timeout time.Duration
}

// New returns a controller backed by real processes.
func New() *Controller {
	return &Controller{run: execRunner, timeout: 5 * time.Second}
}

// NewWithRunner injects a runner, for tests.
func NewWithRunner(run Runner) *Controller {
	return &Controller{run: run, timeout: 5 * time.Second}
}

func (c *Controller) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, c.timeout)
}

// Volume reads the default sink volume in percent.
func (c *Controller) Volume(parent context.Context) (int, error) {
	ctx, cancel := c.ctx(parent)
	defer cancel()
	out, err := c.run(ctx, "pactl", "get-sink-volume", "@DEFAULT_SINK@")
	if err != nil {
		return 0, fmt.Errorf("pactl get-sink-volume: %w", err)
	}
	m := percentRe.FindStringSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("no volume percent in %q", strings.TrimSpace(out))
	}
	return strconv.Atoi(m[1])
}

// SetVolume sets the default sink volume, clamped to [0, 150].
func (c *Controller) SetVolume(parent context.Context, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 150 {
		percent = 150
	}
	ctx, cancel := c.ctx(parent)
	defer cancel()
	_, err := c.run(ctx, "pactl", "set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("%d%%", percent))
	if err != nil {
		return fmt.Errorf("pactl set-sink-volume: %w", err)
	}
	return nil
}

// StepVolume adjusts the volume by delta percent.
func (c *Controller) StepVolume(parent context.Context, delta int) (int, error) {
	cur, err := c.Volume(parent)
	if err != nil {
		return 0, err
	}
	next := cur + delta
	if err := c.SetVolume(parent, next); err != nil {
		return 0, err
	}
	if next < 0 {
		next = 0
	}
	if next > 150 {
		next = 150
	}
	return next, nil
}

// SetMute mutes or unmutes the default sink.
func (c *Controller) SetMute(parent context.Context, mute bool) error {
	arg := "0"
	if mute {
		arg = "1"
	}
	ctx, cancel := c.ctx(parent)
	defer cancel()
	_, err := c.run(ctx, "pactl", "set-sink-mute", "@DEFAULT_SINK@", arg)
	if err != nil {
		return fmt.Errorf("pactl set-sink-mute: %w", err)
	}
	return nil
}

// LaunchApp starts an application detached from the daemon.
func (c *Controller) LaunchApp(parent context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("empty app name")
	}
	ctx, cancel := c.ctx(parent)
	defer cancel()
	if _, err := c.run(ctx, "setsid", name); err != nil {
		return fmt.Errorf("launch %q: %w", name, err)
	}
	return nil
}

// CloseApp terminates an application by name.
func (c *Controller) CloseApp(parent context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("empty app name")
	}
	ctx, cancel := c.ctx(parent)
	defer cancel()
	if _, err := c.run(ctx, "pkill", "-f", name); err != nil {
		return fmt.Errorf("close %q: %w", name, err)
	}
	return nil
}

// MediaAction is a playerctl transport verb.
type MediaAction string

const (
	MediaPlayPause MediaAction = "play-pause"
	MediaNext      MediaAction = "next"
	MediaPrevious  MediaAction = "previous"
	MediaStop      MediaAction = "stop"
)

// Media sends a transport command to the active player.
func (c *Controller) Media(parent context.Context, action MediaAction) error {
	ctx, cancel := c.ctx(parent)
	defer cancel()
	if _, err := c.run(ctx, "playerctl", string(action)); err != nil {
		return fmt.Errorf("playerctl %s: %w", action, err)
	}
	return nil
}

// Notify posts a desktop notification. Best effort.
func (c *Controller) Notify(parent context.Context, summary, body string) error {
	ctx, cancel := c.ctx(parent)
	defer cancel()
	if _, err := c.run(ctx, "notify-send", summary, body); err != nil {
		return fmt.Errorf("notify-send: %w", err)
	}
	return nil
}
