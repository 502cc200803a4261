package command

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"aura/internal/osctl"
)

// RegisterBuiltins installs the stock command set on the registry. Specific
// patterns are registered before broad ones so first-match-wins stays
// predictable.
func RegisterBuiltins(reg *Registry, ctl *osctl.Controller) error {
	type cmd struct {
		category string
		name     string
		exprs    []string
		run      Executor
	}

	cmds := []cmd{
		{
			category: "volume", name: "volume.set",
			exprs: []string{`^(?:set |turn |put )?(?:the )?volume (?:to |at )?(?P<level>\d+)\s*(?:%|percent)?$`},
			run: func(ctx context.Context, text string, ents Entities) (Result, error) {
				level, err := strconv.Atoi(ents["level"])
				if err != nil {
					return Result{}, fmt.Errorf("bad level %q: %w", ents["level"], err)
				}
				if err := ctl.SetVolume(ctx, level); err != nil {
					return Result{}, err
				}
				return spoken(fmt.Sprintf("Volume set to %d%%", level)), nil
			},
		},
		{
			category: "volume", name: "volume.up",
			exprs: []string{`^(?:volume up|turn (?:it|the volume) up|louder)$`},
			run: func(ctx context.Context, _ string, _ Entities) (Result, error) {
				next, err := ctl.StepVolume(ctx, 10)
				if err != nil {
					return Result{}, err
				}
				return spoken(fmt.Sprintf("Volume up to %d%%", next)), nil
			},
		},
		{
			category: "volume", name: "volume.down",
			exprs: []string{`^(?:volume down|turn (?:it|the volume) down|quieter|softer)$`},
			run: func(ctx context.Context, _ string, _ Entities) (Result, error) {
				next, err := ctl.StepVolume(ctx, -10)
				if err != nil {
					return Result{}, err
				}
				return spoken(fmt.Sprintf("Volume down to %d%%", next)), nil
			},
		},
		{
			category: "volume", name: "volume.mute",
			exprs: []string{`^(?:mute|be quiet|silence)$`},
			run: func(ctx context.Context, _ string, _ Entities) (Result, error) {
				if err := ctl.SetMute(ctx, true); err != nil {
					return Result{}, err
				}
				// Nothing to say over a muted sink.
				return Result{Success: true, Response: "Muted", ShouldSpeak: false}, nil
			},
		},
		{
			category: "volume", name: "volume.unmute",
			exprs: []string{`^unmute$`},
			run: func(ctx context.Context, _ string, _ Entities) (Result, error) {
				if err := ctl.SetMute(ctx, false); err != nil {
					return Result{}, err
				}
				return spoken("Unmuted"), nil
			},
		},
		{
			category: "media", name: "media.playpause",
			exprs: []string{`^(?:play|pause|resume)(?: (?:the )?music)?$`},
			run: func(ctx context.Context, _ string, _ Entities) (Result, error) {
				if err := ctl.Media(ctx, osctl.MediaPlayPause); err != nil {
					return Result{}, err
				}
				return Result{Success: true, Response: "Done", ShouldSpeak: false}, nil
			},
		},
		{
			category: "media", name: "media.next",
			exprs: []string{`^(?:next|skip)(?: (?:this )?(?:track|song))?$`},
			run: func(ctx context.Context, _ string, _ Entities) (Result, error) {
				if err := ctl.Media(ctx, osctl.MediaNext); err != nil {
					return Result{}, err
				}
				return Result{Success: true, Response: "Skipped", ShouldSpeak: false}, nil
			},
		},
		{
			category: "media", name: "media.previous",
			exprs: []string{
				`^(?:previous|last) (?:track|song)$`,
				`^go back$`,
			},
			run: func(ctx context.Context, _ string, _ Entities) (Result, error) {
				if err := ctl.Media(ctx, osctl.MediaPrevious); err != nil {
					return Result{}, err
				}
				return Result{Success: true, Response: "Going back", ShouldSpeak: false}, nil
			},
		},
		{
			category: "system", name: "time.query",
			exprs: []string{`^what(?:'s| is) the time\??$`, `^what time is it\??$`},
			run: func(_ context.Context, _ string, _ Entities) (Result, error) {
				return spoken("It's " + time.Now().Format("3:04 PM")), nil
			},
		},
		{
			category: "system", name: "date.query",
			exprs: []string{`^what(?:'s| is) (?:the date|today'?s date)\??$`, `^what day is it\??$`},
			run: func(_ context.Context, _ string, _ Entities) (Result, error) {
				return spoken("Today is " + time.Now().Format("Monday, January 2")), nil
			},
		},
		{
			category: "app", name: "app.open",
			exprs: []string{`^(?:open|launch|start) (?P<app>.+)$`},
			run: func(ctx context.Context, _ string, ents Entities) (Result, error) {
				app := ents["app"]
				if err := ctl.LaunchApp(ctx, app); err != nil {
					return Result{}, err
				}
				return spoken("Opening " + app), nil
			},
		},
		{
			category: "app", name: "app.close",
			exprs: []string{`^(?:close|quit) (?P<app>.+)$`},
			run: func(ctx context.Context, _ string, ents Entities) (Result, error) {
				app := ents["app"]
				if err := ctl.CloseApp(ctx, app); err != nil {
					return Result{}, err
				}
				return spoken("Closing " + app), nil
			},
		},
	}

	for _, c := range cmds {
		if err := reg.Register(c.category, c.name, c.exprs, c.run); err != nil {
			return err
		}
	}
	return nil
}

func spoken(text string) Result {
	return Result{Success: true, Response: text, ShouldSpeak: true}
}
