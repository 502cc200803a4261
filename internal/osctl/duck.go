package osctl

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

// Ducker fades down other PulseAudio streams while the assistant speaks and
// restores them afterwards. Streams whose application.name matches selfNames
// are left alone so the assistant never ducks itself.
type Ducker struct {
	ctl       *Controller
	selfNames []string
	minVolume int

	mu       sync.Mutex
	active   bool
	original map[int]int // sink-input id -> volume percent before ducking
}

// NewDucker builds a ducker on top of the controller. minVolume is the floor
// applied to foreign streams, clamped to [0, 150].
func NewDucker(ctl *Controller, selfNames []string, minVolume int) *Ducker {
	if minVolume < 0 {
		minVolume = 0
	}
	if minVolume > 150 {
		minVolume = 150
	}
	return &Ducker{
		ctl:       ctl,
		selfNames: append([]string(nil), selfNames...),
		minVolume: minVolume,
		original:  make(map[int]int),
	}
}

type sinkInput struct {
	id      int
	volume  int
	appName string
}

// Duck lowers every foreign stream to current*factor, not below the floor.
// Calling Duck while already active is a no-op.
func (d *Ducker) Duck(ctx context.Context, factor float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active {
		return nil
	}

	inputs, err := d.listSinkInputs(ctx)
	if err != nil {
		return err
	}

	for _, in := range inputs {
		if d.isSelf(in.appName) {
			continue
		}
		target := int(float64(in.volume) * factor)
		if target < d.minVolume {
			target = d.minVolume
		}
		if target >= in.volume {
			continue
		}
		if err := d.setSinkInputVolume(ctx, in.id, target); err != nil {
			slog.Warn("duck: failed to lower stream", "id", in.id, "err", err)
			continue
		}
		d.original[in.id] = in.volume
	}
	d.active = true
	return nil
}

// Restore puts every ducked stream back to its original volume. Streams that
// vanished in the meantime are skipped.
func (d *Ducker) Restore(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return
	}
	for id, vol := range d.original {
		if err := d.setSinkInputVolume(ctx, id, vol); err != nil {
			slog.Debug("duck: restore skipped", "id", id, "err", err)
		}
		delete(d.original, id)
	}
	d.active = false
}

func (d *Ducker) isSelf(appName string) bool {
	for _, n := range d.selfNames {
		if strings.EqualFold(n, appName) {
			return true
		}
	}
	return false
}

func (d *Ducker) setSinkInputVolume(ctx context.Context, id, percent int) error {
	cctx, cancel := d.ctl.ctx(ctx)
	defer cancel()
	_, err := d.ctl.run(cctx, "pactl", "set-sink-input-volume",
		strconv.Itoa(id), fmt.Sprintf("%d%%", percent))
	return err
}

// listSinkInputs parses `pactl list sink-inputs` into id/volume/app triples.
func (d *Ducker) listSinkInputs(ctx context.Context) ([]sinkInput, error) {
	cctx, cancel := d.ctl.ctx(ctx)
	defer cancel()
	out, err := d.ctl.run(cctx, "pactl", "list", "sink-inputs")
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}

	var (
		inputs []sinkInput
		cur    *sinkInput
	)
	flush := func() {
		if cur != nil {
			inputs = append(inputs, *cur)
			cur = nil
		}
	}
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "Sink Input #"):
			flush()
			id, err := strconv.Atoi(strings.TrimPrefix(trimmed, "Sink Input #"))
			if err == nil {
				cur = &sinkInput{id: id}
			}
		case cur != nil && strings.HasPrefix(trimmed, "Volume:"):
			if m := percentRe.FindStringSubmatch(trimmed); m != nil {
				cur.volume, _ = strconv.Atoi(m[1])
			}
		case cur != nil && strings.HasPrefix(trimmed, "application.name"):
			if _, val, ok := strings.Cut(trimmed, "="); ok {
				cur.appName = strings.Trim(strings.TrimSpace(val), `"`)
			}
		}
	}
	flush()
	return inputs, nil
}
