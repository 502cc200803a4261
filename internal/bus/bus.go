// Package bus streams assistant activity to a dashboard hub over a
// websocket and accepts typed input back. The connection is optional: the
// daemon runs fine without a hub, and a dropped hub is redialed forever.
package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"aura/internal/assistant"
)

// Message is the hub wire format.
type Message struct {
	From    string          `json:"from"`
	Kind    string          `json:"kind"` // "state", "turn", "text", "control"
	Content string          `json:"content,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Bus is one hub connection with automatic redial.
type Bus struct {
	url       string
	name      string
	reconnect time.Duration
	onText    func(string)
	onControl func(string)
}

// New configures a bus client. onText receives typed user input from the
// hub; onControl receives control verbs ("listen", "stop", "clear").
// Either callback may be nil.
func New(url, name string, onText, onControl func(string)) *Bus {
	return &Bus{
		url:       url,
		name:      name,
		reconnect: 5 * time.Second,
		onText:    onText,
		onControl: onControl,
	}
}

// Run pumps notifications to the hub and inbound messages to the callbacks
// until the context ends. Blocks; run it on its own goroutine.
func (b *Bus) Run(ctx context.Context, notes <-chan assistant.Notification) {
	for {
		conn, err := b.dial(ctx)
		if err != nil {
			return // context done
		}
		b.pump(ctx, conn, notes)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		slog.Info("bus: connection lost, redialing", "url", b.url)
	}
}

func (b *Bus) dial(ctx context.Context) (*websocket.Conn, error) {
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, nil)
		if err == nil {
			slog.Info("bus: connected", "url", b.url)
			return conn, nil
		}
		slog.Debug("bus: dial failed", "url", b.url, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.reconnect):
		}
	}
}

// pump runs one connection until either direction fails.
func (b *Bus) pump(ctx context.Context, conn *websocket.Conn, notes <-chan assistant.Notification) {
	readErr := make(chan error, 1)
	go b.readLoop(conn, readErr)

	for {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case err := <-readErr:
			if !isClosed(err) {
				slog.Debug("bus: read failed", "err", err)
			}
			return
		case n, ok := <-notes:
			if !ok {
				return
			}
			msg, err := b.encode(n)
			if err != nil {
				slog.Warn("bus: encode failed", "err", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Debug("bus: write failed", "err", err)
				return
			}
		}
	}
}

func (b *Bus) readLoop(conn *websocket.Conn, errCh chan<- error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			errCh <- err
			return
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			slog.Debug("bus: bad inbound message", "err", err)
			continue
		}
		switch m.Kind {
		case "text":
			if b.onText != nil && m.Content != "" {
				b.onText(m.Content)
			}
		case "control":
			if b.onControl != nil && m.Content != "" {
				b.onControl(m.Content)
			}
		default:
			slog.Debug("bus: ignoring message", "kind", m.Kind)
		}
	}
}

func (b *Bus) encode(n assistant.Notification) ([]byte, error) {
	var (
		kind    string
		payload any
		content string
	)
	switch n.Kind {
	case assistant.StateChanged:
		kind = "state"
		payload = n.StateChange
		content = string(n.StateChange.Next)
	case assistant.TurnAppended:
		kind = "turn"
		payload = n.Turn
		content = n.Turn.Text
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{From: b.name, Kind: kind, Content: content, Payload: raw})
}

func isClosed(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure)
}
