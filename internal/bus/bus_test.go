package bus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aura/internal/assistant"
)

func TestEncodeStateChange(t *testing.T) {
	b := New("ws://unused", "aura", nil, nil)

	raw, err := b.encode(assistant.Notification{
		Kind: assistant.StateChanged,
		StateChange: assistant.StateChange{
			Previous: assistant.StateIdle,
			Next:     assistant.StateListening,
		},
	})
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "aura", msg.From)
	assert.Equal(t, "state", msg.Kind)
	assert.Equal(t, "listening", msg.Content)

	var change assistant.StateChange
	require.NoError(t, json.Unmarshal(msg.Payload, &change))
	assert.Equal(t, assistant.StateIdle, change.Previous)
}

func TestEncodeTurn(t *testing.T) {
	b := New("ws://unused", "aura", nil, nil)

	raw, err := b.encode(assistant.Notification{
		Kind: assistant.TurnAppended,
		Turn: assistant.Turn{Role: assistant.RoleAssistant, Text: "pong"},
	})
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "turn", msg.Kind)
	assert.Equal(t, "pong", msg.Content)
}

func TestPumpBothDirections(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan Message, 8)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// Push typed input and a control verb at the client.
		require.NoError(t, conn.WriteJSON(Message{Kind: "text", Content: "hello aura"}))
		require.NoError(t, conn.WriteJSON(Message{Kind: "control", Content: "clear"}))

		for {
			var m Message
			if err := conn.ReadJSON(&m); err != nil {
				return
			}
			received <- m
		}
	}))
	defer srv.Close()

	texts := make(chan string, 1)
	verbs := make(chan string, 1)
	b := New("ws"+strings.TrimPrefix(srv.URL, "http"), "aura",
		func(text string) { texts <- text },
		func(verb string) { verbs <- verb },
	)

	notes := make(chan assistant.Notification, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(ctx, notes)
	}()

	notes <- assistant.Notification{
		Kind:        assistant.StateChanged,
		StateChange: assistant.StateChange{Previous: assistant.StateIdle, Next: assistant.StateListening},
	}

	select {
	case m := <-received:
		assert.Equal(t, "state", m.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("hub never received the notification")
	}

	select {
	case text := <-texts:
		assert.Equal(t, "hello aura", text)
	case <-time.After(2 * time.Second):
		t.Fatal("text callback never fired")
	}

	select {
	case verb := <-verbs:
		assert.Equal(t, "clear", verb)
	case <-time.After(2 * time.Second):
		t.Fatal("control callback never fired")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit on context cancel")
	}
}
