package assistant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTrimsOldestNonSystem(t *testing.T) {
	m := NewMemory(3, 0)
	m.Append(Turn{Role: RoleSystem, Text: "persona"})
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		m.Append(Turn{Role: RoleUser, Text: text})
	}

	all := m.All()
	require.Len(t, all, 4, "system turn plus the 3 newest")
	assert.Equal(t, RoleSystem, all[0].Role)
	assert.Equal(t, "three", all[1].Text)
	assert.Equal(t, "four", all[2].Text)
	assert.Equal(t, "five", all[3].Text)
}

func TestMemoryRecentWindow(t *testing.T) {
	m := NewMemory(10, 0)
	m.Append(Turn{Role: RoleSystem, Text: "persona"})
	m.Append(Turn{Role: RoleUser, Text: "q1"})
	m.Append(Turn{Role: RoleAssistant, Text: "a1"})
	m.Append(Turn{Role: RoleUser, Text: "q2"})

	recent := m.Recent(2)
	require.Len(t, recent, 3)
	assert.Equal(t, "persona", recent[0].Text)
	assert.Equal(t, "a1", recent[1].Text)
	assert.Equal(t, "q2", recent[2].Text)

	assert.Len(t, m.Recent(100), 4, "window larger than history returns everything")
}

func TestMemoryClearKeepsSystem(t *testing.T) {
	m := NewMemory(10, 0)
	m.Append(Turn{Role: RoleSystem, Text: "persona"})
	m.Append(Turn{Role: RoleUser, Text: "hello"})

	m.Clear()
	all := m.All()
	require.Len(t, all, 1)
	assert.Equal(t, RoleSystem, all[0].Role)
}

func TestMemoryExpiresAfterInactivity(t *testing.T) {
	m := NewMemory(10, 30*time.Millisecond)
	m.Append(Turn{Role: RoleUser, Text: "stale"})

	time.Sleep(60 * time.Millisecond)

	m.Append(Turn{Role: RoleUser, Text: "fresh"})
	all := m.All()
	require.Len(t, all, 1, "stale history is dropped before appending")
	assert.Equal(t, "fresh", all[0].Text)
}

func TestMemoryRecentAfterExpiryKeepsSystem(t *testing.T) {
	m := NewMemory(10, 30*time.Millisecond)
	m.Append(Turn{Role: RoleSystem, Text: "persona"})
	m.Append(Turn{Role: RoleUser, Text: "stale"})

	time.Sleep(60 * time.Millisecond)

	recent := m.Recent(5)
	require.Len(t, recent, 1, "expiry drops conversation turns only")
	assert.Equal(t, RoleSystem, recent[0].Role)
	assert.Equal(t, "persona", recent[0].Text)
}

func TestMemoryTimestampsFilled(t *testing.T) {
	m := NewMemory(10, 0)
	m.Append(Turn{Role: RoleUser, Text: "hello"})
	assert.False(t, m.All()[0].Timestamp.IsZero())
}
