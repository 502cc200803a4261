package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(_ context.Context, _ string, _ Entities) (Result, error) {
	return Result{Success: true}, nil
}

func TestRegisterValidation(t *testing.T) {
	reg := NewRegistry()

	assert.Error(t, reg.Register("x", "", []string{`^a$`}, noop))
	assert.Error(t, reg.Register("x", "no-exprs", nil, noop))
	assert.Error(t, reg.Register("x", "no-run", []string{`^a$`}, nil))
	assert.Error(t, reg.Register("x", "bad-regex", []string{`(`}, noop))
	assert.NoError(t, reg.Register("x", "ok", []string{`^a$`}, noop))
}

func TestResolveFirstMatchWins(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("a", "specific", []string{`^play jazz$`}, noop))
	require.NoError(t, reg.Register("a", "broad", []string{`^play .+$`}, noop))

	m, ok := reg.Resolve("play jazz")
	require.True(t, ok)
	assert.Equal(t, "specific", m.Pattern.Name)

	m, ok = reg.Resolve("play the blues")
	require.True(t, ok)
	assert.Equal(t, "broad", m.Pattern.Name)
}

func TestResolveDeterministic(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("a", "one", []string{`^do it$`}, noop))
	require.NoError(t, reg.Register("a", "two", []string{`^do it$`}, noop))

	for i := 0; i < 50; i++ {
		m, ok := reg.Resolve("do it")
		require.True(t, ok)
		assert.Equal(t, "one", m.Pattern.Name)
	}
}

func TestResolveNormalizesInput(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("app", "open", []string{`^open (?P<app>.+)$`}, noop))

	m, ok := reg.Resolve("  OPEN   Firefox ")
	require.True(t, ok)
	assert.Equal(t, "open firefox", m.Text)
	assert.Equal(t, "firefox", m.Entities["app"])
}

func TestResolveNoMatch(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("a", "only", []string{`^exactly this$`}, noop))

	_, ok := reg.Resolve("something else entirely")
	assert.False(t, ok)
	_, ok = reg.Resolve("")
	assert.False(t, ok)
}

func TestEntityExtraction(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("t", "timer", []string{`^timer for (\d+) minutes$`}, noop))
	require.NoError(t, reg.Register("t", "echo", []string{`^repeat (.+)$`}, noop))
	require.NoError(t, reg.Register("t", "named", []string{`^remind me to (?P<task>.+) at (?P<hour>\d+)$`}, noop))

	m, ok := reg.Resolve("timer for 15 minutes")
	require.True(t, ok)
	assert.Equal(t, Entities{"number": "15"}, m.Entities)

	m, ok = reg.Resolve("repeat hello world")
	require.True(t, ok)
	assert.Equal(t, Entities{"text": "hello world"}, m.Entities)

	m, ok = reg.Resolve("remind me to feed the cat at 9")
	require.True(t, ok)
	assert.Equal(t, Entities{"task": "feed the cat", "hour": "9"}, m.Entities)
}

func TestExecuteErrorBecomesApology(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("boom")
	require.NoError(t, reg.Register("a", "failing", []string{`^fail$`},
		func(_ context.Context, _ string, _ Entities) (Result, error) {
			return Result{}, boom
		}))

	m, ok := reg.Resolve("fail")
	require.True(t, ok)

	res := m.Execute(context.Background())
	assert.False(t, res.Success)
	assert.True(t, res.ShouldSpeak)
	assert.Equal(t, "Sorry, I couldn't do that.", res.Response)
	assert.ErrorIs(t, res.Err, boom)
}

func TestExecutePanicBecomesApology(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("a", "panicking", []string{`^explode$`},
		func(_ context.Context, _ string, _ Entities) (Result, error) {
			panic("kaboom")
		}))

	m, ok := reg.Resolve("explode")
	require.True(t, ok)

	var res Result
	assert.NotPanics(t, func() { res = m.Execute(context.Background()) })
	assert.False(t, res.Success)
	assert.Equal(t, "Sorry, I couldn't do that.", res.Response)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "set volume to 42", Normalize("  Set   VOLUME to 42 "))
	assert.Equal(t, "", Normalize("   "))
}
