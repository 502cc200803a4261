// Package command resolves free text to registered command patterns and runs
// their executors. Resolution is first-match-wins over registration order.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Entities are the capture groups extracted from a matched pattern. Named
// groups keep their names; unnamed numeric captures are tagged "number" and
// unnamed text captures "text".
type Entities map[string]string

// Result is the outcome of executing a command.
type Result struct {
	Success     bool
	Response    string
	ShouldSpeak bool
	Data        map[string]any
	Err         error
}

// Executor performs a command's side effects and produces the spoken reply.
type Executor func(ctx context.Context, text string, ents Entities) (Result, error)

// Pattern is a registered command: a category, a name, ordered match
// expressions, and an executor. Immutable once registered.
type Pattern struct {
	Category string
	Name     string
	Matches  []*regexp.Regexp
	Run      Executor
}

// Match is a successful resolution.
type Match struct {
	Pattern  *Pattern
	Text     string
	Entities Entities
}

// Registry holds command patterns in registration order.
type Registry struct {
	patterns []*Pattern
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Register compiles the given expressions and appends the pattern. Earlier
// registrations win over later ones, so register specific patterns before
// broad ones.
func (r *Registry) Register(category, name string, exprs []string, run Executor) error {
	if name == "" || run == nil || len(exprs) == 0 {
		return fmt.Errorf("command %q: name, matches and executor are required", name)
	}
	p := &Pattern{Category: category, Name: name, Run: run}
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("command %q: compile %q: %w", name, expr, err)
		}
		p.Matches = append(p.Matches, re)
	}
	r.patterns = append(r.patterns, p)
	return nil
}

// Patterns returns the registered patterns in order.
func (r *Registry) Patterns() []*Pattern { return r.patterns }

// Resolve normalizes the text and walks patterns in registration order,
// testing each pattern's expressions in order. The first hit wins.
func (r *Registry) Resolve(text string) (Match, bool) {
	norm := Normalize(text)
	if norm == "" {
		return Match{}, false
	}
	for _, p := range r.patterns {
		for _, re := range p.Matches {
			sub := re.FindStringSubmatch(norm)
			if sub == nil {
				continue
			}
			return Match{Pattern: p, Text: norm, Entities: extract(re, sub)}, true
		}
	}
	return Match{}, false
}

// Execute runs the matched executor. Executor errors and panics never
// propagate; they become an apology result with Success=false.
func (m Match) Execute(ctx context.Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("command executor panicked", "command", m.Pattern.Name, "panic", r)
			res = apology(fmt.Errorf("panic: %v", r))
		}
	}()

	res, err := m.Pattern.Run(ctx, m.Text, m.Entities)
	if err != nil {
		slog.Warn("command failed", "command", m.Pattern.Name, "err", err)
		return apology(err)
	}
	return res
}

func apology(err error) Result {
	return Result{
		Success:     false,
		Response:    "Sorry, I couldn't do that.",
		ShouldSpeak: true,
		Err:         err,
	}
}

func extract(re *regexp.Regexp, sub []string) Entities {
	ents := Entities{}
	names := re.SubexpNames()
	for i := 1; i < len(sub); i++ {
		val := strings.TrimSpace(sub[i])
		if val == "" {
			continue
		}
		switch {
		case i < len(names) && names[i] != "":
			ents[names[i]] = val
		case isNumeric(val):
			ents["number"] = val
		default:
			ents["text"] = val
		}
	}
	return ents
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Normalize lowercases and trims the input the same way resolution does.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
