package assistant

import "time"

// State is what the assistant is doing right now. Exactly one value per
// session; the orchestrator is the only writer.
type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateThinking   State = "thinking"
	StateExecuting  State = "executing"
	StateSpeaking   State = "speaking"
	StateError      State = "error"
)

// legalEdges is the transition table. Error is reachable from every state and
// only exits to Idle.
var legalEdges = map[State][]State{
	StateIdle:       {StateListening},
	StateListening:  {StateProcessing, StateIdle},
	StateProcessing: {StateExecuting, StateThinking},
	StateThinking:   {StateSpeaking},
	StateExecuting:  {StateSpeaking},
	StateSpeaking:   {StateIdle},
	StateError:      {StateIdle},
}

// CanTransition reports whether the edge from s to next is defined.
func (s State) CanTransition(next State) bool {
	if next == StateError {
		return true
	}
	for _, t := range legalEdges[s] {
		if t == next {
			return true
		}
	}
	return false
}

// StateChange is broadcast to observers on every transition.
type StateChange struct {
	Previous  State     `json:"previous"`
	Next      State     `json:"next"`
	Timestamp time.Time `json:"timestamp"`
}
