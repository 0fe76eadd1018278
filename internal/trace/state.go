package trace

// State is the lifecycle state of a run. The transitions are:
//
//	probing -> probing    (ordinary hop, TTL increments)
//	probing -> succeeded  (destination answered)
//	probing -> aborted    (consecutive timeout limit reached)
//	probing -> exhausted  (TTL reached max hops)
//
// succeeded, aborted and exhausted are terminal.
type State int

const (
	StateProbing State = iota
	StateSucceeded
	StateAborted
	StateExhausted
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateProbing:
		return "probing"
	case StateSucceeded:
		return "succeeded"
	case StateAborted:
		return "aborted"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TraceState is the mutable state of a single run.
type TraceState struct {
	CurrentTTL          int
	ConsecutiveTimeouts int
	DestinationReached  bool
}

// newTraceState returns the state a run starts from.
func newTraceState() TraceState {
	return TraceState{CurrentTTL: 1}
}

// observe folds a probe response into the state and returns the outcome.
func (s *TraceState) observe(resp Response) Outcome {
	if resp.TimedOut {
		s.ConsecutiveTimeouts++
		return OutcomeTimeout
	}

	s.ConsecutiveTimeouts = 0
	if resp.Succeeded {
		s.DestinationReached = true
	}
	return OutcomeResponse
}
