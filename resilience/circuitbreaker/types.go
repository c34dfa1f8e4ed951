package circuitbreaker

import (
	"github.com/sony/gobreaker"
)

// State represents circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
	StateUnknown  State = "unknown"
)

// Counts represents circuit breaker statistics.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// StateChangeListener is notified when a circuit breaker changes state.
type StateChangeListener interface {
	OnStateChange(dependency string, from State, to State)
}

// StateChangeListenerFunc adapts a function to StateChangeListener.
type StateChangeListenerFunc func(dependency string, from State, to State)

func (fn StateChangeListenerFunc) OnStateChange(dependency string, from State, to State) {
	if fn != nil {
		fn(dependency, from, to)
	}
}

func fromGobreakerState(state gobreaker.State) State {
	switch state {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateUnknown
	}
}
