// Package fsm defines the dictation session transition table.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateReady      State = "ready"
	StateReporting  State = "reporting"
	// StateError is display-only; sessions never rest in it.
	StateError State = "error"
)

const (
	EventStart       Event = "start"
	EventStop        Event = "stop"
	EventTranscribed Event = "transcribed"
	EventGenerate    Event = "generate"
	EventReported    Event = "reported"
	EventFail        Event = "fail"
)

// Transition returns the state reached by applying event to current.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateRecording, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventStop:
			return StateProcessing, nil
		case EventFail:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateProcessing:
		switch event {
		case EventTranscribed:
			return StateReady, nil
		case EventFail:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateReady:
		switch event {
		case EventStart:
			return StateRecording, nil
		case EventGenerate:
			return StateReporting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateReporting:
		switch event {
		case EventReported, EventFail:
			return StateReady, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateError:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Can reports whether event is accepted from current.
func Can(current State, event Event) bool {
	_, err := Transition(current, event)
	return err == nil
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
