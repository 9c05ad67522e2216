// Package loop implements the coverage-driven generate, write, execute and
// evaluate cycle as a small state machine.
package loop

// State is a state of the loop controller.
type State string

// Loop states.
const (
	StateInit       State = "INIT"
	StateBaseline   State = "BASELINE"
	StateGenerating State = "GENERATING"
	StateWriting    State = "WRITING"
	StateExecuting  State = "EXECUTING"
	StateEvaluating State = "EVALUATING"
	StateRetrying   State = "RETRYING"
	StateSuccess    State = "SUCCESS"
	StateExhausted  State = "EXHAUSTED"
	// StateError is entered on a fatal error. Any non-terminal state may move to it.
	StateError State = "ERROR"
	// StateCancelled is entered when the run context ends. Any non-terminal state may move to it.
	StateCancelled State = "CANCELLED"
)

// validTransitions defines the loop state machine.
//
//nolint:gochecknoglobals // Intentional package-level constant for state machine definition
var validTransitions = map[State][]State{
	StateInit:       {StateBaseline},
	StateBaseline:   {StateGenerating},
	StateGenerating: {StateWriting, StateRetrying},
	StateWriting:    {StateExecuting},
	StateExecuting:  {StateEvaluating},
	StateEvaluating: {StateSuccess, StateRetrying},
	StateRetrying:   {StateGenerating, StateExhausted},
	StateSuccess:    {},
	StateExhausted:  {},
	StateError:      {},
	StateCancelled:  {},
}

// IsValidTransition reports whether the controller may move from one state to another.
func IsValidTransition(from, to State) bool {
	if IsTerminal(from) {
		return false
	}
	if to == StateError || to == StateCancelled {
		return true
	}
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves state.
func IsTerminal(state State) bool {
	switch state {
	case StateSuccess, StateExhausted, StateError, StateCancelled:
		return true
	default:
		return false
	}
}

// ValidNextStates returns the states reachable from state, excluding ERROR and CANCELLED.
func ValidNextStates(from State) []State {
	return validTransitions[from]
}
