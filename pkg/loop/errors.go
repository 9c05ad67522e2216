package loop

import (
	"errors"
	"fmt"
)

// ErrExhausted is returned when every attempt was used without success.
var ErrExhausted = errors.New("max attempts reached")

// ConfigError is a fatal problem with the run's inputs, found before the
// first attempt.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// TransitionError reports an attempt to move along an edge the state machine does not have.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}
