package generator

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingInput means a surface lacks requirements.txt or swagger.yaml.
	ErrMissingInput = errors.New("missing input file")
	// ErrNoScenarios means the model answered but no scenario survived cleanup.
	ErrNoScenarios = errors.New("no scenarios generated")
	// ErrEmptyResponse means the backend returned no choices.
	ErrEmptyResponse = errors.New("model response has no choices")
)

// BackendError is a model call failure tagged with the stage that made it.
type BackendError struct {
	Stage string
	Err   error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
