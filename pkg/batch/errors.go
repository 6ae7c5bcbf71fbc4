package batch

import "errors"

var (
	// ErrNoTargets is wrapped by PreconditionError when a batch has no targets.
	ErrNoTargets = errors.New("no lookup targets")

	// ErrMissingCredential is wrapped by ConfigurationError when no API key is set.
	ErrMissingCredential = errors.New("api credential is not set")
)

// ConfigurationError reports a batch that cannot start because the client
// cannot be configured, typically a missing credential.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// PreconditionError reports a caller mistake detected before dispatch.
type PreconditionError struct {
	Err error
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Err.Error()
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}
