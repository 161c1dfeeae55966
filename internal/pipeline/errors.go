package pipeline

import (
	"errors"
	"fmt"
)

// OutcomeKind is the closed set of process outcomes a run can end with.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	SkippedOceanScene
	ConfigurationError
	InputError
)

// String returns the outcome kind name for logs and the run ledger.
func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case SkippedOceanScene:
		return "skipped_ocean_scene"
	case ConfigurationError:
		return "configuration_error"
	case InputError:
		return "input_error"
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

// ExitCode maps an outcome kind to a process exit code. The ocean-scene
// skip is intentional and carries its own code so schedulers can tell it
// from success without treating it as a retryable failure.
func (k OutcomeKind) ExitCode() int {
	switch k {
	case Success:
		return 0
	case ConfigurationError:
		return 1
	case InputError:
		return 2
	case SkippedOceanScene:
		return 3
	}
	return 1
}

// Outcome is the result of a pipeline run.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

// ExitCode returns the process exit code for the outcome.
func (o Outcome) ExitCode() int { return o.Kind.ExitCode() }

// DomainError is an anticipated failure that the orchestrator maps to an
// outcome at its boundary. Anything not wrapped in a DomainError
// propagates out of Run unchanged.
type DomainError struct {
	Kind OutcomeKind
	msg  string
	err  error
}

func (e *DomainError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *DomainError) Unwrap() error { return e.err }

// Configf builds a configuration DomainError.
func Configf(format string, args ...interface{}) error {
	return &DomainError{Kind: ConfigurationError, msg: fmt.Sprintf(format, args...)}
}

// Inputf builds an input DomainError.
func Inputf(format string, args ...interface{}) error {
	return &DomainError{Kind: InputError, msg: fmt.Sprintf(format, args...)}
}

// WrapInput wraps an underlying error as an input DomainError.
func WrapInput(err error, format string, args ...interface{}) error {
	return &DomainError{Kind: InputError, msg: fmt.Sprintf(format, args...), err: err}
}

// WrapConfig wraps an underlying error as a configuration DomainError.
func WrapConfig(err error, format string, args ...interface{}) error {
	return &DomainError{Kind: ConfigurationError, msg: fmt.Sprintf(format, args...), err: err}
}

// AsOutcome converts an anticipated error into its outcome, reporting ok
// false for errors that must keep propagating.
func AsOutcome(err error) (Outcome, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return Outcome{Kind: de.Kind, Reason: de.Error()}, true
	}
	return Outcome{}, false
}
