package orchestrator

import "fmt"

// ValidationError marks a fatal, non-retryable input failure caught before
// any snapshot or container is created.
type ValidationError struct {
	Code string // "VALIDATION_ENV" or "VALIDATION_DOCKERFILE"
	Errs []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Errs)
}

// InfraError wraps a failure talking to the container runtime or the
// database. Transient distinguishes errors worth a queue-level retry from
// ones that will not resolve by simply trying again.
type InfraError struct {
	Op        string
	Cause     error
	Transient bool
}

func (e *InfraError) Error() string {
	return fmt.Sprintf("infra error during %s: %v", e.Op, e.Cause)
}

func (e *InfraError) Unwrap() error { return e.Cause }

// BuildError wraps a non-zero exit or other failure from a Build Strategy.
type BuildError struct {
	Cause error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build failed: %v", e.Cause)
}

func (e *BuildError) Unwrap() error { return e.Cause }

// LockError wraps a Distributed Status Lock acquisition failure.
type LockError struct {
	Cause error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("status lock error: %v", e.Cause)
}

func (e *LockError) Unwrap() error { return e.Cause }
