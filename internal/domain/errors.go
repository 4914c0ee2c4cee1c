package domain

import "fmt"

// ProbeErrorKind classifies why a probe attempt failed.
type ProbeErrorKind string

const (
	ProbeUnreachable       ProbeErrorKind = "unreachable"
	ProbeAuthFailure       ProbeErrorKind = "auth-failure"
	ProbeMalformedResponse ProbeErrorKind = "malformed-response"
	ProbeTimeout           ProbeErrorKind = "timeout"
)

// ProbeError is a typed probe failure. The scheduler decides from Kind
// whether an attempt is worth retrying.
type ProbeError struct {
	Kind ProbeErrorKind
	Err  error
}

func (e *ProbeError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Retryable reports whether the scheduler should retry this failure.
// Auth failures and malformed responses will not get better on their own.
func (e *ProbeError) Retryable() bool {
	return e.Kind == ProbeUnreachable || e.Kind == ProbeTimeout
}

// Outcome maps the failure onto the terminal sample outcome tag.
func (e *ProbeError) Outcome() Outcome {
	if e.Kind == ProbeTimeout {
		return OutcomeTimeout
	}
	return OutcomeTransportError
}

// DispatchErrorKind classifies a notification delivery failure.
type DispatchErrorKind string

const (
	DispatchChannelUnavailable DispatchErrorKind = "channel-unavailable"
	DispatchRejected           DispatchErrorKind = "rejected"
)

type DispatchError struct {
	Kind    DispatchErrorKind
	Channel string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s via %s: %v", e.Kind, e.Channel, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// StorageErrorKind classifies a storage collaborator failure.
type StorageErrorKind string

const (
	StorageUnavailable StorageErrorKind = "unavailable"
	StorageConflict    StorageErrorKind = "conflict"
)

type StorageError struct {
	Kind StorageErrorKind
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s (%s): %v", e.Kind, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
