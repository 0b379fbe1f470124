package installer

import "fmt"

// ErrorKind classifies an installer invocation failure
type ErrorKind int

const (
	// ErrKindLaunch means the process never produced an exit status
	ErrKindLaunch ErrorKind = iota
	// ErrKindTimeout means the advisory wait bound expired; the installer
	// may still be running
	ErrKindTimeout
	// ErrKindCancelled means the cycle was cancelled before launch
	ErrKindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindLaunch:
		return "launch"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is a terminal installer failure for the current cycle
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("install: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
