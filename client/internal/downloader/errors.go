package downloader

import "fmt"

// ErrorKind classifies a download failure
type ErrorKind int

const (
	// ErrKindChecksumMismatch means the artifact digest did not match the
	// catalog checksum. Never retried: the published artifact is wrong or
	// the transfer was corrupted end to end.
	ErrKindChecksumMismatch ErrorKind = iota
	// ErrKindCancelled means the cycle's cancellation signal was observed
	ErrKindCancelled
	// ErrKindNetworkExhausted means transient failures persisted past the
	// retry bound
	ErrKindNetworkExhausted
	// ErrKindIO covers local filesystem failures
	ErrKindIO
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindChecksumMismatch:
		return "checksum mismatch"
	case ErrKindCancelled:
		return "cancelled"
	case ErrKindNetworkExhausted:
		return "network exhausted"
	case ErrKindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is a terminal download failure for the current cycle
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("download: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
