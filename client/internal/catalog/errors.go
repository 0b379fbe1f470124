package catalog

import "fmt"

// ErrorKind classifies a catalog fetch failure
type ErrorKind int

const (
	// ErrKindNetwork covers request failures and server errors after retries
	ErrKindNetwork ErrorKind = iota
	// ErrKindParse covers an unreadable index document
	ErrKindParse
	// ErrKindNoMatchingPlatform means the index held no usable candidate for
	// the host platform
	ErrKindNoMatchingPlatform
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindNetwork:
		return "network"
	case ErrKindParse:
		return "parse"
	case ErrKindNoMatchingPlatform:
		return "no matching platform"
	default:
		return "unknown"
	}
}

// FetchError is a terminal release-discovery failure. It fails the current
// cycle; the next scheduled or manual trigger retries from scratch.
type FetchError struct {
	Kind ErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch release index: %s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
