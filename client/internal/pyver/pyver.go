// Package pyver holds the version ordering rules for Python runtime versions.
//
// Versions are hashicorp/go-version values, which gives a total order with
// pre-releases sorting below the release of the same numeric tuple
// (3.13.0rc1 < 3.13.0).
package pyver

import (
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Parse parses a Python version string ("3.12.1", "3.13.0rc2") into a Version
func Parse(s string) (*goversion.Version, error) {
	v, err := goversion.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", s, err)
	}
	return v, nil
}

// MustParse is Parse for test fixtures and constants known to be valid
func MustParse(s string) *goversion.Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1 when a < b, 0 when equal and 1 when a > b
func Compare(a, b *goversion.Version) int {
	return a.Compare(b)
}

// IsPrerelease reports whether v carries a pre-release tag
func IsPrerelease(v *goversion.Version) bool {
	return v.Prerelease() != ""
}

// IsUpdateAvailable reports whether remote is newer than installed.
// A nil installed version means no runtime was found on the host, so any
// remote release counts as an update (first install).
func IsUpdateAvailable(installed, remote *goversion.Version) bool {
	if remote == nil {
		return false
	}
	if installed == nil {
		return true
	}
	return Compare(installed, remote) < 0
}
