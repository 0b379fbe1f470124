// Package probe detects the Python runtime installed on the host.
package probe

import (
	"context"
	"errors"
	"regexp"
	"time"

	goversion "github.com/hashicorp/go-version"

	"github.com/pyautoupdate/pyautoupdate/client/internal/pyver"
)

// ErrNotFound signals that no Python installation is discoverable on the
// host. This is a valid outcome: any remote release is then a first install.
var ErrNotFound = errors.New("no python installation found")

const execTimeout = 10 * time.Second

// "Python 3.12.1" as printed by `python --version`, tolerating a trailing
// candidate/beta suffix ("Python 3.13.0rc1")
var versionOutputRe = regexp.MustCompile(`Python (\d+\.\d+(?:\.\d+)?(?:[a-z]+\d+)?)`)

// Detect returns the version of the newest Python runtime installed on the
// host, or ErrNotFound
func Detect(ctx context.Context) (*goversion.Version, error) {
	return detect(ctx)
}

func parseVersionOutput(out string) (*goversion.Version, error) {
	m := versionOutputRe.FindStringSubmatch(out)
	if m == nil {
		return nil, ErrNotFound
	}
	v, err := pyver.Parse(m[1])
	if err != nil {
		return nil, ErrNotFound
	}
	return v, nil
}

func newestVersion(versions []*goversion.Version) (*goversion.Version, error) {
	var newest *goversion.Version
	for _, v := range versions {
		if newest == nil || pyver.Compare(v, newest) > 0 {
			newest = v
		}
	}
	if newest == nil {
		return nil, ErrNotFound
	}
	return newest, nil
}
