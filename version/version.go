package version

import (
	goversion "github.com/hashicorp/go-version"
)

// version is injected at build time:
// go build -ldflags "-X github.com/pyautoupdate/pyautoupdate/version.version=..."
var version = "development"

// Version returns the build version of the updater itself
func Version() string {
	return version
}

// Semver returns the parsed build version, or nil for development builds
func Semver() *goversion.Version {
	v, err := goversion.NewVersion(version)
	if err != nil {
		return nil
	}
	return v
}
