//go:build windows

package probe

import (
	"context"
	"os/exec"

	goversion "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows/registry"

	"github.com/pyautoupdate/pyautoupdate/client/internal/pyver"
)

const pythonCoreKeyPath = `SOFTWARE\Python\PythonCore`

// detect scans the PythonCore registry hives written by the python.org
// installer. When the registry holds nothing (store installs, custom
// distributions) it falls back to asking the py launcher.
func detect(ctx context.Context) (*goversion.Version, error) {
	versions := registryVersions()
	if len(versions) > 0 {
		return newestVersion(versions)
	}

	return launcherVersion(ctx)
}

func registryVersions() []*goversion.Version {
	var versions []*goversion.Version
	for _, root := range []registry.Key{registry.LOCAL_MACHINE, registry.CURRENT_USER} {
		versions = append(versions, hiveVersions(root)...)
	}
	return versions
}

func hiveVersions(root registry.Key) []*goversion.Version {
	k, err := registry.OpenKey(root, pythonCoreKeyPath, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil
	}
	defer func() {
		if err := k.Close(); err != nil {
			log.Warnf("Error closing registry key: %v", err)
		}
	}()

	names, err := k.ReadSubKeyNames(0)
	if err != nil {
		return nil
	}

	var versions []*goversion.Version
	for _, name := range names {
		v, err := subKeyVersion(root, name)
		if err != nil {
			log.Debugf("skipping PythonCore entry %q: %v", name, err)
			continue
		}
		versions = append(versions, v)
	}
	return versions
}

// subKeyVersion reads the full version of one PythonCore entry. The sub key
// name only carries major.minor ("3.12"); the patch level lives in the
// "Version" value.
func subKeyVersion(root registry.Key, name string) (*goversion.Version, error) {
	k, err := registry.OpenKey(root, pythonCoreKeyPath+`\`+name, registry.QUERY_VALUE)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := k.Close(); err != nil {
			log.Warnf("Error closing registry key: %v", err)
		}
	}()

	if full, _, err := k.GetStringValue("Version"); err == nil {
		return pyver.Parse(full)
	}

	// older installers only record the sub key name
	return pyver.Parse(name)
}

func launcherVersion(ctx context.Context) (*goversion.Version, error) {
	ctx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "py", "--version").Output()
	if err != nil {
		return nil, ErrNotFound
	}
	return parseVersionOutput(string(out))
}
