//go:build !windows

package probe

import (
	"context"
	"os/exec"

	goversion "github.com/hashicorp/go-version"
)

// detect asks the interpreters on PATH for their version. Non-Windows hosts
// have no installer registry, so exec is the only discovery channel.
func detect(ctx context.Context) (*goversion.Version, error) {
	ctx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	for _, bin := range []string{"python3", "python"} {
		out, err := exec.CommandContext(ctx, bin, "--version").CombinedOutput()
		if err != nil {
			continue
		}
		if v, err := parseVersionOutput(string(out)); err == nil {
			return v, nil
		}
	}

	return nil, ErrNotFound
}
