package deploy

import (
	"context"
	"fmt"
	"os/exec"
)

// PackageManager installs the merged manifest. It is an external
// collaborator: the deployer only cares about success/failure and the
// captured output.
type PackageManager interface {
	Install(ctx context.Context, manifestPath string) (output string, err error)
}

// PipInstaller shells out to pip for Python manifests.
type PipInstaller struct{}

func (PipInstaller) Install(ctx context.Context, manifestPath string) (string, error) {
	cmd := exec.CommandContext(ctx, "pip", "install", "-r", manifestPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("pip install: %w", err)
	}
	return string(out), nil
}

// NoopInstaller satisfies the interface without touching the environment;
// used for dry runs and tests.
type NoopInstaller struct{}

func (NoopInstaller) Install(context.Context, string) (string, error) {
	return "install skipped", nil
}
