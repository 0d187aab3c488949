// Package plan builds and executes the ordered deployment plan and
// persists the run state for later inspection.
package plan

import (
	"fmt"
	"path/filepath"

	"github.com/gzhole/railguard/internal/deploy"
	"github.com/gzhole/railguard/internal/generate"
)

// Risk levels for a step.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Step actions, in the only order they ever execute.
const (
	ActionBackup      = "backup"
	ActionMergeDeps   = "merge-manifest"
	ActionWriteFile   = "write-artifact"
	ActionInstallDeps = "install-deps"
	ActionValidate    = "validate"
)

// Integration modes. Whitebox edits the target source; blackbox puts a
// gateway config in front of an unmodified target.
const (
	ModeWhitebox = "whitebox"
	ModeBlackbox = "blackbox"
)

// GatewayFile is the blackbox-mode artifact.
const GatewayFile = deploy.GatewayFile

type Step struct {
	ID               string `json:"id"`
	Action           string `json:"action"`
	Target           string `json:"target,omitempty"`
	Risk             string `json:"risk"`
	ExpectedArtifact string `json:"expected_artifact,omitempty"`

	// Critical steps halt the run on failure.
	Critical bool `json:"critical,omitempty"`
}

type Plan struct {
	Steps []Step `json:"steps"`
}

type BuildOptions struct {
	ProjectRoot string
	Mode        string
	NoBackup    bool
	Validate    bool
	Install     bool
}

// Build derives the step list from a generation result. The same
// inputs always produce the same plan; nothing here touches the
// filesystem.
func Build(res *generate.Result, opts BuildOptions) (*Plan, error) {
	if res == nil || res.IntegrationCode == "" {
		return nil, fmt.Errorf("cannot plan without a generation result")
	}
	if opts.Mode == "" {
		opts.Mode = ModeWhitebox
	}
	if opts.Mode != ModeWhitebox && opts.Mode != ModeBlackbox {
		return nil, fmt.Errorf("unknown integration mode %q", opts.Mode)
	}

	var steps []Step
	n := 0
	add := func(s Step) {
		n++
		s.ID = fmt.Sprintf("step-%02d", n)
		steps = append(steps, s)
	}

	if !opts.NoBackup {
		add(Step{
			Action:   ActionBackup,
			Target:   opts.ProjectRoot,
			Risk:     RiskLow,
			Critical: true,
		})
	}

	if opts.Mode == ModeBlackbox {
		// The target source stays untouched; the only write is the
		// gateway config.
		add(Step{
			Action:           ActionWriteFile,
			Target:           filepath.Join(opts.ProjectRoot, GatewayFile),
			Risk:             RiskMedium,
			ExpectedArtifact: GatewayFile,
			Critical:         true,
		})
		if opts.Validate {
			add(Step{Action: ActionValidate, Risk: RiskLow})
		}
		return &Plan{Steps: steps}, nil
	}

	add(Step{
		Action:           ActionMergeDeps,
		Target:           filepath.Join(opts.ProjectRoot, deploy.ManifestFile),
		Risk:             RiskMedium,
		ExpectedArtifact: deploy.ManifestFile,
		Critical:         true,
	})
	add(Step{
		Action:           ActionWriteFile,
		Target:           filepath.Join(opts.ProjectRoot, deploy.IntegrationFile),
		Risk:             RiskMedium,
		ExpectedArtifact: deploy.IntegrationFile,
		Critical:         true,
	})
	add(Step{
		Action:           ActionWriteFile,
		Target:           filepath.Join(opts.ProjectRoot, deploy.ConfigFile),
		Risk:             RiskMedium,
		ExpectedArtifact: deploy.ConfigFile,
		Critical:         true,
	})
	if opts.Install {
		add(Step{
			Action: ActionInstallDeps,
			Target: filepath.Join(opts.ProjectRoot, deploy.ManifestFile),
			Risk:   RiskHigh,
		})
	}
	if opts.Validate {
		add(Step{
			Action: ActionValidate,
			Risk:   RiskLow,
		})
	}

	return &Plan{Steps: steps}, nil
}
