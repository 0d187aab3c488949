// Package deploy writes generated artifacts into a target project behind a
// backup-first, rollback-safe step sequence.
package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/gzhole/railguard/internal/generate"
)

// Fixed artifact paths relative to the project root. GatewayFile is
// written only in blackbox mode.
const (
	ManifestFile    = "requirements.txt"
	IntegrationFile = "railguard_integration.py"
	ConfigFile      = "railguard.yaml"
	GatewayFile     = "railguard_gateway.yaml"
)

// Step status values recorded per step.
const (
	StatusDone    = "done"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

type StepRecord struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Record is the per-step outcome of one deployment.
type Record struct {
	BackupID string       `json:"backup_id,omitempty"`
	Steps    []StepRecord `json:"steps"`
	DryRun   bool         `json:"dry_run,omitempty"`

	// Diffs maps path → reported change, dry-run only.
	Diffs map[string]string `json:"diffs,omitempty"`
}

type Options struct {
	DryRun    bool
	NoBackup  bool
	Installer PackageManager
}

// Deploy runs the ordered step sequence against root. Each step is
// recorded before the next begins. A failure after backup leaves the
// backup in place and returns a DeployStepError naming it.
func Deploy(ctx context.Context, root string, res *generate.Result, opts Options) (*Record, error) {
	record := &Record{DryRun: opts.DryRun}

	release, err := acquireLock(root)
	if err != nil {
		return record, err
	}
	defer release()

	if opts.Installer == nil {
		opts.Installer = PipInstaller{}
	}

	touched := []string{ManifestFile, IntegrationFile, ConfigFile}

	// Step: validate
	if err := validateTarget(root, res); err != nil {
		record.Steps = append(record.Steps, StepRecord{Name: "validate", Status: StatusFailed, Error: err.Error()})
		return record, &DeployStepError{Step: "validate", Err: err}
	}
	record.Steps = append(record.Steps, StepRecord{Name: "validate", Status: StatusDone})

	if err := ctx.Err(); err != nil {
		return record, err
	}

	// Step: backup. Capturing always happens (the dry-run overlay needs
	// original content); persisting is skipped for dry runs.
	backup, err := captureBackup(root, touched)
	if err != nil {
		record.Steps = append(record.Steps, StepRecord{Name: "backup", Status: StatusFailed, Error: err.Error()})
		return record, &BackupError{Err: err}
	}
	switch {
	case opts.DryRun:
		record.Steps = append(record.Steps, StepRecord{Name: "backup", Status: StatusSkipped, Detail: "dry run"})
	case opts.NoBackup:
		record.Steps = append(record.Steps, StepRecord{Name: "backup", Status: StatusSkipped, Detail: "disabled by flag"})
	default:
		if err := backup.Save(); err != nil {
			record.Steps = append(record.Steps, StepRecord{Name: "backup", Status: StatusFailed, Error: err.Error()})
			return record, &BackupError{Err: err}
		}
		record.BackupID = backup.ID
		record.Steps = append(record.Steps, StepRecord{Name: "backup", Status: StatusDone, Detail: backup.ID})
	}

	if err := ctx.Err(); err != nil {
		return record, err
	}

	// Compute every new file content up front; dry run stops here.
	overlay := buildOverlay(backup, res)

	if opts.DryRun {
		record.Diffs = diffOverlay(backup, overlay)
		record.Steps = append(record.Steps,
			StepRecord{Name: "merge-manifest", Status: StatusSkipped, Detail: "dry run"},
			StepRecord{Name: "write-artifacts", Status: StatusSkipped, Detail: "dry run"},
			StepRecord{Name: "install-deps", Status: StatusSkipped, Detail: "dry run"},
		)
		return record, nil
	}

	// Step: merge manifest
	if err := writeFileAtomic(filepath.Join(root, ManifestFile), overlay[ManifestFile]); err != nil {
		record.Steps = append(record.Steps, StepRecord{Name: "merge-manifest", Status: StatusFailed, Error: err.Error()})
		return record, &DeployStepError{Step: "merge-manifest", BackupID: record.BackupID, Err: err}
	}
	record.Steps = append(record.Steps, StepRecord{Name: "merge-manifest", Status: StatusDone})

	if err := ctx.Err(); err != nil {
		return record, err
	}

	// Step: write artifacts
	for _, rel := range []string{IntegrationFile, ConfigFile} {
		if err := writeFileAtomic(filepath.Join(root, rel), overlay[rel]); err != nil {
			record.Steps = append(record.Steps, StepRecord{Name: "write-artifacts", Status: StatusFailed, Error: err.Error()})
			return record, &DeployStepError{Step: "write-artifacts", BackupID: record.BackupID, Err: err}
		}
	}
	record.Steps = append(record.Steps, StepRecord{Name: "write-artifacts", Status: StatusDone})

	if err := ctx.Err(); err != nil {
		return record, err
	}

	// Step: install deps
	out, err := opts.Installer.Install(ctx, filepath.Join(root, ManifestFile))
	if err != nil {
		record.Steps = append(record.Steps, StepRecord{Name: "install-deps", Status: StatusFailed, Detail: out, Error: err.Error()})
		return record, &DeployStepError{Step: "install-deps", BackupID: record.BackupID, Err: err}
	}
	record.Steps = append(record.Steps, StepRecord{Name: "install-deps", Status: StatusDone, Detail: strings.TrimSpace(out)})

	return record, nil
}

func validateTarget(root string, res *generate.Result) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}
	if res == nil || res.IntegrationCode == "" {
		return fmt.Errorf("generation result has no integration code")
	}
	return nil
}

// buildOverlay computes the new content of every touched file from the
// captured originals, without reading the filesystem again.
func buildOverlay(b *Backup, res *generate.Result) map[string][]byte {
	overlay := make(map[string][]byte, 4)
	overlay[ManifestFile] = mergeManifest(b.Files[ManifestFile].Content, res.DependencyDelta)
	overlay[IntegrationFile] = []byte(res.IntegrationCode)
	overlay[ConfigFile] = []byte(res.ConfigPayload)
	overlay[GatewayFile] = gatewayConfig(res)
	return overlay
}

// gatewayConfig is the blackbox-mode artifact: an intercepting proxy
// config that fronts an unmodified target with the provider policy.
func gatewayConfig(res *generate.Result) []byte {
	var b strings.Builder
	b.WriteString("# Railguard gateway configuration\n")
	b.WriteString("mode: blackbox\n")
	b.WriteString("provider: " + res.ProviderID + "\n")
	b.WriteString("listen: 0.0.0.0:8466\n")
	b.WriteString("upstream: http://localhost:8000\n")
	b.WriteString("policy:\n")
	for _, line := range strings.Split(strings.TrimRight(res.ConfigPayload, "\n"), "\n") {
		b.WriteString("  " + line + "\n")
	}
	return []byte(b.String())
}

// mergeManifest appends delta entries that are not already present.
// Existing lines are never rewritten.
func mergeManifest(existing []byte, delta map[string]string) []byte {
	lines := []string{}
	present := map[string]bool{}
	if len(existing) > 0 {
		for _, line := range strings.Split(strings.TrimRight(string(existing), "\n"), "\n") {
			lines = append(lines, line)
			name := strings.ToLower(strings.TrimSpace(line))
			for i, r := range name {
				if strings.ContainsRune("=<>!~;[ ", r) {
					name = name[:i]
					break
				}
			}
			if name != "" {
				present[name] = true
			}
		}
	}

	names := make([]string, 0, len(delta))
	for name := range delta {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if present[strings.ToLower(name)] {
			continue
		}
		lines = append(lines, name+delta[name])
	}

	return []byte(strings.Join(lines, "\n") + "\n")
}

func diffOverlay(b *Backup, overlay map[string][]byte) map[string]string {
	diffs := make(map[string]string, len(overlay))
	for _, rel := range b.WriteOrder {
		before := string(b.Files[rel].Content)
		after := string(overlay[rel])
		if d := cmp.Diff(before, after); d != "" {
			diffs[rel] = d
		}
	}
	return diffs
}

func writeFileAtomic(path string, content []byte) error {
	tmp := path + ".railguard.tmp"
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
