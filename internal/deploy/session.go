package deploy

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gzhole/railguard/internal/generate"
)

// Session exposes the deployment steps individually so a plan executor
// can drive them one at a time. Deploy wraps the same operations as a
// single call; a Session hands the sequencing to the caller while
// keeping the backup-first contract.
type Session struct {
	root      string
	res       *generate.Result
	installer PackageManager

	backup  *Backup
	overlay map[string][]byte
	release func()
}

func NewSession(root string, res *generate.Result, installer PackageManager) (*Session, error) {
	if err := validateTarget(root, res); err != nil {
		return nil, err
	}
	release, err := acquireLock(root)
	if err != nil {
		return nil, err
	}
	if installer == nil {
		installer = PipInstaller{}
	}
	return &Session{root: root, res: res, installer: installer, release: release}, nil
}

// Close releases the advisory lock. Always call it, including after a
// failed step.
func (s *Session) Close() {
	if s.release != nil {
		s.release()
		s.release = nil
	}
}

// CreateBackup captures and persists the pre-deployment content of
// every file a later step may write.
func (s *Session) CreateBackup() (string, error) {
	backup, err := captureBackup(s.root, []string{ManifestFile, IntegrationFile, ConfigFile, GatewayFile})
	if err != nil {
		return "", &BackupError{Err: err}
	}
	if err := backup.Save(); err != nil {
		return "", &BackupError{Err: err}
	}
	s.backup = backup
	s.overlay = buildOverlay(backup, s.res)
	return backup.ID, nil
}

func (s *Session) BackupID() string {
	if s.backup == nil {
		return ""
	}
	return s.backup.ID
}

func (s *Session) ensureOverlay() error {
	if s.overlay != nil {
		return nil
	}
	// No backup step ran; capture without persisting so the overlay
	// still reflects current content.
	backup, err := captureBackup(s.root, []string{ManifestFile, IntegrationFile, ConfigFile, GatewayFile})
	if err != nil {
		return err
	}
	s.overlay = buildOverlay(backup, s.res)
	return nil
}

func (s *Session) MergeManifest() error {
	if err := s.ensureOverlay(); err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(s.root, ManifestFile), s.overlay[ManifestFile]); err != nil {
		return &DeployStepError{Step: "merge-manifest", BackupID: s.BackupID(), Err: err}
	}
	return nil
}

// WriteArtifact writes one generated artifact by its relative path.
func (s *Session) WriteArtifact(rel string) error {
	if err := s.ensureOverlay(); err != nil {
		return err
	}
	content, ok := s.overlay[rel]
	if !ok {
		return &DeployStepError{Step: "write-artifacts", BackupID: s.BackupID(), Err: fmt.Errorf("unknown artifact %s", rel)}
	}
	if err := writeFileAtomic(filepath.Join(s.root, rel), content); err != nil {
		return &DeployStepError{Step: "write-artifacts", BackupID: s.BackupID(), Err: err}
	}
	return nil
}

func (s *Session) InstallDependencies(ctx context.Context) (string, error) {
	out, err := s.installer.Install(ctx, filepath.Join(s.root, ManifestFile))
	if err != nil {
		return out, &DeployStepError{Step: "install-deps", BackupID: s.BackupID(), Err: err}
	}
	return out, nil
}

// RollbackAll restores everything from the session backup.
func (s *Session) RollbackAll() error {
	if s.backup == nil {
		return fmt.Errorf("no backup captured in this session")
	}
	return Rollback(s.backup)
}
