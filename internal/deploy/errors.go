package deploy

import "fmt"

// BackupError aborts a deployment before any mutation. No target file has
// been touched when it is returned.
type BackupError struct {
	Err error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("backup failed, deployment aborted before any write: %v", e.Err)
}

func (e *BackupError) Unwrap() error { return e.Err }

// DeployStepError halts the remaining steps. The named backup is preserved
// for rollback.
type DeployStepError struct {
	Step     string
	BackupID string
	Err      error
}

func (e *DeployStepError) Error() string {
	if e.BackupID != "" {
		return fmt.Sprintf("deploy step %q failed (backup %s preserved): %v", e.Step, e.BackupID, e.Err)
	}
	return fmt.Sprintf("deploy step %q failed: %v", e.Step, e.Err)
}

func (e *DeployStepError) Unwrap() error { return e.Err }

// ErrLocked means another run holds the project's advisory lock.
type ErrLocked struct {
	Path string
}

func (e *ErrLocked) Error() string {
	return fmt.Sprintf("project is locked by another deployment (lock file %s)", e.Path)
}
