package deploy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/gzhole/railguard/internal/config"
)

// Backup is the explicit manifest that makes a deployment reversible. It
// captures every file about to be touched, including ones that do not
// exist yet, so rollback can remove them again.
type Backup struct {
	ID          string                  `json:"backup_id"`
	CreatedAt   time.Time               `json:"created_at"`
	ProjectRoot string                  `json:"project_root"`
	Files       map[string]CapturedFile `json:"captured_files"`
	WriteOrder  []string                `json:"write_order"`
}

type CapturedFile struct {
	Content []byte `json:"content"`
	Existed bool   `json:"existed"`
	Mode    uint32 `json:"mode"`
}

// captureBackup reads the current content of every path (relative to root)
// the deployment will write, in write order.
func captureBackup(root string, paths []string) (*Backup, error) {
	b := &Backup{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		ProjectRoot: root,
		Files:       make(map[string]CapturedFile, len(paths)),
		WriteOrder:  append([]string(nil), paths...),
	}

	for _, rel := range paths {
		full := filepath.Join(root, rel)
		info, err := os.Stat(full)
		if os.IsNotExist(err) {
			b.Files[rel] = CapturedFile{Existed: false}
			continue
		}
		if err != nil {
			return nil, err
		}
		content, err := os.ReadFile(full)
		if err != nil {
			return nil, err
		}
		b.Files[rel] = CapturedFile{
			Content: content,
			Existed: true,
			Mode:    uint32(info.Mode().Perm()),
		}
	}

	return b, nil
}

// Save persists the backup under the project's backup directory.
func (b *Backup) Save() error {
	dir, err := config.BackupDir(b.ProjectRoot)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, b.ID+".json"), data, 0600)
}

// LoadBackup reads one backup manifest by id.
func LoadBackup(root, id string) (*Backup, error) {
	dir, err := config.BackupDir(root)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, id+".json"))
	if err != nil {
		return nil, err
	}
	var b Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse backup %s: %w", id, err)
	}
	return &b, nil
}

// LatestBackup returns the most recently created backup for the project.
func LatestBackup(root string) (*Backup, error) {
	dir, err := config.BackupDir(root)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var backups []*Backup
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		id := entry.Name()[:len(entry.Name())-len(".json")]
		b, err := LoadBackup(root, id)
		if err != nil {
			continue
		}
		backups = append(backups, b)
	}
	if len(backups) == 0 {
		return nil, fmt.Errorf("no backups found under %s", dir)
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups[0], nil
}

// Rollback restores every captured file to its original byte content, in
// reverse write order. Files that did not exist before the deployment are
// removed.
func Rollback(b *Backup) error {
	for i := len(b.WriteOrder) - 1; i >= 0; i-- {
		rel := b.WriteOrder[i]
		captured, ok := b.Files[rel]
		if !ok {
			continue
		}
		full := filepath.Join(b.ProjectRoot, rel)

		if !captured.Existed {
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("rollback remove %s: %w", rel, err)
			}
			continue
		}

		mode := os.FileMode(captured.Mode)
		if mode == 0 {
			mode = 0644
		}
		if err := os.WriteFile(full, captured.Content, mode); err != nil {
			return fmt.Errorf("rollback restore %s: %w", rel, err)
		}
	}
	return nil
}
