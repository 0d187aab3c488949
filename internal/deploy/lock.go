package deploy

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gzhole/railguard/internal/config"
)

const lockFileName = "deploy.lock"

// acquireLock takes the advisory lock for a project root. The backup+write
// sequence is a critical section; a second concurrent run must fail fast
// instead of interleaving writes.
func acquireLock(root string) (release func(), err error) {
	dir := filepath.Join(root, config.DefaultConfigDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, &ErrLocked{Path: path}
		}
		return nil, err
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Close()

	return func() { _ = os.Remove(path) }, nil
}
