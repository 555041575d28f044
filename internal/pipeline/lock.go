package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Veraticus/sortie/internal/common"
)

// runLock is an exclusive lock file held for the duration of a run.
type runLock struct {
	path string
}

// acquireLock creates path exclusively. An existing lock means another run
// owns the download directory and log.
func acquireLock(path string) (*runLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: lock file %s exists", common.ErrRunInProgress, path)
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}

	content := strconv.Itoa(os.Getpid()) + " " + time.Now().UTC().Format(time.RFC3339) + "\n"
	_, writeErr := f.WriteString(content)
	closeErr := f.Close()
	if writeErr != nil || closeErr != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write lock file: %w", errors.Join(writeErr, closeErr))
	}

	return &runLock{path: path}, nil
}

func (l *runLock) release() {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to remove lock file", "path", l.path, "error", err)
	}
}
