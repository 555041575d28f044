package logstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/sortie/internal/model"
)

// SchemaVersion is the version written into JSON log documents.
const SchemaVersion = 1

// document is the on-disk JSON layout. Version 0 is a bare array of entries.
type document struct {
	SchemaVersion int                        `json:"schema_version"`
	Entries       []model.AttachmentLogEntry `json:"entries"`
}

// FileStore keeps the log as a single JSON document rewritten in full on
// every change.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. The file is created on the
// first append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the log file location.
func (s *FileStore) Path() string {
	return s.path
}

// Append reads the current log, adds entries at the end and writes the whole
// document back atomically.
//
// An unparseable log is treated as empty and overwritten. This trades
// auditability for availability: the old content is lost, so the condition
// is logged as a warning and reported through AppendResult.Corrupt.
func (s *FileStore) Append(ctx context.Context, entries []model.AttachmentLogEntry) (AppendResult, error) {
	if err := ctx.Err(); err != nil {
		return AppendResult{}, err
	}

	existing, corrupt, err := s.load()
	if err != nil {
		return AppendResult{}, err
	}
	if corrupt {
		slog.Warn("Upload log is unreadable, starting a new empty log", "path", s.path)
	}

	all := make([]model.AttachmentLogEntry, 0, len(existing)+len(entries))
	all = append(all, existing...)
	all = append(all, entries...)

	if err := s.save(all); err != nil {
		return AppendResult{}, err
	}

	return AppendResult{
		Appended: len(entries),
		Total:    len(all),
		Corrupt:  corrupt,
	}, nil
}

// List returns every entry. A corrupt log is reported as an error here since
// nothing is being written.
func (s *FileStore) List(ctx context.Context) ([]model.AttachmentLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, corrupt, err := s.load()
	if err != nil {
		return nil, err
	}
	if corrupt {
		return nil, fmt.Errorf("upload log %s could not be parsed", s.path)
	}
	return entries, nil
}

// SetUploadStatus updates matching unset entries and rewrites the log.
func (s *FileStore) SetUploadStatus(ctx context.Context, key model.EntryKey, status model.UploadStatus) (int, error) {
	if err := validateStatus(status); err != nil {
		return 0, err
	}
	entries, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	matched, updated := 0, 0
	for i := range entries {
		if entries[i].Key() != key {
			continue
		}
		matched++
		if entries[i].UploadStatus.IsSet() {
			continue
		}
		entries[i].UploadStatus = status
		updated++
	}

	switch {
	case matched == 0:
		return 0, fmt.Errorf("%w: %s", ErrEntryNotFound, key)
	case updated == 0:
		return 0, fmt.Errorf("%w: %s", ErrStatusAlreadySet, key)
	}

	if err := s.save(entries); err != nil {
		return 0, err
	}
	return updated, nil
}

// Close is a no-op; the file is only open during reads and writes.
func (s *FileStore) Close() error {
	return nil
}

// load returns the stored entries. A missing or empty file is an empty log;
// unparseable content sets corrupt. A newer schema version is an error so
// the file is never clobbered by an older binary.
func (s *FileStore) load() ([]model.AttachmentLogEntry, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read upload log: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, false, nil
	}

	if data[0] == '[' {
		var legacy []model.AttachmentLogEntry
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, true, nil
		}
		return legacy, false, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, true, nil
	}
	if doc.SchemaVersion > SchemaVersion {
		return nil, false, fmt.Errorf("%w: %d (this build writes %d)", ErrUnsupportedSchema, doc.SchemaVersion, SchemaVersion)
	}
	if doc.SchemaVersion < 1 {
		return nil, true, nil
	}
	return doc.Entries, false, nil
}

func (s *FileStore) save(entries []model.AttachmentLogEntry) error {
	if entries == nil {
		entries = []model.AttachmentLogEntry{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(document{SchemaVersion: SchemaVersion, Entries: entries}); err != nil {
		return fmt.Errorf("failed to encode upload log: %w", err)
	}

	return writeFileAtomic(s.path, buf.Bytes())
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace upload log: %w", err)
	}
	return nil
}
