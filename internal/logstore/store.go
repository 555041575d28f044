// Package logstore persists the attachment upload log. Appends never rewrite
// or deduplicate earlier entries; the only later change to an entry is the
// uploader recording its upload status.
package logstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/sortie/internal/model"
)

// Store errors.
var (
	ErrEntryNotFound      = errors.New("log entry not found")
	ErrStatusAlreadySet   = errors.New("upload status already set")
	ErrUnsupportedSchema  = errors.New("unsupported log schema version")
	ErrInvalidStatusValue = errors.New("upload status must be uploaded or error")
)

// AppendResult reports what an append did.
type AppendResult struct {
	Appended int
	Total    int
	// Corrupt is true when the existing log could not be parsed and was
	// replaced by an empty collection before appending.
	Corrupt bool
}

// Store is the persisted, ordered upload log. Implementations assume a single
// writer.
type Store interface {
	// Append adds entries after the existing ones.
	Append(ctx context.Context, entries []model.AttachmentLogEntry) (AppendResult, error)
	// List returns all entries in append order.
	List(ctx context.Context) ([]model.AttachmentLogEntry, error)
	// SetUploadStatus records the upload outcome on every still-unset entry
	// matching key. It returns the number of entries updated.
	SetUploadStatus(ctx context.Context, key model.EntryKey, status model.UploadStatus) (int, error)
	Close() error
}

// Filter narrows List results.
type Filter struct {
	RunID       string
	SenderEmail string
	Status      *model.UploadStatus
}

// Match reports whether e passes the filter.
func (f Filter) Match(e model.AttachmentLogEntry) bool {
	if f.RunID != "" && e.RunID != f.RunID {
		return false
	}
	if f.SenderEmail != "" && e.SenderEmail != f.SenderEmail {
		return false
	}
	if f.Status != nil && e.UploadStatus != *f.Status {
		return false
	}
	return true
}

// Apply returns the entries that pass the filter, preserving order.
func (f Filter) Apply(entries []model.AttachmentLogEntry) []model.AttachmentLogEntry {
	out := make([]model.AttachmentLogEntry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

func validateStatus(status model.UploadStatus) error {
	if status != model.UploadComplete && status != model.UploadFailed {
		return fmt.Errorf("%w: %q", ErrInvalidStatusValue, string(status))
	}
	return nil
}
