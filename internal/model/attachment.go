// Package model defines the records that flow through the sorting pipeline.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidUploadStatus is returned when a status string is not recognized.
var ErrInvalidUploadStatus = errors.New("invalid upload status")

// UploadStatus is the outcome recorded by the uploader for a log entry.
type UploadStatus string

// Upload status constants. The zero value means no upload was attempted yet.
const (
	UploadUnset    UploadStatus = ""
	UploadComplete UploadStatus = "uploaded"
	UploadFailed   UploadStatus = "error"
)

// IsSet reports whether the uploader has already recorded an outcome.
func (s UploadStatus) IsSet() bool {
	return s != UploadUnset
}

// String returns a printable form of the status.
func (s UploadStatus) String() string {
	if s == UploadUnset {
		return "pending"
	}
	return string(s)
}

// ParseUploadStatus converts user input into an UploadStatus.
func ParseUploadStatus(s string) (UploadStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pending", "unset":
		return UploadUnset, nil
	case "uploaded":
		return UploadComplete, nil
	case "error":
		return UploadFailed, nil
	}
	return UploadUnset, fmt.Errorf("%w: %q", ErrInvalidUploadStatus, s)
}

// InboundMessage is the normalized view of a received email. It is produced
// by the intake side and only carries what reconciliation needs.
type InboundMessage struct {
	MessageID   string   `json:"message_id,omitempty"`
	SenderName  string   `json:"from_name,omitempty"`
	SenderEmail string   `json:"from_email"`
	Subject     string   `json:"subject,omitempty"`
	Attachments []string `json:"attachments"`
}

// RenameRecord describes what happened to one file during a renaming pass.
// NewName equals OriginalName when the file could not be classified.
type RenameRecord struct {
	OriginalName string `json:"original_name"`
	NewName      string `json:"new_name"`
	Partition    string `json:"partition"`
	Classified   bool   `json:"classified"`
}

// AttachmentLogEntry is one (sender, attachment) fact in the upload log.
type AttachmentLogEntry struct {
	LoggedAt        time.Time    `json:"logged_at"`
	RunID           string       `json:"run_id"`
	SenderEmail     string       `json:"sender_email"`
	OriginalName    string       `json:"original_name"`
	NewName         string       `json:"new_name"`
	Partition       string       `json:"partition"`
	DestinationPath string       `json:"destination_path"`
	UploadStatus    UploadStatus `json:"upload_status"`
}

// Key identifies the entry for upload status updates.
func (e AttachmentLogEntry) Key() EntryKey {
	return EntryKey{
		RunID:       e.RunID,
		SenderEmail: e.SenderEmail,
		NewName:     e.NewName,
	}
}

// EntryKey addresses log entries written by one run for one sender and file.
type EntryKey struct {
	RunID       string
	SenderEmail string
	NewName     string
}

func (k EntryKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.RunID, k.SenderEmail, k.NewName)
}
