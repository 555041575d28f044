// Package intake turns saved .eml messages into inbound message records and
// extracts their attachments into the download directory.
package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Veraticus/sortie/internal/common"
	"github.com/Veraticus/sortie/internal/model"
	"github.com/bmatcuk/doublestar/v4"
	_ "github.com/emersion/go-message/charset" // decode non-UTF-8 headers and filenames
	"github.com/emersion/go-message/mail"
)

// DefaultSubjectFilter selects the messages sent in for filing.
const DefaultSubjectFilter = "Sistematizar"

// DefaultPattern matches saved message files.
const DefaultPattern = "*.eml"

// ErrNotAMessage is returned for input that cannot be parsed as a message.
var ErrNotAMessage = errors.New("not a mail message")

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\r\n]`)

// SanitizeFilename strips characters that are not valid in file names on
// common filesystems.
func SanitizeFilename(name string) string {
	return strings.TrimSpace(unsafeFilenameChars.ReplaceAllString(name, ""))
}

// AttachmentSink receives the content of each extracted attachment.
type AttachmentSink func(name string, body io.Reader) error

// Options configures an Extractor.
type Options struct {
	// SubjectFilter must appear in the subject, case-insensitively. Empty
	// accepts every message.
	SubjectFilter string
	// Pattern selects message files by base name.
	Pattern string
}

// Result is the outcome of reading a directory of messages.
type Result struct {
	Messages    []model.InboundMessage
	Diagnostics []model.Diagnostic
	Files       int
	Skipped     int
}

// Extractor reads messages and writes their attachments.
type Extractor struct {
	opts Options
}

// New creates an extractor.
func New(opts Options) (*Extractor, error) {
	if opts.Pattern == "" {
		opts.Pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(opts.Pattern) {
		return nil, fmt.Errorf("invalid message pattern %q", opts.Pattern)
	}
	return &Extractor{opts: opts}, nil
}

// Accepts reports whether a subject passes the subject filter.
func (e *Extractor) Accepts(subject string) bool {
	if e.opts.SubjectFilter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(subject), strings.ToLower(e.opts.SubjectFilter))
}

// ExtractDir reads every message file directly inside emlDir and writes the
// attachments of accepted messages into downloadDir. A message that cannot be
// read is reported as a diagnostic and skipped.
func (e *Extractor) ExtractDir(ctx context.Context, emlDir, downloadDir string) (Result, error) {
	entries, err := os.ReadDir(emlDir)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read message directory: %w", err)
	}
	if err := os.MkdirAll(downloadDir, 0750); err != nil {
		return Result{}, fmt.Errorf("failed to create download directory: %w", err)
	}

	sink := func(name string, body io.Reader) error {
		return writeAttachment(filepath.Join(downloadDir, name), body)
	}

	var result Result
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if entry.IsDir() {
			continue
		}
		if ok, _ := doublestar.Match(e.opts.Pattern, entry.Name()); !ok {
			continue
		}

		path := filepath.Join(emlDir, entry.Name())
		msg, accepted, err := e.extractFile(path, sink)
		if err != nil {
			common.LogWarn("Failed to read message", common.Fields{"file": path, "error": err.Error()})
			result.Diagnostics = append(result.Diagnostics, model.Diagnostic{
				Kind:    model.DiagFileError,
				Subject: entry.Name(),
				Message: "could not read message",
				Err:     err,
			})
			continue
		}
		if !accepted {
			result.Skipped++
			continue
		}
		if msg.MessageID == "" {
			msg.MessageID = strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		}
		result.Files += len(msg.Attachments)
		result.Messages = append(result.Messages, msg)
	}

	slog.Info("Messages read",
		"directory", emlDir,
		"accepted", len(result.Messages),
		"skipped", result.Skipped,
		"attachments", result.Files)

	return result, nil
}

func (e *Extractor) extractFile(path string, sink AttachmentSink) (model.InboundMessage, bool, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the configured message directory
	if err != nil {
		return model.InboundMessage{}, false, err
	}
	defer func() { _ = f.Close() }()
	return e.Extract(f, sink)
}

// Extract parses one message. When the subject passes the filter, each named
// attachment is handed to sink under its sanitized name and the message
// record is returned with accepted set.
func (e *Extractor) Extract(r io.Reader, sink AttachmentSink) (model.InboundMessage, bool, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return model.InboundMessage{}, false, fmt.Errorf("%w: %w", ErrNotAMessage, err)
	}
	defer func() { _ = mr.Close() }()

	subject, _ := mr.Header.Subject()
	if !e.Accepts(subject) {
		return model.InboundMessage{}, false, nil
	}

	msg := model.InboundMessage{Subject: subject}
	msg.MessageID, _ = mr.Header.MessageID()

	from, err := mr.Header.AddressList("From")
	if err == nil && len(from) > 0 {
		msg.SenderName = strings.TrimSpace(from[0].Name)
		msg.SenderEmail = strings.TrimSpace(from[0].Address)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return msg, true, fmt.Errorf("failed to read message part: %w", err)
		}

		header, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		raw, err := header.Filename()
		if err != nil {
			slog.Debug("Undecodable attachment name", "message_id", msg.MessageID, "error", err)
			continue
		}
		name := SanitizeFilename(raw)
		if name == "" || name == "." || name == ".." {
			continue
		}
		if sink != nil {
			if err := sink(name, part.Body); err != nil {
				return msg, true, fmt.Errorf("failed to save attachment %q: %w", name, err)
			}
		}
		msg.Attachments = append(msg.Attachments, name)
	}

	return msg, true, nil
}

func writeAttachment(path string, body io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600) // #nosec G304 -- name is sanitized
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
