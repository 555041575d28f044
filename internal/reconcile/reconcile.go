// Package reconcile joins inbound message attachment lists with rename
// results to build per-sender upload log entries.
package reconcile

import (
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/sortie/internal/model"
)

// Resolver maps a (renamed) file name to a destination path.
type Resolver interface {
	Resolve(fileName string) (string, bool)
}

// Result holds the log entries grouped by sender and the data-quality gaps
// found while building them.
type Result struct {
	BySender map[string][]model.AttachmentLogEntry
	// Senders lists sender keys in the order they were first seen.
	Senders     []string
	Diagnostics []model.Diagnostic
}

// Entries flattens BySender in first-seen sender order.
func (r Result) Entries() []model.AttachmentLogEntry {
	var entries []model.AttachmentLogEntry
	for _, sender := range r.Senders {
		entries = append(entries, r.BySender[sender]...)
	}
	return entries
}

// Reconciler builds log entries for one run.
type Reconciler struct {
	resolver Resolver
	now      func() time.Time
	runID    string
}

// New creates a reconciler that stamps entries with runID.
func New(resolver Resolver, runID string) *Reconciler {
	return &Reconciler{
		resolver: resolver,
		runID:    runID,
		now:      time.Now,
	}
}

// WithClock overrides the timestamp source.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Reconcile produces one entry per (message, attachment) that has a rename
// record with the same original name. The destination path is resolved from
// the new name, so renaming must already have happened.
func (r *Reconciler) Reconcile(messages []model.InboundMessage, renames []model.RenameRecord) Result {
	byOriginal := make(map[string]model.RenameRecord, len(renames))
	for _, rec := range renames {
		if _, seen := byOriginal[rec.OriginalName]; !seen {
			byOriginal[rec.OriginalName] = rec
		}
	}

	result := Result{BySender: make(map[string][]model.AttachmentLogEntry)}
	loggedAt := r.now().UTC()

	for _, msg := range messages {
		sender := strings.TrimSpace(msg.SenderEmail)
		if sender == "" {
			slog.Warn("Skipping message without sender", "message_id", msg.MessageID, "subject", msg.Subject)
			result.Diagnostics = append(result.Diagnostics, model.Diagnostic{
				Kind:    model.DiagMissingSender,
				Subject: messageLabel(msg),
				Message: "message has no sender email",
			})
			continue
		}

		if _, ok := result.BySender[sender]; !ok {
			result.BySender[sender] = []model.AttachmentLogEntry{}
			result.Senders = append(result.Senders, sender)
		}

		if len(msg.Attachments) == 0 {
			slog.Debug("No attachments found for message", "sender", sender, "message_id", msg.MessageID)
			continue
		}

		for _, name := range msg.Attachments {
			rec, ok := byOriginal[name]
			if !ok {
				slog.Info("Attachment not found among renamed files", "sender", sender, "attachment", name)
				result.Diagnostics = append(result.Diagnostics, model.Diagnostic{
					Kind:    model.DiagUnmatchedAttachment,
					Subject: name,
					Message: "attachment not found among renamed files (sender " + sender + ")",
				})
				continue
			}

			path, matched := r.resolver.Resolve(rec.NewName)
			if !matched {
				result.Diagnostics = append(result.Diagnostics, model.Diagnostic{
					Kind:    model.DiagNoMatch,
					Subject: rec.NewName,
					Message: "no taxonomy rule matched",
				})
			}

			result.BySender[sender] = append(result.BySender[sender], model.AttachmentLogEntry{
				LoggedAt:        loggedAt,
				RunID:           r.runID,
				SenderEmail:     sender,
				OriginalName:    name,
				NewName:         rec.NewName,
				Partition:       rec.Partition,
				DestinationPath: path,
			})
		}
	}

	return result
}

func messageLabel(msg model.InboundMessage) string {
	if msg.MessageID != "" {
		return msg.MessageID
	}
	if msg.Subject != "" {
		return msg.Subject
	}
	return "(unknown message)"
}
