// Package notify writes per-sender confirmation messages listing how each
// attachment was renamed and filed.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/sortie/internal/model"
	"github.com/Veraticus/sortie/internal/reconcile"
	"github.com/emersion/go-message/mail"
)

// Subject is the subject line of every confirmation.
const Subject = "Notificación de archivos subidos"

// UnfiledLocation is shown for files without a destination.
const UnfiledLocation = "sin clasificar"

var bodyTemplate = template.Must(template.New("body").Funcs(template.FuncMap{
	"location": location,
}).Parse(`<html><body>
<p>Se recibieron y procesaron los siguientes archivos:</p>
<ul>
{{- range .}}
<li><strong>{{.OriginalName}}</strong><ul><li>Nuevo nombre: {{.NewName}}</li><li>Ubicación: {{location .}}</li></ul></li>
{{- end}}
</ul>
</body></html>
`))

func location(e model.AttachmentLogEntry) string {
	if e.DestinationPath == "" {
		return UnfiledLocation
	}
	return e.DestinationPath
}

// Notifier renders confirmations into an outbox directory.
type Notifier struct {
	now    func() time.Time
	from   *mail.Address
	outbox string
}

// New creates a notifier sending as from. The outbox directory is created on
// first write.
func New(from, outbox string) (*Notifier, error) {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", from, err)
	}
	return &Notifier{now: time.Now, from: addr, outbox: outbox}, nil
}

// WithClock overrides the message date source.
func (n *Notifier) WithClock(now func() time.Time) *Notifier {
	n.now = now
	return n
}

// Compose renders one confirmation message for recipient.
func (n *Notifier) Compose(recipient string, entries []model.AttachmentLogEntry) ([]byte, error) {
	var body bytes.Buffer
	if err := bodyTemplate.Execute(&body, entries); err != nil {
		return nil, fmt.Errorf("failed to render notification: %w", err)
	}

	var h mail.Header
	h.SetDate(n.now())
	h.SetAddressList("From", []*mail.Address{n.from})
	h.SetAddressList("To", []*mail.Address{{Address: recipient}})
	h.SetSubject(Subject)
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	var msg bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&msg, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}
	return msg.Bytes(), nil
}

// WriteAll writes one message per sender with at least one logged file, in
// first-seen sender order. It returns the paths written.
func (n *Notifier) WriteAll(runID string, result reconcile.Result) ([]string, error) {
	if err := os.MkdirAll(n.outbox, 0750); err != nil {
		return nil, fmt.Errorf("failed to create outbox: %w", err)
	}

	var paths []string
	for i, sender := range result.Senders {
		entries := result.BySender[sender]
		if len(entries) == 0 {
			continue
		}

		data, err := n.Compose(sender, entries)
		if err != nil {
			return paths, err
		}

		name := fmt.Sprintf("%s-%03d-%s.eml", runID, i+1, fileSafe(sender))
		path := filepath.Join(n.outbox, name)
		if err := os.WriteFile(path, data, 0600); err != nil {
			return paths, fmt.Errorf("failed to write notification: %w", err)
		}
		slog.Debug("Notification written", "sender", sender, "path", path, "files", len(entries))
		paths = append(paths, path)
	}
	return paths, nil
}

func fileSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_', r == '@':
			return r
		}
		return '_'
	}, s)
}
