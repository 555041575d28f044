package notify

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/sortie/internal/model"
	"github.com/Veraticus/sortie/internal/reconcile"
	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2025, 2, 21, 10, 0, 0, 0, time.UTC)

func newNotifier(t *testing.T, outbox string) *Notifier {
	t.Helper()
	n, err := New("Archivo <archivo@example.org>", outbox)
	require.NoError(t, err)
	return n.WithClock(func() time.Time { return fixedTime })
}

func readMessage(t *testing.T, data []byte) (mail.Header, string) {
	t.Helper()
	mr, err := mail.CreateReader(bytes.NewReader(data))
	require.NoError(t, err)
	part, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	return mr.Header, string(body)
}

func TestCompose(t *testing.T) {
	n := newNotifier(t, t.TempDir())
	entries := []model.AttachmentLogEntry{
		{OriginalName: "TN1 report.docx", NewName: "tn1 - Annual Outlook.docx", DestinationPath: "TRENDS/NATIONAL"},
		{OriginalName: "memo <v2>.docx", NewName: "memo <v2>.docx"},
	}

	data, err := n.Compose("a@example.org", entries)
	require.NoError(t, err)

	header, body := readMessage(t, data)
	subject, err := header.Subject()
	require.NoError(t, err)
	assert.Equal(t, Subject, subject)

	to, err := header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "a@example.org", to[0].Address)

	from, err := header.AddressList("From")
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, "archivo@example.org", from[0].Address)

	date, err := header.Date()
	require.NoError(t, err)
	assert.True(t, fixedTime.Equal(date))

	mediaType, _, err := header.ContentType()
	require.NoError(t, err)
	assert.Equal(t, "text/html", mediaType)

	assert.Contains(t, body, "<strong>TN1 report.docx</strong>")
	assert.Contains(t, body, "Nuevo nombre: tn1 - Annual Outlook.docx")
	assert.Contains(t, body, "Ubicación: TRENDS/NATIONAL")
	assert.Contains(t, body, "Ubicación: "+UnfiledLocation)
	assert.Contains(t, body, "memo &lt;v2&gt;.docx")
	assert.NotContains(t, body, "<v2>")
}

func TestWriteAll(t *testing.T) {
	outbox := filepath.Join(t.TempDir(), "outbox")
	n := newNotifier(t, outbox)

	result := reconcile.Result{
		Senders: []string{"a@example.org", "b@example.org"},
		BySender: map[string][]model.AttachmentLogEntry{
			"a@example.org": {{OriginalName: "TN1 report.docx", NewName: "tn1 - Annual Outlook.docx", DestinationPath: "TRENDS/NATIONAL"}},
			"b@example.org": {},
		},
	}

	paths, err := n.WriteAll("run-1", result)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join(outbox, "run-1-001-a@example.org.eml"), paths[0])

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	_, body := readMessage(t, data)
	assert.Contains(t, body, "tn1 - Annual Outlook.docx")
}

func TestNew_InvalidSender(t *testing.T) {
	_, err := New("not an address", t.TempDir())
	require.Error(t, err)
}

func TestFileSafe(t *testing.T) {
	assert.Equal(t, "a_b@example.org", fileSafe("a/b@example.org"))
	assert.Equal(t, "Jos__p_rez", fileSafe("José pérez"))
}
