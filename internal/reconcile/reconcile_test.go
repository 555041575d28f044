package reconcile

import (
	"testing"
	"time"

	"github.com/Veraticus/sortie/internal/model"
	"github.com/Veraticus/sortie/internal/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapResolver resolves by exact name and records every call.
type mapResolver struct {
	paths map[string]string
	calls []string
}

func (m *mapResolver) Resolve(name string) (string, bool) {
	m.calls = append(m.calls, name)
	path, ok := m.paths[name]
	return path, ok
}

var fixedTime = time.Date(2025, 2, 21, 10, 0, 0, 0, time.UTC)

func newTestReconciler(resolver Resolver) *Reconciler {
	return New(resolver, "run-1").WithClock(func() time.Time { return fixedTime })
}

func TestReconcile_PartialMatch(t *testing.T) {
	resolver := &mapResolver{paths: map[string]string{
		"a1 - Alpha.docx": "Tendencias/Tendencias Nacionales",
	}}
	messages := []model.InboundMessage{{
		MessageID:   "1002",
		SenderEmail: "msuarez@example.org",
		Attachments: []string{"A.docx", "B.xlsx"},
	}}
	renames := []model.RenameRecord{{
		OriginalName: "A.docx",
		NewName:      "a1 - Alpha.docx",
		Partition:    "clasificados",
		Classified:   true,
	}}

	result := newTestReconciler(resolver).Reconcile(messages, renames)

	entries := result.BySender["msuarez@example.org"]
	require.Len(t, entries, 1)
	assert.Equal(t, model.AttachmentLogEntry{
		LoggedAt:        fixedTime,
		RunID:           "run-1",
		SenderEmail:     "msuarez@example.org",
		OriginalName:    "A.docx",
		NewName:         "a1 - Alpha.docx",
		Partition:       "clasificados",
		DestinationPath: "Tendencias/Tendencias Nacionales",
	}, entries[0])

	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, model.DiagUnmatchedAttachment, result.Diagnostics[0].Kind)
	assert.Equal(t, "B.xlsx", result.Diagnostics[0].Subject)
}

func TestReconcile_ResolvesNewName(t *testing.T) {
	resolver := &mapResolver{paths: map[string]string{}}
	renames := []model.RenameRecord{{OriginalName: "T80-draft.docx", NewName: "t80 - Corrupción.docx"}}
	messages := []model.InboundMessage{{SenderEmail: "a@example.org", Attachments: []string{"T80-draft.docx"}}}

	newTestReconciler(resolver).Reconcile(messages, renames)

	assert.Equal(t, []string{"t80 - Corrupción.docx"}, resolver.calls)
}

func TestReconcile_NoTaxonomyMatch(t *testing.T) {
	resolver := &mapResolver{paths: map[string]string{}}
	renames := []model.RenameRecord{{OriginalName: "memo.docx", NewName: "memo.docx", Partition: "no_clasificados"}}
	messages := []model.InboundMessage{{SenderEmail: "a@example.org", Attachments: []string{"memo.docx"}}}

	result := newTestReconciler(resolver).Reconcile(messages, renames)

	entries := result.BySender["a@example.org"]
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].DestinationPath)
	assert.Equal(t, "no_clasificados", entries[0].Partition)

	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, model.DiagNoMatch, result.Diagnostics[0].Kind)
}

func TestReconcile_MissingSender(t *testing.T) {
	resolver := &mapResolver{paths: map[string]string{"a.docx": "X/Y"}}
	renames := []model.RenameRecord{{OriginalName: "a.docx", NewName: "a.docx"}}
	messages := []model.InboundMessage{
		{MessageID: "7", SenderEmail: "  ", Attachments: []string{"a.docx"}},
		{MessageID: "8", SenderEmail: "b@example.org", Attachments: []string{"a.docx"}},
	}

	result := newTestReconciler(resolver).Reconcile(messages, renames)

	assert.Equal(t, []string{"b@example.org"}, result.Senders)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, model.DiagMissingSender, result.Diagnostics[0].Kind)
	assert.Equal(t, "7", result.Diagnostics[0].Subject)
	assert.Len(t, result.BySender["b@example.org"], 1)
}

func TestReconcile_SameSenderAccumulatesInOrder(t *testing.T) {
	resolver := &mapResolver{paths: map[string]string{}}
	renames := []model.RenameRecord{
		{OriginalName: "3.docx", NewName: "3.docx"},
		{OriginalName: "1.docx", NewName: "1.docx"},
		{OriginalName: "2.docx", NewName: "2.docx"},
		{OriginalName: "4.docx", NewName: "4.docx"},
	}
	messages := []model.InboundMessage{
		{SenderEmail: "a@example.org", Attachments: []string{"1.docx", "2.docx"}},
		{SenderEmail: "b@example.org", Attachments: []string{"4.docx"}},
		{SenderEmail: "a@example.org", Attachments: []string{"3.docx"}},
	}

	result := newTestReconciler(resolver).Reconcile(messages, renames)

	assert.Equal(t, []string{"a@example.org", "b@example.org"}, result.Senders)

	var names []string
	for _, e := range result.BySender["a@example.org"] {
		names = append(names, e.OriginalName)
	}
	assert.Equal(t, []string{"1.docx", "2.docx", "3.docx"}, names)

	var flat []string
	for _, e := range result.Entries() {
		flat = append(flat, e.OriginalName)
	}
	assert.Equal(t, []string{"1.docx", "2.docx", "3.docx", "4.docx"}, flat)
}

func TestReconcile_SenderWithoutAttachmentsKeepsKey(t *testing.T) {
	result := newTestReconciler(&mapResolver{}).Reconcile(
		[]model.InboundMessage{{SenderEmail: "quiet@example.org"}},
		nil,
	)

	entries, ok := result.BySender["quiet@example.org"]
	assert.True(t, ok)
	assert.Empty(t, entries)
	assert.Empty(t, result.Entries())
	assert.Empty(t, result.Diagnostics)
}

func TestReconcile_FirstRenameRecordWins(t *testing.T) {
	resolver := &mapResolver{paths: map[string]string{}}
	renames := []model.RenameRecord{
		{OriginalName: "a.docx", NewName: "first.docx"},
		{OriginalName: "a.docx", NewName: "second.docx"},
	}
	messages := []model.InboundMessage{{SenderEmail: "a@example.org", Attachments: []string{"a.docx"}}}

	result := newTestReconciler(resolver).Reconcile(messages, renames)
	require.Len(t, result.BySender["a@example.org"], 1)
	assert.Equal(t, "first.docx", result.BySender["a@example.org"][0].NewName)
}

func TestReconcile_WithClassifier(t *testing.T) {
	table, err := taxonomy.Parse([]byte(`{"TRENDS": {"NATIONAL": "^TN"}}`))
	require.NoError(t, err)

	result := newTestReconciler(taxonomy.NewClassifier(table)).Reconcile(
		[]model.InboundMessage{{SenderEmail: "a@example.org", Attachments: []string{"TN1 report.docx"}}},
		[]model.RenameRecord{{OriginalName: "TN1 report.docx", NewName: "tn1 - Annual Outlook.docx", Classified: true}},
	)

	require.Len(t, result.BySender["a@example.org"], 1)
	assert.Equal(t, "TRENDS/NATIONAL", result.BySender["a@example.org"][0].DestinationPath)
}
