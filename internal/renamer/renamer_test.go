package renamer

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/Veraticus/sortie/internal/metadata"
	"github.com/Veraticus/sortie/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *metadata.Catalog {
	t.Helper()
	catalog, err := metadata.NewCatalog([]metadata.Entry{
		{Code: "tn1", Title: "Annual Outlook"},
		{Code: "t80", Title: "Incremento de la corrupción"},
		{Code: "r01", Title: " Salud/Educación "},
	})
	require.NoError(t, err)
	return catalog
}

func newTestRenamer(t *testing.T, opts Options) *Renamer {
	t.Helper()
	r, err := New(testCatalog(t), opts)
	require.NoError(t, err)
	return r
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestLookupCode(t *testing.T) {
	tests := map[string]string{
		"tn1 report":                 "tn1",
		"t80-rev_indicador":          "t80",
		"t80 - incremento":           "t80",
		"t80\tinforme":               "t80",
		"plain":                      "plain",
		"":                           "",
		"-leading":                   "",
		"t80-incremento de la causa": "t80",
	}
	for input, want := range tests {
		assert.Equal(t, want, LookupCode(input), "input %q", input)
	}
}

func TestRenamer_Plan(t *testing.T) {
	r := newTestRenamer(t, DefaultOptions())

	tests := []struct {
		name string
		file string
		want model.RenameRecord
	}{
		{
			name: "space separated code",
			file: "TN1 report.docx",
			want: model.RenameRecord{
				OriginalName: "TN1 report.docx",
				NewName:      "tn1 - Annual Outlook.docx",
				Partition:    DefaultClassifiedDir,
				Classified:   true,
			},
		},
		{
			name: "hyphen separated code",
			file: "T80-REV_Indicador_Corrupcion_Modulo 85 (Recuperado).xlsx",
			want: model.RenameRecord{
				OriginalName: "T80-REV_Indicador_Corrupcion_Modulo 85 (Recuperado).xlsx",
				NewName:      "t80 - Incremento de la corrupción.xlsx",
				Partition:    DefaultClassifiedDir,
				Classified:   true,
			},
		},
		{
			name: "title slashes and padding",
			file: "r01.pdf",
			want: model.RenameRecord{
				OriginalName: "r01.pdf",
				NewName:      "r01 - Salud-Educación.pdf",
				Partition:    DefaultClassifiedDir,
				Classified:   true,
			},
		},
		{
			name: "unknown code",
			file: "ZZ9 memo.docx",
			want: model.RenameRecord{
				OriginalName: "ZZ9 memo.docx",
				NewName:      "ZZ9 memo.docx",
				Partition:    DefaultUnclassifiedDir,
			},
		},
		{
			name: "no extension",
			file: "tn1",
			want: model.RenameRecord{
				OriginalName: "tn1",
				NewName:      "tn1 - Annual Outlook",
				Partition:    DefaultClassifiedDir,
				Classified:   true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Plan(tt.file))
		})
	}
}

func TestRenamer_Plan_CaseSensitive(t *testing.T) {
	opts := DefaultOptions()
	opts.Lowercase = false
	r := newTestRenamer(t, opts)

	rec := r.Plan("TN1 report.docx")
	assert.False(t, rec.Classified)
	assert.Equal(t, "TN1 report.docx", rec.NewName)

	rec = r.Plan("tn1 report.docx")
	assert.True(t, rec.Classified)
}

func TestRenamer_Plan_CapitalizedCatalogCode(t *testing.T) {
	catalog, err := metadata.Parse([]byte(`{"TN1": {"title": "Annual Outlook"}}`))
	require.NoError(t, err)
	r, err := New(catalog, DefaultOptions())
	require.NoError(t, err)

	for _, name := range []string{"TN1 report.docx", "tn1 report.docx", "Tn1-report.docx"} {
		rec := r.Plan(name)
		assert.True(t, rec.Classified, name)
		assert.Equal(t, "TN1 - Annual Outlook.docx", rec.NewName, name)
		assert.Equal(t, "clasificados", rec.Partition, name)
	}
}

func TestRenamer_RenameAll(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "TN1 report.docx", "outlook")
	writeFile(t, dir, "ZZ9 memo.docx", "memo")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0750))
	writeFile(t, filepath.Join(dir, "nested"), "tn1 inner.docx", "inner")

	r := newTestRenamer(t, DefaultOptions())
	result, err := r.RenameAll(dir)
	require.NoError(t, err)

	assert.Empty(t, result.Diagnostics)
	require.Len(t, result.Records, 2)
	assert.Equal(t, 1, result.Classified())

	assert.Equal(t, []string{"tn1 - Annual Outlook.docx"}, listDir(t, filepath.Join(dir, DefaultClassifiedDir)))
	assert.Equal(t, []string{"ZZ9 memo.docx"}, listDir(t, filepath.Join(dir, DefaultUnclassifiedDir)))

	// Subdirectories are not recursed into.
	assert.Equal(t, []string{"tn1 inner.docx"}, listDir(t, filepath.Join(dir, "nested")))
	assert.Equal(t, []string{DefaultClassifiedDir, "nested", DefaultUnclassifiedDir}, listDir(t, dir))

	content, err := os.ReadFile(filepath.Join(dir, DefaultClassifiedDir, "tn1 - Annual Outlook.docx"))
	require.NoError(t, err)
	assert.Equal(t, "outlook", string(content))
}

func TestRenamer_RenameAll_OverwritesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	r := newTestRenamer(t, DefaultOptions())

	writeFile(t, dir, "TN1 report.docx", "first")
	_, err := r.RenameAll(dir)
	require.NoError(t, err)

	writeFile(t, dir, "tn1 second copy.docx", "second")
	result, err := r.RenameAll(dir)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Empty(t, result.Diagnostics)

	classified := filepath.Join(dir, DefaultClassifiedDir)
	assert.Equal(t, []string{"tn1 - Annual Outlook.docx"}, listDir(t, classified))

	content, err := os.ReadFile(filepath.Join(classified, "tn1 - Annual Outlook.docx"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))
}

func TestRenamer_RenameAll_PartitionsAreIdempotent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, DefaultClassifiedDir), 0750))
	r := newTestRenamer(t, DefaultOptions())

	for i := 0; i < 2; i++ {
		result, err := r.RenameAll(dir)
		require.NoError(t, err)
		assert.Empty(t, result.Records)
	}
	assert.Equal(t, []string{DefaultClassifiedDir, DefaultUnclassifiedDir}, listDir(t, dir))
}

func TestRenamer_RenameAll_MissingDirectory(t *testing.T) {
	r := newTestRenamer(t, DefaultOptions())
	missing := filepath.Join(t.TempDir(), "nope")

	_, err := r.RenameAll(missing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceDirMissing))

	_, statErr := os.Stat(missing)
	assert.True(t, os.IsNotExist(statErr), "no partitions should be created")
}

func TestRenamer_RenameAll_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "file.txt", "x")

	r := newTestRenamer(t, DefaultOptions())
	_, err := r.RenameAll(filepath.Join(dir, "file.txt"))
	assert.True(t, errors.Is(err, ErrSourceDirMissing))
}

func TestRenamer_RenameAll_ContinuesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "TN1 report.docx", "blocked")
	writeFile(t, dir, "ZZ9 memo.docx", "memo")

	// A non-empty directory at the destination cannot be replaced.
	blocker := filepath.Join(dir, DefaultClassifiedDir, "tn1 - Annual Outlook.docx")
	require.NoError(t, os.MkdirAll(blocker, 0750))
	writeFile(t, blocker, "keep.txt", "keep")

	r := newTestRenamer(t, DefaultOptions())
	result, err := r.RenameAll(dir)
	require.NoError(t, err)

	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, model.DiagFileError, result.Diagnostics[0].Kind)
	assert.Equal(t, "TN1 report.docx", result.Diagnostics[0].Subject)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "ZZ9 memo.docx", result.Records[0].OriginalName)

	// The failed file stays in the source directory.
	_, statErr := os.Stat(filepath.Join(dir, "TN1 report.docx"))
	assert.NoError(t, statErr)
}

func TestRenamer_RenameAll_Ignore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "~$tn1 report.docx", "lock")
	writeFile(t, dir, "download.tmp", "partial")
	writeFile(t, dir, "tn1 report.docx", "real")

	opts := DefaultOptions()
	opts.Ignore = []string{"~$*", "*.tmp"}
	r := newTestRenamer(t, opts)

	result, err := r.RenameAll(dir)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "tn1 report.docx", result.Records[0].OriginalName)

	assert.Contains(t, listDir(t, dir), "~$tn1 report.docx")
	assert.Contains(t, listDir(t, dir), "download.tmp")
}

func TestRenamer_RenameAll_Progress(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "a")
	writeFile(t, dir, "b.txt", "b")

	var calls [][2]int
	opts := DefaultOptions()
	opts.Progress = func(done, total int) {
		calls = append(calls, [2]int{done, total})
	}
	r := newTestRenamer(t, opts)

	_, err := r.RenameAll(dir)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, calls)
}

func TestNew_InvalidOptions(t *testing.T) {
	catalog := testCatalog(t)

	_, err := New(catalog, Options{ClassifiedDir: "same", UnclassifiedDir: "same"})
	assert.Error(t, err)

	_, err = New(catalog, Options{Ignore: []string{"[unclosed"}})
	assert.Error(t, err)

	r, err := New(catalog, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultUnclassifiedDir, r.Plan("x.txt").Partition)
}
