package metadata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_JSONCatalog(t *testing.T) {
	doc := `{"tn1": {"title": "Annual Outlook", "rubro": "Tendencias"},
  "t80": {"titulo_largo": "Incremento de la corrupción", "anio": 2023},
  "r01": {"titulo_largo": null}}`

	catalog, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 3, catalog.Len())
	assert.Equal(t, []string{"r01", "t80", "tn1"}, catalog.Codes())

	entry, ok := catalog.Lookup("tn1")
	require.True(t, ok)
	assert.Equal(t, "Annual Outlook", entry.Title)
	assert.Equal(t, "Tendencias", entry.Extra["rubro"])
	assert.NotContains(t, entry.Extra, "title")

	entry, ok = catalog.Lookup("t80")
	require.True(t, ok)
	assert.Equal(t, "Incremento de la corrupción", entry.Title)
	assert.Equal(t, "2023", entry.Extra["anio"])

	entry, ok = catalog.Lookup("r01")
	require.True(t, ok)
	assert.Equal(t, DefaultTitle, entry.FileTitle())
}

func TestCatalog_LookupIsExact(t *testing.T) {
	catalog, err := NewCatalog([]Entry{{Code: "tn1", Title: "Outlook"}})
	require.NoError(t, err)

	_, ok := catalog.Lookup("tn1")
	assert.True(t, ok)

	for _, code := range []string{"TN1", "tn", "tn10", "^tn1", "tn1 "} {
		_, ok := catalog.Lookup(code)
		assert.False(t, ok, "code %q", code)
	}
}

func TestCatalog_FoldsCodes(t *testing.T) {
	catalog, err := NewCatalog([]Entry{{Code: "TN1", Title: "Outlook"}})
	require.NoError(t, err)

	entry, ok := catalog.Lookup("tn1")
	require.True(t, ok)
	assert.Equal(t, "TN1", entry.Code)
	assert.Equal(t, []string{"tn1"}, catalog.Codes())

	_, ok = catalog.Lookup("TN1")
	assert.False(t, ok)
}

func TestEntry_FileTitle(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{title: "Annual Outlook", want: "Annual Outlook"},
		{title: "  Padded  ", want: "Padded"},
		{title: "Salud/Educación", want: "Salud-Educación"},
		{title: " a/b/c ", want: "a-b-c"},
		{title: "", want: DefaultTitle},
		{title: "   ", want: DefaultTitle},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Entry{Title: tt.title}.FileTitle(), "title %q", tt.title)
	}
}

func TestNewCatalog_Invalid(t *testing.T) {
	_, err := NewCatalog([]Entry{{Code: "a"}, {Code: "a"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCatalog))

	_, err = NewCatalog([]Entry{{Code: "tn1"}, {Code: "TN1"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCatalog))

	_, err = NewCatalog([]Entry{{Code: " "}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCatalog))
}

func TestParse_Invalid(t *testing.T) {
	for _, doc := range []string{"", "{}", "tn1: just a string\n", "[1, 2]", "{"} {
		_, err := Parse([]byte(doc))
		require.Error(t, err, "doc %q", doc)
		assert.True(t, errors.Is(err, ErrInvalidCatalog))
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tn1:\n  title: Annual Outlook\n"), 0600))

	catalog, err := Load(path)
	require.NoError(t, err)

	entry, ok := catalog.Lookup("tn1")
	require.True(t, ok)
	assert.Equal(t, "Annual Outlook", entry.FileTitle())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, ErrInvalidCatalog))
}
