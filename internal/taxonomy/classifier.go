package taxonomy

import (
	"log/slog"
	"strings"
)

// ClassificationCode returns the part of a file name before the first space.
//
// Only a single space separates the code here. Renaming uses its own
// tokenizer (renamer.LookupCode) that also splits on hyphens; the two must
// not be merged or matching changes for names like "t80-informe.docx".
func ClassificationCode(fileName string) string {
	code, _, _ := strings.Cut(fileName, " ")
	return code
}

// Classifier resolves file names against a rule table.
type Classifier struct {
	table *RuleTable
}

// NewClassifier creates a classifier over table.
func NewClassifier(table *RuleTable) *Classifier {
	return &Classifier{table: table}
}

// Resolve returns the taxonomy path for fileName. The first rule in table
// order whose pattern matches the start of the code wins. When nothing
// matches it returns false; callers route the file to a fallback bucket.
func (c *Classifier) Resolve(fileName string) (string, bool) {
	rule, ok := c.Match(fileName)
	if !ok {
		slog.Info("No taxonomy match found", "file", fileName)
		return "", false
	}
	return rule.Path(), true
}

// Match returns the winning rule for fileName.
func (c *Classifier) Match(fileName string) (Rule, bool) {
	code := ClassificationCode(fileName)
	for _, rule := range c.table.rules {
		if rule.MatchesPrefix(code) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Table returns the underlying rule table.
func (c *Classifier) Table() *RuleTable {
	return c.table
}
