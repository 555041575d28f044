// Package taxonomy resolves file names to destination paths using an ordered,
// hierarchical rule table (category -> subcategory -> optional region).
package taxonomy

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidRuleTable is returned when rule configuration cannot be used.
var ErrInvalidRuleTable = errors.New("invalid rule table")

// RuleSpec is an uncompiled rule as it appears in configuration.
// Region is empty for non-territorial subcategories.
type RuleSpec struct {
	Category    string
	Subcategory string
	Region      string
	Pattern     string
}

// Rule is a compiled classification rule.
type Rule struct {
	matcher     *regexp.Regexp
	Category    string
	Subcategory string
	Region      string
	Pattern     string
}

// Path returns the taxonomy path the rule assigns.
func (r Rule) Path() string {
	if r.Region == "" {
		return r.Category + "/" + r.Subcategory
	}
	return r.Category + "/" + r.Subcategory + "/" + r.Region
}

// MatchesPrefix reports whether the rule pattern matches code starting at its
// first character. The match does not need to consume the whole code.
func (r Rule) MatchesPrefix(code string) bool {
	return r.matcher.MatchString(code)
}

// RuleTable is an immutable, ordered set of rules. Evaluation order is
// category insertion order, then subcategory, then region.
type RuleTable struct {
	rules []Rule
}

// NewRuleTable compiles specs in the order given. Every pattern is matched
// case-insensitively and anchored at the start of the code.
func NewRuleTable(specs []RuleSpec) (*RuleTable, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no rules defined", ErrInvalidRuleTable)
	}

	rules := make([]Rule, 0, len(specs))
	for i, spec := range specs {
		if strings.TrimSpace(spec.Category) == "" || strings.TrimSpace(spec.Subcategory) == "" {
			return nil, fmt.Errorf("%w: rule %d is missing a category or subcategory", ErrInvalidRuleTable, i)
		}
		if spec.Pattern == "" {
			return nil, fmt.Errorf("%w: rule %s has an empty pattern", ErrInvalidRuleTable, specPath(spec))
		}

		re, err := regexp.Compile("(?i)^(?:" + spec.Pattern + ")")
		if err != nil {
			return nil, fmt.Errorf("%w: rule %s: %v", ErrInvalidRuleTable, specPath(spec), err)
		}

		rules = append(rules, Rule{
			matcher:     re,
			Category:    spec.Category,
			Subcategory: spec.Subcategory,
			Region:      spec.Region,
			Pattern:     spec.Pattern,
		})
	}

	return &RuleTable{rules: rules}, nil
}

// Len returns the number of compiled rules.
func (t *RuleTable) Len() int {
	return len(t.rules)
}

// Rules returns a copy of the rules in evaluation order.
func (t *RuleTable) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

func specPath(spec RuleSpec) string {
	if spec.Region == "" {
		return spec.Category + "/" + spec.Subcategory
	}
	return spec.Category + "/" + spec.Subcategory + "/" + spec.Region
}
