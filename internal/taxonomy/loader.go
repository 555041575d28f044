package taxonomy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a rule tree from a YAML or JSON file.
//
// The document is a mapping of category -> subcategory -> pattern, where a
// territorial subcategory maps to region -> pattern instead of a single
// pattern:
//
//	Tendencias:
//	  Tendencias Nacionales: "^TN"
//	  Tendencias Territoriales:
//	    Amazonas: "^R01"
//	    Ancash: "^R02"
//
// Key order in the file is evaluation order.
func Load(path string) (*RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrInvalidRuleTable, path, err)
	}
	return Parse(data)
}

// Parse builds a rule table from YAML or JSON bytes. Decoding goes through
// yaml.Node so mapping order survives.
func Parse(data []byte) (*RuleTable, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRuleTable, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidRuleTable)
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must map categories to subcategories (line %d)", ErrInvalidRuleTable, doc.Line)
	}

	var specs []RuleSpec
	for i := 0; i+1 < len(doc.Content); i += 2 {
		category := doc.Content[i].Value
		subs := doc.Content[i+1]
		if subs.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: category %q must map subcategories (line %d)", ErrInvalidRuleTable, category, subs.Line)
		}

		for j := 0; j+1 < len(subs.Content); j += 2 {
			subcategory := subs.Content[j].Value
			value := subs.Content[j+1]

			switch value.Kind {
			case yaml.ScalarNode:
				specs = append(specs, RuleSpec{
					Category:    category,
					Subcategory: subcategory,
					Pattern:     value.Value,
				})
			case yaml.MappingNode:
				regionSpecs, err := parseRegions(category, subcategory, value)
				if err != nil {
					return nil, err
				}
				specs = append(specs, regionSpecs...)
			default:
				return nil, fmt.Errorf("%w: %s/%s must be a pattern or a region map (line %d)",
					ErrInvalidRuleTable, category, subcategory, value.Line)
			}
		}
	}

	return NewRuleTable(specs)
}

func parseRegions(category, subcategory string, node *yaml.Node) ([]RuleSpec, error) {
	specs := make([]RuleSpec, 0, len(node.Content)/2)
	for k := 0; k+1 < len(node.Content); k += 2 {
		region := node.Content[k].Value
		pattern := node.Content[k+1]
		if pattern.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: region %s/%s/%s must be a pattern (line %d)",
				ErrInvalidRuleTable, category, subcategory, region, pattern.Line)
		}
		specs = append(specs, RuleSpec{
			Category:    category,
			Subcategory: subcategory,
			Region:      region,
			Pattern:     pattern.Value,
		})
	}
	return specs, nil
}
