package classifier

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/dativo-io/scrub/patterns"
)

// RuleFile is the top-level YAML structure for a field rule config file.
type RuleFile struct {
	Rules []RuleConfig `yaml:"rules"`
}

// RuleConfig declares the detection check and masking transform for a
// single field name. Standalone rules carry a regex the full value must
// match; combinatorial rules carry shape constraints (min_tokens,
// contains) and default to "any non-empty string" when neither is set.
type RuleConfig struct {
	Field     string `yaml:"field" json:"field"`
	Category  string `yaml:"category" json:"category"`
	Regex     string `yaml:"regex,omitempty" json:"regex,omitempty"`
	MinTokens int    `yaml:"min_tokens,omitempty" json:"min_tokens,omitempty"`
	Contains  string `yaml:"contains,omitempty" json:"contains,omitempty"`
	Mask      string `yaml:"mask" json:"mask"`
	Enabled   *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// isEnabled returns true if the rule is enabled (defaults to true when nil).
func (r *RuleConfig) isEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

// FieldRule is a compiled, ready-to-use rule for one field name.
type FieldRule struct {
	Field     string
	Category  FieldCategory
	Pattern   *regexp.Regexp // standalone only
	MinTokens int
	Contains  string
	Mask      string
}

// ParseRuleFile parses field rule YAML bytes into a RuleFile.
func ParseRuleFile(data []byte) (*RuleFile, error) {
	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing field rule YAML: %w", err)
	}
	return &rf, nil
}

// LoadRuleFile reads and parses a field rule YAML file from disk.
// Returns nil (not an error) if the file does not exist, so callers can
// treat a missing override file as a no-op.
func LoadRuleFile(path string) (*RuleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading field rule file %s: %w", path, err)
	}
	return ParseRuleFile(data)
}

// DefaultRules returns the built-in field rules parsed from the embedded
// fields.yaml file. This is the first layer in the merge chain.
func DefaultRules() ([]RuleConfig, error) {
	rf, err := ParseRuleFile(patterns.FieldsYAML())
	if err != nil {
		return nil, fmt.Errorf("parsing embedded field rules: %w", err)
	}
	return rf.Rules, nil
}

// MergeRules layers rule lists: later layers override earlier ones by
// matching on the Field name. New rules are appended.
func MergeRules(layers ...[]*RuleConfig) []RuleConfig {
	index := make(map[string]int)
	var merged []RuleConfig

	for _, layer := range layers {
		for _, rc := range layer {
			if rc == nil {
				continue
			}
			if idx, exists := index[rc.Field]; exists {
				merged[idx] = *rc
			} else {
				index[rc.Field] = len(merged)
				merged = append(merged, *rc)
			}
		}
	}

	return merged
}

// toPtrSlice converts []RuleConfig to []*RuleConfig for MergeRules.
func toPtrSlice(configs []RuleConfig) []*RuleConfig {
	ptrs := make([]*RuleConfig, len(configs))
	for i := range configs {
		ptrs[i] = &configs[i]
	}
	return ptrs
}

// CompileRules converts rule configs into the field-indexed rule table used
// by the Classifier at runtime. Disabled rules are skipped. Each field name
// maps to at most one rule; a duplicate field in a single list is a config
// error (use MergeRules to override across layers instead).
func CompileRules(rules []RuleConfig) (map[string]FieldRule, error) {
	compiled := make(map[string]FieldRule, len(rules))

	for _, rc := range rules {
		if !rc.isEnabled() {
			continue
		}
		if rc.Field == "" {
			return nil, fmt.Errorf("rule with empty field name")
		}
		if _, dup := compiled[rc.Field]; dup {
			return nil, fmt.Errorf("duplicate rule for field %q", rc.Field)
		}
		if rc.Mask == "" {
			return nil, fmt.Errorf("rule for field %q has no mask", rc.Field)
		}

		fr := FieldRule{
			Field:     rc.Field,
			MinTokens: rc.MinTokens,
			Contains:  rc.Contains,
			Mask:      rc.Mask,
		}

		switch rc.Category {
		case "standalone":
			if rc.Regex == "" {
				return nil, fmt.Errorf("standalone rule for field %q has no regex", rc.Field)
			}
			re, err := regexp.Compile(rc.Regex)
			if err != nil {
				return nil, fmt.Errorf("compiling regex for field %q: %w", rc.Field, err)
			}
			fr.Category = StandalonePII
			fr.Pattern = re
		case "combinatorial":
			fr.Category = CombinatorialPII
		default:
			return nil, fmt.Errorf("rule for field %q has unknown category %q", rc.Field, rc.Category)
		}

		compiled[rc.Field] = fr
	}

	return compiled, nil
}
