// Package classifier decides, per field, whether a value is PII and which
// masking transform applies. Field rules are data-driven: a YAML registry
// (embedded defaults, optionally overridden from a file) is compiled once
// into an immutable field→rule table at construction.
package classifier

import (
	"fmt"
	"sort"
	"strings"
)

// FieldCategory is the classification outcome for a (field name, value) pair.
type FieldCategory int

const (
	// NonPII means the value passes through unchanged.
	NonPII FieldCategory = iota
	// StandalonePII is sufficient alone to flag the whole record.
	StandalonePII
	// CombinatorialPII only counts when enough other combinatorial fields
	// are present in the same record.
	CombinatorialPII
)

func (c FieldCategory) String() string {
	switch c {
	case StandalonePII:
		return "standalone"
	case CombinatorialPII:
		return "combinatorial"
	default:
		return "non_pii"
	}
}

// Classifier maps (field name, value) pairs to a FieldCategory and mask id.
type Classifier struct {
	rules map[string]FieldRule
}

// Option configures a Classifier via the functional options pattern.
type Option func(*classifierConfig)

type classifierConfig struct {
	ruleFile    string
	customRules []RuleConfig
}

// WithRuleFile loads additional field rules from a YAML file, overriding
// embedded defaults by field name. A missing file is silently skipped.
func WithRuleFile(path string) Option {
	return func(c *classifierConfig) { c.ruleFile = path }
}

// WithCustomRules adds in-memory rule overrides, applied after the rule file.
func WithCustomRules(rules []RuleConfig) Option {
	return func(c *classifierConfig) { c.customRules = rules }
}

// New creates a Classifier. Without options it uses the embedded defaults.
func New(opts ...Option) (*Classifier, error) {
	var cfg classifierConfig
	for _, o := range opts {
		o(&cfg)
	}

	defaults, err := DefaultRules()
	if err != nil {
		return nil, fmt.Errorf("loading default field rules: %w", err)
	}

	var fileRules []*RuleConfig
	if cfg.ruleFile != "" {
		rf, err := LoadRuleFile(cfg.ruleFile)
		if err != nil {
			return nil, fmt.Errorf("loading field rule file: %w", err)
		}
		if rf != nil {
			fileRules = toPtrSlice(rf.Rules)
		}
	}

	var customRules []*RuleConfig
	if len(cfg.customRules) > 0 {
		customRules = toPtrSlice(cfg.customRules)
	}

	merged := MergeRules(toPtrSlice(defaults), fileRules, customRules)

	compiled, err := CompileRules(merged)
	if err != nil {
		return nil, fmt.Errorf("compiling field rules: %w", err)
	}

	return &Classifier{rules: compiled}, nil
}

// MustNew is like New but panics on error. Useful for zero-config startup
// where the embedded defaults are expected to always compile.
func MustNew(opts ...Option) *Classifier {
	c, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("classifier.New: %v", err))
	}
	return c
}

// Classify returns the category for a field name and string value, plus the
// mask id to apply when the category is not NonPII. Unrecognized field
// names and values that fail their rule's check are NonPII; classification
// never errors (fail open).
func (c *Classifier) Classify(field, value string) (FieldCategory, string) {
	rule, ok := c.rules[field]
	if !ok {
		return NonPII, ""
	}

	switch rule.Category {
	case StandalonePII:
		if rule.Pattern.MatchString(value) {
			return StandalonePII, rule.Mask
		}
	case CombinatorialPII:
		if matchesShape(rule, value) {
			return CombinatorialPII, rule.Mask
		}
	}

	return NonPII, ""
}

// MaskIDs returns the mask ids referenced by the compiled rule set, sorted
// and deduplicated, so callers can verify every id resolves to a transform.
func (c *Classifier) MaskIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, rule := range c.rules {
		if !seen[rule.Mask] {
			seen[rule.Mask] = true
			ids = append(ids, rule.Mask)
		}
	}
	sort.Strings(ids)
	return ids
}

// CombinatorialFields returns the sorted field names eligible for
// combinatorial treatment under the compiled rule set.
func (c *Classifier) CombinatorialFields() []string {
	var fields []string
	for name, rule := range c.rules {
		if rule.Category == CombinatorialPII {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return fields
}

// matchesShape applies a combinatorial rule's shape constraints. With no
// constraints configured, any non-empty value matches.
func matchesShape(rule FieldRule, value string) bool {
	if value == "" {
		return false
	}
	if rule.MinTokens > 0 && len(strings.Fields(value)) < rule.MinTokens {
		return false
	}
	if rule.Contains != "" && !strings.Contains(value, rule.Contains) {
		return false
	}
	return true
}
