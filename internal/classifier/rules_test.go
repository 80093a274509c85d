package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRuleFile(t *testing.T) {
	data := []byte(`
rules:
  - field: phone
    category: standalone
    regex: "^\\d{10}$"
    mask: phone
  - field: name
    category: combinatorial
    min_tokens: 2
    mask: name
`)
	rf, err := ParseRuleFile(data)
	require.NoError(t, err)
	require.Len(t, rf.Rules, 2)
	assert.Equal(t, "phone", rf.Rules[0].Field)
	assert.Equal(t, 2, rf.Rules[1].MinTokens)
}

func TestParseRuleFileInvalidYAML(t *testing.T) {
	_, err := ParseRuleFile([]byte("rules: [unclosed"))
	assert.Error(t, err)
}

func TestDefaultRules(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)
	require.Len(t, rules, 8)

	byField := make(map[string]RuleConfig, len(rules))
	for _, r := range rules {
		byField[r.Field] = r
	}
	for _, field := range []string{"phone", "aadhar", "passport", "upi_id"} {
		assert.Equal(t, "standalone", byField[field].Category, field)
		assert.NotEmpty(t, byField[field].Regex, field)
	}
	for _, field := range []string{"name", "email", "address", "ip_address"} {
		assert.Equal(t, "combinatorial", byField[field].Category, field)
	}
}

func TestMergeRulesOverridesByField(t *testing.T) {
	base := []RuleConfig{
		{Field: "phone", Category: "standalone", Regex: "^\\d{10}$", Mask: "phone"},
		{Field: "name", Category: "combinatorial", MinTokens: 2, Mask: "name"},
	}
	override := []RuleConfig{
		{Field: "phone", Category: "standalone", Regex: "^\\d{8}$", Mask: "phone"},
		{Field: "pan", Category: "standalone", Regex: "^[A-Z]{5}\\d{4}[A-Z]$", Mask: "passport"},
	}

	merged := MergeRules(toPtrSlice(base), toPtrSlice(override))
	require.Len(t, merged, 3)
	assert.Equal(t, "^\\d{8}$", merged[0].Regex) // overridden in place
	assert.Equal(t, "name", merged[1].Field)
	assert.Equal(t, "pan", merged[2].Field) // appended
}

func TestCompileRules(t *testing.T) {
	tests := []struct {
		name    string
		rules   []RuleConfig
		wantErr string
	}{
		{
			name: "valid",
			rules: []RuleConfig{
				{Field: "phone", Category: "standalone", Regex: "^\\d{10}$", Mask: "phone"},
				{Field: "address", Category: "combinatorial", Mask: "address"},
			},
		},
		{
			name:    "standalone without regex",
			rules:   []RuleConfig{{Field: "phone", Category: "standalone", Mask: "phone"}},
			wantErr: "no regex",
		},
		{
			name:    "invalid regex",
			rules:   []RuleConfig{{Field: "phone", Category: "standalone", Regex: "([", Mask: "phone"}},
			wantErr: "compiling regex",
		},
		{
			name:    "unknown category",
			rules:   []RuleConfig{{Field: "phone", Category: "contextual", Regex: "^\\d+$", Mask: "phone"}},
			wantErr: "unknown category",
		},
		{
			name:    "missing mask",
			rules:   []RuleConfig{{Field: "phone", Category: "standalone", Regex: "^\\d+$"}},
			wantErr: "no mask",
		},
		{
			name: "duplicate field",
			rules: []RuleConfig{
				{Field: "phone", Category: "standalone", Regex: "^\\d{10}$", Mask: "phone"},
				{Field: "phone", Category: "standalone", Regex: "^\\d{8}$", Mask: "phone"},
			},
			wantErr: "duplicate rule",
		},
		{
			name:    "empty field name",
			rules:   []RuleConfig{{Category: "standalone", Regex: "^\\d+$", Mask: "phone"}},
			wantErr: "empty field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := CompileRules(tt.rules)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, compiled, len(tt.rules))
		})
	}
}

func TestCompileRulesSkipsDisabled(t *testing.T) {
	disabled := false
	compiled, err := CompileRules([]RuleConfig{
		{Field: "phone", Category: "standalone", Regex: "^\\d{10}$", Mask: "phone", Enabled: &disabled},
	})
	require.NoError(t, err)
	assert.Empty(t, compiled)
}

func TestLoadRuleFileMissing(t *testing.T) {
	rf, err := LoadRuleFile("/nonexistent/rules.yaml")
	require.NoError(t, err)
	assert.Nil(t, rf)
}
