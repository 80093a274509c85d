// Package patterns provides the embedded default field rule definitions.
// The YAML file in this directory declares, per field name, the detection
// check (regex or shape constraints) and the masking transform to apply.
package patterns

import _ "embed"

//go:embed fields.yaml
var fieldsYAML []byte

// FieldsYAML returns the embedded default field rule definitions.
func FieldsYAML() []byte { return fieldsYAML }
