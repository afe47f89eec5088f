// Package patterns provides the embedded default recognizer definitions.
// The YAML file maps each category to its regex patterns, checksum validator,
// and digit-count bounds.
package patterns

import _ "embed"

//go:embed recognizers.yaml
var recognizersYAML []byte

// RecognizersYAML returns the embedded default recognizer definitions.
func RecognizersYAML() []byte { return recognizersYAML }
