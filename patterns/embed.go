// Package patterns provides the embedded default recognizer definitions.
// The YAML file uses the Presidio-compatible recognizer format, so the same
// schema works for user-supplied pattern files.
package patterns

import _ "embed"

//go:embed default.yaml
var defaultYAML []byte

// DefaultYAML returns the embedded default recognizer definitions.
func DefaultYAML() []byte { return defaultYAML }
