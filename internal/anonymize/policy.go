package anonymize

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MathFreedom/SafeMask/internal/detect"
)

// Mode is the policy action for a category.
type Mode string

const (
	// ModeIgnore leaves spans of the category untouched. Detection still
	// runs; the filter is applied afterwards.
	ModeIgnore Mode = "ignore"
	// ModeRedact irreversibly masks the span.
	ModeRedact Mode = "redact"
	// ModePseudo replaces the span with a deterministic reversible token.
	ModePseudo Mode = "pseudo"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeIgnore, ModeRedact, ModePseudo:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want ignore, redact, or pseudo)", s)
}

// Policy maps every category to a mode. It is a total function: entries for
// all categories are materialized at construction, absent ones defaulting to
// ignore, so no lookup ever falls through.
type Policy struct {
	modes map[detect.Category]Mode
}

// NewPolicy builds a total policy from a (possibly sparse) category → mode
// map. Unknown categories in the input are rejected.
func NewPolicy(modes map[detect.Category]Mode) (*Policy, error) {
	p := &Policy{modes: make(map[detect.Category]Mode, len(detect.Categories()))}
	for _, c := range detect.Categories() {
		p.modes[c] = ModeIgnore
	}
	for c, m := range modes {
		if !c.Valid() {
			return nil, fmt.Errorf("unknown category %q in policy", c)
		}
		if _, err := ParseMode(string(m)); err != nil {
			return nil, fmt.Errorf("category %s: %w", c, err)
		}
		p.modes[c] = m
	}
	return p, nil
}

// UniformPolicy assigns the same mode to every category.
func UniformPolicy(m Mode) *Policy {
	p, _ := NewPolicy(nil)
	for c := range p.modes {
		p.modes[c] = m
	}
	return p
}

// ModeFor returns the mode for c. Total over all valid categories; unknown
// categories report ignore.
func (p *Policy) ModeFor(c detect.Category) Mode {
	if m, ok := p.modes[c]; ok {
		return m
	}
	return ModeIgnore
}

// policyFile is the YAML shape of a policy file.
type policyFile struct {
	Modes map[string]string `yaml:"modes"`
}

// ParsePolicy parses policy YAML bytes into a total Policy.
func ParsePolicy(data []byte) (*Policy, error) {
	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}
	sparse := make(map[detect.Category]Mode, len(pf.Modes))
	for c, m := range pf.Modes {
		sparse[detect.Category(c)] = Mode(m)
	}
	return NewPolicy(sparse)
}

// LoadPolicyFile reads and parses a policy YAML file from disk.
func LoadPolicyFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file %s: %w", path, err)
	}
	return ParsePolicy(data)
}
