package detect

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// RecognizerFile is the top-level YAML structure for a recognizer config file.
type RecognizerFile struct {
	Recognizers []RecognizerConfig `yaml:"recognizers"`
}

// RecognizerConfig declares the patterns and optional checksum gate for one
// category. Recognizers can be layered: embedded defaults, then a global
// override file, merged by Name.
type RecognizerConfig struct {
	Name     string          `yaml:"name" json:"name"`
	Category string          `yaml:"category" json:"category"`
	Enabled  *bool           `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Patterns []PatternConfig `yaml:"patterns,omitempty" json:"patterns,omitempty"`

	// Validate names the checksum gate applied to every syntactic match:
	// one of "luhn", "iban", "rib", "siren", "siret", or empty for none.
	Validate string `yaml:"validate,omitempty" json:"validate,omitempty"`

	// MinDigits/MaxDigits bound the digit count of a match after separator
	// stripping (0 means unbounded). Used by phone and credit card.
	MinDigits int `yaml:"min_digits,omitempty" json:"min_digits,omitempty"`
	MaxDigits int `yaml:"max_digits,omitempty" json:"max_digits,omitempty"`
}

// PatternConfig is a single regex pattern within a recognizer.
type PatternConfig struct {
	Name  string `yaml:"name" json:"name"`
	Regex string `yaml:"regex" json:"regex"`
}

// isEnabled returns true if the recognizer is enabled (defaults to true when nil).
func (r *RecognizerConfig) isEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

// ParseRecognizerFile parses recognizer YAML bytes into a RecognizerFile.
func ParseRecognizerFile(data []byte) (*RecognizerFile, error) {
	var rf RecognizerFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing recognizer YAML: %w", err)
	}
	return &rf, nil
}

// LoadRecognizerFile reads and parses a recognizer YAML file from disk.
// Returns nil (not an error) if the file does not exist, so callers can
// treat a missing override file as a no-op.
func LoadRecognizerFile(path string) (*RecognizerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading recognizer file %s: %w", path, err)
	}
	return ParseRecognizerFile(data)
}

// MergeRecognizers layers recognizer lists: later layers override earlier
// ones by matching on the Name field, new recognizers are appended.
func MergeRecognizers(layers ...[]RecognizerConfig) []RecognizerConfig {
	index := make(map[string]int)
	var merged []RecognizerConfig

	for _, layer := range layers {
		for _, rc := range layer {
			if idx, exists := index[rc.Name]; exists {
				merged[idx] = rc
			} else {
				index[rc.Name] = len(merged)
				merged = append(merged, rc)
			}
		}
	}

	return merged
}

// validators maps the YAML validate field to the checksum implementations.
var validators = map[string]func(string) bool{
	"luhn":  luhnValid,
	"iban":  ibanValid,
	"rib":   ribValid,
	"siren": sirenValid,
	"siret": siretValid,
}

// compiledPattern is a ready-to-run detection pattern.
type compiledPattern struct {
	name      string
	category  Category
	re        *regexp.Regexp
	validate  func(string) bool
	minDigits int
	maxDigits int
}

// compileRecognizers converts recognizer configs into the compiled pattern
// slice used by the Scanner at runtime. Disabled recognizers are skipped.
func compileRecognizers(recognizers []RecognizerConfig) ([]compiledPattern, error) {
	var patterns []compiledPattern

	for _, rec := range recognizers {
		if !rec.isEnabled() {
			continue
		}
		cat := Category(rec.Category)
		if !cat.Valid() {
			return nil, fmt.Errorf("recognizer %q: unknown category %q", rec.Name, rec.Category)
		}
		var validate func(string) bool
		if rec.Validate != "" {
			fn, ok := validators[rec.Validate]
			if !ok {
				return nil, fmt.Errorf("recognizer %q: unknown validator %q", rec.Name, rec.Validate)
			}
			validate = fn
		}
		for _, p := range rec.Patterns {
			compiled, err := regexp.Compile(p.Regex)
			if err != nil {
				return nil, fmt.Errorf("compiling pattern %q in recognizer %q: %w", p.Name, rec.Name, err)
			}
			patterns = append(patterns, compiledPattern{
				name:      rec.Name,
				category:  cat,
				re:        compiled,
				validate:  validate,
				minDigits: rec.MinDigits,
				maxDigits: rec.MaxDigits,
			})
		}
	}

	return patterns, nil
}

// FilterByCategories applies enabled/disabled category filters to a
// recognizer list. A non-empty enabled list acts as a whitelist, then any
// recognizer whose category is in disabled is removed.
func FilterByCategories(recognizers []RecognizerConfig, enabled, disabled []Category) []RecognizerConfig {
	result := recognizers

	if len(enabled) > 0 {
		allowed := make(map[Category]bool, len(enabled))
		for _, c := range enabled {
			allowed[c] = true
		}
		var filtered []RecognizerConfig
		for _, r := range result {
			if allowed[Category(r.Category)] {
				filtered = append(filtered, r)
			}
		}
		result = filtered
	}

	if len(disabled) > 0 {
		blocked := make(map[Category]bool, len(disabled))
		for _, c := range disabled {
			blocked[c] = true
		}
		var filtered []RecognizerConfig
		for _, r := range result {
			if !blocked[Category(r.Category)] {
				filtered = append(filtered, r)
			}
		}
		result = filtered
	}

	return result
}
