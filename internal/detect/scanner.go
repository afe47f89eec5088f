package detect

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	smotel "github.com/MathFreedom/SafeMask/internal/otel"
	"github.com/MathFreedom/SafeMask/patterns"
)

var tracer = smotel.Tracer("github.com/MathFreedom/SafeMask/internal/detect")

// Scanner runs every category recognizer over a text buffer and returns the
// raw candidate spans. Detection is independent of policy: a category whose
// mode is ignore is still scanned, so a later policy change does not require
// a re-scan.
type Scanner struct {
	patterns []compiledPattern
}

// ScannerOption configures a Scanner via the functional options pattern.
type ScannerOption func(*scannerConfig)

type scannerConfig struct {
	patternFile        string
	enabledCategories  []Category
	disabledCategories []Category
}

// WithPatternFile loads additional recognizers from an override YAML file.
// A missing file is silently skipped.
func WithPatternFile(path string) ScannerOption {
	return func(c *scannerConfig) { c.patternFile = path }
}

// WithEnabledCategories sets a whitelist of categories. When non-empty, only
// recognizers for those categories are active.
func WithEnabledCategories(categories []Category) ScannerOption {
	return func(c *scannerConfig) { c.enabledCategories = categories }
}

// WithDisabledCategories sets a blacklist of categories to exclude.
func WithDisabledCategories(categories []Category) ScannerOption {
	return func(c *scannerConfig) { c.disabledCategories = categories }
}

// NewScanner creates a scanner. Without options it uses the embedded default
// recognizers; an override file layers on top, merged by recognizer name.
func NewScanner(opts ...ScannerOption) (*Scanner, error) {
	var cfg scannerConfig
	for _, o := range opts {
		o(&cfg)
	}

	defaults, err := ParseRecognizerFile(patterns.RecognizersYAML())
	if err != nil {
		return nil, fmt.Errorf("parsing embedded recognizers: %w", err)
	}

	var override []RecognizerConfig
	if cfg.patternFile != "" {
		rf, err := LoadRecognizerFile(cfg.patternFile)
		if err != nil {
			return nil, fmt.Errorf("loading recognizer override file: %w", err)
		}
		if rf != nil {
			override = rf.Recognizers
		}
	}

	merged := MergeRecognizers(defaults.Recognizers, override)
	merged = FilterByCategories(merged, cfg.enabledCategories, cfg.disabledCategories)

	compiled, err := compileRecognizers(merged)
	if err != nil {
		return nil, fmt.Errorf("compiling recognizers: %w", err)
	}

	return &Scanner{patterns: compiled}, nil
}

// MustNewScanner is like NewScanner but panics on error. Useful for
// zero-config startup where the embedded defaults are expected to compile.
func MustNewScanner(opts ...ScannerOption) *Scanner {
	s, err := NewScanner(opts...)
	if err != nil {
		panic(fmt.Sprintf("detect.NewScanner: %v", err))
	}
	return s
}

// DetectAll returns the unfiltered candidate spans from every recognizer.
// Syntactic matches failing their checksum gate or digit bounds are excluded;
// anything malformed is dropped rather than propagated.
func (s *Scanner) DetectAll(ctx context.Context, text string) []Span {
	_, span := tracer.Start(ctx, "detect.detect_all")
	defer span.End()

	var out []Span
	for _, p := range s.patterns {
		matches := p.re.FindAllStringIndex(text, -1)
		for _, m := range matches {
			value := text[m[0]:m[1]]

			if p.minDigits > 0 || p.maxDigits > 0 {
				n := len(stripNonDigits(value))
				if p.minDigits > 0 && n < p.minDigits {
					continue
				}
				if p.maxDigits > 0 && n > p.maxDigits {
					continue
				}
			}

			if p.validate != nil && !p.validate(value) {
				continue
			}

			cand := Span{Type: p.category, Start: m[0], End: m[1], Value: value}
			if !cand.wellFormed(len(text)) {
				continue
			}
			out = append(out, cand)
		}
	}

	span.SetAttributes(
		attribute.Int("detect.candidate_count", len(out)),
		attribute.Int("detect.text_bytes", len(text)),
	)

	return out
}
