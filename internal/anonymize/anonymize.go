// Package anonymize applies a per-category policy to detected spans,
// rewriting text with redaction masks or reversible vault tokens, and
// reverses previously issued tokens back to their originals.
package anonymize

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MathFreedom/SafeMask/internal/detect"
	smotel "github.com/MathFreedom/SafeMask/internal/otel"
	"github.com/MathFreedom/SafeMask/internal/vault"
)

var tracer = smotel.Tracer("github.com/MathFreedom/SafeMask/internal/anonymize")

// tokenPattern recognizes issued tokens in text: a category prefix and
// 8 uppercase hex characters, bounded by word edges.
var tokenPattern = regexp.MustCompile(`\b[A-Z_]+_[0-9A-F]{8}\b`)

// Replacement is one audit entry of a transformation run, emitted only for
// pseudo mode. The durable record lives in the vault; this list is for the
// caller's review.
type Replacement struct {
	Type  detect.Category `json:"type"`
	Value string          `json:"value"`
	Token string          `json:"token"`
}

// Result is the outcome of one anonymization run.
type Result struct {
	Text         string        `json:"text"`
	Replacements []Replacement `json:"replacements"`
	Matches      []detect.Span `json:"matches"`
}

// Refiner supplements baseline detector output with additional candidate
// spans. Implementations are best-effort: errors and partial results must
// leave the baseline usable.
type Refiner interface {
	Refine(ctx context.Context, text string, baseline []detect.Span) ([]detect.Span, error)
}

// Engine ties the scanner, the vault, and an optional refiner together.
type Engine struct {
	scanner *detect.Scanner
	vault   *vault.Vault
	refiner Refiner
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRefiner attaches a refinement collaborator used by AnonymizeSmart.
func WithRefiner(r Refiner) EngineOption {
	return func(e *Engine) { e.refiner = r }
}

// NewEngine builds an anonymization engine.
func NewEngine(scanner *detect.Scanner, v *vault.Vault, opts ...EngineOption) *Engine {
	e := &Engine{scanner: scanner, vault: v}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Anonymize runs baseline detection and applies the policy.
func (e *Engine) Anonymize(ctx context.Context, text string, pol *Policy) (*Result, error) {
	ctx, span := tracer.Start(ctx, "anonymize.run")
	defer span.End()

	candidates := e.scanner.DetectAll(ctx, text)
	res, err := e.apply(ctx, text, candidates, pol)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("anonymize.match_count", len(res.Matches)),
		attribute.Int("anonymize.replacement_count", len(res.Replacements)),
	)
	return res, nil
}

// AnonymizeSmart runs baseline detection, merges in refinement collaborator
// output, then applies the policy. Refinement failure degrades to the
// baseline result; it is never fatal.
func (e *Engine) AnonymizeSmart(ctx context.Context, text string, pol *Policy) (*Result, error) {
	ctx, span := tracer.Start(ctx, "anonymize.run_smart")
	defer span.End()

	candidates := e.scanner.DetectAll(ctx, text)
	if e.refiner != nil {
		refined, err := e.refiner.Refine(ctx, text, candidates)
		if err != nil {
			log.Warn().Err(err).Func(smotel.LogTraceFields(ctx)).
				Msg("refinement failed, using baseline detections")
		} else {
			candidates = refined
		}
	}

	res, err := e.apply(ctx, text, candidates, pol)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("anonymize.match_count", len(res.Matches)),
		attribute.Int("anonymize.replacement_count", len(res.Replacements)),
	)
	return res, nil
}

// apply filters ignore-mode spans BEFORE overlap resolution — ignored
// categories never compete for priority slots — then rewrites the text in a
// single left-to-right pass over the resolved spans.
func (e *Engine) apply(ctx context.Context, text string, candidates []detect.Span, pol *Policy) (*Result, error) {
	filtered := candidates[:0:0]
	for _, m := range candidates {
		if pol.ModeFor(m.Type) != ModeIgnore {
			filtered = append(filtered, m)
		}
	}
	resolved := detect.Resolve(filtered)

	var out strings.Builder
	out.Grow(len(text))
	cursor := 0
	var replacements []Replacement

	for _, m := range resolved {
		out.WriteString(text[cursor:m.Start])
		original := text[m.Start:m.End]

		switch pol.ModeFor(m.Type) {
		case ModeRedact:
			out.WriteString(redactMask(m.Type, original))
		case ModePseudo:
			token, err := e.vault.DeriveToken(m.Type, original)
			if err != nil {
				return nil, fmt.Errorf("deriving token: %w", err)
			}
			if err := e.vault.Put(ctx, token, original); err != nil {
				return nil, fmt.Errorf("storing token mapping: %w", err)
			}
			out.WriteString(token)
			replacements = append(replacements, Replacement{Type: m.Type, Value: original, Token: token})
		}
		cursor = m.End
	}
	out.WriteString(text[cursor:])

	return &Result{Text: out.String(), Replacements: replacements, Matches: resolved}, nil
}

// Deanonymize scans for the token pattern and substitutes each known token
// with its original value. Unknown tokens are left untouched; a locked or
// uninitialized vault is an error.
func (e *Engine) Deanonymize(ctx context.Context, text string) (string, error) {
	ctx, span := tracer.Start(ctx, "anonymize.reverse")
	defer span.End()

	locs := tokenPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text, nil
	}

	var out strings.Builder
	out.Grow(len(text))
	cursor := 0
	restored := 0

	for _, loc := range locs {
		out.WriteString(text[cursor:loc[0]])
		token := text[loc[0]:loc[1]]
		original, err := e.vault.Get(ctx, token)
		switch {
		case err == nil:
			out.WriteString(original)
			restored++
		case errors.Is(err, vault.ErrTokenNotFound):
			out.WriteString(token)
		default:
			span.RecordError(err)
			return "", err
		}
		cursor = loc[1]
	}
	out.WriteString(text[cursor:])

	span.SetAttributes(attribute.Int("anonymize.restored_count", restored))
	return out.String(), nil
}
