package refine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/MathFreedom/SafeMask/internal/detect"
	smotel "github.com/MathFreedom/SafeMask/internal/otel"
)

var tracer = smotel.Tracer("github.com/MathFreedom/SafeMask/internal/refine")

// DefaultChunkSize is the per-prompt text window in bytes.
const DefaultChunkSize = 6000

// categoryHints steer the per-category detection prompts.
var categoryHints = map[detect.Category]struct {
	label string
	hint  string
}{
	detect.APIKey:       {"API Key", "OpenAI sk-..., GitHub PAT, GitLab, Slack xox*, Google API AIza..., AWS AKIA/ASIA..., Stripe sk_live_, SendGrid SG., etc. Prefer known prefixes; be conservative."},
	detect.Token:        {"Token", "Bearer tokens, JWT (three Base64url segments), generic opaque secrets."},
	detect.CreditCard:   {"Credit Card", "13-19 digits; must pass Luhn."},
	detect.IBAN:         {"IBAN", "International bank account number; country code + check digits + BBAN, mod 97 = 1."},
	detect.RIB:          {"RIB", "France-specific RIB (bank code, branch code, account, key). Only detect if present."},
	detect.BIC:          {"BIC/SWIFT", "8 or 11 chars: 4 bank, 2 country, 2 location, optional 3 branch."},
	detect.VAT:          {"VAT Number", "International VAT/TIN with country code prefixes (EU formats like DE, IT, NL, etc.). Prefer valid country-specific structures where possible."},
	detect.SIREN:        {"SIREN", "France-specific: 9 digits, Luhn."},
	detect.SIRET:        {"SIRET", "France-specific: 14 digits, Luhn."},
	detect.Email:        {"Email", "user@domain.tld; typical email formats."},
	detect.Phone:        {"Phone", "International (E.164-friendly) numbers; 9-15 digits; context-aware separators."},
	detect.Address:      {"Address", "International addresses; common street types (Street/St., Avenue/Ave., Blvd., Road/Rd., Rua, Via, Calle, Strasse, etc.)."},
	detect.Organization: {"Organization", "Company or organisation names or departments. Depending on the context, it may be a person or a company."},
	detect.FullName:     {"Full Name", "Likely human first + last names based on context; avoid organizations."},
	detect.Other:        {"Other", "Other secrets like long hex/base64 keys that resemble credentials or tokens."},
}

// Refiner runs per-category, per-chunk detection prompts against a Provider
// and merges the results with baseline spans. The baseline is never
// discarded, only supplemented.
type Refiner struct {
	provider  Provider
	limiter   *rate.Limiter
	chunkSize int
	timeout   time.Duration
}

// RefinerOption configures a Refiner.
type RefinerOption func(*Refiner)

// WithChunkSize overrides the per-prompt text window.
func WithChunkSize(n int) RefinerOption {
	return func(r *Refiner) { r.chunkSize = n }
}

// WithCallTimeout bounds each individual provider call.
func WithCallTimeout(d time.Duration) RefinerOption {
	return func(r *Refiner) { r.timeout = d }
}

// WithRateLimit caps provider calls per minute (token bucket).
func WithRateLimit(rpm int) RefinerOption {
	return func(r *Refiner) {
		if rpm > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm)
		}
	}
}

// NewRefiner creates a refiner over the given provider.
func NewRefiner(provider Provider, opts ...RefinerOption) *Refiner {
	r := &Refiner{
		provider:  provider,
		chunkSize: DefaultChunkSize,
		timeout:   DefaultCallTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

type chunk struct {
	start int
	text  string
}

func chunkText(text string, maxLen int) []chunk {
	var chunks []chunk
	for i := 0; i < len(text); i += maxLen {
		end := i + maxLen
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, chunk{start: i, text: text[i:end]})
	}
	return chunks
}

// Refine queries the provider once per category per chunk, each call bounded
// by its own timeout, categories running concurrently. Any failure on one
// category/chunk is logged and skipped; the remaining results are merged with
// the baseline, deduplicated by (type, start, end), and overlap-resolved.
// The error return is reserved for a canceled parent context.
func (r *Refiner) Refine(ctx context.Context, text string, baseline []detect.Span) ([]detect.Span, error) {
	ctx, span := tracer.Start(ctx, "refine.detections")
	defer span.End()

	chunks := chunkText(text, r.chunkSize)

	var mu sync.Mutex
	var found []detect.Span
	var wg sync.WaitGroup

	for _, cat := range detect.Categories() {
		spec, ok := categoryHints[cat]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(cat detect.Category, label, hint string) {
			defer wg.Done()
			for _, ch := range chunks {
				items, err := r.detectCategory(ctx, cat, label, hint, ch)
				if err != nil {
					log.Debug().Err(err).Str("category", string(cat)).
						Msg("refinement call failed, keeping baseline for this chunk")
					continue
				}
				mu.Lock()
				found = append(found, items...)
				mu.Unlock()
			}
		}(cat, spec.label, spec.hint)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil && len(found) == 0 {
		// Parent canceled before any result: baseline is still usable.
		span.RecordError(err)
		return baseline, nil
	}

	merged := dedupe(append(found, baseline...))
	resolved := detect.Resolve(merged)

	span.SetAttributes(
		attribute.Int("refine.supplemental_count", len(found)),
		attribute.Int("refine.resolved_count", len(resolved)),
	)
	return resolved, nil
}

func (r *Refiner) detectCategory(ctx context.Context, cat detect.Category, label, hint string, ch chunk) ([]detect.Span, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.provider.Complete(callCtx, detectionPrompt(label, hint, ch.text))
	if err != nil {
		return nil, err
	}

	resp := parseMatches(out)
	if resp == nil {
		// Malformed output means "no additional spans", never an error.
		return nil, nil
	}

	var items []detect.Span
	for _, m := range resp.Matches {
		s, ok := anchorMatch(ch, m)
		if !ok {
			continue
		}
		s.Type = cat
		items = append(items, s)
	}
	return items, nil
}

func detectionPrompt(label, hint, text string) string {
	return fmt.Sprintf(`You are an information security detector. Identify all occurrences of %s.
Return ONLY strict JSON with the following shape:
{
  "matches": [ { "start": number, "end": number, "value": string } ]
}
Rules:
- Indices are byte offsets on the exact provided text.
- %s
- Avoid overlaps within this category; keep the longest/most precise span.
- Be conservative; minimize false positives.
- Do not include any commentary or code fences.

TEXT:
%s`, label, hint, text)
}

// refineResponse is the expected JSON shape of a detection completion.
type refineResponse struct {
	Matches []rawMatch `json:"matches"`
}

type rawMatch struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Value string `json:"value"`
}

// parseMatches salvages JSON from a completion: first the whole string, then
// the substring between the first '{' and the last '}'. Returns nil when no
// parse succeeds.
func parseMatches(s string) *refineResponse {
	var resp refineResponse
	if err := json.Unmarshal([]byte(s), &resp); err == nil {
		return &resp
	}
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first >= 0 && last > first {
		if err := json.Unmarshal([]byte(s[first:last+1]), &resp); err == nil {
			return &resp
		}
	}
	return nil
}

// anchorMatch translates a chunk-local match to absolute offsets. When the
// reported offsets do not line up with the value, the value is re-anchored by
// search; matches that cannot be anchored are dropped.
func anchorMatch(ch chunk, m rawMatch) (detect.Span, bool) {
	if m.Value == "" || m.End <= m.Start {
		return detect.Span{}, false
	}
	if m.Start >= 0 && m.End <= len(ch.text) && ch.text[m.Start:m.End] == m.Value {
		return detect.Span{Start: ch.start + m.Start, End: ch.start + m.End, Value: m.Value}, true
	}
	if idx := strings.Index(ch.text, m.Value); idx >= 0 {
		return detect.Span{Start: ch.start + idx, End: ch.start + idx + len(m.Value), Value: m.Value}, true
	}
	return detect.Span{}, false
}

// dedupe drops exact (type, start, end) duplicates, keeping first occurrence.
func dedupe(spans []detect.Span) []detect.Span {
	seen := make(map[string]bool, len(spans))
	out := spans[:0:0]
	for _, s := range spans {
		key := fmt.Sprintf("%s:%d:%d", s.Type, s.Start, s.End)
		if !seen[key] {
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}
