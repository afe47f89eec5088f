package refine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/MathFreedom/SafeMask/internal/anonymize"
)

// Polish passes run behind the token freeze/thaw contract: the provider only
// ever sees opaque positional placeholders where tokens stand, and the exact
// token text is restored afterwards regardless of what the provider returned
// elsewhere in the text.

// Proofread asks the provider for a grammar-corrected version of text.
// On any failure the input is returned unchanged.
func (r *Refiner) Proofread(ctx context.Context, text string) string {
	return r.polish(ctx, text,
		"Correct the grammar and spelling of the following text. Preserve the placeholders of the form ⟦Tn⟧ exactly as they appear. Return only the corrected text, no commentary.")
}

// Rewrite asks the provider for a clarity-improved version of text.
// On any failure the input is returned unchanged.
func (r *Refiner) Rewrite(ctx context.Context, text string) string {
	return r.polish(ctx, text,
		"Improve the clarity and fluency of the following text without changing its meaning. Preserve the placeholders of the form ⟦Tn⟧ exactly as they appear. Return only the rewritten text, no commentary.")
}

func (r *Refiner) polish(ctx context.Context, text, instruction string) string {
	frozen, tokens := anonymize.FreezeTokens(text)

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.provider.Complete(callCtx, fmt.Sprintf("%s\n\nTEXT:\n%s", instruction, frozen))
	if err != nil || strings.TrimSpace(out) == "" {
		log.Debug().Err(err).Msg("polish pass failed, returning text unmodified")
		return text
	}
	return anonymize.ThawTokens(out, tokens)
}

// Summarize produces a brief key-point summary of text, or an empty string
// when the provider is unavailable or fails.
func (r *Refiner) Summarize(ctx context.Context, text string) string {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.provider.Complete(callCtx,
		fmt.Sprintf("Summarize the following text as a few short key points. Return only the summary.\n\nTEXT:\n%s", text))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}
