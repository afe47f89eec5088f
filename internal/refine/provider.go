// Package refine implements the optional AI collaborators around the core
// engine: a detection refinement pass that supplements baseline detector
// output with additional candidate spans, and polish passes (proofread,
// rewrite, summarize) that operate behind the token freeze/thaw contract.
//
// Everything in this package is best-effort. A provider failure, timeout, or
// malformed response degrades to the baseline spans or the unmodified text;
// it never aborts the caller's run.
package refine

import (
	"context"
	"time"
)

// DefaultCallTimeout bounds a single provider call.
const DefaultCallTimeout = 30 * time.Second

// Provider is a text-completion backend for refinement and polish prompts.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai").
	Name() string
	// Complete sends a prompt and returns the raw completion text.
	Complete(ctx context.Context, prompt string) (string, error)
}
