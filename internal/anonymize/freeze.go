package anonymize

import (
	"regexp"
	"strconv"
)

// Polish collaborators (grammar or rewrite passes) must never see or alter
// issued tokens. FreezeTokens swaps every token for an opaque positional
// placeholder before the text is handed out; ThawTokens restores the exact
// token text afterwards regardless of what the collaborator did elsewhere.

var placeholderPattern = regexp.MustCompile(`⟦T(\d+)⟧`)

// FreezeTokens replaces each token occurrence with ⟦Tn⟧ and returns the
// frozen text plus the token list indexed by n.
func FreezeTokens(text string) (frozen string, tokens []string) {
	frozen = tokenPattern.ReplaceAllStringFunc(text, func(t string) string {
		tokens = append(tokens, t)
		return "⟦T" + strconv.Itoa(len(tokens)-1) + "⟧"
	})
	return frozen, tokens
}

// ThawTokens reverses FreezeTokens. Placeholders with out-of-range indices
// are left as-is.
func ThawTokens(text string, tokens []string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(p string) string {
		m := placeholderPattern.FindStringSubmatch(p)
		i, err := strconv.Atoi(m[1])
		if err != nil || i < 0 || i >= len(tokens) {
			return p
		}
		return tokens[i]
	})
}
