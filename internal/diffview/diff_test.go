package diffview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeRoundTrip(t *testing.T) {
	tests := []string{
		"",
		"one",
		"two words",
		"  leading and trailing  ",
		"tabs\tand\nnewlines mixed   runs",
	}
	for _, s := range tests {
		assert.Equal(t, s, strings.Join(Tokenize(s), ""), "tokens must concatenate back to the input")
	}
}

func TestTokenizeSplitsOnWhitespaceRuns(t *testing.T) {
	got := Tokenize("a  b\tc")
	assert.Equal(t, []string{"a", "  ", "b", "\t", "c"}, got)
}

func TestHTMLIdenticalTexts(t *testing.T) {
	out := HTML("same text here", "same text here")
	assert.Equal(t, "same text here", out)
	assert.NotContains(t, out, "<span")
}

func TestHTMLSubstitution(t *testing.T) {
	out := HTML("mail jane@example.com now", "mail EMAIL_AB12CD34 now")
	assert.Contains(t, out, `<span class="sm-del">jane@example.com</span>`)
	assert.Contains(t, out, `<span class="sm-ins">EMAIL_AB12CD34</span>`)
	assert.True(t, strings.HasPrefix(out, "mail "))
	assert.True(t, strings.HasSuffix(out, " now"))
}

func TestHTMLPureInsertionAndDeletion(t *testing.T) {
	out := HTML("", "new text")
	assert.Equal(t, `<span class="sm-ins">new</span><span class="sm-ins"> </span><span class="sm-ins">text</span>`, out)

	out = HTML("old text", "")
	assert.Equal(t, `<span class="sm-del">old</span><span class="sm-del"> </span><span class="sm-del">text</span>`, out)
}

func TestHTMLEscapesMarkup(t *testing.T) {
	out := HTML("<b>bold</b>", "<i>italic</i>")
	assert.NotContains(t, out, "<b>")
	assert.NotContains(t, out, "<i>")
	assert.Contains(t, out, "&lt;b&gt;bold&lt;/b&gt;")
	assert.Contains(t, out, "&lt;i&gt;italic&lt;/i&gt;")
}

// reconstruct strips the annotation spans from a diff, keeping unchanged
// text plus the content of keepClass spans only.
func reconstruct(t *testing.T, htmlOut, dropClass, keepClass string) string {
	t.Helper()
	var b strings.Builder
	rest := htmlOut
	for {
		i := strings.Index(rest, `<span class="`)
		if i < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:i])
		rest = rest[i+len(`<span class="`):]
		j := strings.Index(rest, `">`)
		require.GreaterOrEqual(t, j, 0)
		class := rest[:j]
		rest = rest[j+2:]
		k := strings.Index(rest, `</span>`)
		require.GreaterOrEqual(t, k, 0)
		if class == keepClass && class != dropClass {
			b.WriteString(rest[:k])
		}
		rest = rest[k+len(`</span>`):]
	}
	return b.String()
}

func TestHTMLReconstructsBothSides(t *testing.T) {
	original := "Contact jane@example.com or +1 415-555-0100 today"
	transformed := "Contact EMAIL_AB12CD34 or PHONE_00FF00FF today"
	out := HTML(original, transformed)

	// Unchanged tokens plus sm-del spans reproduce the original; unchanged
	// plus sm-ins reproduce the transformed text (modulo HTML escaping,
	// absent from these inputs).
	assert.Equal(t, original, reconstruct(t, out, "sm-ins", "sm-del"))
	assert.Equal(t, transformed, reconstruct(t, out, "sm-del", "sm-ins"))
}
