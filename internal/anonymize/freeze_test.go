package anonymize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreezeThawRoundTrip(t *testing.T) {
	text := "see EMAIL_AB12CD34 and PHONE_00FF00FF for details"

	frozen, tokens := FreezeTokens(text)
	assert.Equal(t, "see ⟦T0⟧ and ⟦T1⟧ for details", frozen)
	require.Equal(t, []string{"EMAIL_AB12CD34", "PHONE_00FF00FF"}, tokens)

	assert.Equal(t, text, ThawTokens(frozen, tokens))
}

func TestFreezeNoTokens(t *testing.T) {
	frozen, tokens := FreezeTokens("nothing to hide here")
	assert.Equal(t, "nothing to hide here", frozen)
	assert.Empty(t, tokens)
}

func TestFreezeRepeatedToken(t *testing.T) {
	frozen, tokens := FreezeTokens("EMAIL_AB12CD34 twice EMAIL_AB12CD34")
	assert.Equal(t, "⟦T0⟧ twice ⟦T1⟧", frozen)
	require.Len(t, tokens, 2)
	assert.Equal(t, tokens[0], tokens[1])
	assert.Equal(t, "EMAIL_AB12CD34 twice EMAIL_AB12CD34", ThawTokens(frozen, tokens))
}

func TestThawSurvivesEditsAroundPlaceholders(t *testing.T) {
	_, tokens := FreezeTokens("ping EMAIL_AB12CD34 ok")
	// A polish pass may rewrite everything except the placeholder.
	edited := "Completely rewritten: ⟦T0⟧!"
	assert.Equal(t, "Completely rewritten: EMAIL_AB12CD34!", ThawTokens(edited, tokens))
}

func TestThawOutOfRangePlaceholderKept(t *testing.T) {
	assert.Equal(t, "keep ⟦T7⟧ as-is", ThawTokens("keep ⟦T7⟧ as-is", []string{"EMAIL_AB12CD34"}))
}
