package anonymize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MathFreedom/SafeMask/internal/detect"
)

func TestParseMode(t *testing.T) {
	for _, s := range []string{"ignore", "redact", "pseudo"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, Mode(s), m)
	}
	_, err := ParseMode("shred")
	assert.Error(t, err)
	_, err = ParseMode("")
	assert.Error(t, err)
}

func TestNewPolicyDefaultsToIgnore(t *testing.T) {
	p, err := NewPolicy(map[detect.Category]Mode{detect.Email: ModePseudo})
	require.NoError(t, err)
	assert.Equal(t, ModePseudo, p.ModeFor(detect.Email))
	for _, c := range detect.Categories() {
		if c == detect.Email {
			continue
		}
		assert.Equal(t, ModeIgnore, p.ModeFor(c), "unlisted category %s must default to ignore", c)
	}
}

func TestNewPolicyRejectsUnknownCategory(t *testing.T) {
	_, err := NewPolicy(map[detect.Category]Mode{"SSN": ModeRedact})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")
}

func TestNewPolicyRejectsUnknownMode(t *testing.T) {
	_, err := NewPolicy(map[detect.Category]Mode{detect.Email: "shred"})
	assert.Error(t, err)
}

func TestUniformPolicy(t *testing.T) {
	p := UniformPolicy(ModeRedact)
	for _, c := range detect.Categories() {
		assert.Equal(t, ModeRedact, p.ModeFor(c))
	}
}

func TestModeForUnknownCategory(t *testing.T) {
	p := UniformPolicy(ModePseudo)
	assert.Equal(t, ModeIgnore, p.ModeFor(detect.Category("NOPE")))
}

func TestParsePolicyYAML(t *testing.T) {
	p, err := ParsePolicy([]byte(`
modes:
  EMAIL: pseudo
  PHONE: redact
`))
	require.NoError(t, err)
	assert.Equal(t, ModePseudo, p.ModeFor(detect.Email))
	assert.Equal(t, ModeRedact, p.ModeFor(detect.Phone))
	assert.Equal(t, ModeIgnore, p.ModeFor(detect.IBAN))

	_, err = ParsePolicy([]byte(`modes: {EMAIL: shred}`))
	assert.Error(t, err)

	_, err = ParsePolicy([]byte(`modes: [broken`))
	assert.Error(t, err)
}

func TestLoadPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("modes:\n  EMAIL: redact\n"), 0o600))

	p, err := LoadPolicyFile(path)
	require.NoError(t, err)
	assert.Equal(t, ModeRedact, p.ModeFor(detect.Email))

	_, err = LoadPolicyFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestRedactMask(t *testing.T) {
	assert.Equal(t, "***@***.***", redactMask(detect.Email, "jane@example.com"))
	assert.Equal(t, "[REDACTED:EMAIL]", redactMask(detect.Email, "not-an-email"))
	assert.Equal(t, "[REDACTED:NAME]", redactMask(detect.FullName, "Jane Doe"))
	assert.Equal(t, "[REDACTED:ORG]", redactMask(detect.Organization, "Acme Corp"))
	assert.Equal(t, "[REDACTED]", redactMask(detect.Other, "deadbeef"))
	assert.Equal(t, "[REDACTED:IBAN]", redactMask(detect.IBAN, "GB29NWBK60161331926819"))
	assert.Equal(t, "[REDACTED]", redactMask(detect.Category("NOPE"), "x"))
}
