package testutil

import (
	"path/filepath"
	"testing"

	"github.com/MathFreedom/SafeMask/internal/vault"
)

// NewTestVault creates a vault in a temp dir and registers t.Cleanup to close
// it. Key material is generated fresh per test.
func NewTestVault(t *testing.T, opts ...vault.Option) *vault.Vault {
	t.Helper()
	dir := t.TempDir()
	v, err := vault.Open(filepath.Join(dir, "vault.db"), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { v.Close() })
	return v
}
