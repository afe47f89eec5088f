package vault

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MathFreedom/SafeMask/internal/detect"
)

func newTestVault(t *testing.T, opts ...Option) *Vault {
	t.Helper()
	v, err := Open(filepath.Join(t.TempDir(), "vault.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })
	return v
}

func TestDeriveTokenFormat(t *testing.T) {
	v := newTestVault(t)
	token, err := v.DeriveToken(detect.Email, "jane.doe@example.com")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^EMAIL_[0-9A-F]{8}$`), token)
}

func TestDeriveTokenDeterministic(t *testing.T) {
	v := newTestVault(t)

	t1, err := v.DeriveToken(detect.Email, "jane.doe@example.com")
	require.NoError(t, err)
	t2, err := v.DeriveToken(detect.Email, "jane.doe@example.com")
	require.NoError(t, err)
	assert.Equal(t, t1, t2)

	// Normalization: case and surrounding whitespace fold together.
	t3, err := v.DeriveToken(detect.Email, "  Jane.Doe@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, t1, t3)

	// Different value or category derives a different token.
	t4, err := v.DeriveToken(detect.Email, "john@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, t1, t4)
	t5, err := v.DeriveToken(detect.Other, "jane.doe@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, t1, t5)
}

func TestDeriveTokenDiffersPerInstall(t *testing.T) {
	v1 := newTestVault(t)
	v2 := newTestVault(t)
	t1, err := v1.DeriveToken(detect.Phone, "+33612345678")
	require.NoError(t, err)
	t2, err := v2.DeriveToken(detect.Phone, "+33612345678")
	require.NoError(t, err)
	assert.NotEqual(t, t1, t2, "MAC keys are install-local")
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)

	token, err := v.DeriveToken(detect.Email, "jane@example.com")
	require.NoError(t, err)
	require.NoError(t, v.Put(ctx, token, "jane@example.com"))

	got, err := v.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", got)
	assert.Equal(t, 1, v.Len())

	// Re-putting the same token is a no-op, not a failure.
	require.NoError(t, v.Put(ctx, token, "jane@example.com"))
	assert.Equal(t, 1, v.Len())
}

func TestGetUnknownToken(t *testing.T) {
	v := newTestVault(t)
	_, err := v.Get(context.Background(), "EMAIL_DEADBEEF")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vault.db")

	v, err := Open(path)
	require.NoError(t, err)
	token, err := v.DeriveToken(detect.IBAN, "GB29NWBK60161331926819")
	require.NoError(t, err)
	require.NoError(t, v.Put(ctx, token, "GB29NWBK60161331926819"))
	require.NoError(t, v.Close())

	v2, err := Open(path)
	require.NoError(t, err)
	defer v2.Close()

	got, err := v2.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "GB29NWBK60161331926819", got)

	// Same install, same MAC key: derivation is stable across reopens.
	token2, err := v2.DeriveToken(detect.IBAN, "GB29NWBK60161331926819")
	require.NoError(t, err)
	assert.Equal(t, token, token2)
}

func TestLockAndUnlock(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)

	token, err := v.DeriveToken(detect.Phone, "+33612345678")
	require.NoError(t, err)
	require.NoError(t, v.Put(ctx, token, "+33612345678"))

	v.Lock()
	assert.False(t, v.IsUnlocked())
	assert.Equal(t, 0, v.Len())

	_, err = v.Get(ctx, token)
	assert.ErrorIs(t, err, ErrLocked)
	assert.ErrorIs(t, v.Put(ctx, "PHONE_AAAAAAAA", "x"), ErrLocked)

	require.NoError(t, v.Unlock(ctx))
	assert.True(t, v.IsUnlocked())
	got, err := v.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "+33612345678", got)
}

func TestAutoLock(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, WithAutoLock(50*time.Millisecond))

	token, err := v.DeriveToken(detect.Email, "a@b.io")
	require.NoError(t, err)
	require.NoError(t, v.Put(ctx, token, "a@b.io"))
	assert.True(t, v.IsUnlocked())

	assert.Eventually(t, func() bool { return !v.IsUnlocked() }, 2*time.Second, 10*time.Millisecond)
	_, err = v.Get(ctx, token)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)

	token, err := v.DeriveToken(detect.Email, "a@b.io")
	require.NoError(t, err)
	require.NoError(t, v.Put(ctx, token, "a@b.io"))
	require.NoError(t, v.Clear(ctx))

	assert.Equal(t, 0, v.Len())
	_, err = v.Get(ctx, token)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)

	token, err := v.DeriveToken(detect.Email, "a@b.io")
	require.NoError(t, err)
	require.NoError(t, v.Put(ctx, token, "a@b.io"))

	snap, err := v.ExportSnapshot(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Enc.IV)
	assert.NotEmpty(t, snap.Enc.Data)
	assert.NotContains(t, snap.Enc.Data, "a@b.io", "export never leaks plaintext")

	require.NoError(t, v.Clear(ctx))
	assert.Equal(t, 0, v.Len())

	require.NoError(t, v.ImportSnapshot(ctx, snap))
	got, err := v.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "a@b.io", got)
}

func TestImportForeignSnapshotFails(t *testing.T) {
	ctx := context.Background()
	v1 := newTestVault(t)
	v2 := newTestVault(t)

	token, err := v1.DeriveToken(detect.Email, "a@b.io")
	require.NoError(t, err)
	require.NoError(t, v1.Put(ctx, token, "a@b.io"))
	snap, err := v1.ExportSnapshot(ctx)
	require.NoError(t, err)

	// v2 has a different encryption key: the blob must not decrypt, and the
	// failure must not be mistaken for an empty vault.
	err = v2.ImportSnapshot(ctx, snap)
	assert.ErrorIs(t, err, ErrDecryptFailed)
	assert.False(t, v2.IsUnlocked())
}

func TestImportEmptySnapshotRejected(t *testing.T) {
	v := newTestVault(t)
	err := v.ImportSnapshot(context.Background(), &Snapshot{})
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestOperatorManagedKey(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vault.db")
	key := []byte(strings.Repeat("k", 32))

	v, err := Open(path, WithEncryptionKey(key))
	require.NoError(t, err)
	token, err := v.DeriveToken(detect.Email, "a@b.io")
	require.NoError(t, err)
	require.NoError(t, v.Put(ctx, token, "a@b.io"))
	require.NoError(t, v.Close())

	// Reopening without the key must fail rather than generate a new one.
	_, err = Open(path)
	assert.ErrorIs(t, err, ErrInvalidKey)

	// With the key everything decrypts.
	v2, err := Open(path, WithEncryptionKey(key))
	require.NoError(t, err)
	defer v2.Close()
	got, err := v2.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "a@b.io", got)
}

func TestOpenRejectsShortKey(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "vault.db"), WithEncryptionKey([]byte("short")))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestAuditLog(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)

	token, err := v.DeriveToken(detect.Email, "a@b.io")
	require.NoError(t, err)
	require.NoError(t, v.Put(ctx, token, "a@b.io"))
	_, err = v.Get(ctx, token)
	require.NoError(t, err)
	_, _ = v.Get(ctx, "EMAIL_00000000")

	records, err := v.AuditLog(ctx, 0)
	require.NoError(t, err)
	require.NotEmpty(t, records)

	var ops []string
	for _, r := range records {
		ops = append(ops, r.Op)
		assert.NotContains(t, r.Token, "a@b.io", "audit stores tokens, never values")
	}
	assert.Contains(t, ops, "put")
	assert.Contains(t, ops, "reverse_lookup")

	limited, err := v.AuditLog(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
