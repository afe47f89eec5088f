// Package vault implements the reversible-pseudonymization token vault.
//
// Tokens are derived deterministically from (category, normalized value) with
// HMAC-SHA-256 under an install-local MAC key, so the same value always maps
// to the same token across runs. The token → original-value map is encrypted
// at rest with AES-256-GCM and stored in SQLite as a single versioned blob;
// the plaintext map exists only in memory. Every put and reverse lookup is
// recorded in an audit table.
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MathFreedom/SafeMask/internal/detect"
	smotel "github.com/MathFreedom/SafeMask/internal/otel"
)

var (
	// ErrNotInitialized is returned when key material or the decrypted map
	// is not ready. Callers must not proceed against an uninitialized vault.
	ErrNotInitialized = errors.New("vault not initialized")
	// ErrLocked is returned for map access while the vault is locked.
	ErrLocked = errors.New("vault locked")
	// ErrDecryptFailed is returned when the persisted blob cannot be
	// decrypted with the local key (corrupted or foreign-keyed data).
	// Undecryptable data is never treated as an empty map.
	ErrDecryptFailed = errors.New("vault blob decryption failed")
	// ErrTokenNotFound is returned by Get for unknown tokens.
	ErrTokenNotFound = errors.New("token not found in vault")
	// ErrInvalidKey is returned when an operator-supplied encryption key is
	// not exactly 32 bytes, or when a vault created with an operator-managed
	// key is opened without one.
	ErrInvalidKey = errors.New("invalid vault encryption key")
)

var tracer = smotel.Tracer("github.com/MathFreedom/SafeMask/internal/vault")

// snapshotVersion is the on-disk blob format version.
const snapshotVersion = 2

// Snapshot is the opaque interchange format for vault export/import. The
// ciphertext is useless without the local confidentiality key; no plaintext
// ever leaves the vault through this path.
type Snapshot struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Enc       EncBlob   `json:"enc"`
}

// EncBlob is the AES-GCM envelope: base64 nonce and ciphertext.
type EncBlob struct {
	IV   string `json:"iv"`
	Data string `json:"data"`
}

// AccessRecord is a single vault audit entry.
type AccessRecord struct {
	ID        string    `json:"id"`
	Op        string    `json:"op"`
	Token     string    `json:"token"`
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// tokenMap is the JSON shape of the decrypted blob.
type tokenMap struct {
	Tokens map[string]string `json:"tokens"`
}

// Vault owns its key material and decrypted map. Construct one per process
// with Open and pass it by reference; there is no ambient global.
type Vault struct {
	db  *sql.DB
	gcm cipher.AEAD

	mu        sync.Mutex
	macKey    []byte
	tokens    map[string]string // nil while locked or uninitialized
	locked    bool
	autoLock  time.Duration
	lockTimer *time.Timer
}

// Option configures a Vault at Open time.
type Option func(*openConfig)

type openConfig struct {
	encryptionKey []byte
	autoLock      time.Duration
}

// WithEncryptionKey supplies an operator-managed 32-byte AES key instead of
// the generated install-local one. A vault created this way must always be
// opened with the same key.
func WithEncryptionKey(key []byte) Option {
	return func(c *openConfig) { c.encryptionKey = key }
}

// WithAutoLock arms an inactivity timer: after d without any vault touch the
// decrypted map is cleared and access fails with ErrLocked until Unlock.
// Zero disables auto-lock.
func WithAutoLock(d time.Duration) Option {
	return func(c *openConfig) { c.autoLock = d }
}

const schema = `
CREATE TABLE IF NOT EXISTS vault_keys (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	aes_key TEXT NOT NULL,
	mac_key TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS vault_blob (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	version INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	iv TEXT NOT NULL,
	ciphertext TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS vault_audit (
	id TEXT PRIMARY KEY,
	op TEXT NOT NULL,
	token TEXT NOT NULL,
	allowed BOOLEAN NOT NULL,
	reason TEXT,
	timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_vault_audit_token ON vault_audit(token);
CREATE INDEX IF NOT EXISTS idx_vault_audit_timestamp ON vault_audit(timestamp);
`

// Open creates or loads a vault at dbPath. Key material is generated on
// first use and persisted; the encrypted map is decrypted into memory.
func Open(dbPath string, opts ...Option) (*Vault, error) {
	var cfg openConfig
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.encryptionKey != nil && len(cfg.encryptionKey) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes (got %d): %w", len(cfg.encryptionKey), ErrInvalidKey)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening vault database: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vault schema: %w", err)
	}

	v := &Vault{db: db, autoLock: cfg.autoLock}

	aesKey, err := v.ensureKeys(cfg.encryptionKey)
	if err != nil {
		db.Close()
		return nil, err
	}

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	v.gcm, err = cipher.NewGCM(block)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	if err := v.loadOrInitMap(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return v, nil
}

// ensureKeys loads or generates the AES and MAC keys. When operatorKey is
// non-nil it replaces the stored AES key and the row records that the AES
// key is operator-managed.
func (v *Vault) ensureKeys(operatorKey []byte) (aesKey []byte, err error) {
	var aesB64, macB64 string
	row := v.db.QueryRow(`SELECT aes_key, mac_key FROM vault_keys WHERE id = 1`)
	scanErr := row.Scan(&aesB64, &macB64)

	switch {
	case scanErr == sql.ErrNoRows:
		macKey := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, macKey); err != nil {
			return nil, fmt.Errorf("generating MAC key: %w", err)
		}
		storedAES := ""
		if operatorKey != nil {
			aesKey = operatorKey
		} else {
			aesKey = make([]byte, 32)
			if _, err := io.ReadFull(rand.Reader, aesKey); err != nil {
				return nil, fmt.Errorf("generating encryption key: %w", err)
			}
			storedAES = base64.StdEncoding.EncodeToString(aesKey)
		}
		_, err = v.db.Exec(`INSERT INTO vault_keys (id, aes_key, mac_key, created_at) VALUES (1, ?, ?, ?)`,
			storedAES, base64.StdEncoding.EncodeToString(macKey), time.Now())
		if err != nil {
			return nil, fmt.Errorf("persisting key material: %w", err)
		}
		v.macKey = macKey
		return aesKey, nil

	case scanErr != nil:
		return nil, fmt.Errorf("loading key material: %w", scanErr)
	}

	macKey, err := base64.StdEncoding.DecodeString(macB64)
	if err != nil || len(macKey) != 32 {
		return nil, fmt.Errorf("stored MAC key corrupted: %w", ErrNotInitialized)
	}
	v.macKey = macKey

	if operatorKey != nil {
		return operatorKey, nil
	}
	if aesB64 == "" {
		return nil, fmt.Errorf("vault uses an operator-managed key, none supplied: %w", ErrInvalidKey)
	}
	aesKey, err = base64.StdEncoding.DecodeString(aesB64)
	if err != nil || len(aesKey) != 32 {
		return nil, fmt.Errorf("stored encryption key corrupted: %w", ErrInvalidKey)
	}
	return aesKey, nil
}

// loadOrInitMap decrypts the persisted blob into memory, creating and
// persisting an empty map when no blob exists yet.
func (v *Vault) loadOrInitMap(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	var iv, ct string
	row := v.db.QueryRowContext(ctx, `SELECT iv, ciphertext FROM vault_blob WHERE id = 1`)
	err := row.Scan(&iv, &ct)
	if err == sql.ErrNoRows {
		now := time.Now()
		if _, err := v.db.ExecContext(ctx,
			`INSERT INTO vault_blob (id, version, created_at, updated_at, iv, ciphertext) VALUES (1, ?, ?, ?, '', '')`,
			snapshotVersion, now, now); err != nil {
			return fmt.Errorf("initializing vault blob: %w", err)
		}
		v.tokens = make(map[string]string)
		return v.persistLocked(ctx)
	}
	if err != nil {
		return fmt.Errorf("loading vault blob: %w", err)
	}

	if iv == "" || ct == "" {
		v.tokens = make(map[string]string)
		return v.persistLocked(ctx)
	}

	m, err := v.decrypt(iv, ct)
	if err != nil {
		return err
	}
	v.tokens = m
	v.locked = false
	v.touchLocked()
	return nil
}

func (v *Vault) decrypt(ivB64, ctB64 string) (map[string]string, error) {
	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil {
		return nil, fmt.Errorf("decoding nonce: %w", ErrDecryptFailed)
	}
	ct, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil {
		return nil, fmt.Errorf("decoding ciphertext: %w", ErrDecryptFailed)
	}
	if len(iv) != v.gcm.NonceSize() {
		return nil, fmt.Errorf("nonce length %d: %w", len(iv), ErrDecryptFailed)
	}
	plaintext, err := v.gcm.Open(nil, iv, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("opening vault blob: %w", ErrDecryptFailed)
	}
	var m tokenMap
	if err := json.Unmarshal(plaintext, &m); err != nil {
		return nil, fmt.Errorf("decoding vault map: %w", ErrDecryptFailed)
	}
	if m.Tokens == nil {
		m.Tokens = make(map[string]string)
	}
	return m.Tokens, nil
}

// persistLocked re-encrypts the entire map under a freshly drawn nonce and
// writes it back. Callers must hold v.mu: the map plus this write form the
// critical section that prevents lost updates between concurrent puts.
func (v *Vault) persistLocked(ctx context.Context) error {
	if v.gcm == nil {
		return ErrNotInitialized
	}
	plaintext, err := json.Marshal(tokenMap{Tokens: v.tokens})
	if err != nil {
		return fmt.Errorf("encoding vault map: %w", err)
	}
	nonce := make([]byte, v.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}
	ct := v.gcm.Seal(nil, nonce, plaintext, nil)

	_, err = v.db.ExecContext(ctx,
		`UPDATE vault_blob SET version = ?, updated_at = ?, iv = ?, ciphertext = ? WHERE id = 1`,
		snapshotVersion, time.Now(),
		base64.StdEncoding.EncodeToString(nonce),
		base64.StdEncoding.EncodeToString(ct))
	if err != nil {
		return fmt.Errorf("persisting vault blob: %w", err)
	}
	return nil
}

// DeriveToken computes the deterministic token for (category, value):
// HMAC-SHA-256 over "<CATEGORY>|<trimmed lowercased value>" with the MAC key,
// truncated to the first 8 hex characters, uppercased. The 32-bit truncation
// bounds collision probability per category; it is not a global uniqueness
// guarantee.
func (v *Vault) DeriveToken(category detect.Category, value string) (string, error) {
	v.mu.Lock()
	macKey := v.macKey
	v.mu.Unlock()
	if macKey == nil {
		return "", ErrNotInitialized
	}

	norm := string(category) + "|" + strings.ToLower(strings.TrimSpace(value))
	mac := hmac.New(sha256.New, macKey)
	mac.Write([]byte(norm))
	digest := hex.EncodeToString(mac.Sum(nil))
	return string(category) + "_" + strings.ToUpper(digest[:8]), nil
}

// Put records token → original, insert-if-absent (re-deriving the same token
// for the same value simply reuses the entry), then re-encrypts and persists
// the whole map under a fresh nonce.
func (v *Vault) Put(ctx context.Context, token, original string) error {
	ctx, span := tracer.Start(ctx, "vault.put",
		trace.WithAttributes(attribute.String("vault.token", token)))
	defer span.End()

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.readyLocked(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		v.logAccess(ctx, "put", token, false, err.Error())
		return err
	}

	if _, exists := v.tokens[token]; !exists {
		v.tokens[token] = original
		if err := v.persistLocked(ctx); err != nil {
			span.RecordError(err)
			delete(v.tokens, token)
			return err
		}
	}
	v.touchLocked()
	v.logAccess(ctx, "put", token, true, "")
	return nil
}

// Get returns the original value for a previously issued token.
func (v *Vault) Get(ctx context.Context, token string) (string, error) {
	ctx, span := tracer.Start(ctx, "vault.get",
		trace.WithAttributes(attribute.String("vault.token", token)))
	defer span.End()

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.readyLocked(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		v.logAccess(ctx, "reverse_lookup", token, false, err.Error())
		return "", err
	}

	original, ok := v.tokens[token]
	v.touchLocked()
	if !ok {
		v.logAccess(ctx, "reverse_lookup", token, false, "token not found")
		return "", ErrTokenNotFound
	}
	v.logAccess(ctx, "reverse_lookup", token, true, "")
	return original, nil
}

// Len returns the number of stored token mappings (0 when locked).
func (v *Vault) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.tokens)
}

// IsUnlocked reports whether the decrypted map is resident in memory.
func (v *Vault) IsUnlocked() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tokens != nil && !v.locked
}

// Lock clears the decrypted map from memory. Subsequent Put/Get fail with
// ErrLocked until Unlock re-decrypts the persisted blob.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens = nil
	v.locked = true
	if v.lockTimer != nil {
		v.lockTimer.Stop()
		v.lockTimer = nil
	}
}

// Unlock re-decrypts the persisted blob into memory.
func (v *Vault) Unlock(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	var iv, ct string
	row := v.db.QueryRowContext(ctx, `SELECT iv, ciphertext FROM vault_blob WHERE id = 1`)
	if err := row.Scan(&iv, &ct); err != nil {
		return fmt.Errorf("loading vault blob: %w", err)
	}
	if iv == "" || ct == "" {
		v.tokens = make(map[string]string)
		v.locked = false
		return nil
	}
	m, err := v.decrypt(iv, ct)
	if err != nil {
		return err
	}
	v.tokens = m
	v.locked = false
	v.touchLocked()
	return nil
}

// Clear resets the map to empty and persists.
func (v *Vault) Clear(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "vault.clear")
	defer span.End()

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.readyLocked(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	v.tokens = make(map[string]string)
	if err := v.persistLocked(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	v.logAccess(ctx, "clear", "", true, "")
	return nil
}

// ExportSnapshot returns the current encrypted blob as-is plus public
// metadata. The map is never decrypted for export.
func (v *Vault) ExportSnapshot(ctx context.Context) (*Snapshot, error) {
	ctx, span := tracer.Start(ctx, "vault.export")
	defer span.End()

	var snap Snapshot
	row := v.db.QueryRowContext(ctx,
		`SELECT version, created_at, updated_at, iv, ciphertext FROM vault_blob WHERE id = 1`)
	if err := row.Scan(&snap.Version, &snap.CreatedAt, &snap.UpdatedAt, &snap.Enc.IV, &snap.Enc.Data); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotInitialized
		}
		span.RecordError(err)
		return nil, fmt.Errorf("reading vault blob: %w", err)
	}
	return &snap, nil
}

// ImportSnapshot wholesale-replaces the local encrypted blob and invalidates
// the decrypted map, then re-decrypts with the LOCAL key. A blob encrypted
// under a different key fails with ErrDecryptFailed and leaves the vault
// locked rather than silently corrupting state.
func (v *Vault) ImportSnapshot(ctx context.Context, snap *Snapshot) error {
	ctx, span := tracer.Start(ctx, "vault.import")
	defer span.End()

	if snap == nil || snap.Enc.IV == "" || snap.Enc.Data == "" {
		return fmt.Errorf("snapshot missing encrypted payload: %w", ErrDecryptFailed)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	created := snap.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := v.db.ExecContext(ctx,
		`INSERT INTO vault_blob (id, version, created_at, updated_at, iv, ciphertext) VALUES (1, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET version = excluded.version, created_at = excluded.created_at,
		 updated_at = excluded.updated_at, iv = excluded.iv, ciphertext = excluded.ciphertext`,
		snap.Version, created, time.Now(), snap.Enc.IV, snap.Enc.Data)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("replacing vault blob: %w", err)
	}

	v.tokens = nil
	m, err := v.decrypt(snap.Enc.IV, snap.Enc.Data)
	if err != nil {
		v.locked = true
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	v.tokens = m
	v.locked = false
	v.logAccess(ctx, "import", "", true, "")
	return nil
}

// readyLocked verifies the decrypted map is available. Callers hold v.mu.
func (v *Vault) readyLocked() error {
	if v.locked {
		return ErrLocked
	}
	if v.tokens == nil || v.gcm == nil {
		return ErrNotInitialized
	}
	return nil
}

// touchLocked rearms the inactivity auto-lock timer. Callers hold v.mu.
func (v *Vault) touchLocked() {
	if v.autoLock <= 0 {
		return
	}
	if v.lockTimer != nil {
		v.lockTimer.Stop()
	}
	v.lockTimer = time.AfterFunc(v.autoLock, v.Lock)
}

// logAccess records vault operations for review. Only tokens are logged,
// never original values.
func (v *Vault) logAccess(ctx context.Context, op, token string, allowed bool, reason string) {
	_, _ = v.db.ExecContext(ctx,
		`INSERT INTO vault_audit (id, op, token, allowed, reason, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), op, token, allowed, reason, time.Now())
}

// AuditLog returns the most recent access records. Limit <= 0 means no limit.
func (v *Vault) AuditLog(ctx context.Context, limit int) ([]AccessRecord, error) {
	query := `SELECT id, op, token, allowed, reason, timestamp FROM vault_audit ORDER BY timestamp DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := v.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vault audit log: %w", err)
	}
	defer rows.Close()

	var records []AccessRecord
	for rows.Next() {
		var r AccessRecord
		var reason sql.NullString
		if err := rows.Scan(&r.ID, &r.Op, &r.Token, &r.Allowed, &reason, &r.Timestamp); err != nil {
			continue
		}
		r.Reason = reason.String
		records = append(records, r)
	}
	return records, nil
}

// Close releases the database connection.
func (v *Vault) Close() error {
	v.mu.Lock()
	if v.lockTimer != nil {
		v.lockTimer.Stop()
		v.lockTimer = nil
	}
	v.mu.Unlock()
	return v.db.Close()
}
