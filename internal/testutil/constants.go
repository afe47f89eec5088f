// Package testutil provides shared test helpers and mocks for SafeMask tests.
package testutil

// TestEncryptionKey is 32 bytes of fixed AES-256 key material for tests only.
const TestEncryptionKey = "12345678901234567890123456789012"
