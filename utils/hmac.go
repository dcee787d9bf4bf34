package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// ComputeHMACSHA256 computes an HMAC-SHA256 signature over the exact byte
// sequence given and returns it hex-encoded.
//
// Webhook deliveries sign the serialized payload bytes that go on the wire,
// so callers must pass the same buffer they transmit.
//
// Returns hex-encoded signature (64 characters)
func ComputeHMACSHA256(secretKey string, message []byte) string {
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write(message)
	return hex.EncodeToString(h.Sum(nil))
}

// SecureCompare performs constant-time string comparison to prevent timing attacks.
// This MUST be used when comparing signatures.
//
// Returns true if both strings are equal, false otherwise.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
