package idempotency

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Token minting helpers for clients of the service. The server never cares
// which strategy produced a token, only that it matches the accepted format;
// these exist so callers and tests do not each invent their own.

// RandomToken returns a fresh random token.
func RandomToken() string {
	return uuid.NewString()
}

// ContentToken derives a stable token from the request payload, so retrying
// the identical payload reuses the same token without client-side state.
func ContentToken(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:16])
}

// TimestampToken combines a millisecond timestamp with random bytes, keeping
// tokens roughly sortable by creation time.
func TimestampToken() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		return RandomToken()
	}
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), hex.EncodeToString(b[:]))
}
