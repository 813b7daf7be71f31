package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"
)

// FlagDigest returns the SHA-256 digest of a flag with surrounding whitespace removed.
func FlagDigest(flag string) []byte {
	sum := sha256.Sum256([]byte(strings.TrimSpace(flag)))
	return sum[:]
}

// MatchFlag compares a submitted flag to a stored digest in constant time.
func MatchFlag(flag string, digest []byte) bool {
	return subtle.ConstantTimeCompare(FlagDigest(flag), digest) == 1
}
