// Package tokens generates, compares and redacts gateway access tokens.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"strings"
)

const (
	// Prefix marks tokens minted by Generate
	Prefix = "clawlink_v1_"

	entropyBytes  = 16
	checksumBytes = 2

	displayChars = 12
)

// Generate returns a new token: Prefix + base58(128 random bits + 16-bit checksum)
func Generate() (string, error) {
	entropy := make([]byte, entropyBytes)
	if _, err := rand.Read(entropy); err != nil {
		return "", fmt.Errorf("failed to read random entropy: %w", err)
	}
	return fromEntropy(entropy), nil
}

func fromEntropy(entropy []byte) string {
	data := append(append([]byte{}, entropy...), checksum(entropy)...)
	return Prefix + encodeBase58(data)
}

// WellFormed reports whether token carries Prefix and an intact checksum.
// Gateways accept any non-empty token; this only catches copy/paste damage
// in tokens minted by Generate.
func WellFormed(token string) bool {
	suffix, ok := strings.CutPrefix(token, Prefix)
	if !ok || suffix == "" {
		return false
	}
	data, err := decodeBase58(suffix)
	if err != nil || len(data) != entropyBytes+checksumBytes {
		return false
	}
	return subtle.ConstantTimeCompare(data[entropyBytes:], checksum(data[:entropyBytes])) == 1
}

// Equal compares two tokens in constant time
func Equal(a, b string) bool {
	if len(a) != len(b) {
		// keep the work roughly equal for mismatched lengths
		subtle.ConstantTimeCompare([]byte(a), []byte(a))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Display shortens a token for logs and status output. Tokens too short to
// truncate are fully masked.
func Display(token string) string {
	switch {
	case token == "":
		return ""
	case len(token) <= displayChars:
		return strings.Repeat("*", len(token))
	default:
		return token[:displayChars] + "..."
	}
}

func checksum(entropy []byte) []byte {
	sum := sha256.Sum256(entropy)
	return sum[:checksumBytes]
}
