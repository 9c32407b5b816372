package processing

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// hashLen is the number of hex characters kept from the digest.
const hashLen = 16

// HashEvent is the per-source identity of an event and its upsert key.
func HashEvent(title, day, source string) string {
	return digest(canonical(title) + "|" + day + "|" + canonical(source))
}

// ContentHash identifies the same real-world event across sources.
func ContentHash(title, day string) string {
	return digest(canonical(title) + "|" + day)
}

func canonical(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:hashLen]
}
