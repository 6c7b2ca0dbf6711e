package vectorstore

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	collectionPrefix = "decisions_"
	maxNameLength    = 64
	hashSuffixLength = 9 // "_" + 8 hex chars
)

// collectionName maps a user ID onto ^[a-z0-9_]{1,64}$. IDs that need any
// rewriting get a hash suffix of the original so that "Alice" and "alice"
// never share a collection.
func collectionName(userID string) string {
	clean := identifier(userID)
	if clean != userID {
		clean = withHash(clean, userID)
	}
	if len(collectionPrefix)+len(clean) > maxNameLength {
		clean = withHash(clean[:maxNameLength-len(collectionPrefix)-hashSuffixLength], userID)
	}
	return collectionPrefix + clean
}

// identifier lowercases s, replaces everything outside [a-z0-9_] with an
// underscore and collapses runs of underscores.
func identifier(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevUnderscore := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevUnderscore = false
			continue
		}
		if !prevUnderscore {
			b.WriteByte('_')
			prevUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "user"
	}
	return out
}

func withHash(clean, original string) string {
	sum := sha256.Sum256([]byte(original))
	return clean + "_" + hex.EncodeToString(sum[:])[:hashSuffixLength-1]
}
