package domain

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// JoinCodeAlphabet is the unambiguous alphabet for join codes. It excludes
// the visually confusable characters I, O, 0, and 1.
const JoinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// JoinCodeLength is the fixed length of a campaign join code.
const JoinCodeLength = 6

// NewJoinCode generates a fresh join code.
//
// Codes are not checked for global uniqueness at generation time; a collision
// across campaigns is possible and tolerated. JoinByCode resolves against
// active campaigns and a colliding code simply resolves to whichever active
// campaign the store returns first.
func NewJoinCode() (string, error) {
	buf := make([]byte, JoinCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	var sb strings.Builder
	sb.Grow(JoinCodeLength)
	for _, b := range buf {
		sb.WriteByte(JoinCodeAlphabet[int(b)%len(JoinCodeAlphabet)])
	}
	return sb.String(), nil
}

// NormalizeJoinCode upper-cases and trims a join code for lookup.
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
