package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	CodeLength     = 6
	DefaultCodeTTL = 15 * time.Minute
)

type CodeGenerator interface {
	Generate() (string, error)
	ExpiryFrom(now time.Time) time.Time
}

// NumericCodes generates zero-padded decimal codes from crypto/rand.
type NumericCodes struct {
	TTL time.Duration
}

func NewNumericCodes(ttl time.Duration) *NumericCodes {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return &NumericCodes{TTL: ttl}
}

var codeSpace = big.NewInt(1_000_000)

func (g *NumericCodes) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

func (g *NumericCodes) ExpiryFrom(now time.Time) time.Time {
	return now.Add(g.TTL)
}

// HashString returns a hex-encoded SHA-256 hash for code storage.
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashCode normalizes a submitted code before hashing it.
func HashCode(code string) string {
	return HashString(strings.TrimSpace(code))
}

func codeMatches(stored *Code, submitted string) bool {
	if stored == nil || strings.TrimSpace(submitted) == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored.Hash), []byte(HashCode(submitted))) == 1
}
