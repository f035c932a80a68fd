package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// UIDLength is the length of a generated account UID.
const UIDLength = 19

// Generator hands out account keys and UIDs. Uniqueness is enforced by
// the store; callers retry on collision.
type Generator interface {
	NewKey() (string, error)
	NewUID() (string, error)
}

// RandomGenerator draws keys and UIDs from crypto/rand.
type RandomGenerator struct{}

// NewKey returns a key like "K7Q-2ZB".
func (RandomGenerator) NewKey() (string, error) {
	left, err := randomString(3)
	if err != nil {
		return "", err
	}
	right, err := randomString(3)
	if err != nil {
		return "", err
	}
	return left + "-" + right, nil
}

// NewUID returns a 19-character uppercase alphanumeric UID.
func (RandomGenerator) NewUID() (string, error) {
	return randomString(UIDLength)
}

func randomString(n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
