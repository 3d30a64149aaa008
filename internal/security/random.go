package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateCode returns a random string of length characters drawn from alphabet.
func GenerateCode(alphabet string, length int) (string, error) {
	if alphabet == "" || length <= 0 {
		return "", fmt.Errorf("security: invalid code parameters")
	}
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("security: read random: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
