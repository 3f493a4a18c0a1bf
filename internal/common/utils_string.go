package common

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateRandomStringFrom returns a string of the given length whose
// characters are drawn uniformly from charset
func GenerateRandomStringFrom(charset string, length int) (string, error) {
	if len(charset) == 0 {
		return "", fmt.Errorf("failed to receive a charset")
	}
	max := big.NewInt(int64(len(charset)))
	output := make([]byte, length)
	for i := range output {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		output[i] = charset[n.Int64()]
	}
	return string(output), nil
}
