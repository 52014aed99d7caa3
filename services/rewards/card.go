package rewards

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// GenerateCardNumber returns a random 16-digit card number grouped in blocks
// of four: NNNN-NNNN-NNNN-NNNN. Uniqueness is not guaranteed here; the
// issuance path checks the unique index and retries.
func GenerateCardNumber() (string, error) {
	var b strings.Builder
	for i := 0; i < 16; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteString(n.String())
		if (i+1)%4 == 0 && i < 15 {
			b.WriteByte('-')
		}
	}
	return b.String(), nil
}
