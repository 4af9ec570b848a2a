package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// NumericCode returns a uniformly random decimal code of exactly digits
// digits, leading zeros included.
func NumericCode(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", fmt.Errorf("invalid code length %d", digits)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

// SessionToken returns 32 random bytes hex-encoded.
func SessionToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
