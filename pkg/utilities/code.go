package utilities

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// NewNumericCode returns n random decimal digits, e.g. for SMS confirmation.
func NewNumericCode(n int) (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
