// Package otp generates numeric one-time codes.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Generate returns a code of exactly length decimal digits, left-padded with
// zeros, from a cryptographic source.
func Generate(length int) (string, error) {
	if length <= 0 || length > 10 {
		return "", fmt.Errorf("otp: invalid code length %d", length)
	}

	max := big.NewInt(1)
	for i := 0; i < length; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("otp: reading random source: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n), nil
}
