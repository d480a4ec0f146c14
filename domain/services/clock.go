package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// float64Precision is the number of random bits behind a Float64 draw
const float64Precision = 1 << 53

// CryptoRandom is the production random source, backed by crypto/rand
type CryptoRandom struct{}

func (CryptoRandom) Intn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("invalid random bound %d", n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("random generation failed: %w", err)
	}
	return int(v.Int64()), nil
}

func (CryptoRandom) Float64() (float64, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(float64Precision))
	if err != nil {
		return 0, fmt.Errorf("random generation failed: %w", err)
	}
	return float64(v.Int64()) / float64Precision, nil
}
