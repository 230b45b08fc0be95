package util

import (
	"fmt"
	"math/rand/v2"
)

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// RandomSuffix returns an n-character lowercase alphanumeric string, used
// to disambiguate the replacement container's name during a blue/green
// swap (<serviceName>-<suffix>) so it never collides with the container
// it is about to replace.
func RandomSuffix(n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = suffixAlphabet[rand.IntN(len(suffixAlphabet))]
	}
	return string(buf)
}

// RandomToken returns a random hex token suitable as a distributed lock's
// ownership value; uniqueness (not unpredictability) is all that matters,
// since the token is only ever compared for equality by its own holder.
func RandomToken() string {
	return fmt.Sprintf("%016x%016x", rand.Uint64(), rand.Uint64())
}
