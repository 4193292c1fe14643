package utils

import (
	"crypto/rand"
	"fmt"
)

// bookingCodeAlphabet excludes nothing: customers read these codes over
// the phone, but the support flow always confirms them character by
// character, so the full uppercase alphanumeric set is used.
const bookingCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// bookingCodeLength is the number of random characters after the prefix.
const bookingCodeLength = 7

// NewBookingCode returns a human-facing booking code: the given prefix
// followed by seven random uppercase alphanumeric characters, e.g.
// "VXV4K7QD2".  Randomness comes from crypto/rand; the modulo bias from
// mapping 256 byte values onto a 36 character alphabet is negligible
// for this purpose.
func NewBookingCode(prefix string) (string, error) {
	buf := make([]byte, bookingCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate booking code: %w", err)
	}
	for i, b := range buf {
		buf[i] = bookingCodeAlphabet[int(b)%len(bookingCodeAlphabet)]
	}
	return prefix + string(buf), nil
}
