package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a 24-character random hex identifier, used for OTP
// challenge handles and other short-lived keys.
func NewID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
