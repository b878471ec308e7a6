package service

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"
)

var protocolEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// newProtocol builds a human-facing tracking number like CR-20250609-K7QM2A.
// The suffix is random so protocols cannot be guessed or enumerated.
func newProtocol(prefix string, now time.Time) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate protocol suffix: %w", err)
	}
	suffix := protocolEncoding.EncodeToString(buf)[:6]
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), suffix), nil
}
