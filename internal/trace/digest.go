package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes separate digests of different record kinds. The version
// suffix changes whenever the record layout does.
const (
	DomainRun   = "funny-fifo/run/v1"
	DomainPoint = "funny-fifo/point/v1"
)

// Digest computes SHA256(domain + 0x00 + data) as lowercase hex.
func Digest(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DigestValue canonicalizes v and digests it under domain.
func DigestValue(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return Digest(domain, data), nil
}

// MustDigestValue is like DigestValue but panics on error.
// Use only in tests or when v is known to be canonicalizable.
func MustDigestValue(domain string, v any) string {
	d, err := DigestValue(domain, v)
	if err != nil {
		panic(err)
	}
	return d
}
