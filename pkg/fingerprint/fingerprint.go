// Package fingerprint turns raw client identifiers (IP address, user agent)
// into salted one-way hashes so abuse checks can compare devices without the
// raw values ever reaching storage.
package fingerprint

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var ErrEmptySalt = errors.New("fingerprint salt must not be empty")

type Hasher struct {
	salt []byte
}

func NewHasher(salt string) (*Hasher, error) {
	if salt == "" {
		return nil, ErrEmptySalt
	}
	return &Hasher{salt: []byte(salt)}, nil
}

// Hash returns the hex HMAC-SHA256 of value keyed by the salt. Leading and
// trailing whitespace is ignored so "1.2.3.4 " and "1.2.3.4" collide.
func (h *Hasher) Hash(value string) string {
	mac := hmac.New(sha256.New, h.salt)
	mac.Write([]byte(strings.TrimSpace(value)))
	return hex.EncodeToString(mac.Sum(nil))
}

type Fingerprint struct {
	IPHash string
	UAHash string
}

func (h *Hasher) Fingerprint(ip, userAgent string) Fingerprint {
	return Fingerprint{
		IPHash: h.Hash(ip),
		UAHash: h.Hash(userAgent),
	}
}
