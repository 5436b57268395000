// Package tokens issues single-use confirmation tokens for approved
// applications. The raw token only ever appears in the confirmation link;
// storage keeps its HMAC-SHA256 digest.
package tokens

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// RawLength is the number of random bytes in a token before hex encoding.
	RawLength = 32
	// DefaultTTL is how long a doctor has to confirm an approval.
	DefaultTTL = 24 * time.Hour
)

// ErrEmptySecret is returned when the issuer is built without a digest key.
var ErrEmptySecret = errors.New("token secret is required")

// Issued is a freshly minted token.
type Issued struct {
	Raw       string
	Digest    string
	ExpiresAt time.Time
}

// Issuer mints tokens and computes their digests with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates an Issuer. A zero ttl means DefaultTTL.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}, nil
}

// TTL returns the confirmation window.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue returns a new random token expiring ttl after now.
func (i *Issuer) Issue(now time.Time) (Issued, error) {
	buf := make([]byte, RawLength)
	if _, err := rand.Read(buf); err != nil {
		return Issued{}, fmt.Errorf("generate token: %w", err)
	}
	raw := hex.EncodeToString(buf)
	return Issued{Raw: raw, Digest: i.Digest(raw), ExpiresAt: now.Add(i.ttl)}, nil
}

// Digest computes the storage form of raw.
func (i *Issuer) Digest(raw string) string {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// WellFormed reports whether raw could have been produced by Issue. Callers
// use it to short-circuit lookups for garbage input.
func WellFormed(raw string) bool {
	if len(raw) != RawLength*2 {
		return false
	}
	_, err := hex.DecodeString(raw)
	return err == nil
}

// ConfirmURL builds the doctor-facing confirmation link.
func ConfirmURL(baseURL, raw string) string {
	return strings.TrimRight(baseURL, "/") + "/confirm/" + url.PathEscape(raw)
}
