package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"time"
)

var (
	// ErrExpired is returned for signed URLs past their expiry.
	ErrExpired = errors.New("signed url expired")
	// ErrBadSignature is returned when the signature does not match.
	ErrBadSignature = errors.New("signed url signature mismatch")
)

// Signer issues and verifies expiring URLs for stored objects.
type Signer struct {
	baseURL string
	secret  []byte
	now     func() time.Time
}

// NewSigner builds a signer producing URLs under baseURL (for example
// "https://api.donustur.app/files").
func NewSigner(baseURL string, secret []byte) *Signer {
	return &Signer{baseURL: baseURL, secret: secret, now: time.Now}
}

// SignedURL returns a URL for key valid for ttl.
func (s *Signer) SignedURL(key string, ttl time.Duration) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	exp := s.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", s.sign(cleaned, exp))
	return s.baseURL + "/" + cleaned + "?" + q.Encode(), nil
}

// Verify checks the expiry and signature carried by a signed URL.
func (s *Signer) Verify(key, expRaw, sig string) error {
	cleaned, err := CleanKey(key)
	if err != nil {
		return err
	}
	exp, err := strconv.ParseInt(expRaw, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	if s.now().Unix() > exp {
		return ErrExpired
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(cleaned, exp))) {
		return ErrBadSignature
	}
	return nil
}

func (s *Signer) sign(key string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strconv.FormatInt(exp, 10)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
