package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var b64 = base64.RawURLEncoding

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// Claims is the token payload.
type Claims struct {
	Subject   string   `json:"sub"`
	Email     string   `json:"email,omitempty"`
	Groups    []string `json:"groups,omitempty"`
	Version   int      `json:"ver"`
	Kind      string   `json:"kind"`
	IssuedAt  int64    `json:"iat"`
	ExpiresAt int64    `json:"exp"`
}

// SignHS256 creates a compact JWT string using HS256.
func SignHS256(claims Claims, secret []byte) (string, error) {
	h, err := json.Marshal(header{Alg: "HS256", Typ: "JWT"})
	if err != nil {
		return "", err
	}
	c, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	unsigned := b64.EncodeToString(h) + "." + b64.EncodeToString(c)
	return unsigned + "." + b64.EncodeToString(mac(unsigned, secret)), nil
}

// ParseAndVerifyHS256 checks the signature and expiry and returns the claims.
func ParseAndVerifyHS256(token string, secret []byte, now time.Time) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, ErrInvalidToken
	}
	unsigned := parts[0] + "." + parts[1]
	sig, err := b64.DecodeString(parts[2])
	if err != nil || !hmac.Equal(sig, mac(unsigned, secret)) {
		return Claims{}, ErrInvalidToken
	}

	rawHeader, err := b64.DecodeString(parts[0])
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var h header
	if err := json.Unmarshal(rawHeader, &h); err != nil || h.Alg != "HS256" {
		return Claims{}, ErrInvalidToken
	}

	payload, err := b64.DecodeString(parts[1])
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	if claims.ExpiresAt <= now.Unix() {
		return Claims{}, ErrTokenExpired
	}
	return claims, nil
}

func mac(unsigned string, secret []byte) []byte {
	m := hmac.New(sha256.New, secret)
	m.Write([]byte(unsigned))
	return m.Sum(nil)
}
