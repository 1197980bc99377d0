package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrTokenExpired reports a structurally valid token past its expiry.
var ErrTokenExpired = errors.New("token expired")

// SignedURLSigner issues and validates HMAC download tokens for stored
// exports. Tokens embed the report id, relative path and expiry.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner constructs a signer with the given secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl}
}

// Generate returns an opaque token and its expiry instant.
func (s *SignedURLSigner) Generate(reportID, relPath string) (string, time.Time, error) {
	if reportID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("report id and path required")
	}
	expiresAt := time.Now().Add(s.ttl).UTC()
	payload := fmt.Sprintf("%s|%s|%d", reportID, relPath, expiresAt.Unix())
	sig := s.sign(payload)
	token := base64.RawURLEncoding.EncodeToString([]byte(payload + "|" + sig))
	return token, expiresAt, nil
}

// Parse validates the token signature and expiry, returning its fields.
// When allowExpired is true the expiry check is skipped (cleanup paths).
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (reportID, relPath string, expiresAt time.Time, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("malformed token")
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 4 {
		return "", "", time.Time{}, fmt.Errorf("malformed token")
	}
	payload := strings.Join(parts[:3], "|")
	if !hmac.Equal([]byte(s.sign(payload)), []byte(parts[3])) {
		return "", "", time.Time{}, fmt.Errorf("invalid token signature")
	}
	unix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("malformed token expiry")
	}
	expiresAt = time.Unix(unix, 0).UTC()
	if !allowExpired && time.Now().After(expiresAt) {
		return "", "", time.Time{}, ErrTokenExpired
	}
	return parts[0], parts[1], expiresAt, nil
}

func (s *SignedURLSigner) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
