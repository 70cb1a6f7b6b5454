package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// FileURLSigner issues durable, tamper-proof retrieval tokens for stored uploads.
// Tokens carry no expiry: a permit record keeps its evidence links for its lifetime.
type FileURLSigner struct {
	secret  []byte
	baseURL string
}

// NewFileURLSigner constructs a signer. baseURL is the absolute or prefix-relative
// location of the file retrieval endpoint, e.g. "https://api.example.com/api/v1/files".
func NewFileURLSigner(secret, baseURL string) *FileURLSigner {
	return &FileURLSigner{secret: []byte(secret), baseURL: strings.TrimRight(baseURL, "/")}
}

// Token returns the signed token for an object key.
func (s *FileURLSigner) Token(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("object key required")
	}
	if len(s.secret) == 0 {
		return "", fmt.Errorf("signing secret missing")
	}
	encoded := base64.RawURLEncoding.EncodeToString([]byte(key))
	return encoded + "." + s.sign(encoded), nil
}

// URL returns the retrieval URL for an object key.
func (s *FileURLSigner) URL(key string) (string, error) {
	token, err := s.Token(key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s?token=%s", s.baseURL, token), nil
}

// Parse validates a token and returns the embedded object key.
func (s *FileURLSigner) Parse(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid token format")
	}
	if !hmac.Equal([]byte(s.sign(parts[0])), []byte(parts[1])) {
		return "", fmt.Errorf("invalid token signature")
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode key: %w", err)
	}
	return string(raw), nil
}

func (s *FileURLSigner) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
