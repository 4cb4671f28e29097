package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoSecret means the signing secret could not be loaded or created.
// Serving with an empty secret would make every token forgeable, so
// callers must treat this as fatal at startup.
var ErrNoSecret = errors.New("token: signing secret is not configured")

// Signer computes the MAC embedded in signed download URLs.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoSecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign returns the URL-safe, unpadded base64 HMAC-SHA256 tag of msg.
func (s *Signer) Sign(msg string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(msg))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Equal compares a presented tag against the expected tag for msg in
// constant time.
func (s *Signer) Equal(msg, presented string) bool {
	expected := s.Sign(msg)
	return hmac.Equal([]byte(expected), []byte(presented))
}

const keyFileName = "sign_key"

// LoadSecret resolves the signing secret:
//  1. an explicitly configured value (env) wins;
//  2. otherwise the key file under <dataDir>/secret is read;
//  3. otherwise a fresh 32-byte key is generated and persisted.
func LoadSecret(explicit, dataDir string) (string, error) {
	if v := strings.TrimSpace(explicit); v != "" {
		return v, nil
	}
	path := filepath.Join(dataDir, "secret", keyFileName)
	b, err := os.ReadFile(path)
	if err == nil {
		v := strings.TrimSpace(string(b))
		if v == "" {
			return "", fmt.Errorf("token: key file %s is empty: %w", path, ErrNoSecret)
		}
		return v, nil
	}
	// only absence falls through to generation; replacing a key that
	// merely failed to read would invalidate every outstanding token
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("token: read key file %s: %w", path, err)
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("token: generate secret: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(raw)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("token: create secret dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("token: persist secret: %w", err)
	}
	return encoded, nil
}
