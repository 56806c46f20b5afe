package kalshi

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	headerAccessKey       = "KALSHI-ACCESS-KEY"
	headerAccessSignature = "KALSHI-ACCESS-SIGNATURE"
	headerAccessTimestamp = "KALSHI-ACCESS-TIMESTAMP"
)

// Signer produces the venue's request signature: PKCS#1 v1.5 over the
// SHA-256 digest of timestamp + METHOD + path, timestamp in milliseconds.
type Signer struct {
	keyID string
	key   *rsa.PrivateKey
	now   func() time.Time
}

// NewSigner parses a PEM-encoded RSA private key. Escaped newlines are
// tolerated so keys can travel through environment variables.
func NewSigner(keyID string, pemBytes []byte) (*Signer, error) {
	if keyID == "" {
		return nil, errors.New("kalshi: empty key ID")
	}
	key, err := parsePrivateKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("kalshi: load private key: %w", err)
	}
	return &Signer{keyID: keyID, key: key, now: time.Now}, nil
}

func parsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	pemBytes = bytes.ReplaceAll(pemBytes, []byte(`\n`), []byte("\n"))
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return key, nil
}

// KeyID returns the access key identifier sent with each signed request.
func (s *Signer) KeyID() string { return s.keyID }

// Headers signs method+path at the current time and returns the three
// access headers. The path must include the API prefix and must not
// include a query string.
func (s *Signer) Headers(method, path string) (map[string]string, error) {
	ts := strconv.FormatInt(s.now().UnixMilli(), 10)
	msg := ts + strings.ToUpper(method) + path
	digest := sha256.Sum256([]byte(msg))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("kalshi: sign request: %w", err)
	}
	return map[string]string{
		headerAccessKey:       s.keyID,
		headerAccessSignature: base64.StdEncoding.EncodeToString(sig),
		headerAccessTimestamp: ts,
	}, nil
}
