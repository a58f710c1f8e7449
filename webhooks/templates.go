package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	signatureHeader = "X-Identity-Signature"
	signaturePrefix = "sha256="
)

// Signer produces the HMAC-SHA256 signature header attached to outgoing
// deliveries. Subscribers recompute it over the raw body to authenticate
// the sender.
type Signer struct {
	secret string
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: strings.TrimSpace(secret)}
}

func (s *Signer) Configured() bool {
	return s != nil && s.secret != ""
}

func (s *Signer) Header() string { return signatureHeader }

func (s *Signer) Sign(payload []byte) string {
	if !s.Configured() {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(s.secret))
	_, _ = mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature is the subscriber-side check for a received delivery.
func VerifySignature(secret string, payload []byte, header string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return fmt.Errorf("webhooks: signature secret is required")
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return fmt.Errorf("webhooks: signature header is required")
	}
	signature := strings.TrimPrefix(header, signaturePrefix)
	decoded, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return fmt.Errorf("webhooks: decode hex signature: %w", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	if subtle.ConstantTimeCompare(decoded, mac.Sum(nil)) != 1 {
		return fmt.Errorf("webhooks: signature verification failed")
	}
	return nil
}
