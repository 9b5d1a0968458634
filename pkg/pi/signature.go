package pi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureVerifier checks the x-pi-signature header on inbound webhooks.
// The HMAC must be computed over the raw request bytes; re-serializing a
// parsed body changes key order and breaks verification.
type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

// Verify returns true only when a secret is configured, the header is
// present, and the constant-time comparison matches.
func (v *SignatureVerifier) Verify(rawBody []byte, signature string) bool {
	if len(v.secret) == 0 || signature == "" {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(Sign(string(v.secret), rawBody)))
}

// Sign computes the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
