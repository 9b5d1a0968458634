package pi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignatureVerifier(t *testing.T) {
	secret := "webhook-secret"
	body := []byte(`{"identifier":"P1","status":"completed","txid":"T1"}`)
	v := NewSignatureVerifier(secret)

	require.True(t, v.Verify(body, Sign(secret, body)))

	// tampered body
	tampered := []byte(`{"identifier":"P1","status":"completed","txid":"T2"}`)
	require.False(t, v.Verify(tampered, Sign(secret, body)))

	// wrong key
	require.False(t, v.Verify(body, Sign("other-secret", body)))

	// missing header
	require.False(t, v.Verify(body, ""))
}

func TestSignatureVerifierNoSecretConfigured(t *testing.T) {
	v := NewSignatureVerifier("")
	body := []byte(`{}`)
	require.False(t, v.Verify(body, Sign("", body)))
}

func TestSignatureVerifierRawBytesMatter(t *testing.T) {
	secret := "s"
	v := NewSignatureVerifier(secret)
	// Semantically identical JSON with different key order must not verify
	// against the original signature.
	a := []byte(`{"a":1,"b":2}`)
	b := []byte(`{"b":2,"a":1}`)
	require.True(t, v.Verify(a, Sign(secret, a)))
	require.False(t, v.Verify(b, Sign(secret, a)))
}
