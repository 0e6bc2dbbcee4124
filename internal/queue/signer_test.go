package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign_KnownVector(t *testing.T) {
	// RFC 4231-style reference value for HMAC-SHA256.
	got := Sign("key", []byte("The quick brown fox jumps over the lazy dog"))
	assert.Equal(t, "sha256=f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8", got)
}

func TestSign_Deterministic(t *testing.T) {
	body := []byte(`{"id":"evt_1","event":"booking.created"}`)
	assert.Equal(t, Sign("secret", body), Sign("secret", body))
}

func TestSign_SecretChangesSignature(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	assert.NotEqual(t, Sign("secret-a", body), Sign("secret-b", body))
}

func TestSign_BodyChangesSignature(t *testing.T) {
	assert.NotEqual(t, Sign("secret", []byte(`{"a":1}`)), Sign("secret", []byte(`{"a":2}`)))
}
