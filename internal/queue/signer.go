package queue

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the webhook signature for a request body: the
// hex-encoded HMAC-SHA256 of the body under the endpoint secret,
// prefixed with the scheme tag.  Receivers recompute it and compare
// with hmac.Equal.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
