package relay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// SignatureHeader carries the batch signature on the wire.
const SignatureHeader = "x-signature"

// Sign computes base64(HMAC-SHA256(secret, body)). The body bytes must
// be the exact bytes sent on the wire; signer and verifier never
// re-serialize.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature over body and compares it to the
// presented one in constant time. A missing signature never verifies.
func Verify(secret string, body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	expected := Sign(secret, body)
	return hmac.Equal([]byte(signature), []byte(expected))
}
