package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Hmac256 is a function to generate HMAC256 hash.
func Hmac256(body, key []byte) string {
	hash := hmac.New(sha256.New, key)
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}

// VerifySignature checks a webhook signature against the raw, unparsed request
// body. The comparison is constant time.
func VerifySignature(body []byte, signature, secret string) bool {
	expected := Hmac256(body, []byte(secret))
	return hmac.Equal([]byte(signature), []byte(expected))
}
