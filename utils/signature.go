package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const SignaturePrefix = "sha256="

// Hmac256 returns the hex encoded HMAC-SHA256 of body under key.
func Hmac256(body, key []byte) string {
	hash := hmac.New(sha256.New, key)
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}

// SignatureHeader is the X-Signature value sent with webhook deliveries.
func SignatureHeader(body, secret []byte) string {
	return SignaturePrefix + Hmac256(body, secret)
}

// VerifySignature checks a received X-Signature header in constant time.
func VerifySignature(body, secret []byte, header string) bool {
	received, ok := strings.CutPrefix(header, SignaturePrefix)
	if !ok {
		return false
	}
	return hmac.Equal([]byte(received), []byte(Hmac256(body, secret)))
}
