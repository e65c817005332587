package external

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// CheckoutSignature computes the hex-encoded HMAC-SHA256 over the
// canonical "orderID|paymentID" form used by the synchronous verify call.
func CheckoutSignature(secret, orderID, paymentID string) string {
	return signHex(secret, []byte(orderID+"|"+paymentID))
}

// WebhookSignature computes the hex-encoded HMAC-SHA256 over the raw
// webhook body.
func WebhookSignature(secret string, rawBody []byte) string {
	return signHex(secret, rawBody)
}

func signHex(secret string, data []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func equalSignatures(expected, provided string) bool {
	return hmac.Equal([]byte(expected), []byte(provided))
}
