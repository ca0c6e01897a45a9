package midtrans

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// SignatureKey computes the expected webhook signature for a notification:
// HMAC-SHA512 keyed with the server key over orderID+statusCode+grossAmount+serverKey.
// The gateway sends gross_amount as a decimal string ("150000.00"); the raw
// string participates in the hash, not the parsed value.
func SignatureKey(orderID, statusCode, grossAmount, serverKey string) string {
	mac := hmac.New(sha512.New, []byte(serverKey))
	mac.Write([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidSignature compares a supplied signature against the recomputed one in
// constant time.
func ValidSignature(orderID, statusCode, grossAmount, serverKey, supplied string) bool {
	if supplied == "" || serverKey == "" {
		return false
	}
	expected := SignatureKey(orderID, statusCode, grossAmount, serverKey)
	return hmac.Equal([]byte(expected), []byte(supplied))
}
