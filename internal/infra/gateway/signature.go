package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Razorpayの署名検証。
// クライアントの決済結果はキーシークレット、Webhookは専用のWebhookシークレットで署名される
type HMACVerifier struct {
	keySecret     []byte
	webhookSecret []byte
}

func NewHMACVerifier(keySecret, webhookSecret string) *HMACVerifier {
	return &HMACVerifier{keySecret: []byte(keySecret), webhookSecret: []byte(webhookSecret)}
}

func (v *HMACVerifier) VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return verify(v.keySecret, []byte(gatewayOrderID+"|"+gatewayPaymentID), signature)
}

func (v *HMACVerifier) VerifyWebhookSignature(body []byte, signature string) bool {
	return verify(v.webhookSecret, body, signature)
}

// hex(HMAC-SHA256(secret, payload))
func Sign(secret []byte, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(secret []byte, payload []byte, signature string) bool {
	if len(secret) == 0 || signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	//比較は定数時間
	return hmac.Equal(mac.Sum(nil), got)
}
