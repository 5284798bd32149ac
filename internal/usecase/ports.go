package usecase

import (
	"context"
	"time"
)

// UUID 等のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

// ゲートウェイへの注文（金額は最小通貨単位）
type GatewayOrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

type GatewayOrder struct {
	ID          string
	AmountMinor int64
	Currency    string
}

type GatewayPayment struct {
	ID          string
	OrderID     string
	Method      string
	Status      string
	AmountMinor int64
	Raw         string
}

// 決済ゲートウェイのクライアント。mainで1つ作って注入する
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req GatewayOrderRequest) (GatewayOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (GatewayPayment, error)
}

// ゲートウェイ署名の検証
type SignatureVerifier interface {
	// クライアントから戻ってきた決済結果（order_id|payment_id）
	VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	// Webhookの生ボディ
	VerifyWebhookSignature(body []byte, signature string) bool
}
