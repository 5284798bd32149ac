package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront/internal/usecase"

	razorpay "github.com/razorpay/razorpay-go"
)

// razorpay-goのうち使う部分だけ
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type paymentAPI interface {
	Fetch(paymentID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Razorpayの注文作成と決済参照
type RazorpayGateway struct {
	orders   orderAPI
	payments paymentAPI
}

func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	client := razorpay.NewClient(keyID, keySecret)
	return &RazorpayGateway{orders: client.Order, payments: client.Payment}
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, req usecase.GatewayOrderRequest) (usecase.GatewayOrder, error) {
	notes := make(map[string]interface{}, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}

	body, err := call(ctx, func() (map[string]interface{}, error) {
		return g.orders.Create(map[string]interface{}{
			"amount":   req.AmountMinor,
			"currency": req.Currency,
			"receipt":  req.Receipt,
			"notes":    notes,
		}, nil)
	})
	if err != nil {
		return usecase.GatewayOrder{}, fmt.Errorf("razorpay create order: %w", err)
	}

	id := stringField(body, "id")
	if id == "" {
		return usecase.GatewayOrder{}, fmt.Errorf("razorpay create order: response without id")
	}
	return usecase.GatewayOrder{
		ID:          id,
		AmountMinor: int64Field(body, "amount"),
		Currency:    stringField(body, "currency"),
	}, nil
}

func (g *RazorpayGateway) FetchPayment(ctx context.Context, paymentID string) (usecase.GatewayPayment, error) {
	body, err := call(ctx, func() (map[string]interface{}, error) {
		return g.payments.Fetch(paymentID, nil, nil)
	})
	if err != nil {
		return usecase.GatewayPayment{}, fmt.Errorf("razorpay fetch payment: %w", err)
	}

	raw, _ := json.Marshal(body)
	return usecase.GatewayPayment{
		ID:          stringField(body, "id"),
		OrderID:     stringField(body, "order_id"),
		Method:      stringField(body, "method"),
		Status:      stringField(body, "status"),
		AmountMinor: int64Field(body, "amount"),
		Raw:         string(raw),
	}, nil
}

// SDKがcontextを受け取らないので、待つ側だけキャンセルできるようにする
func call(ctx context.Context, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	type result struct {
		body map[string]interface{}
		err  error
	}

	ch := make(chan result, 1)
	go func() {
		body, err := fn()
		ch <- result{body: body, err: err}
	}()

	//ctxが先に終わってもfnのgoroutineはSDK側のHTTPタイムアウトまで動き続ける。
	//chはバッファ1なので結果の送信で詰まることはない
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.body, r.err
	}
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

// JSONの数値はfloat64で来る
func int64Field(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}
