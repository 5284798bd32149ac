package events

import (
	"context"
	"encoding/json"
	"time"

	"storefront/internal/usecase"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// 注文確定イベントをKafkaに流す（出荷・分析など下流向け）
type OrderEventPublisher struct {
	writer messageWriter
}

func NewOrderEventPublisher(brokers []string, topic string) *OrderEventPublisher {
	return &OrderEventPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *OrderEventPublisher) Channel() string { return "kafka" }

type OrderConfirmedItem struct {
	ProductID int64  `json:"productId"`
	VariantID int64  `json:"variantId"`
	Quantity  int64  `json:"quantity"`
	Price     string `json:"price"`
}

type OrderConfirmedEvent struct {
	Type              string               `json:"type"`
	OrderID           string               `json:"orderId"`
	UserID            int64                `json:"userId"`
	TotalAmount       string               `json:"totalAmount"`
	Currency          string               `json:"currency"`
	RazorpayOrderID   string               `json:"razorpayOrderId"`
	RazorpayPaymentID string               `json:"razorpayPaymentId"`
	PaymentMethod     string               `json:"paymentMethod"`
	Items             []OrderConfirmedItem `json:"items"`
	OccurredAt        time.Time            `json:"occurredAt"`
}

func (p *OrderEventPublisher) NotifyOrderConfirmed(ctx context.Context, c usecase.OrderConfirmation) error {
	items := make([]OrderConfirmedItem, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, OrderConfirmedItem{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			Price:     it.Price.StringFixed(2),
		})
	}

	ev := OrderConfirmedEvent{
		Type:              "order.confirmed",
		OrderID:           c.Order.ID,
		UserID:            c.Order.UserID,
		TotalAmount:       c.Order.TotalAmount.StringFixed(2),
		Currency:          c.Order.Currency,
		RazorpayOrderID:   c.Order.RazorpayOrderID,
		RazorpayPaymentID: c.Order.RazorpayPaymentID,
		PaymentMethod:     c.Order.PaymentMethod,
		Items:             items,
		OccurredAt:        time.Now().UTC(),
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	//同じ注文のイベントは同じパーティションへ
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(c.Order.ID), Value: data, Time: ev.OccurredAt})
}

func (p *OrderEventPublisher) Close() error {
	return p.writer.Close()
}
