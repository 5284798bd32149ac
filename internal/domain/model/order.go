package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 決済側のステータス
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// 出荷側のステータス。CONFIRMEDは決済成功と同時にしか付かない。
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusPacked    OrderStatus = "PACKED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// 1回のチェックアウト
type Order struct {
	ID          string          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      int64           `gorm:"not null;index" json:"user_id"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	Currency    string          `gorm:"type:varchar(8);not null;default:'INR'" json:"currency"`

	//配送先（注文時点のスナップショット）
	Address string `gorm:"type:text;not null" json:"address"`
	Phone   string `gorm:"type:varchar(30);not null" json:"phone"`

	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	OrderStatus   OrderStatus   `gorm:"type:varchar(20);not null;index" json:"order_status"`

	//ゲートウェイ側の相関ID
	RazorpayOrderID   string     `gorm:"type:varchar(64);index" json:"razorpay_order_id"`
	RazorpayPaymentID string     `gorm:"type:varchar(64)" json:"razorpay_payment_id"`
	PaymentMethod     string     `gorm:"type:varchar(32)" json:"payment_method"`
	PaymentCapturedAt *time.Time `json:"payment_captured_at"`
	//監査用の生ペイロード
	PaymentMeta string `gorm:"type:text" json:"-"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 決済確定で書き込む値
type PaymentCapture struct {
	GatewayPaymentID string
	Method           string
	Meta             string
	CapturedAt       time.Time
}

// 決済失敗で書き込む値
type PaymentFailure struct {
	Meta     string
	FailedAt time.Time
}

// 合計金額を最小通貨単位（paise）に変換する
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
