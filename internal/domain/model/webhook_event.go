package model

import "time"

// 処理済みのWebhookイベント（ゲートウェイの再送を早めに打ち切るため）
type WebhookEvent struct {
	EventID        string    `gorm:"type:varchar(128);primaryKey" json:"event_id"`
	EventType      string    `gorm:"type:varchar(64);not null;index" json:"event_type"`
	GatewayOrderID string    `gorm:"type:varchar(64);index" json:"gateway_order_id"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
