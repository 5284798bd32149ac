package model

import "time"

// 在庫の増減履歴。在庫台帳の書き込み1回につき1行。
type InventoryAdjustment struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	VariantID   int64     `gorm:"not null;index" json:"variant_id"`
	ProductID   int64     `gorm:"not null;index" json:"product_id"`
	ActorUserID int64     `gorm:"not null;default:0;index" json:"actor_user_id"` // 0はシステム（決済確定）
	OrderID     *string   `gorm:"type:uuid;index" json:"order_id,omitempty"`
	Delta       int64     `gorm:"not null" json:"delta"`
	Reason      string    `gorm:"type:varchar(255);not null" json:"reason"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

const (
	AdjustmentReasonSettlement = "order_settlement"
	AdjustmentReasonRestock    = "order_cancelled"
)
