package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文明細。作成後は変更しない（注文時点の商品情報を保持する）。
type OrderItem struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     string          `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID   int64           `gorm:"not null;index" json:"product_id"`
	VariantID   int64           `gorm:"not null;index" json:"variant_id"`
	ProductName string          `gorm:"type:varchar(255);not null" json:"product_name"`
	VariantName string          `gorm:"type:varchar(255);not null" json:"variant_name"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (it OrderItem) LineTotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(it.Quantity))
}
