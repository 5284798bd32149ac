package repository

import (
	"context"

	"storefront/internal/domain/model"

	"gorm.io/gorm"
)

// 明細は注文作成時に一度だけ書く（以後は読み取りのみ）
type OrderItemGormRepository struct {
	db *gorm.DB
}

func NewOrderItemGormRepository(db *gorm.DB) *OrderItemGormRepository {
	return &OrderItemGormRepository{db: db}
}

// 1注文の明細をまとめてINSERT。渡されたスライスのOrderIDは上書きする
func (r *OrderItemGormRepository) CreateBulk(ctx context.Context, orderID string, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	rows := make([]model.OrderItem, len(items))
	for i, it := range items {
		it.OrderID = orderID
		rows[i] = it
	}
	return r.db.WithContext(ctx).CreateInBatches(&rows, 100).Error
}

// カートに入っていた順（id昇順）。0件でもエラーにしない
func (r *OrderItemGormRepository) ListByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	items := []model.OrderItem{}
	if err := r.db.WithContext(ctx).
		Where(&model.OrderItem{OrderID: orderID}).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return []model.OrderItem{}, err
	}
	return items, nil
}
