package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// カタログの読み取り。価格と在庫の正はここから取る。
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
	FindVariantByID(ctx context.Context, variantID int64) (model.ProductVariant, error)
}
