package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 在庫の書き込み。usecase側の在庫台帳以外からは呼ばない。
type InventoryRepository interface {
	// バリアント行をFOR UPDATEでロックして取得
	LockVariant(ctx context.Context, variantID int64) (model.ProductVariant, error)

	// 在庫を現在値に設定
	SetVariantStock(ctx context.Context, variantID int64, newStock int64) error

	// 在庫を減らす（再検証はしない）。減算後の在庫を返す
	DecreaseVariantStock(ctx context.Context, variantID int64, qty int64) (int64, error)

	// 在庫戻し（キャンセルなど）
	IncreaseVariantStock(ctx context.Context, variantID int64, qty int64) error

	// products.total_stockをdelta分ずらす
	ShiftTotalStock(ctx context.Context, productID int64, delta int64) error

	// 調整履歴作成
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
