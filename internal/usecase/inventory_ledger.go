package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

// 在庫を書き換える唯一の入口。
// どのメソッドも呼び出し側のトランザクション（TxRepos）の中で動く。
type InventoryLedger struct {
	clock Clock
	log   *zap.Logger
}

func NewInventoryLedger(clock Clock, log *zap.Logger) *InventoryLedger {
	return &InventoryLedger{clock: clock, log: log}
}

type Availability struct {
	Available    bool
	CurrentStock int64
}

// バリアントがなければrepo.ErrNotFound
func (l *InventoryLedger) CheckAvailability(ctx context.Context, r repo.TxRepos, variantID int64, qty int64) (Availability, error) {
	v, err := r.Products().FindVariantByID(ctx, variantID)
	if err != nil {
		return Availability{}, err
	}
	return Availability{
		Available:    v.Stock >= qty,
		CurrentStock: v.Stock,
	}, nil
}

// 決済確定分を減らす。在庫の再チェックはしない（注文作成から確定までの売り越しは許容）
func (l *InventoryLedger) Settle(ctx context.Context, r repo.TxRepos, orderID string, items []model.OrderItem) error {
	for _, it := range items {
		remaining, err := r.Inventory().DecreaseVariantStock(ctx, it.VariantID, it.Quantity)
		if err != nil {
			return fmt.Errorf("decrease variant %d: %w", it.VariantID, err)
		}
		if err := r.Inventory().ShiftTotalStock(ctx, it.ProductID, -it.Quantity); err != nil {
			return fmt.Errorf("shift total stock %d: %w", it.ProductID, err)
		}
		if err := r.Inventory().CreateAdjustment(ctx, l.adjustment(it, 0, &orderID, -it.Quantity, model.AdjustmentReasonSettlement)); err != nil {
			return err
		}

		if remaining < 0 {
			l.log.Warn("oversold variant",
				zap.String("order_id", orderID),
				zap.Int64("variant_id", it.VariantID),
				zap.Int64("stock", remaining),
			)
		}
	}
	return nil
}

// キャンセル時の在庫戻し
func (l *InventoryLedger) Restock(ctx context.Context, r repo.TxRepos, actorID int64, orderID string, items []model.OrderItem) error {
	for _, it := range items {
		if err := r.Inventory().IncreaseVariantStock(ctx, it.VariantID, it.Quantity); err != nil {
			return fmt.Errorf("increase variant %d: %w", it.VariantID, err)
		}
		if err := r.Inventory().ShiftTotalStock(ctx, it.ProductID, it.Quantity); err != nil {
			return fmt.Errorf("shift total stock %d: %w", it.ProductID, err)
		}
		if err := r.Inventory().CreateAdjustment(ctx, l.adjustment(it, actorID, &orderID, it.Quantity, model.AdjustmentReasonRestock)); err != nil {
			return err
		}
	}
	return nil
}

type StockChange struct {
	Before model.ProductVariant
	After  model.ProductVariant
}

// 管理者による在庫の上書き。行ロック→更新→合計在庫を差分だけずらす→履歴と監査ログ
func (l *InventoryLedger) SetStock(ctx context.Context, r repo.TxRepos, actorID int64, variantID int64, newStock int64, reason string) (StockChange, error) {
	before, err := r.Inventory().LockVariant(ctx, variantID)
	if err != nil {
		return StockChange{}, err
	}

	delta := newStock - before.Stock
	after := before
	after.Stock = newStock

	if delta == 0 {
		return StockChange{Before: before, After: after}, nil
	}

	if err := r.Inventory().SetVariantStock(ctx, variantID, newStock); err != nil {
		return StockChange{}, err
	}
	if err := r.Inventory().ShiftTotalStock(ctx, before.ProductID, delta); err != nil {
		return StockChange{}, err
	}

	if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
		VariantID:   variantID,
		ProductID:   before.ProductID,
		ActorUserID: actorID,
		Delta:       delta,
		Reason:      reason,
		CreatedAt:   l.clock.Now(),
	}); err != nil {
		return StockChange{}, err
	}

	beforeJSON, _ := json.Marshal(map[string]any{"stock": before.Stock})
	afterJSON, _ := json.Marshal(map[string]any{"stock": newStock, "reason": reason})
	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  actorID,
		Action:       model.AuditActionSetVariantStock,
		ResourceType: model.AuditResourceVariant,
		ResourceID:   strconv.FormatInt(variantID, 10),
		BeforeJSON:   string(beforeJSON),
		AfterJSON:    string(afterJSON),
		CreatedAt:    l.clock.Now(),
	}); err != nil {
		return StockChange{}, err
	}

	return StockChange{Before: before, After: after}, nil
}

func (l *InventoryLedger) adjustment(it model.OrderItem, actorID int64, orderID *string, delta int64, reason string) model.InventoryAdjustment {
	return model.InventoryAdjustment{
		VariantID:   it.VariantID,
		ProductID:   it.ProductID,
		ActorUserID: actorID,
		OrderID:     orderID,
		Delta:       delta,
		Reason:      reason,
		CreatedAt:   l.clock.Now(),
	}
}
