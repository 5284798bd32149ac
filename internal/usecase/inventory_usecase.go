package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// 在庫の参照と管理者の在庫編集。書き込みは必ずInventoryLedgerを通す
type InventoryUsecase struct {
	tx     repo.TransactionManager
	ledger *InventoryLedger
}

func NewInventoryUsecase(tx repo.TransactionManager, ledger *InventoryLedger) *InventoryUsecase {
	return &InventoryUsecase{tx: tx, ledger: ledger}
}

type AvailabilityOutput struct {
	VariantID    int64 `json:"variantId"`
	Available    bool  `json:"available"`
	CurrentStock int64 `json:"currentStock"`
}

func (u *InventoryUsecase) Availability(ctx context.Context, variantID int64, qty int64) (AvailabilityOutput, error) {
	if variantID <= 0 {
		return AvailabilityOutput{}, errValidation("invalid variant id")
	}
	if qty < 1 {
		return AvailabilityOutput{}, errValidation("quantity must be >= 1")
	}

	var out AvailabilityOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		a, err := u.ledger.CheckAvailability(ctx, r, variantID, qty)
		if errors.Is(err, repo.ErrNotFound) {
			return errVariantNotFound(variantID)
		}
		if err != nil {
			return errDB()
		}
		out = AvailabilityOutput{VariantID: variantID, Available: a.Available, CurrentStock: a.CurrentStock}
		return nil
	})
	if err != nil {
		return AvailabilityOutput{}, err
	}
	return out, nil
}

type AdminSetStockInput struct {
	Stock  int64
	Reason string
}

type VariantStockOutput struct {
	VariantID   int64 `json:"variant_id"`
	ProductID   int64 `json:"product_id"`
	BeforeStock int64 `json:"before_stock"`
	Stock       int64 `json:"stock"`
}

func (u *InventoryUsecase) AdminSetStock(ctx context.Context, adminUserID int64, variantID int64, in AdminSetStockInput) (VariantStockOutput, error) {
	if adminUserID <= 0 {
		return VariantStockOutput{}, errUnauthenticated()
	}
	if variantID <= 0 {
		return VariantStockOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if in.Stock < 0 {
		return VariantStockOutput{}, NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return VariantStockOutput{}, NewHTTPError(http.StatusBadRequest, "reason required")
	}
	if len(reason) > 255 {
		return VariantStockOutput{}, NewHTTPError(http.StatusBadRequest, "reason too long")
	}

	var change StockChange
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		c, err := u.ledger.SetStock(ctx, r, adminUserID, variantID, in.Stock, reason)
		if errors.Is(err, repo.ErrNotFound) {
			return errVariantNotFound(variantID)
		}
		if err != nil {
			return errDB()
		}
		change = c
		return nil
	})
	if err != nil {
		return VariantStockOutput{}, err
	}

	return VariantStockOutput{
		VariantID:   variantID,
		ProductID:   change.After.ProductID,
		BeforeStock: change.Before.Stock,
		Stock:       change.After.Stock,
	}, nil
}

type AuditLogListInput struct {
	ActorUserID  int64 // 0なら絞り込まない
	Action       string
	ResourceType string
	ResourceID   string
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

// 管理者操作の履歴（在庫編集・ステータス更新）
func (u *InventoryUsecase) ListAuditLogs(ctx context.Context, in AuditLogListInput) ([]model.AuditLog, error) {
	if in.Limit < 0 || in.Limit > 200 {
		return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if in.Offset < 0 {
		return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid offset")
	}

	f := repo.AuditLogFilter{Limit: in.Limit, Offset: in.Offset}
	switch model.AuditResourceType(in.ResourceType) {
	case "":
	case model.AuditResourceOrder, model.AuditResourceVariant:
		rt := model.AuditResourceType(in.ResourceType)
		f.ResourceType = &rt
	default:
		return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid resource_type")
	}
	if in.ResourceID != "" {
		id := in.ResourceID
		f.ResourceID = &id
	}
	switch model.AuditAction(in.Action) {
	case "":
	case model.AuditActionSetVariantStock, model.AuditActionUpdateOrderStatus:
		a := model.AuditAction(in.Action)
		f.Action = &a
	default:
		return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid action")
	}
	if in.ActorUserID > 0 {
		actor := in.ActorUserID
		f.ActorUserID = &actor
	}
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "from must be before to")
	}
	f.CreatedFrom = in.From
	f.CreatedTo = in.To

	var logs []model.AuditLog
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		got, err := r.AuditLogs().List(ctx, f)
		if err != nil {
			return errDB()
		}
		logs = got
		return nil
	})
	if err != nil {
		return []model.AuditLog{}, err
	}
	return logs, nil
}
