package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type AdminOrderUsecase struct {
	tx     repo.TransactionManager
	ledger *InventoryLedger
	clock  Clock
}

func NewAdminOrderUsecase(tx repo.TransactionManager, ledger *InventoryLedger, clock Clock) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, ledger: ledger, clock: clock}
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

// 出荷の進み具合。前にしか進めない
var fulfillmentRank = map[model.OrderStatus]int{
	model.OrderStatusConfirmed: 1,
	model.OrderStatusPacked:    2,
	model.OrderStatusShipped:   3,
	model.OrderStatusDelivered: 4,
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) ([]OrderOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return errDB()
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return errDB()
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

// 出荷ステータス更新（支払い済みで未発送のキャンセルは在庫戻し）
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID string, in AdminUpdateOrderStatusInput) error {
	if actorAdminUserID <= 0 {
		return errUnauthenticated()
	}
	if !isOrderID(orderID) {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	newStatus := model.OrderStatus(strings.ToUpper(strings.TrimSpace(in.Status)))
	switch newStatus {
	case model.OrderStatusPacked, model.OrderStatusShipped, model.OrderStatusDelivered, model.OrderStatusCancelled:
		// OK（CONFIRMEDは決済確定でしか付かない）
	default:
		return NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 決済確定と同時に走らないよう行ロック
		o, err := r.Orders().LockByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return errOrderNotFound()
		}
		if err != nil {
			return errDB()
		}

		// すでに同じなら何もしない（200）
		if o.OrderStatus == newStatus {
			return nil
		}
		// 終端ガード
		if o.OrderStatus == model.OrderStatusCancelled {
			return newCodedError(http.StatusBadRequest, "INVALID_TRANSITION", ErrInvalidTransition, "cannot change cancelled order", nil)
		}
		if o.OrderStatus == model.OrderStatusDelivered {
			return newCodedError(http.StatusBadRequest, "INVALID_TRANSITION", ErrInvalidTransition, "cannot change delivered order", nil)
		}

		paid := o.PaymentStatus == model.PaymentStatusSuccess

		if newStatus == model.OrderStatusCancelled {
			if o.OrderStatus == model.OrderStatusShipped {
				return newCodedError(http.StatusBadRequest, "INVALID_TRANSITION", ErrInvalidTransition, "cannot cancel shipped order", nil)
			}
			//確定済みなら在庫は減っているので戻す
			if paid {
				items, err := r.OrderItems().ListByOrderID(ctx, orderID)
				if err != nil {
					return errDB()
				}
				if err := u.ledger.Restock(ctx, r, actorAdminUserID, orderID, items); err != nil {
					return errDB()
				}
			}
		} else {
			if !paid {
				return newCodedError(http.StatusConflict, "NOT_PAID", ErrInvalidTransition, "order is not paid", nil)
			}
			if fulfillmentRank[newStatus] <= fulfillmentRank[o.OrderStatus] {
				return newCodedError(http.StatusBadRequest, "INVALID_TRANSITION", ErrInvalidTransition, "invalid status transition", nil)
			}
		}

		if err := r.Orders().UpdateOrderStatus(ctx, orderID, newStatus); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return errOrderNotFound()
			}
			return errDB()
		}

		//監査ログ（UPDATE_ORDER_STATUS）
		beforeJSON, _ := json.Marshal(map[string]string{"order_status": string(o.OrderStatus), "payment_status": string(o.PaymentStatus)})
		afterJSON, _ := json.Marshal(map[string]string{"order_status": string(newStatus), "payment_status": string(o.PaymentStatus)})
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   string(beforeJSON),
			AfterJSON:    string(afterJSON),
			CreatedAt:    u.clock.Now(),
		}); err != nil {
			return errDB()
		}

		return nil
	})
}
