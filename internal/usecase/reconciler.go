package usecase

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	"storefront/internal/metrics"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

// 決済確定の経路
const (
	TriggerVerify  = "verify"  // クライアントからの署名付きコールバック
	TriggerWebhook = "webhook" // ゲートウェイからのWebhook
)

// 2つの経路（verify / webhook）が同じ注文に何回来ても、確定は1回だけ
type Reconciler struct {
	tx      repo.TransactionManager
	ledger  *InventoryLedger
	clock   Clock
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewReconciler(tx repo.TransactionManager, ledger *InventoryLedger, clock Clock, log *zap.Logger, m *metrics.Metrics) *Reconciler {
	return &Reconciler{tx: tx, ledger: ledger, clock: clock, log: log, metrics: m}
}

type SettleInput struct {
	OrderID          string
	GatewayPaymentID string
	PaymentMethod    string
	RawMeta          string
	Trigger          string
}

type SettleResult struct {
	Order model.Order
	Items []model.OrderItem
	// この呼び出しで確定させたときだけtrue（通知はこのときだけ送る）
	Settled bool
}

func (rc *Reconciler) Settle(ctx context.Context, in SettleInput) (SettleResult, error) {
	var res SettleResult

	err := rc.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, in.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return errOrderNotFound()
		}
		if err != nil {
			return errDB()
		}

		//確定済みなら何もしない
		if o.PaymentStatus == model.PaymentStatusSuccess {
			res.Order = o
			return nil
		}

		ok, err := r.Orders().MarkPaid(ctx, in.OrderID, model.PaymentCapture{
			GatewayPaymentID: in.GatewayPaymentID,
			Method:           in.PaymentMethod,
			Meta:             in.RawMeta,
			CapturedAt:       rc.clock.Now(),
		})
		if err != nil {
			return errDB()
		}
		if !ok {
			//同時に来たもう一方が先にコミットした
			updated, err := r.Orders().FindByID(ctx, in.OrderID)
			if err != nil {
				return errDB()
			}
			res.Order = updated
			return nil
		}

		items, err := r.OrderItems().ListByOrderID(ctx, in.OrderID)
		if err != nil {
			return errDB()
		}
		if err := rc.ledger.Settle(ctx, r, in.OrderID, items); err != nil {
			rc.log.Error("inventory settle failed", zap.String("order_id", in.OrderID), zap.Error(err))
			return errDB()
		}

		updated, err := r.Orders().FindByID(ctx, in.OrderID)
		if err != nil {
			return errDB()
		}
		res = SettleResult{Order: updated, Items: items, Settled: true}
		return nil
	})
	if err != nil {
		return SettleResult{}, err
	}

	outcome := "noop"
	if res.Settled {
		outcome = "settled"
	}
	rc.metrics.Settlement(in.Trigger, outcome)
	rc.log.Info("settle",
		zap.String("order_id", in.OrderID),
		zap.String("trigger", in.Trigger),
		zap.String("outcome", outcome),
	)
	return res, nil
}

// PENDINGのときだけFAILEDにする。在庫とorder_statusは触らない
func (rc *Reconciler) MarkFailed(ctx context.Context, orderID string, rawMeta string) (bool, error) {
	var changed bool

	err := rc.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Orders().MarkFailed(ctx, orderID, model.PaymentFailure{
			Meta:     rawMeta,
			FailedAt: rc.clock.Now(),
		})
		if err != nil {
			return errDB()
		}
		changed = ok
		return nil
	})
	if err != nil {
		return false, err
	}

	rc.log.Info("payment failed",
		zap.String("order_id", orderID),
		zap.Bool("changed", changed),
	)
	return changed, nil
}
