package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/metrics"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

// 注文確定の通知内容
type OrderConfirmation struct {
	Order         model.Order
	Items         []model.OrderItem
	CustomerEmail string
	CustomerName  string
}

// メール、イベント送信など
type OrderNotifier interface {
	Channel() string
	NotifyOrderConfirmed(ctx context.Context, c OrderConfirmation) error
}

// 確定した経路から1回だけ呼ばれる。失敗してもログに残すだけで、決済の結果は変えない
type NotificationDispatcher struct {
	users     repo.UserRepository
	notifiers []OrderNotifier
	timeout   time.Duration
	log       *zap.Logger
	metrics   *metrics.Metrics
}

func NewNotificationDispatcher(users repo.UserRepository, log *zap.Logger, m *metrics.Metrics, notifiers ...OrderNotifier) *NotificationDispatcher {
	return &NotificationDispatcher{
		users:     users,
		notifiers: notifiers,
		timeout:   15 * time.Second,
		log:       log,
		metrics:   m,
	}
}

func (d *NotificationDispatcher) OrderConfirmed(ctx context.Context, res SettleResult) {
	if d == nil || !res.Settled || len(d.notifiers) == 0 {
		return
	}

	//リクエストが切れても送り切る
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	c := OrderConfirmation{Order: res.Order, Items: res.Items}
	user, err := d.users.FindByID(ctx, res.Order.UserID)
	if err != nil || user == nil {
		d.log.Warn("customer lookup failed",
			zap.String("order_id", res.Order.ID),
			zap.Int64("user_id", res.Order.UserID),
			zap.Error(err),
		)
	} else {
		c.CustomerEmail = user.Email
		c.CustomerName = user.Name
	}

	var errs []error
	for _, n := range d.notifiers {
		if err := n.NotifyOrderConfirmed(ctx, c); err != nil {
			d.metrics.Notification(n.Channel(), "failed")
			errs = append(errs, fmt.Errorf("%s: %w", n.Channel(), err))
			continue
		}
		d.metrics.Notification(n.Channel(), "sent")
	}

	if err := errors.Join(errs...); err != nil {
		d.log.Error("order notification failed", zap.String("order_id", res.Order.ID), zap.Error(err))
	}
}
