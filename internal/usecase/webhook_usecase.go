package usecase

import (
	"context"
	"encoding/json"
	"errors"

	"storefront/internal/domain/model"
	"storefront/internal/metrics"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

// Webhookの応答ステータス
const (
	WebhookProcessed = "processed"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
)

// ゲートウェイからのWebhook。再送・順不同・verifyとの競合を前提にする
type WebhookUsecase struct {
	tx         repo.TransactionManager
	verifier   SignatureVerifier
	reconciler *Reconciler
	notifier   *NotificationDispatcher
	log        *zap.Logger
	metrics    *metrics.Metrics
}

func NewWebhookUsecase(
	tx repo.TransactionManager,
	verifier SignatureVerifier,
	reconciler *Reconciler,
	notifier *NotificationDispatcher,
	log *zap.Logger,
	m *metrics.Metrics,
) *WebhookUsecase {
	return &WebhookUsecase{
		tx:         tx,
		verifier:   verifier,
		reconciler: reconciler,
		notifier:   notifier,
		log:        log,
		metrics:    m,
	}
}

type WebhookInput struct {
	Body      []byte
	Signature string
	EventID   string // x-razorpay-event-id（無いこともある）
}

type WebhookOutput struct {
	Status string `json:"status"`
}

type razorpayEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity razorpayPayment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type razorpayPayment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Method   string `json:"method"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

func (u *WebhookUsecase) Handle(ctx context.Context, in WebhookInput) (WebhookOutput, error) {
	//署名を確認するまではDBに触らない
	if in.Signature == "" || !u.verifier.VerifyWebhookSignature(in.Body, in.Signature) {
		u.log.Warn("webhook signature rejected", zap.String("event_id", in.EventID))
		u.metrics.WebhookEvent("unknown", "rejected")
		return WebhookOutput{}, errInvalidSignature()
	}

	if in.EventID != "" {
		seen, err := u.seen(ctx, in.EventID)
		if err != nil {
			return WebhookOutput{}, err
		}
		if seen {
			u.metrics.WebhookEvent("unknown", WebhookDuplicate)
			return WebhookOutput{Status: WebhookDuplicate}, nil
		}
	}

	var env razorpayEnvelope
	if err := json.Unmarshal(in.Body, &env); err != nil || env.Event == "" {
		return WebhookOutput{}, errValidation("malformed webhook payload")
	}
	entity := env.Payload.Payment.Entity

	var (
		status string
		err    error
	)
	switch env.Event {
	case EventPaymentCaptured:
		status, err = u.captured(ctx, entity, in.Body)
	case EventPaymentFailed:
		status, err = u.failed(ctx, entity, in.Body)
	default:
		status = WebhookIgnored
	}
	if err != nil {
		u.metrics.WebhookEvent(env.Event, "error")
		return WebhookOutput{}, err
	}

	if in.EventID != "" {
		u.record(ctx, model.WebhookEvent{
			EventID:        in.EventID,
			EventType:      env.Event,
			GatewayOrderID: entity.OrderID,
		})
	}

	u.metrics.WebhookEvent(env.Event, status)
	return WebhookOutput{Status: status}, nil
}

func (u *WebhookUsecase) captured(ctx context.Context, p razorpayPayment, raw []byte) (string, error) {
	if p.OrderID == "" || p.ID == "" {
		return "", errValidation("malformed payment entity")
	}

	o, found, err := u.findByGatewayOrder(ctx, p.OrderID)
	if err != nil {
		return "", err
	}
	if !found {
		//このストアの注文ではない
		u.log.Info("webhook for unknown gateway order", zap.String("gateway_order_id", p.OrderID))
		return WebhookIgnored, nil
	}

	if expected := model.ToMinorUnits(o.TotalAmount); p.Amount != expected {
		u.log.Warn("captured amount differs from order total",
			zap.String("order_id", o.ID),
			zap.String("gateway_order_id", p.OrderID),
			zap.Int64("captured", p.Amount),
			zap.Int64("expected", expected),
		)
	}

	method := p.Method
	if method == "" {
		method = "unknown"
	}
	res, err := u.reconciler.Settle(ctx, SettleInput{
		OrderID:          o.ID,
		GatewayPaymentID: p.ID,
		PaymentMethod:    method,
		RawMeta:          string(raw),
		Trigger:          TriggerWebhook,
	})
	if err != nil {
		return "", err
	}
	u.notifier.OrderConfirmed(ctx, res)

	return WebhookProcessed, nil
}

func (u *WebhookUsecase) failed(ctx context.Context, p razorpayPayment, raw []byte) (string, error) {
	if p.OrderID == "" {
		return "", errValidation("malformed payment entity")
	}

	o, found, err := u.findByGatewayOrder(ctx, p.OrderID)
	if err != nil {
		return "", err
	}
	if !found {
		return WebhookIgnored, nil
	}

	if _, err := u.reconciler.MarkFailed(ctx, o.ID, string(raw)); err != nil {
		return "", err
	}
	return WebhookProcessed, nil
}

func (u *WebhookUsecase) findByGatewayOrder(ctx context.Context, gatewayOrderID string) (model.Order, bool, error) {
	var (
		o     model.Order
		found bool
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		got, err := r.Orders().FindByGatewayOrderID(ctx, gatewayOrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return errDB()
		}
		o, found = got, true
		return nil
	})
	return o, found, err
}

func (u *WebhookUsecase) seen(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.WebhookEvents().Exists(ctx, eventID)
		if err != nil {
			return errDB()
		}
		seen = ok
		return nil
	})
	return seen, err
}

// 記録に失敗しても、次の再送は状態ガードで何もしないので処理は成功扱い
func (u *WebhookUsecase) record(ctx context.Context, ev model.WebhookEvent) {
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.WebhookEvents().Record(ctx, ev)
	})
	if err != nil {
		u.log.Warn("webhook event not recorded", zap.String("event_id", ev.EventID), zap.Error(err))
	}
}

