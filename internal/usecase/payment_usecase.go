package usecase

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

type PaymentUsecase struct {
	tx         repo.TransactionManager
	gateway    PaymentGateway
	verifier   SignatureVerifier
	reconciler *Reconciler
	notifier   *NotificationDispatcher
	keyID      string
	log        *zap.Logger
}

func NewPaymentUsecase(
	tx repo.TransactionManager,
	gateway PaymentGateway,
	verifier SignatureVerifier,
	reconciler *Reconciler,
	notifier *NotificationDispatcher,
	keyID string,
	log *zap.Logger,
) *PaymentUsecase {
	return &PaymentUsecase{
		tx:         tx,
		gateway:    gateway,
		verifier:   verifier,
		reconciler: reconciler,
		notifier:   notifier,
		keyID:      keyID,
		log:        log,
	}
}

// 決済ウィジェットを開くのに必要な値
type PaymentOrderOutput struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	OrderID  string `json:"orderId"`
	KeyID    string `json:"keyId"`
}

// ゲートウェイ注文を作り、相関IDを注文に保存する。確定前なら何度でも作り直せる
func (u *PaymentUsecase) CreatePaymentOrder(ctx context.Context, userID int64, orderID string) (PaymentOrderOutput, error) {
	if userID <= 0 {
		return PaymentOrderOutput{}, errUnauthenticated()
	}
	if strings.TrimSpace(orderID) == "" {
		return PaymentOrderOutput{}, errValidation("orderId required")
	}

	o, err := u.loadOwnedOrder(ctx, userID, orderID)
	if err != nil {
		return PaymentOrderOutput{}, err
	}
	//キャンセル済みの注文は決済を開き直さない
	if o.PaymentStatus != model.PaymentStatusPending || o.OrderStatus != model.OrderStatusPending {
		return PaymentOrderOutput{}, errNotPending()
	}

	//金額の単位変換はここだけ
	amount := model.ToMinorUnits(o.TotalAmount)

	//外部呼び出しはトランザクションの外で
	gw, err := u.gateway.CreateOrder(ctx, GatewayOrderRequest{
		AmountMinor: amount,
		Currency:    o.Currency,
		Receipt:     o.ID,
		Notes: map[string]string{
			"order_id": o.ID,
			"user_id":  strconv.FormatInt(userID, 10),
		},
	})
	if err != nil {
		u.log.Error("gateway create order failed", zap.String("order_id", o.ID), zap.Error(err))
		return PaymentOrderOutput{}, newCodedError(http.StatusBadGateway, "GATEWAY_UNAVAILABLE", ErrGatewayUnavailable, "payment gateway unavailable, retry later", nil)
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Orders().AttachGatewayOrder(ctx, o.ID, gw.ID)
		if err != nil {
			return errDB()
		}
		if !ok {
			return errNotPending()
		}
		return nil
	})
	if err != nil {
		return PaymentOrderOutput{}, err
	}

	u.log.Info("gateway order opened",
		zap.String("order_id", o.ID),
		zap.String("gateway_order_id", gw.ID),
		zap.Int64("amount", amount),
	)

	return PaymentOrderOutput{
		ID:       gw.ID,
		Amount:   amount,
		Currency: o.Currency,
		OrderID:  o.ID,
		KeyID:    u.keyID,
	}, nil
}

type VerifyPaymentInput struct {
	OrderID          string
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

type VerifyPaymentOutput struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId"`
}

// クライアント経由の確定
func (u *PaymentUsecase) VerifyPayment(ctx context.Context, userID int64, in VerifyPaymentInput) (VerifyPaymentOutput, error) {
	if userID <= 0 {
		return VerifyPaymentOutput{}, errUnauthenticated()
	}
	if strings.TrimSpace(in.OrderID) == "" || in.GatewayOrderID == "" || in.GatewayPaymentID == "" || in.Signature == "" {
		return VerifyPaymentOutput{}, errValidation("orderId and paymentResponse are required")
	}

	o, err := u.loadOwnedOrder(ctx, userID, in.OrderID)
	if err != nil {
		return VerifyPaymentOutput{}, err
	}
	if o.OrderStatus == model.OrderStatusCancelled {
		return VerifyPaymentOutput{}, errNotPending()
	}

	//別の注文の決済結果を使い回されないように
	if o.RazorpayOrderID == "" || o.RazorpayOrderID != in.GatewayOrderID {
		u.log.Warn("gateway order mismatch",
			zap.String("order_id", o.ID),
			zap.String("gateway_order_id", in.GatewayOrderID),
		)
		return VerifyPaymentOutput{}, newCodedError(http.StatusBadRequest, "ORDER_MISMATCH", ErrOrderMismatch, "order mismatch", nil)
	}

	if !u.verifier.VerifyPaymentSignature(in.GatewayOrderID, in.GatewayPaymentID, in.Signature) {
		u.log.Warn("payment signature rejected",
			zap.String("order_id", o.ID),
			zap.String("gateway_order_id", in.GatewayOrderID),
			zap.String("trigger", TriggerVerify),
		)
		return VerifyPaymentOutput{}, errInvalidSignature()
	}

	//支払い方法は取れなくても確定はする
	method := "unknown"
	meta := ""
	if p, err := u.gateway.FetchPayment(ctx, in.GatewayPaymentID); err != nil {
		u.log.Warn("fetch payment failed", zap.String("order_id", o.ID), zap.Error(err))
	} else {
		if p.Method != "" {
			method = p.Method
		}
		meta = p.Raw
	}

	res, err := u.reconciler.Settle(ctx, SettleInput{
		OrderID:          o.ID,
		GatewayPaymentID: in.GatewayPaymentID,
		PaymentMethod:    method,
		RawMeta:          meta,
		Trigger:          TriggerVerify,
	})
	if err != nil {
		return VerifyPaymentOutput{}, err
	}
	u.notifier.OrderConfirmed(ctx, res)

	return VerifyPaymentOutput{Success: true, OrderID: o.ID}, nil
}

func (u *PaymentUsecase) loadOwnedOrder(ctx context.Context, userID int64, orderID string) (model.Order, error) {
	if !isOrderID(orderID) {
		return model.Order{}, errOrderNotFound()
	}

	var o model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		found, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return errOrderNotFound()
		}
		if err != nil {
			return errDB()
		}
		o = found
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	if o.UserID != userID {
		return model.Order{}, errForbidden()
	}
	return o, nil
}
