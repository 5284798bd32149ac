package usecase

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// 購入者本人の注文参照
type OrderUsecase struct {
	tx repo.TransactionManager
}

func NewOrderUsecase(tx repo.TransactionManager) *OrderUsecase {
	return &OrderUsecase{tx: tx}
}

type OrderItemOutput struct {
	ProductID   int64           `json:"product_id"`
	VariantID   int64           `json:"variant_id"`
	ProductName string          `json:"product_name"`
	VariantName string          `json:"variant_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
}

type OrderOutput struct {
	ID                string            `json:"id"`
	UserID            int64             `json:"user_id"`
	PaymentStatus     string            `json:"payment_status"`
	OrderStatus       string            `json:"order_status"`
	TotalAmount       decimal.Decimal   `json:"total_amount"`
	Currency          string            `json:"currency"`
	Address           string            `json:"address"`
	Phone             string            `json:"phone"`
	RazorpayOrderID   string            `json:"razorpay_order_id,omitempty"`
	RazorpayPaymentID string            `json:"razorpay_payment_id,omitempty"`
	PaymentMethod     string            `json:"payment_method,omitempty"`
	PaymentCapturedAt *time.Time        `json:"payment_captured_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	Items             []OrderItemOutput `json:"items"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, errUnauthenticated()
	}

	//ページングでまずは固定で取る
	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByUserID(ctx, userID, 1, 50)
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

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID string) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, errUnauthenticated()
	}
	if !isOrderID(orderID) {
		return OrderOutput{}, errOrderNotFound()
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return errOrderNotFound()
		}
		if err != nil {
			return errDB()
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return errOrderNotFound()
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return errDB()
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 注文IDはUUID。形式違いはDBに問い合わせず404
func isOrderID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			ProductName: it.ProductName,
			VariantName: it.VariantName,
			Price:       it.Price,
			Quantity:    it.Quantity,
		})
	}

	return OrderOutput{
		ID:                o.ID,
		UserID:            o.UserID,
		PaymentStatus:     string(o.PaymentStatus),
		OrderStatus:       string(o.OrderStatus),
		TotalAmount:       o.TotalAmount,
		Currency:          o.Currency,
		Address:           o.Address,
		Phone:             o.Phone,
		RazorpayOrderID:   o.RazorpayOrderID,
		RazorpayPaymentID: o.RazorpayPaymentID,
		PaymentMethod:     o.PaymentMethod,
		PaymentCapturedAt: o.PaymentCapturedAt,
		CreatedAt:         o.CreatedAt,
		Items:             outItems,
	}
}
