package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// クライアントが持っているカートを、カタログの現在値で検証して注文にする
type CheckoutUsecase struct {
	tx       repo.TransactionManager
	ledger   *InventoryLedger
	idGen    IDGenerator
	clock    Clock
	currency string
	log      *zap.Logger
}

func NewCheckoutUsecase(
	tx repo.TransactionManager,
	ledger *InventoryLedger,
	idGen IDGenerator,
	clock Clock,
	currency string,
	log *zap.Logger,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		tx:       tx,
		ledger:   ledger,
		idGen:    idGen,
		clock:    clock,
		currency: currency,
		log:      log,
	}
}

// 画面に表示していた価格と名前（名前は保存に使わない）
type CheckoutItemInput struct {
	ProductID   int64
	VariantID   int64
	Quantity    int64
	Price       decimal.Decimal
	ProductName string
	VariantName string
}

type CreateOrderInput struct {
	Items   []CheckoutItemInput
	Address string
	Phone   string
}

type CreateOrderOutput struct {
	OrderID     string          `json:"orderId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

func (u *CheckoutUsecase) CreateOrder(ctx context.Context, userID int64, in CreateOrderInput) (CreateOrderOutput, error) {
	if userID <= 0 {
		return CreateOrderOutput{}, errUnauthenticated()
	}
	if len(in.Items) == 0 {
		return CreateOrderOutput{}, newCodedError(http.StatusBadRequest, "EMPTY_CART", ErrEmptyCart, "cart is empty", nil)
	}
	address := strings.TrimSpace(in.Address)
	phone := strings.TrimSpace(in.Phone)
	if address == "" {
		return CreateOrderOutput{}, errValidation("address required")
	}
	if phone == "" {
		return CreateOrderOutput{}, errValidation("phone required")
	}

	//同じバリアントが複数行ある場合は合計で在庫を見る
	requested := make(map[int64]int64, len(in.Items))
	for _, it := range in.Items {
		if it.ProductID <= 0 || it.VariantID <= 0 {
			return CreateOrderOutput{}, errValidation("invalid product or variant id")
		}
		if it.Quantity < 1 {
			return CreateOrderOutput{}, errValidation("quantity must be >= 1")
		}
		if it.Price.IsNegative() {
			return CreateOrderOutput{}, errValidation("invalid price")
		}
		requested[it.VariantID] += it.Quantity
	}

	var out CreateOrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		items := make([]model.OrderItem, 0, len(in.Items))
		total := decimal.Zero

		for _, it := range in.Items {
			variant, err := r.Products().FindVariantByID(ctx, it.VariantID)
			if errors.Is(err, repo.ErrNotFound) || (err == nil && variant.ProductID != it.ProductID) {
				return errVariantNotFound(it.VariantID)
			}
			if err != nil {
				return errDB()
			}
			product, err := r.Products().FindByID(ctx, it.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return errVariantNotFound(it.VariantID)
			}
			if err != nil {
				return errDB()
			}

			avail, err := u.ledger.CheckAvailability(ctx, r, it.VariantID, requested[it.VariantID])
			if err != nil {
				return errDB()
			}
			if !avail.Available {
				return newCodedError(http.StatusConflict, "INSUFFICIENT_STOCK", ErrInsufficientStock, "insufficient stock", map[string]any{
					"variantId": it.VariantID,
					"requested": requested[it.VariantID],
					"available": avail.CurrentStock,
				})
			}

			//価格は黙って直さない。画面を更新してもらう
			if !variant.Price.Equal(it.Price) {
				return newCodedError(http.StatusConflict, "PRICE_MISMATCH", ErrPriceMismatch, "price has changed, refresh and retry", map[string]any{
					"variantId":    it.VariantID,
					"claimedPrice": it.Price.String(),
					"currentPrice": variant.Price.String(),
				})
			}

			items = append(items, model.OrderItem{
				ProductID:   it.ProductID,
				VariantID:   it.VariantID,
				ProductName: product.Name,
				VariantName: variant.Name,
				Price:       variant.Price,
				Quantity:    it.Quantity,
				CreatedAt:   u.clock.Now(),
			})
			total = total.Add(variant.Price.Mul(decimal.NewFromInt(it.Quantity)))
		}

		now := u.clock.Now()
		order := model.Order{
			ID:            u.idGen.NewID(),
			UserID:        userID,
			TotalAmount:   total,
			Currency:      u.currency,
			Address:       address,
			Phone:         phone,
			PaymentStatus: model.PaymentStatusPending,
			OrderStatus:   model.OrderStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := r.Orders().Create(ctx, order); err != nil {
			return errDB()
		}
		if err := r.OrderItems().CreateBulk(ctx, order.ID, items); err != nil {
			return errDB()
		}

		out = CreateOrderOutput{OrderID: order.ID, TotalAmount: total}
		return nil
	})
	if err != nil {
		return CreateOrderOutput{}, err
	}

	u.log.Info("order created",
		zap.String("order_id", out.OrderID),
		zap.Int64("user_id", userID),
		zap.String("total", out.TotalAmount.StringFixed(2)),
	)
	return out, nil
}

func errVariantNotFound(variantID int64) error {
	return newCodedError(http.StatusNotFound, "VARIANT_NOT_FOUND", ErrVariantNotFound, "variant not found", map[string]any{
		"variantId": variantID,
	})
}
