package memrepo

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WithinTx_RollbackOnError(t *testing.T) {
	s := New()
	_, vs := s.AddProduct(model.Product{Name: "Tee"}, model.ProductVariant{Name: "M", Price: decimal.RequireFromString("10.00"), Stock: 5})

	boom := errors.New("boom")
	err := s.WithinTx(context.Background(), func(r repo.TxRepos) error {
		if _, err := r.Inventory().DecreaseVariantStock(context.Background(), vs[0].ID, 2); err != nil {
			return err
		}
		if err := r.Orders().Create(context.Background(), model.Order{ID: "o-1"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	v, ok := s.Variant(vs[0].ID)
	require.True(t, ok)
	assert.Equal(t, int64(5), v.Stock)
	assert.Equal(t, 0, s.OrderCount())
}

func TestStore_AddProduct_TotalStock(t *testing.T) {
	s := New()
	p, vs := s.AddProduct(model.Product{Name: "Tee"},
		model.ProductVariant{Name: "S", Stock: 2},
		model.ProductVariant{Name: "M", Stock: 3},
	)
	require.Len(t, vs, 2)
	assert.Equal(t, int64(5), p.TotalStock)
	assert.Equal(t, p.ID, vs[1].ProductID)
}

func TestOrders_MarkPaid_OnlyOnce(t *testing.T) {
	s := New()
	ctx := context.Background()

	var first, second bool
	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Orders().Create(ctx, model.Order{ID: "o-1", PaymentStatus: model.PaymentStatusPending, OrderStatus: model.OrderStatusPending}); err != nil {
			return err
		}
		var err error
		first, err = r.Orders().MarkPaid(ctx, "o-1", model.PaymentCapture{GatewayPaymentID: "pay_1", Method: "upi"})
		if err != nil {
			return err
		}
		second, err = r.Orders().MarkPaid(ctx, "o-1", model.PaymentCapture{GatewayPaymentID: "pay_2", Method: "card"})
		return err
	})
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)

	o, _ := s.Order("o-1")
	assert.Equal(t, "pay_1", o.RazorpayPaymentID)
	assert.Equal(t, model.OrderStatusConfirmed, o.OrderStatus)
}

func TestOrders_AttachGatewayOrder_SkipsCancelled(t *testing.T) {
	s := New()
	ctx := context.Background()

	var attached bool
	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Orders().Create(ctx, model.Order{ID: "o-1", PaymentStatus: model.PaymentStatusPending, OrderStatus: model.OrderStatusCancelled}); err != nil {
			return err
		}
		var err error
		attached, err = r.Orders().AttachGatewayOrder(ctx, "o-1", "order_gw_1")
		return err
	})
	require.NoError(t, err)
	assert.False(t, attached)

	o, ok := s.Order("o-1")
	require.True(t, ok)
	assert.Empty(t, o.RazorpayOrderID)
}

func TestUsers_DuplicateEmail(t *testing.T) {
	u := NewUsers()
	ctx := context.Background()

	require.NoError(t, u.Create(ctx, &model.User{Email: "a@example.com"}))
	err := u.Create(ctx, &model.User{Email: "a@example.com"})
	assert.ErrorIs(t, err, repo.ErrDuplicate)

	got, err := u.FindByEmail(ctx, "missing@example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}
