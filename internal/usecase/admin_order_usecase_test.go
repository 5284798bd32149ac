package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// AdminTxManagerMock は WithinTx の中で渡す repos を固定して unit テストを回す
type AdminTxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *AdminTxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	// 呼ばれた事実だけ記録（ctxの具体値は問わない）
	m.Called(ctx)
	return fn(m.Repos)
}

type AdminTxReposMock struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	inventory  repo.InventoryRepository
	auditLogs  repo.AuditLogRepository

	// AdminOrderUsecase では使わないが TxRepos interface を満たすために保持
	products      repo.ProductRepository
	webhookEvents repo.WebhookEventRepository
}

func (r *AdminTxReposMock) Orders() repo.OrderRepository               { return r.orders }
func (r *AdminTxReposMock) OrderItems() repo.OrderItemRepository       { return r.orderItems }
func (r *AdminTxReposMock) Inventory() repo.InventoryRepository        { return r.inventory }
func (r *AdminTxReposMock) AuditLogs() repo.AuditLogRepository         { return r.auditLogs }
func (r *AdminTxReposMock) Products() repo.ProductRepository           { return r.products }
func (r *AdminTxReposMock) WebhookEvents() repo.WebhookEventRepository { return r.webhookEvents }

// =====================
// Repository mocks (Admin向け：衝突回避)
// =====================

type AdminOrderRepoMock struct{ mock.Mock }

func (m *AdminOrderRepoMock) Create(ctx context.Context, order model.Order) error {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminOrderRepoMock) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminOrderRepoMock) LockByID(ctx context.Context, orderID string) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *AdminOrderRepoMock) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (model.Order, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminOrderRepoMock) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminOrderRepoMock) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	args := m.Called(ctx, f)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

func (m *AdminOrderRepoMock) AttachGatewayOrder(ctx context.Context, orderID string, gatewayOrderID string) (bool, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminOrderRepoMock) MarkPaid(ctx context.Context, orderID string, c model.PaymentCapture) (bool, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminOrderRepoMock) MarkFailed(ctx context.Context, orderID string, f model.PaymentFailure) (bool, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminOrderRepoMock) UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

type AdminOrderItemRepoMock struct{ mock.Mock }

func (m *AdminOrderItemRepoMock) CreateBulk(ctx context.Context, orderID string, items []model.OrderItem) error {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminOrderItemRepoMock) ListByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

type AdminInventoryRepoMock struct{ mock.Mock }

func (m *AdminInventoryRepoMock) LockVariant(ctx context.Context, variantID int64) (model.ProductVariant, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminInventoryRepoMock) SetVariantStock(ctx context.Context, variantID int64, newStock int64) error {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminInventoryRepoMock) DecreaseVariantStock(ctx context.Context, variantID int64, qty int64) (int64, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *AdminInventoryRepoMock) IncreaseVariantStock(ctx context.Context, variantID int64, qty int64) error {
	args := m.Called(ctx, variantID, qty)
	return args.Error(0)
}

func (m *AdminInventoryRepoMock) ShiftTotalStock(ctx context.Context, productID int64, delta int64) error {
	args := m.Called(ctx, productID, delta)
	return args.Error(0)
}

func (m *AdminInventoryRepoMock) CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error {
	args := m.Called(ctx, adjustment)
	return args.Error(0)
}

type AdminAuditRepoMock struct{ mock.Mock }

func (m *AdminAuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *AdminAuditRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	panic("not used in AdminOrderUsecase tests")
}

// =====================
// Helper
// =====================

const (
	adminOrderID = "7b0e3a52-6d4e-4f7c-9a43-1d2b3c4d5e6f"
	adminID      = int64(999)
)

type adminMocks struct {
	tx        *AdminTxManagerMock
	orders    *AdminOrderRepoMock
	items     *AdminOrderItemRepoMock
	inventory *AdminInventoryRepoMock
	audit     *AdminAuditRepoMock
	uc        *usecase.AdminOrderUsecase
}

func newAdminMocks() *adminMocks {
	m := &adminMocks{
		tx:        new(AdminTxManagerMock),
		orders:    new(AdminOrderRepoMock),
		items:     new(AdminOrderItemRepoMock),
		inventory: new(AdminInventoryRepoMock),
		audit:     new(AdminAuditRepoMock),
	}
	m.tx.Repos = &AdminTxReposMock{
		orders:     m.orders,
		orderItems: m.items,
		inventory:  m.inventory,
		auditLogs:  m.audit,
	}
	m.tx.On("WithinTx", mock.Anything).Return(nil)

	clock := fixedClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	m.uc = usecase.NewAdminOrderUsecase(m.tx, usecase.NewInventoryLedger(clock, zap.NewNop()), clock)
	return m
}

// =====================
// List tests
// =====================

func TestAdminOrderUsecase_List_InvalidPage(t *testing.T) {
	m := newAdminMocks()

	outs, err := m.uc.List(context.Background(), repo.AdminOrderListFilter{Page: 0, Limit: 20})
	assert.Equal(t, 0, len(outs))
	assertErrContains(t, err, "invalid page")
}

func TestAdminOrderUsecase_List_InvalidLimit(t *testing.T) {
	m := newAdminMocks()

	outs, err := m.uc.List(context.Background(), repo.AdminOrderListFilter{Page: 1, Limit: 0})
	assert.Equal(t, 0, len(outs))
	assertErrContains(t, err, "invalid limit")
}

func TestAdminOrderUsecase_List_Success_CallsItemsPerOrder(t *testing.T) {
	m := newAdminMocks()

	f := repo.AdminOrderListFilter{Page: 1, Limit: 20, PaymentStatus: "SUCCESS"}

	orders := []model.Order{
		{ID: "o-10", PaymentStatus: model.PaymentStatusSuccess, OrderStatus: model.OrderStatusConfirmed},
		{ID: "o-11", PaymentStatus: model.PaymentStatusSuccess, OrderStatus: model.OrderStatusShipped},
	}

	m.orders.On("ListAdmin", mock.Anything, f).Return(orders, int64(2), nil)
	m.items.On("ListByOrderID", mock.Anything, "o-10").Return([]model.OrderItem{{VariantID: 1, Quantity: 1}}, nil)
	m.items.On("ListByOrderID", mock.Anything, "o-11").Return([]model.OrderItem{}, nil)

	outs, err := m.uc.List(context.Background(), f)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(outs))
	assert.Len(t, outs[0].Items, 1)
	assert.Equal(t, "SHIPPED", outs[1].OrderStatus)

	m.tx.AssertExpectations(t)
	m.orders.AssertExpectations(t)
	m.items.AssertExpectations(t)
}

func TestAdminOrderUsecase_List_DBError(t *testing.T) {
	m := newAdminMocks()

	f := repo.AdminOrderListFilter{Page: 1, Limit: 20}
	m.orders.On("ListAdmin", mock.Anything, f).Return(nil, int64(0), errors.New("db down"))

	_, err := m.uc.List(context.Background(), f)
	assertErrContains(t, err, "db error")
}

// =====================
// UpdateStatus tests
// =====================

func TestAdminOrderUsecase_UpdateStatus_UnauthorizedActor(t *testing.T) {
	m := newAdminMocks()

	err := m.uc.UpdateStatus(context.Background(), 0, adminOrderID, usecase.AdminUpdateOrderStatusInput{Status: "SHIPPED"})
	assertErrContains(t, err, "unauthorized")
}

func TestAdminOrderUsecase_UpdateStatus_InvalidOrderID(t *testing.T) {
	m := newAdminMocks()

	err := m.uc.UpdateStatus(context.Background(), adminID, "123", usecase.AdminUpdateOrderStatusInput{Status: "SHIPPED"})
	assertErrContains(t, err, "invalid id")
	m.tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestAdminOrderUsecase_UpdateStatus_InvalidStatus(t *testing.T) {
	m := newAdminMocks()

	for _, s := range []string{"XXX", "PENDING", "CONFIRMED", ""} {
		err := m.uc.UpdateStatus(context.Background(), adminID, adminOrderID, usecase.AdminUpdateOrderStatusInput{Status: s})
		assertErrContains(t, err, "invalid status")
	}
}

func TestAdminOrderUsecase_UpdateStatus_NotFound(t *testing.T) {
	m := newAdminMocks()

	m.orders.On("LockByID", mock.Anything, adminOrderID).Return(model.Order{}, repo.ErrNotFound)

	err := m.uc.UpdateStatus(context.Background(), adminID, adminOrderID, usecase.AdminUpdateOrderStatusInput{Status: "SHIPPED"})
	assertErrContains(t, err, "not found")

	m.orders.AssertExpectations(t)
}

func TestAdminOrderUsecase_UpdateStatus_SameStatus_NoOp(t *testing.T) {
	m := newAdminMocks()

	m.orders.On("LockByID", mock.Anything, adminOrderID).Return(model.Order{
		ID:            adminOrderID,
		PaymentStatus: model.PaymentStatusSuccess,
		OrderStatus:   model.OrderStatusShipped,
	}, nil)

	err := m.uc.UpdateStatus(context.Background(), adminID, adminOrderID, usecase.AdminUpdateOrderStatusInput{Status: "shipped"})
	assert.NoError(t, err)

	m.orders.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything)
	m.audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAdminOrderUsecase_UpdateStatus_CannotChangeCancelled(t *testing.T) {
	m := newAdminMocks()

	m.orders.On("LockByID", mock.Anything, adminOrderID).Return(model.Order{
		ID:            adminOrderID,
		PaymentStatus: model.PaymentStatusSuccess,
		OrderStatus:   model.OrderStatusCancelled,
	}, nil)

	err := m.uc.UpdateStatus(context.Background(), adminID, adminOrderID, usecase.AdminUpdateOrderStatusInput{Status: "SHIPPED"})
	assertErrContains(t, err, "cannot change cancelled order")
}

func TestAdminOrderUsecase_UpdateStatus_CannotChangeDelivered(t *testing.T) {
	m := newAdminMocks()

	m.orders.On("LockByID", mock.Anything, adminOrderID).Return(model.Order{
		ID:            adminOrderID,
		PaymentStatus: model.PaymentStatusSuccess,
		OrderStatus:   model.OrderStatusDelivered,
	}, nil)

	err := m.uc.UpdateStatus(context.Background(), adminID, adminOrderID, usecase.AdminUpdateOrderStatusInput{Status: "CANCELLED"})
	assertErrContains(t, err, "cannot change delivered order")
}

func TestAdminOrderUsecase_UpdateStatus_CannotCancelShipped(t *testing.T) {
	m := newAdminMocks()

	m.orders.On("LockByID", mock.Anything, adminOrderID).Return(model.Order{
		ID:            adminOrderID,
		PaymentStatus: model.PaymentStatusSuccess,
		OrderStatus:   model.OrderStatusShipped,
	}, nil)

	err := m.uc.UpdateStatus(context.Background(), adminID, adminOrderID, usecase.AdminUpdateOrderStatusInput{Status: "CANCELLED"})
	assertErrContains(t, err, "cannot cancel shipped order")
	m.inventory.AssertNotCalled(t, "IncreaseVariantStock", mock.Anything, mock.Anything, mock.Anything)
}

// 未払いの注文は出荷に進めない
func TestAdminOrderUsecase_UpdateStatus_NotPaid(t *testing.T) {
	m := newAdminMocks()

	m.orders.On("LockByID", mock.Anything, adminOrderID).Return(model.Order{
		ID:            adminOrderID,
		PaymentStatus: model.PaymentStatusPending,
		OrderStatus:   model.OrderStatusPending,
	}, nil)

	err := m.uc.UpdateStatus(context.Background(), adminID, adminOrderID, usecase.AdminUpdateOrderStatusInput{Status: "PACKED"})
	he := assertHTTPError(t, err, http.StatusConflict, "NOT_PAID")
	assert.ErrorIs(t, he, usecase.ErrInvalidTransition)
}

func TestAdminOrderUsecase_UpdateStatus_Backwards(t *testing.T) {
	m := newAdminMocks()

	m.orders.On("LockByID", mock.Anything, adminOrderID).Return(model.Order{
		ID:            adminOrderID,
		PaymentStatus: model.PaymentStatusSuccess,
		OrderStatus:   model.OrderStatusShipped,
	}, nil)

	err := m.uc.UpdateStatus(context.Background(), adminID, adminOrderID, usecase.AdminUpdateOrderStatusInput{Status: "PACKED"})
	assertErrContains(t, err, "invalid status transition")
}

// cancel: 確定済み -> CANCELLED のとき在庫戻し + audit
func TestAdminOrderUsecase_UpdateStatus_Cancel_RestoresStock_And_Audits(t *testing.T) {
	m := newAdminMocks()

	m.orders.On("LockByID", mock.Anything, adminOrderID).Return(model.Order{
		ID:            adminOrderID,
		PaymentStatus: model.PaymentStatusSuccess,
		OrderStatus:   model.OrderStatusConfirmed,
	}, nil)

	items := []model.OrderItem{
		{OrderID: adminOrderID, ProductID: 100, VariantID: 1000, Quantity: 2},
		{OrderID: adminOrderID, ProductID: 101, VariantID: 1010, Quantity: 1},
	}
	m.items.On("ListByOrderID", mock.Anything, adminOrderID).Return(items, nil)

	m.inventory.On("IncreaseVariantStock", mock.Anything, int64(1000), int64(2)).Return(nil)
	m.inventory.On("IncreaseVariantStock", mock.Anything, int64(1010), int64(1)).Return(nil)
	m.inventory.On("ShiftTotalStock", mock.Anything, int64(100), int64(2)).Return(nil)
	m.inventory.On("ShiftTotalStock", mock.Anything, int64(101), int64(1)).Return(nil)
	m.inventory.On("CreateAdjustment", mock.Anything, mock.MatchedBy(func(a model.InventoryAdjustment) bool {
		return a.ActorUserID == adminID &&
			a.Reason == model.AdjustmentReasonRestock &&
			a.Delta > 0 &&
			a.OrderID != nil && *a.OrderID == adminOrderID
	})).Return(nil).Times(2)

	m.orders.On("UpdateOrderStatus", mock.Anything, adminOrderID, model.OrderStatus("CANCELLED")).Return(nil)

	m.audit.On("Create", mock.Anything, mock.MatchedBy(func(a model.AuditLog) bool {
		// CreatedAt は now なので見ない
		if a.ActorUserID != adminID {
			return false
		}
		if a.Action != model.AuditActionUpdateOrderStatus {
			return false
		}
		if a.ResourceType != model.AuditResourceOrder {
			return false
		}
		if a.ResourceID != adminOrderID {
			return false
		}
		if a.BeforeJSON != `{"order_status":"CONFIRMED","payment_status":"SUCCESS"}` {
			return false
		}
		if a.AfterJSON != `{"order_status":"CANCELLED","payment_status":"SUCCESS"}` {
			return false
		}
		return true
	})).Return(nil)

	err := m.uc.UpdateStatus(context.Background(), adminID, adminOrderID, usecase.AdminUpdateOrderStatusInput{Status: "CANCELLED"})
	assert.NoError(t, err)

	m.orders.AssertExpectations(t)
	m.items.AssertExpectations(t)
	m.inventory.AssertExpectations(t)
	m.audit.AssertExpectations(t)
}

// 未払いのキャンセルは在庫を触らない（まだ減っていない）
func TestAdminOrderUsecase_UpdateStatus_CancelUnpaid_NoInventory(t *testing.T) {
	m := newAdminMocks()

	m.orders.On("LockByID", mock.Anything, adminOrderID).Return(model.Order{
		ID:            adminOrderID,
		PaymentStatus: model.PaymentStatusPending,
		OrderStatus:   model.OrderStatusPending,
	}, nil)
	m.orders.On("UpdateOrderStatus", mock.Anything, adminOrderID, model.OrderStatusCancelled).Return(nil)
	m.audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	err := m.uc.UpdateStatus(context.Background(), adminID, adminOrderID, usecase.AdminUpdateOrderStatusInput{Status: "CANCELLED"})
	assert.NoError(t, err)

	m.items.AssertNotCalled(t, "ListByOrderID", mock.Anything, mock.Anything)
	m.inventory.AssertNotCalled(t, "IncreaseVariantStock", mock.Anything, mock.Anything, mock.Anything)
	m.audit.AssertExpectations(t)
}

// shipped: CONFIRMED -> SHIPPED は在庫戻しなし + audit
func TestAdminOrderUsecase_UpdateStatus_Shipped_Audits_NoInventory(t *testing.T) {
	m := newAdminMocks()

	m.orders.On("LockByID", mock.Anything, adminOrderID).Return(model.Order{
		ID:            adminOrderID,
		PaymentStatus: model.PaymentStatusSuccess,
		OrderStatus:   model.OrderStatusConfirmed,
	}, nil)

	m.orders.On("UpdateOrderStatus", mock.Anything, adminOrderID, model.OrderStatus("SHIPPED")).Return(nil)

	m.audit.On("Create", mock.Anything, mock.MatchedBy(func(a model.AuditLog) bool {
		return a.ActorUserID == adminID &&
			a.ResourceID == adminOrderID &&
			a.BeforeJSON == `{"order_status":"CONFIRMED","payment_status":"SUCCESS"}` &&
			a.AfterJSON == `{"order_status":"SHIPPED","payment_status":"SUCCESS"}`
	})).Return(nil)

	err := m.uc.UpdateStatus(context.Background(), adminID, adminOrderID, usecase.AdminUpdateOrderStatusInput{Status: "SHIPPED"})
	assert.NoError(t, err)

	// cancel じゃないので在庫戻しは呼ばれない
	m.items.AssertNotCalled(t, "ListByOrderID", mock.Anything, mock.Anything)
	m.inventory.AssertNotCalled(t, "IncreaseVariantStock", mock.Anything, mock.Anything, mock.Anything)

	m.orders.AssertExpectations(t)
	m.audit.AssertExpectations(t)
}

func TestAdminOrderUsecase_UpdateStatus_DBError_OnUpdate(t *testing.T) {
	m := newAdminMocks()

	m.orders.On("LockByID", mock.Anything, adminOrderID).Return(model.Order{
		ID:            adminOrderID,
		PaymentStatus: model.PaymentStatusSuccess,
		OrderStatus:   model.OrderStatusPacked,
	}, nil)

	m.orders.On("UpdateOrderStatus", mock.Anything, adminOrderID, model.OrderStatus("SHIPPED")).Return(errors.New("db down"))

	err := m.uc.UpdateStatus(context.Background(), adminID, adminOrderID, usecase.AdminUpdateOrderStatusInput{Status: "SHIPPED"})
	assertErrContains(t, err, "db error")
}
