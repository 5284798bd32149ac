package usecase_test

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryUsecase_Availability(t *testing.T) {
	f := newFixture(t)

	out, err := f.inventory.Availability(context.Background(), f.variant.ID, 5)
	require.NoError(t, err)
	assert.True(t, out.Available)
	assert.Equal(t, int64(5), out.CurrentStock)

	out, err = f.inventory.Availability(context.Background(), f.variant.ID, 6)
	require.NoError(t, err)
	assert.False(t, out.Available)
}

func TestInventoryUsecase_Availability_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.inventory.Availability(context.Background(), 9999, 1)
	assertHTTPError(t, err, http.StatusNotFound, "VARIANT_NOT_FOUND")

	_, err = f.inventory.Availability(context.Background(), f.variant.ID, 0)
	assertHTTPError(t, err, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestInventoryUsecase_AdminSetStock_WritesLedgerAndAudit(t *testing.T) {
	f := newFixture(t)

	out, err := f.inventory.AdminSetStock(context.Background(), 42, f.variant.ID, usecase.AdminSetStockInput{Stock: 12, Reason: " restock from supplier "})
	require.NoError(t, err)
	assert.Equal(t, int64(5), out.BeforeStock)
	assert.Equal(t, int64(12), out.Stock)
	assert.Equal(t, f.product.ID, out.ProductID)

	p, _ := f.store.Product(f.product.ID)
	assert.Equal(t, int64(12), p.TotalStock)

	adj := f.store.Adjustments()
	require.Len(t, adj, 1)
	assert.Equal(t, int64(7), adj[0].Delta)
	assert.Equal(t, "restock from supplier", adj[0].Reason)
	assert.Equal(t, int64(42), adj[0].ActorUserID)
	assert.Nil(t, adj[0].OrderID)

	logs := f.store.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionSetVariantStock, logs[0].Action)
	assert.Equal(t, model.AuditResourceVariant, logs[0].ResourceType)
	assert.Equal(t, strconv.FormatInt(f.variant.ID, 10), logs[0].ResourceID)
	assert.JSONEq(t, `{"stock":5}`, logs[0].BeforeJSON)
	assert.JSONEq(t, `{"stock":12,"reason":"restock from supplier"}`, logs[0].AfterJSON)
}

// 同じ値なら履歴を残さない
func TestInventoryUsecase_AdminSetStock_NoChange(t *testing.T) {
	f := newFixture(t)

	out, err := f.inventory.AdminSetStock(context.Background(), 42, f.variant.ID, usecase.AdminSetStockInput{Stock: 5, Reason: "recount"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), out.Stock)
	assert.Empty(t, f.store.Adjustments())
	assert.Empty(t, f.store.AuditLogs())
}

func TestInventoryUsecase_AdminSetStock_Validation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name      string
		adminID   int64
		variantID int64
		in        usecase.AdminSetStockInput
		want      string
	}{
		{"negative stock", 1, f.variant.ID, usecase.AdminSetStockInput{Stock: -1, Reason: "x"}, "stock must be >= 0"},
		{"missing reason", 1, f.variant.ID, usecase.AdminSetStockInput{Stock: 1, Reason: "  "}, "reason required"},
		{"bad id", 1, 0, usecase.AdminSetStockInput{Stock: 1, Reason: "x"}, "invalid id"},
		{"no actor", 0, f.variant.ID, usecase.AdminSetStockInput{Stock: 1, Reason: "x"}, "unauthorized"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.inventory.AdminSetStock(context.Background(), tc.adminID, tc.variantID, tc.in)
			assertErrContains(t, err, tc.want)
		})
	}
	assert.Equal(t, int64(5), f.stock(t))
}

func TestInventoryUsecase_AdminSetStock_UnknownVariant(t *testing.T) {
	f := newFixture(t)

	_, err := f.inventory.AdminSetStock(context.Background(), 1, 9999, usecase.AdminSetStockInput{Stock: 1, Reason: "x"})
	assertHTTPError(t, err, http.StatusNotFound, "VARIANT_NOT_FOUND")
}

func TestInventoryUsecase_ListAuditLogs(t *testing.T) {
	f := newFixture(t)

	_, err := f.inventory.AdminSetStock(context.Background(), 1, f.variant.ID, usecase.AdminSetStockInput{Stock: 8, Reason: "a"})
	require.NoError(t, err)
	_, err = f.inventory.AdminSetStock(context.Background(), 1, f.variant.ID, usecase.AdminSetStockInput{Stock: 9, Reason: "b"})
	require.NoError(t, err)

	logs, err := f.inventory.ListAuditLogs(context.Background(), usecase.AuditLogListInput{ResourceType: "variant"})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	// 新しい順
	assert.JSONEq(t, `{"stock":9,"reason":"b"}`, logs[0].AfterJSON)

	logs, err = f.inventory.ListAuditLogs(context.Background(), usecase.AuditLogListInput{ResourceType: "order"})
	require.NoError(t, err)
	assert.Empty(t, logs)

	_, err = f.inventory.ListAuditLogs(context.Background(), usecase.AuditLogListInput{ResourceType: "cart"})
	assertErrContains(t, err, "invalid resource_type")
}

func TestInventoryUsecase_ListAuditLogs_Filters(t *testing.T) {
	f := newFixture(t)

	_, err := f.inventory.AdminSetStock(context.Background(), 1, f.variant.ID, usecase.AdminSetStockInput{Stock: 8, Reason: "a"})
	require.NoError(t, err)
	_, err = f.inventory.AdminSetStock(context.Background(), 2, f.variant.ID, usecase.AdminSetStockInput{Stock: 9, Reason: "b"})
	require.NoError(t, err)

	logs, err := f.inventory.ListAuditLogs(context.Background(), usecase.AuditLogListInput{ActorUserID: 2, Action: "SET_VARIANT_STOCK"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, int64(2), logs[0].ActorUserID)

	// fixtureの時計より後
	from := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	logs, err = f.inventory.ListAuditLogs(context.Background(), usecase.AuditLogListInput{From: &from})
	require.NoError(t, err)
	assert.Empty(t, logs)

	_, err = f.inventory.ListAuditLogs(context.Background(), usecase.AuditLogListInput{Action: "DELETE_EVERYTHING"})
	assertErrContains(t, err, "invalid action")

	to := from.Add(-time.Hour)
	_, err = f.inventory.ListAuditLogs(context.Background(), usecase.AuditLogListInput{From: &from, To: &to})
	assertErrContains(t, err, "from must be before to")
}

// 確定済み注文のキャンセルで在庫が戻る（決済確定→キャンセルの通し）
func TestInventory_SettleThenCancel_RoundTrip(t *testing.T) {
	f := newFixture(t)
	created := f.placeOrder(t, 2)

	_, err := f.reconciler.Settle(context.Background(), usecase.SettleInput{OrderID: created.OrderID, GatewayPaymentID: "pay_1", Trigger: usecase.TriggerVerify})
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.stock(t))

	err = f.admin.UpdateStatus(context.Background(), 7, created.OrderID, usecase.AdminUpdateOrderStatusInput{Status: "CANCELLED"})
	require.NoError(t, err)

	assert.Equal(t, int64(5), f.stock(t))
	p, _ := f.store.Product(f.product.ID)
	assert.Equal(t, int64(5), p.TotalStock)

	o, _ := f.store.Order(created.OrderID)
	assert.Equal(t, model.OrderStatusCancelled, o.OrderStatus)
	assert.Equal(t, model.PaymentStatusSuccess, o.PaymentStatus)

	adj := f.store.Adjustments()
	require.Len(t, adj, 2)
	assert.Equal(t, model.AdjustmentReasonRestock, adj[1].Reason)
	assert.Equal(t, int64(7), adj[1].ActorUserID)
}
