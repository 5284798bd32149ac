package repository_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/infra/db"
	infraRepo "storefront/internal/infra/repository"
	repo "storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// 実DBに対して動かす（TEST_DATABASE_DSNが無ければskip）
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	gdb, err := db.Connect(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func newPendingOrder() model.Order {
	return model.Order{
		ID:            uuid.NewString(),
		UserID:        1,
		TotalAmount:   decimal.RequireFromString("499.50"),
		Currency:      "INR",
		Address:       "12 MG Road, Bengaluru",
		Phone:         "+91 98765 43210",
		PaymentStatus: model.PaymentStatusPending,
		OrderStatus:   model.OrderStatusPending,
	}
}

func TestOrderGorm_CreateAndFind(t *testing.T) {
	gdb := openTestDB(t)
	ctx := context.Background()
	orders := infraRepo.NewOrderGormRepository(gdb)

	o := newPendingOrder()
	require.NoError(t, orders.Create(ctx, o))

	got, err := orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, o.TotalAmount.Equal(got.TotalAmount))

	err = orders.Create(ctx, o)
	assert.True(t, errors.Is(err, repo.ErrDuplicate))

	_, err = orders.FindByID(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, repo.ErrNotFound))
}

// 同時に確定しても勝つのは1つだけ
func TestOrderGorm_MarkPaid_Concurrent(t *testing.T) {
	gdb := openTestDB(t)
	ctx := context.Background()
	tm := infraRepo.NewTxManagerGorm(gdb)

	o := newPendingOrder()
	require.NoError(t, infraRepo.NewOrderGormRepository(gdb).Create(ctx, o))

	const n = 4
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := tm.WithinTx(ctx, func(r repo.TxRepos) error {
				ok, err := r.Orders().MarkPaid(ctx, o.ID, model.PaymentCapture{
					GatewayPaymentID: "pay_it_1",
					Method:           "upi",
					CapturedAt:       time.Now(),
				})
				if err != nil {
					return err
				}
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestTxManagerGorm_RollsBack(t *testing.T) {
	gdb := openTestDB(t)
	ctx := context.Background()
	tm := infraRepo.NewTxManagerGorm(gdb)

	o := newPendingOrder()
	boom := errors.New("boom")
	err := tm.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Orders().Create(ctx, o); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = infraRepo.NewOrderGormRepository(gdb).FindByID(ctx, o.ID)
	assert.True(t, errors.Is(err, repo.ErrNotFound))
}

func TestWebhookEventGorm_RecordIgnoresDuplicate(t *testing.T) {
	gdb := openTestDB(t)
	ctx := context.Background()
	events := infraRepo.NewWebhookEventGormRepository(gdb)

	ev := model.WebhookEvent{EventID: "evt_" + uuid.NewString(), EventType: "payment.captured", GatewayOrderID: "order_it_1"}
	require.NoError(t, events.Record(ctx, ev))
	require.NoError(t, events.Record(ctx, ev))

	ok, err := events.Exists(ctx, ev.EventID)
	require.NoError(t, err)
	assert.True(t, ok)
}
