package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/infra/gateway"
	"storefront/internal/metrics"
	"storefront/internal/repository/memrepo"
	"storefront/internal/usecase"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testKeySecret     = "key-secret"
	testWebhookSecret = "webhook-secret"
)

// =====================
// 時計 / ID
// =====================

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type seqIDGen struct{ n atomic.Int64 }

func (g *seqIDGen) NewID() string {
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", g.n.Add(1))
}

// =====================
// ゲートウェイ / 通知のフェイク
// =====================

type fakeGateway struct {
	mu        sync.Mutex
	createErr error
	fetchErr  error
	method    string
	created   []usecase.GatewayOrderRequest
	seq       int
}

func (g *fakeGateway) CreateOrder(_ context.Context, req usecase.GatewayOrderRequest) (usecase.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return usecase.GatewayOrder{}, g.createErr
	}
	g.seq++
	g.created = append(g.created, req)
	return usecase.GatewayOrder{
		ID:          fmt.Sprintf("order_gw_%d", g.seq),
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
	}, nil
}

func (g *fakeGateway) FetchPayment(_ context.Context, paymentID string) (usecase.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return usecase.GatewayPayment{}, g.fetchErr
	}
	return usecase.GatewayPayment{ID: paymentID, Method: g.method, Status: "captured", Raw: `{"id":"` + paymentID + `"}`}, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []usecase.OrderConfirmation
	err  error
}

func (n *recordingNotifier) Channel() string { return "test" }

func (n *recordingNotifier) NotifyOrderConfirmed(_ context.Context, c usecase.OrderConfirmation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, c)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// =====================
// 組み立て
// =====================

type fixture struct {
	store    *memrepo.Store
	users    *memrepo.Users
	gateway  *fakeGateway
	notifier *recordingNotifier
	reg      *prometheus.Registry

	checkout   *usecase.CheckoutUsecase
	payments   *usecase.PaymentUsecase
	webhooks   *usecase.WebhookUsecase
	reconciler *usecase.Reconciler
	orders     *usecase.OrderUsecase
	admin      *usecase.AdminOrderUsecase
	inventory  *usecase.InventoryUsecase

	buyer   model.User
	variant model.ProductVariant
	product model.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memrepo.New()
	users := memrepo.NewUsers()
	clock := fixedClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	log := zap.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	gw := &fakeGateway{method: "upi"}
	notifier := &recordingNotifier{}
	verifier := gateway.NewHMACVerifier(testKeySecret, testWebhookSecret)

	ledger := usecase.NewInventoryLedger(clock, log)
	reconciler := usecase.NewReconciler(store, ledger, clock, log, m)
	dispatcher := usecase.NewNotificationDispatcher(users, log, m, notifier)

	buyer := model.User{Email: "buyer@example.com", Name: "Buyer", Role: model.RoleUser, IsActive: true}
	require.NoError(t, users.Create(context.Background(), &buyer))

	product, variants := store.AddProduct(
		model.Product{Name: "Kurta", IsActive: true},
		model.ProductVariant{Name: "M / Blue", SKU: "KUR-M-BLU", Price: decimal.RequireFromString("499.50"), Stock: 5},
	)

	return &fixture{
		store:      store,
		users:      users,
		gateway:    gw,
		notifier:   notifier,
		reg:        reg,
		checkout:   usecase.NewCheckoutUsecase(store, ledger, &seqIDGen{}, clock, "INR", log),
		payments:   usecase.NewPaymentUsecase(store, gw, verifier, reconciler, dispatcher, "rzp_test_key", log),
		webhooks:   usecase.NewWebhookUsecase(store, verifier, reconciler, dispatcher, log, m),
		reconciler: reconciler,
		orders:     usecase.NewOrderUsecase(store),
		admin:      usecase.NewAdminOrderUsecase(store, ledger, clock),
		inventory:  usecase.NewInventoryUsecase(store, ledger),
		buyer:      buyer,
		variant:    variants[0],
		product:    product,
	}
}

// 在庫5のバリアントをqty個買う注文
func (f *fixture) placeOrder(t *testing.T, qty int64) usecase.CreateOrderOutput {
	t.Helper()
	out, err := f.checkout.CreateOrder(context.Background(), f.buyer.ID, usecase.CreateOrderInput{
		Items: []usecase.CheckoutItemInput{{
			ProductID: f.product.ID,
			VariantID: f.variant.ID,
			Quantity:  qty,
			Price:     f.variant.Price,
		}},
		Address: "12 MG Road, Bengaluru",
		Phone:   "+91 98765 43210",
	})
	require.NoError(t, err)
	return out
}

// 注文を作ってゲートウェイ注文IDまで紐付ける
func (f *fixture) openPayment(t *testing.T, qty int64) (string, string) {
	t.Helper()
	created := f.placeOrder(t, qty)
	po, err := f.payments.CreatePaymentOrder(context.Background(), f.buyer.ID, created.OrderID)
	require.NoError(t, err)
	return created.OrderID, po.ID
}

func (f *fixture) stock(t *testing.T) int64 {
	t.Helper()
	v, ok := f.store.Variant(f.variant.ID)
	require.True(t, ok)
	return v.Stock
}

func paymentSignature(gatewayOrderID, paymentID string) string {
	return gateway.Sign([]byte(testKeySecret), []byte(gatewayOrderID+"|"+paymentID))
}

func webhookBody(event, gatewayOrderID, paymentID string, amount int64) []byte {
	return []byte(fmt.Sprintf(
		`{"entity":"event","event":%q,"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"method":"card","amount":%d,"currency":"INR","status":"captured"}}}}`,
		event, paymentID, gatewayOrderID, amount,
	))
}

func webhookInput(body []byte, eventID string) usecase.WebhookInput {
	return usecase.WebhookInput{
		Body:      body,
		Signature: gateway.Sign([]byte(testWebhookSecret), body),
		EventID:   eventID,
	}
}

// ラベルが一致するカウンタの合計
func (f *fixture) counter(t *testing.T, name, label, value string) float64 {
	t.Helper()
	mfs, err := f.reg.Gather()
	require.NoError(t, err)

	var sum float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					sum += m.GetCounter().GetValue()
				}
			}
		}
	}
	return sum
}

// HTTPErrorの実装詳細に依存しない
func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}

func assertHTTPError(t *testing.T, err error, status int, code string) *usecase.HTTPError {
	t.Helper()
	require.Error(t, err)
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok, "want *HTTPError, got %T: %v", err, err)
	assert.Equal(t, status, he.Status)
	if code != "" {
		assert.Equal(t, code, he.Code)
	}
	return he
}

var errBoom = errors.New("boom")
