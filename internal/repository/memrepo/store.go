// Package memrepo はTransactionManagerのインメモリ実装。
// トランザクションは1本ずつ直列に実行し、fnがエラーを返したら開始時点の状態に戻す。
package memrepo

import (
	"context"
	"sync"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

type state struct {
	orders      map[string]model.Order
	items       map[string][]model.OrderItem
	products    map[int64]model.Product
	variants    map[int64]model.ProductVariant
	adjustments []model.InventoryAdjustment
	audits      []model.AuditLog
	events      map[string]model.WebhookEvent

	nextItemID    int64
	nextAdjID     int64
	nextAuditID   int64
	nextProductID int64
	nextVariantID int64
}

func newState() *state {
	return &state{
		orders:   map[string]model.Order{},
		items:    map[string][]model.OrderItem{},
		products: map[int64]model.Product{},
		variants: map[int64]model.ProductVariant{},
		events:   map[string]model.WebhookEvent{},
	}
}

func (s *state) clone() *state {
	c := *s
	c.orders = make(map[string]model.Order, len(s.orders))
	for k, v := range s.orders {
		c.orders[k] = v
	}
	c.items = make(map[string][]model.OrderItem, len(s.items))
	for k, v := range s.items {
		c.items[k] = append([]model.OrderItem(nil), v...)
	}
	c.products = make(map[int64]model.Product, len(s.products))
	for k, v := range s.products {
		c.products[k] = v
	}
	c.variants = make(map[int64]model.ProductVariant, len(s.variants))
	for k, v := range s.variants {
		c.variants[k] = v
	}
	c.events = make(map[string]model.WebhookEvent, len(s.events))
	for k, v := range s.events {
		c.events[k] = v
	}
	c.adjustments = append([]model.InventoryAdjustment(nil), s.adjustments...)
	c.audits = append([]model.AuditLog(nil), s.audits...)
	return &c
}

var (
	_ repo.TransactionManager = (*Store)(nil)
	_ repo.UserRepository     = (*Users)(nil)
)

type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&txRepos{st: s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// 商品とバリアントを登録する。IDが0なら採番し、total_stockはバリアント在庫の合計にする
func (s *Store) AddProduct(p model.Product, variants ...model.ProductVariant) (model.Product, []model.ProductVariant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == 0 {
		s.st.nextProductID++
		p.ID = s.st.nextProductID
	}
	p.TotalStock = 0
	out := make([]model.ProductVariant, 0, len(variants))
	for _, v := range variants {
		if v.ID == 0 {
			s.st.nextVariantID++
			v.ID = s.st.nextVariantID
		}
		v.ProductID = p.ID
		p.TotalStock += v.Stock
		s.st.variants[v.ID] = v
		out = append(out, v)
	}
	s.st.products[p.ID] = p
	return p, out
}

// カタログの価格を変える（価格改定のテスト用）
func (s *Store) SetVariantPrice(variantID int64, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.st.variants[variantID]
	cur.Price = price
	s.st.variants[variantID] = cur
}

func (s *Store) Order(id string) (model.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[id]
	return o, ok
}

func (s *Store) OrderItems(id string) []model.OrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OrderItem(nil), s.st.items[id]...)
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}

func (s *Store) Variant(id int64) (model.ProductVariant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.st.variants[id]
	return v, ok
}

func (s *Store) Product(id int64) (model.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[id]
	return p, ok
}

func (s *Store) Adjustments() []model.InventoryAdjustment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.InventoryAdjustment(nil), s.st.adjustments...)
}

func (s *Store) AuditLogs() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditLog(nil), s.st.audits...)
}

func (s *Store) WebhookEventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.events)
}

type txRepos struct {
	st *state
}

func (r *txRepos) Orders() repo.OrderRepository               { return ordersRepo{r.st} }
func (r *txRepos) OrderItems() repo.OrderItemRepository       { return orderItemsRepo{r.st} }
func (r *txRepos) Products() repo.ProductRepository           { return productsRepo{r.st} }
func (r *txRepos) Inventory() repo.InventoryRepository        { return inventoryRepo{r.st} }
func (r *txRepos) AuditLogs() repo.AuditLogRepository         { return auditRepo{r.st} }
func (r *txRepos) WebhookEvents() repo.WebhookEventRepository { return webhookRepo{r.st} }
