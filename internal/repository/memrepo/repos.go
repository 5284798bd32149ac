package memrepo

import (
	"context"
	"sort"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type ordersRepo struct{ st *state }

func (r ordersRepo) Create(_ context.Context, order model.Order) error {
	if _, ok := r.st.orders[order.ID]; ok {
		return repo.ErrDuplicate
	}
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	order.Items = nil
	r.st.orders[order.ID] = order
	return nil
}

func (r ordersRepo) FindByID(_ context.Context, orderID string) (model.Order, error) {
	o, ok := r.st.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

// トランザクションが直列なのでロックは取得と同じ
func (r ordersRepo) LockByID(ctx context.Context, orderID string) (model.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r ordersRepo) FindByGatewayOrderID(_ context.Context, gatewayOrderID string) (model.Order, error) {
	if gatewayOrderID == "" {
		return model.Order{}, repo.ErrNotFound
	}
	for _, o := range r.st.orders {
		if o.RazorpayOrderID == gatewayOrderID {
			return o, nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (r ordersRepo) ListByUserID(_ context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	return paginate(r.filter(func(o model.Order) bool { return o.UserID == userID }), page, limit)
}

func (r ordersRepo) ListAdmin(_ context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	matched := r.filter(func(o model.Order) bool {
		if f.PaymentStatus != "" && string(o.PaymentStatus) != f.PaymentStatus {
			return false
		}
		if f.OrderStatus != "" && string(o.OrderStatus) != f.OrderStatus {
			return false
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			return false
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			return false
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			return false
		}
		return true
	})
	return paginate(matched, f.Page, f.Limit)
}

func (r ordersRepo) AttachGatewayOrder(_ context.Context, orderID string, gatewayOrderID string) (bool, error) {
	o, ok := r.st.orders[orderID]
	if !ok || o.PaymentStatus != model.PaymentStatusPending || o.OrderStatus != model.OrderStatusPending {
		return false, nil
	}
	o.RazorpayOrderID = gatewayOrderID
	o.UpdatedAt = time.Now()
	r.st.orders[orderID] = o
	return true, nil
}

func (r ordersRepo) MarkPaid(_ context.Context, orderID string, c model.PaymentCapture) (bool, error) {
	o, ok := r.st.orders[orderID]
	if !ok || o.PaymentStatus == model.PaymentStatusSuccess {
		return false, nil
	}
	capturedAt := c.CapturedAt
	o.PaymentStatus = model.PaymentStatusSuccess
	o.OrderStatus = model.OrderStatusConfirmed
	o.RazorpayPaymentID = c.GatewayPaymentID
	o.PaymentMethod = c.Method
	o.PaymentCapturedAt = &capturedAt
	o.PaymentMeta = c.Meta
	o.UpdatedAt = time.Now()
	r.st.orders[orderID] = o
	return true, nil
}

func (r ordersRepo) MarkFailed(_ context.Context, orderID string, f model.PaymentFailure) (bool, error) {
	o, ok := r.st.orders[orderID]
	if !ok || o.PaymentStatus != model.PaymentStatusPending {
		return false, nil
	}
	failedAt := f.FailedAt
	o.PaymentStatus = model.PaymentStatusFailed
	o.PaymentCapturedAt = &failedAt
	o.PaymentMeta = f.Meta
	o.UpdatedAt = time.Now()
	r.st.orders[orderID] = o
	return true, nil
}

func (r ordersRepo) UpdateOrderStatus(_ context.Context, orderID string, status model.OrderStatus) error {
	o, ok := r.st.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.OrderStatus = status
	o.UpdatedAt = time.Now()
	r.st.orders[orderID] = o
	return nil
}

// 新しい順
func (r ordersRepo) filter(keep func(model.Order) bool) []model.Order {
	out := []model.Order{}
	for _, o := range r.st.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func paginate(all []model.Order, page int, limit int) ([]model.Order, int64, error) {
	total := int64(len(all))
	start := (page - 1) * limit
	if start < 0 || start >= len(all) {
		return []model.Order{}, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

type orderItemsRepo struct{ st *state }

func (r orderItemsRepo) CreateBulk(_ context.Context, orderID string, items []model.OrderItem) error {
	if _, ok := r.st.orders[orderID]; !ok {
		return repo.ErrNotFound
	}
	now := time.Now()
	for _, it := range items {
		r.st.nextItemID++
		it.ID = r.st.nextItemID
		it.OrderID = orderID
		it.CreatedAt = now
		r.st.items[orderID] = append(r.st.items[orderID], it)
	}
	return nil
}

func (r orderItemsRepo) ListByOrderID(_ context.Context, orderID string) ([]model.OrderItem, error) {
	return append([]model.OrderItem{}, r.st.items[orderID]...), nil
}

type productsRepo struct{ st *state }

func (r productsRepo) FindByID(_ context.Context, id int64) (model.Product, error) {
	p, ok := r.st.products[id]
	if !ok || p.DeletedAt.Valid {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r productsRepo) FindVariantByID(_ context.Context, variantID int64) (model.ProductVariant, error) {
	v, ok := r.st.variants[variantID]
	if !ok {
		return model.ProductVariant{}, repo.ErrNotFound
	}
	return v, nil
}

type inventoryRepo struct{ st *state }

func (r inventoryRepo) LockVariant(_ context.Context, variantID int64) (model.ProductVariant, error) {
	v, ok := r.st.variants[variantID]
	if !ok {
		return model.ProductVariant{}, repo.ErrNotFound
	}
	return v, nil
}

func (r inventoryRepo) SetVariantStock(_ context.Context, variantID int64, newStock int64) error {
	v, ok := r.st.variants[variantID]
	if !ok {
		return repo.ErrNotFound
	}
	v.Stock = newStock
	r.st.variants[variantID] = v
	return nil
}

func (r inventoryRepo) DecreaseVariantStock(_ context.Context, variantID int64, qty int64) (int64, error) {
	v, ok := r.st.variants[variantID]
	if !ok {
		return 0, repo.ErrNotFound
	}
	v.Stock -= qty
	r.st.variants[variantID] = v
	return v.Stock, nil
}

func (r inventoryRepo) IncreaseVariantStock(_ context.Context, variantID int64, qty int64) error {
	v, ok := r.st.variants[variantID]
	if !ok {
		return repo.ErrNotFound
	}
	v.Stock += qty
	r.st.variants[variantID] = v
	return nil
}

func (r inventoryRepo) ShiftTotalStock(_ context.Context, productID int64, delta int64) error {
	p, ok := r.st.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.TotalStock += delta
	r.st.products[productID] = p
	return nil
}

func (r inventoryRepo) CreateAdjustment(_ context.Context, adjustment model.InventoryAdjustment) error {
	r.st.nextAdjID++
	adjustment.ID = r.st.nextAdjID
	if adjustment.CreatedAt.IsZero() {
		adjustment.CreatedAt = time.Now()
	}
	r.st.adjustments = append(r.st.adjustments, adjustment)
	return nil
}

type auditRepo struct{ st *state }

func (r auditRepo) Create(_ context.Context, log model.AuditLog) error {
	r.st.nextAuditID++
	log.ID = r.st.nextAuditID
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	r.st.audits = append(r.st.audits, log)
	return nil
}

func (r auditRepo) List(_ context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	out := []model.AuditLog{}
	// 新しい順
	for i := len(r.st.audits) - 1; i >= 0; i-- {
		l := r.st.audits[i]
		if f.ActorUserID != nil && l.ActorUserID != *f.ActorUserID {
			continue
		}
		if f.Action != nil && l.Action != *f.Action {
			continue
		}
		if f.ResourceType != nil && l.ResourceType != *f.ResourceType {
			continue
		}
		if f.ResourceID != nil && l.ResourceID != *f.ResourceID {
			continue
		}
		if f.CreatedFrom != nil && l.CreatedAt.Before(*f.CreatedFrom) {
			continue
		}
		if f.CreatedTo != nil && l.CreatedAt.After(*f.CreatedTo) {
			continue
		}
		out = append(out, l)
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []model.AuditLog{}, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

type webhookRepo struct{ st *state }

func (r webhookRepo) Exists(_ context.Context, eventID string) (bool, error) {
	_, ok := r.st.events[eventID]
	return ok, nil
}

func (r webhookRepo) Record(_ context.Context, ev model.WebhookEvent) error {
	if _, ok := r.st.events[ev.EventID]; ok {
		return nil
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	r.st.events[ev.EventID] = ev
	return nil
}
