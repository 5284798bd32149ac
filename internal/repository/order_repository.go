package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page          int
	Limit         int
	PaymentStatus string
	OrderStatus   string
	UserID        *int64
	From          *time.Time
	To            *time.Time
}

type OrderRepository interface {
	Create(ctx context.Context, order model.Order) error
	FindByID(ctx context.Context, orderID string) (model.Order, error)
	// 管理者のステータス更新用（FOR UPDATE）
	LockByID(ctx context.Context, orderID string) (model.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)

	// payment_statusとorder_statusが共にPENDINGのときだけゲートウェイ注文IDを紐付ける。falseなら競合で負けた
	AttachGatewayOrder(ctx context.Context, orderID string, gatewayOrderID string) (bool, error)

	// payment_status<>SUCCESSのときだけSUCCESS/CONFIRMEDにする。falseなら他の経路が先に確定済み
	MarkPaid(ctx context.Context, orderID string, c model.PaymentCapture) (bool, error)

	// payment_status=PENDINGのときだけFAILEDにする。SUCCESSは上書きしない
	MarkFailed(ctx context.Context, orderID string, f model.PaymentFailure) (bool, error)

	// 出荷ステータスだけ更新
	UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error
}
