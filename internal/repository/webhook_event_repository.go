package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 処理済みWebhookイベントの受信箱
type WebhookEventRepository interface {
	Exists(ctx context.Context, eventID string) (bool, error)
	// 同じevent_idは無視する
	Record(ctx context.Context, ev model.WebhookEvent) error
}
