package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

// nilの項目は絞り込まない
type AuditLogFilter struct {
	ActorUserID  *int64
	Action       *model.AuditAction
	ResourceType *model.AuditResourceType
	ResourceID   *string // 注文はUUID、バリアントは数値の文字列
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int // 0または200超は50
	Offset       int
}

type AuditLogRepository interface {
	// 呼び出し側のトランザクションに乗せる（在庫・ステータスの変更と同時にcommit）
	Create(ctx context.Context, log model.AuditLog) error
	// 新しい順
	List(ctx context.Context, filter AuditLogFilter) ([]model.AuditLog, error)
}
