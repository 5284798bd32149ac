package handler

import (
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 管理者の在庫編集と監査ログ
type AdminInventoryHandler struct {
	uc *usecase.InventoryUsecase
}

func NewAdminInventoryHandler(uc *usecase.InventoryUsecase) *AdminInventoryHandler {
	return &AdminInventoryHandler{uc: uc}
}

type StockUpdateRequest struct {
	Stock  *int64 `json:"stock"`
	Reason string `json:"reason"`
}

func (h *AdminInventoryHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.TokenVersionGuard(userRepo))
	admin.Use(middleware.AdminRoleGuard())

	admin.PUT("/variants/:id/stock", h.setStock)
	admin.GET("/audit-logs", h.auditLogs)
}

func (h *AdminInventoryHandler) setStock(c echo.Context) error {
	variantID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return badRequest(c, "invalid id")
	}

	var req StockUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	// 0は有効な値なので未指定と区別する
	if req.Stock == nil {
		return badRequest(c, "stock required")
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.AdminSetStock(c.Request().Context(), adminID, variantID, usecase.AdminSetStockInput{
		Stock:  *req.Stock,
		Reason: req.Reason,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminInventoryHandler) auditLogs(c echo.Context) error {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		return badRequest(c, "invalid limit")
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return badRequest(c, "invalid offset")
	}

	var actorID int64
	if v := c.QueryParam("actor_user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return badRequest(c, "invalid actor_user_id")
		}
		actorID = id
	}
	fromPtr, err := queryTime(c, "from")
	if err != nil {
		return badRequest(c, "invalid from")
	}
	toPtr, err := queryTime(c, "to")
	if err != nil {
		return badRequest(c, "invalid to")
	}

	logs, err := h.uc.ListAuditLogs(c.Request().Context(), usecase.AuditLogListInput{
		ActorUserID:  actorID,
		Action:       strings.ToUpper(c.QueryParam("action")),
		ResourceType: strings.ToLower(c.QueryParam("resource_type")),
		ResourceID:   c.QueryParam("resource_id"),
		From:         fromPtr,
		To:           toPtr,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, logs)
}
