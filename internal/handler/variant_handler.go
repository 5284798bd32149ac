package handler

import (
	"net/http"
	"strconv"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 公開API（認証なし）
type VariantHandler struct {
	uc *usecase.InventoryUsecase
}

func NewVariantHandler(uc *usecase.InventoryUsecase) *VariantHandler {
	return &VariantHandler{uc: uc}
}

func (h *VariantHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/variants/:id/availability", h.availability)
}

func (h *VariantHandler) availability(c echo.Context) error {
	variantID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return badRequest(c, "invalid id")
	}

	qty := int64(1)
	if v := c.QueryParam("quantity"); v != "" {
		q, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return badRequest(c, "invalid quantity")
		}
		qty = q
	}

	out, err := h.uc.Availability(c.Request().Context(), variantID, qty)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
