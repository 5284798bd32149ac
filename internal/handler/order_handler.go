package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type OrderHandler struct {
	checkout *usecase.CheckoutUsecase
	orders   *usecase.OrderUsecase
}

func NewOrderHandler(checkout *usecase.CheckoutUsecase, orders *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{checkout: checkout, orders: orders}
}

// クライアントが持っているカートの1行
type OrderItemRequest struct {
	ProductID   int64           `json:"productId"`
	VariantID   int64           `json:"variantId"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	ProductName string          `json:"productName"`
	VariantName string          `json:"variantName"`
}

type ShippingDetailsRequest struct {
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type OrderCreateRequest struct {
	OrderItems      []OrderItemRequest     `json:"orderItems"`
	ShippingDetails ShippingDetailsRequest `json:"shippingDetails"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository, limiter *middleware.RateLimiter) {
	orders := e.Group("/orders")
	orders.Use(middleware.AuthJWT(cfg))
	orders.Use(middleware.TokenVersionGuard(userRepo))

	orders.POST("", h.create, limiter.Middleware())
	orders.GET("", h.list)
	orders.GET("/:id", h.detail)
}

func (h *OrderHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req OrderCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	items := make([]usecase.CheckoutItemInput, 0, len(req.OrderItems))
	for _, it := range req.OrderItems {
		items = append(items, usecase.CheckoutItemInput{
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			Quantity:    it.Quantity,
			Price:       it.Price,
			ProductName: it.ProductName,
			VariantName: it.VariantName,
		})
	}

	out, err := h.checkout.CreateOrder(c.Request().Context(), userID, usecase.CreateOrderInput{
		Items:   items,
		Address: req.ShippingDetails.Address,
		Phone:   req.ShippingDetails.Phone,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.orders.ListMyOrders(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.orders.GetMyOrderDetail(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
