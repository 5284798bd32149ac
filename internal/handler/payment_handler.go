package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

type PaymentOrderRequest struct {
	OrderID string `json:"orderId"`
}

// 決済ウィジェットが返す値（キー名はゲートウェイのまま）
type PaymentResponseRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

type PaymentVerifyRequest struct {
	OrderID         string                 `json:"orderId"`
	PaymentResponse PaymentResponseRequest `json:"paymentResponse"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository, limiter *middleware.RateLimiter) {
	payments := e.Group("/payments")
	payments.Use(middleware.AuthJWT(cfg))
	payments.Use(middleware.TokenVersionGuard(userRepo))
	payments.Use(limiter.Middleware())

	payments.POST("/order", h.createOrder)
	payments.POST("/verify", h.verify)
}

func (h *PaymentHandler) createOrder(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req PaymentOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.CreatePaymentOrder(c.Request().Context(), userID, req.OrderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) verify(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req PaymentVerifyRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.VerifyPayment(c.Request().Context(), userID, usecase.VerifyPaymentInput{
		OrderID:          req.OrderID,
		GatewayOrderID:   req.PaymentResponse.RazorpayOrderID,
		GatewayPaymentID: req.PaymentResponse.RazorpayPaymentID,
		Signature:        req.PaymentResponse.RazorpaySignature,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
