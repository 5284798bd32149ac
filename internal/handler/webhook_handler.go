package handler

import (
	"io"
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

const (
	HeaderRazorpaySignature = "X-Razorpay-Signature"
	HeaderRazorpayEventID   = "X-Razorpay-Event-Id"

	// ゲートウェイのペイロードはこれより十分小さい
	maxWebhookBody = 1 << 20
)

// 認証なし。署名で検証する
type WebhookHandler struct {
	uc *usecase.WebhookUsecase
}

func NewWebhookHandler(uc *usecase.WebhookUsecase) *WebhookHandler {
	return &WebhookHandler{uc: uc}
}

func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhooks/razorpay", h.razorpay)
}

func (h *WebhookHandler) razorpay(c echo.Context) error {
	//署名は生のボディに対して計算されるので、Bindせずにそのまま読む
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return badRequest(c, "invalid body")
	}
	if len(body) > maxWebhookBody {
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "payload too large"})
	}

	out, err := h.uc.Handle(c.Request().Context(), usecase.WebhookInput{
		Body:      body,
		Signature: c.Request().Header.Get(HeaderRazorpaySignature),
		EventID:   c.Request().Header.Get(HeaderRazorpayEventID),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
