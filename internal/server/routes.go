package server

import (
	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/repository"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type Handlers struct {
	Auth           *handler.AuthHandler
	Order          *handler.OrderHandler
	Payment        *handler.PaymentHandler
	Webhook        *handler.WebhookHandler
	Variant        *handler.VariantHandler
	AdminOrder     *handler.AdminOrderHandler
	AdminInventory *handler.AdminInventoryHandler
	Health         *handler.HealthHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository, gatherer prometheus.Gatherer, h Handlers) {
	// 注文作成と決済APIだけ
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	h.Auth.RegisterRoutes(e, cfg, userRepo)
	h.Order.RegisterRoutes(e, cfg, userRepo, limiter)
	h.Payment.RegisterRoutes(e, cfg, userRepo, limiter)
	h.Webhook.RegisterRoutes(e)
	h.Variant.RegisterRoutes(e)
	h.AdminOrder.RegisterRoutes(e, cfg, userRepo)
	h.AdminInventory.RegisterRoutes(e, cfg, userRepo)
	h.Health.RegisterRoutes(e)

	e.GET("/metrics", echo.WrapHandler(metrics.Handler(gatherer)))
}
