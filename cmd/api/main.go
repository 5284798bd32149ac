package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/db"
	"storefront/internal/infra/events"
	"storefront/internal/infra/gateway"
	"storefront/internal/infra/mailer"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/server"
	"storefront/internal/usecase"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func main() {
	// .envは無くてもよい（本番は環境変数）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.GoEnv)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	// 金額はJSONで数値として返す
	decimal.MarshalJSONWithoutQuotes = true

	//DB接続
	gormDB, err := db.Connect(cfg.DSN())
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	//Repository（GORM実装）
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	idGen := &uuidGenerator{}
	clock := &realClock{}

	ledger := usecase.NewInventoryLedger(clock, log)
	reconciler := usecase.NewReconciler(txm, ledger, clock, log, m)

	//通知先（設定があるものだけ）
	var notifiers []usecase.OrderNotifier
	if cfg.MailEnabled() {
		ml, err := mailer.NewSMTPMailer(mailer.Config{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			Username:   cfg.SMTPUsername,
			Password:   cfg.SMTPPassword,
			From:       cfg.SMTPFrom,
			AdminEmail: cfg.AdminAlertEmail,
		}, log)
		if err != nil {
			return err
		}
		notifiers = append(notifiers, ml)
	}
	if len(cfg.KafkaBrokers) > 0 {
		pub := events.NewOrderEventPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
		defer pub.Close()
		notifiers = append(notifiers, pub)
	}
	dispatcher := usecase.NewNotificationDispatcher(userRepo, log, m, notifiers...)

	gw := gateway.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	verifier := gateway.NewHMACVerifier(cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret)

	//Usecase生成
	checkoutUC := usecase.NewCheckoutUsecase(txm, ledger, idGen, clock, cfg.Currency, log)
	orderUC := usecase.NewOrderUsecase(txm)
	paymentUC := usecase.NewPaymentUsecase(txm, gw, verifier, reconciler, dispatcher, cfg.RazorpayKeyID, log)
	webhookUC := usecase.NewWebhookUsecase(txm, verifier, reconciler, dispatcher, log, m)
	inventoryUC := usecase.NewInventoryUsecase(txm, ledger)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, ledger, clock)
	authUC := usecase.NewAuthUsecase(userRepo, cfg.JWTSecret, clock)

	//Handler生成
	srv := server.New(cfg, log, m)
	server.RegisterRoutes(srv.Echo(), cfg, userRepo, reg, server.Handlers{
		Auth:           handler.NewAuthHandler(authUC),
		Order:          handler.NewOrderHandler(checkoutUC, orderUC),
		Payment:        handler.NewPaymentHandler(paymentUC),
		Webhook:        handler.NewWebhookHandler(webhookUC),
		Variant:        handler.NewVariantHandler(inventoryUC),
		AdminOrder:     handler.NewAdminOrderHandler(adminOrderUC),
		AdminInventory: handler.NewAdminInventoryHandler(inventoryUC),
		Health:         handler.NewHealthHandler(sqlDB),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
