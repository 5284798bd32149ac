package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"
	"strconv"
	"time"

	"storefront/internal/usecase"

	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	AdminEmail string // 空なら管理者通知は送らない
}

// 注文確定メール（購入者向け＋管理者向け）
type SMTPMailer struct {
	cfg      Config
	send     sendFunc
	tmpl     *template.Template
	attempts int
	backoff  time.Duration
	log      *zap.Logger
}

func NewSMTPMailer(cfg Config, log *zap.Logger) (*SMTPMailer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &SMTPMailer{
		cfg:      cfg,
		send:     smtp.SendMail,
		tmpl:     tmpl,
		attempts: 3,
		backoff:  500 * time.Millisecond,
		log:      log,
	}, nil
}

func (m *SMTPMailer) Channel() string { return "email" }

type itemView struct {
	ProductName string
	VariantName string
	Quantity    int64
	Price       string
}

type orderView struct {
	OrderID       string
	CustomerName  string
	CustomerEmail string
	PaymentMethod string
	Address       string
	Phone         string
	Total         string
	Currency      string
	Items         []itemView
}

func (m *SMTPMailer) NotifyOrderConfirmed(ctx context.Context, c usecase.OrderConfirmation) error {
	view := toOrderView(c)

	if c.CustomerEmail != "" {
		if err := m.sendTemplate(ctx, c.CustomerEmail, "Order confirmed: "+view.OrderID, "order_confirmed.html", view); err != nil {
			return err
		}
	} else {
		m.log.Warn("no customer email, confirmation skipped", zap.String("order_id", view.OrderID))
	}

	if m.cfg.AdminEmail != "" {
		if err := m.sendTemplate(ctx, m.cfg.AdminEmail, "New order: "+view.OrderID, "admin_order_alert.html", view); err != nil {
			return err
		}
	}
	return nil
}

func (m *SMTPMailer) sendTemplate(ctx context.Context, to, subject, name string, view orderView) error {
	var body bytes.Buffer
	if err := m.tmpl.ExecuteTemplate(&body, name, view); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	msg := []byte(
		"From: " + m.cfg.From + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n" +
			"\r\n" +
			body.String(),
	)

	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	var err error
	for i := 0; i < m.attempts; i++ {
		if err = m.send(addr, auth, m.cfg.From, []string{to}, msg); err == nil {
			return nil
		}
		m.log.Warn("smtp send failed", zap.String("to", to), zap.Int("attempt", i+1), zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.backoff * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("smtp send failed: %w", err)
}

func toOrderView(c usecase.OrderConfirmation) orderView {
	items := make([]itemView, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, itemView{
			ProductName: it.ProductName,
			VariantName: it.VariantName,
			Quantity:    it.Quantity,
			Price:       it.Price.StringFixed(2),
		})
	}
	return orderView{
		OrderID:       c.Order.ID,
		CustomerName:  c.CustomerName,
		CustomerEmail: c.CustomerEmail,
		PaymentMethod: c.Order.PaymentMethod,
		Address:       c.Order.Address,
		Phone:         c.Order.Phone,
		Total:         c.Order.TotalAmount.StringFixed(2),
		Currency:      c.Order.Currency,
		Items:         items,
	}
}
