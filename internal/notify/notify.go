// Package notify sends the daily low-stock digest by mail.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/talkincode/toughpos/config"
	"github.com/talkincode/toughpos/internal/domain"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

// Sender delivers composed messages
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	db     *gorm.DB
	from   string
	sender Sender
}

// NewMailer returns nil when no SMTP host is configured
func NewMailer(db *gorm.DB, cfg config.SmtpConfig) *Mailer {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &Mailer{
		db:     db,
		from:   cfg.From,
		sender: gomail.NewDialer(cfg.Host, port, cfg.User, cfg.Password),
	}
}

func newMailerWithSender(db *gorm.DB, from string, sender Sender) *Mailer {
	return &Mailer{db: db, from: from, sender: sender}
}

// ComposeDigest builds the digest mail for one business
func ComposeDigest(from string, biz domain.Business, products []domain.Product) *gomail.Message {
	var body strings.Builder
	fmt.Fprintf(&body, "The following products of %s are at or below their minimum stock level:\n\n", biz.Name)
	for _, p := range products {
		fmt.Fprintf(&body, "- %s (%s): %d in stock, minimum %d\n", p.Name, p.Barcode, p.StockQuantity, p.MinStockLevel)
	}
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", biz.Email)
	m.SetHeader("Subject", fmt.Sprintf("[%s] %d products low on stock", biz.Name, len(products)))
	m.SetBody("text/plain", body.String())
	return m
}

// LowStockDigest mails every business with an email address the list of its
// active products at or below their minimum stock level. It returns the
// number of mails sent.
func (m *Mailer) LowStockDigest(ctx context.Context) (int, error) {
	if m == nil {
		return 0, nil
	}
	var businesses []domain.Business
	if err := m.db.WithContext(ctx).Where("email <> ''").Find(&businesses).Error; err != nil {
		return 0, err
	}
	sent := 0
	for _, biz := range businesses {
		var products []domain.Product
		err := m.db.WithContext(ctx).
			Where("business_id = ? AND active = ? AND stock_quantity <= min_stock_level", biz.ID, true).
			Order("stock_quantity").
			Find(&products).Error
		if err != nil {
			return sent, err
		}
		if len(products) == 0 {
			continue
		}
		if err := m.sender.DialAndSend(ComposeDigest(m.from, biz, products)); err != nil {
			return sent, errors.Wrapf(err, "send digest to %s", biz.Email)
		}
		sent++
		zap.L().Info("low stock digest sent",
			zap.String("namespace", "notify"),
			zap.Int64("business_id", biz.ID),
			zap.Int("products", len(products)))
	}
	return sent, nil
}
