// Package sales records point-of-sale transactions. A sale, its line items and
// the stock decrements commit together or not at all.
package sales

import (
	"context"
	"errors"
	"sort"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	TopicTransactionCreated = "transaction.created"

	transactionIDLength   = 8
	transactionIDAttempts = 5
)

// half a cent
var totalTolerance = decimal.New(5, -3)

// Publisher receives domain events after commit
type Publisher interface {
	Publish(topic string, args ...interface{})
}

// ItemRequest is one requested sale line. Client prices are informational,
// the stored prices come from the product rows.
type ItemRequest struct {
	ProductID  int64    `json:"product_id,string" validate:"required"`
	Quantity   int      `json:"quantity" validate:"gt=0"`
	UnitPrice  *float64 `json:"unit_price,omitempty"`
	TotalPrice *float64 `json:"total_price,omitempty"`
}

type CreateTransactionRequest struct {
	BusinessID    int64                `json:"-"`
	UserID        int64                `json:"-"`
	Items         []ItemRequest        `json:"items" validate:"required,min=1,dive"`
	TotalAmount   *float64             `json:"total_amount"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
}

type Service struct {
	db    *gorm.DB
	bus   Publisher
	now   func() time.Time
	newID func() string
}

func NewService(db *gorm.DB, bus Publisher) *Service {
	return &Service{
		db:    db,
		bus:   bus,
		now:   time.Now,
		newID: func() string { return common.ShortID(transactionIDLength) },
	}
}

func validateRequest(req *CreateTransactionRequest) error {
	if len(req.Items) == 0 {
		return ErrEmptyTransaction
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}
	if !req.PaymentMethod.Valid() {
		return ErrInvalidPaymentMethod
	}
	return nil
}

// CreateTransaction validates the request against current stock and then
// writes the sale, its items and the stock decrements in one database
// transaction.
func (s *Service) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*domain.Transaction, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	needed := make(map[int64]int)
	for _, it := range req.Items {
		needed[it.ProductID] += it.Quantity
	}
	ids := make([]int64, 0, len(needed))
	for id := range needed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var txn *domain.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products, err := loadProducts(tx, req.BusinessID, ids)
		if err != nil {
			return err
		}

		for _, id := range ids {
			p, ok := products[id]
			if !ok {
				return pkgerrors.Wrapf(ErrProductNotFound, "product %d", id)
			}
			if p.StockQuantity < needed[id] {
				return &StockError{ProductID: id, ProductName: p.Name, Requested: needed[id], Available: p.StockQuantity}
			}
		}

		total := decimal.Zero
		items := make([]domain.TransactionItem, 0, len(req.Items))
		for _, it := range req.Items {
			p := products[it.ProductID]
			unit := decimal.NewFromFloat(p.Price)
			line := unit.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
			total = total.Add(line)
			items = append(items, domain.TransactionItem{
				ID:          common.UUIDint64(),
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    it.Quantity,
				UnitPrice:   unit.InexactFloat64(),
				TotalPrice:  line.InexactFloat64(),
			})
		}
		if req.TotalAmount != nil {
			declared := decimal.NewFromFloat(*req.TotalAmount)
			if declared.Sub(total).Abs().GreaterThan(totalTolerance) {
				return pkgerrors.Wrapf(ErrTotalMismatch, "declared %s, computed %s", declared.StringFixed(2), total.StringFixed(2))
			}
		}

		extID, err := s.allocateTransactionID(tx)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		txn = &domain.Transaction{
			ID:            common.UUIDint64(),
			TransactionID: extID,
			UserID:        req.UserID,
			BusinessID:    req.BusinessID,
			TotalAmount:   total.InexactFloat64(),
			PaymentMethod: req.PaymentMethod,
			Items:         items,
			CreatedAt:     now,
		}
		if err := tx.Create(txn).Error; err != nil {
			return pkgerrors.Wrap(err, "create transaction")
		}

		for _, id := range ids {
			res := tx.Model(&domain.Product{}).
				Where("id = ? AND business_id = ? AND stock_quantity >= ?", id, req.BusinessID, needed[id]).
				Updates(map[string]interface{}{
					"stock_quantity": gorm.Expr("stock_quantity - ?", needed[id]),
					"updated_at":     now,
				})
			if res.Error != nil {
				return pkgerrors.Wrap(res.Error, "decrement stock")
			}
			// another sale took the stock between check and update
			if res.RowsAffected != 1 {
				p := products[id]
				return &StockError{ProductID: id, ProductName: p.Name, Requested: needed[id], Available: p.StockQuantity}
			}
		}
		return nil
	})
	if err != nil {
		zap.L().Info("transaction rejected",
			zap.String("namespace", "sales"),
			zap.Int64("business_id", req.BusinessID),
			zap.Int64("user_id", req.UserID),
			zap.Error(err))
		return nil, err
	}

	zap.L().Info("transaction created",
		zap.String("namespace", "sales"),
		zap.String("transaction_id", txn.TransactionID),
		zap.Int64("business_id", txn.BusinessID),
		zap.Float64("total_amount", txn.TotalAmount))
	if s.bus != nil {
		s.bus.Publish(TopicTransactionCreated, txn)
	}
	return txn, nil
}

func loadProducts(tx *gorm.DB, businessID int64, ids []int64) (map[int64]domain.Product, error) {
	q := tx.Where("business_id = ? AND active = ? AND id IN ?", businessID, true, ids).Order("id")
	// sqlite serializes writers on its own
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var list []domain.Product
	if err := q.Find(&list).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "load products")
	}
	products := make(map[int64]domain.Product, len(list))
	for _, p := range list {
		products[p.ID] = p
	}
	return products, nil
}

func (s *Service) allocateTransactionID(tx *gorm.DB) (string, error) {
	for i := 0; i < transactionIDAttempts; i++ {
		id := s.newID()
		var count int64
		if err := tx.Model(&domain.Transaction{}).Where("transaction_id = ?", id).Count(&count).Error; err != nil {
			return "", pkgerrors.Wrap(err, "check transaction id")
		}
		if count == 0 {
			return id, nil
		}
		zap.L().Warn("transaction id collision", zap.String("namespace", "sales"), zap.String("transaction_id", id))
	}
	return "", ErrTransactionID
}

// GetTransaction loads a transaction of the business by its external id, items included
func (s *Service) GetTransaction(ctx context.Context, businessID int64, transactionID string) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := s.db.WithContext(ctx).Preload("Items").
		Where("business_id = ? AND transaction_id = ?", businessID, transactionID).
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// RecentTransactions newest first
func (s *Service) RecentTransactions(ctx context.Context, businessID int64, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 10
	}
	var list []domain.Transaction
	err := s.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("created_at DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
