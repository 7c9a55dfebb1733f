package sales

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/testkit"
	"gorm.io/gorm"
)

type recordingBus struct {
	topics []string
	args   []interface{}
}

func (b *recordingBus) Publish(topic string, args ...interface{}) {
	b.topics = append(b.topics, topic)
	b.args = append(b.args, args...)
}

func floatPtr(v float64) *float64 { return &v }

func stockOf(t *testing.T, db *gorm.DB, id int64) int {
	t.Helper()
	var p domain.Product
	require.NoError(t, db.First(&p, id).Error)
	return p.StockQuantity
}

func countTransactions(t *testing.T, db *gorm.DB) (int64, int64) {
	t.Helper()
	var txns, items int64
	require.NoError(t, db.Model(&domain.Transaction{}).Count(&txns).Error)
	require.NoError(t, db.Model(&domain.TransactionItem{}).Count(&items).Error)
	return txns, items
}

func TestCreateTransactionDecrementsStock(t *testing.T) {
	db := testkit.NewDB(t)
	biz := testkit.SeedBusiness(t, db, "Demo Store")
	cashier := testkit.SeedUser(t, db, biz.ID, "cashier", domain.RoleCashier)
	bread := testkit.SeedProduct(t, db, biz.ID, "Bread", "1234567890125", 2.50, 100)
	milk := testkit.SeedProduct(t, db, biz.ID, "Milk", "1234567890126", 3.99, 75)
	bus := &recordingBus{}
	svc := NewService(db, bus)

	txn, err := svc.CreateTransaction(context.Background(), CreateTransactionRequest{
		BusinessID:    biz.ID,
		UserID:        cashier.ID,
		Items:         []ItemRequest{{ProductID: bread.ID, Quantity: 3}},
		TotalAmount:   floatPtr(7.50),
		PaymentMethod: domain.PaymentCash,
	})
	require.NoError(t, err)
	assert.Len(t, txn.TransactionID, 8)
	assert.InDelta(t, 7.50, txn.TotalAmount, 0.0001)
	require.Len(t, txn.Items, 1)
	assert.Equal(t, "Bread", txn.Items[0].ProductName)
	assert.InDelta(t, 2.50, txn.Items[0].UnitPrice, 0.0001)

	assert.Equal(t, 97, stockOf(t, db, bread.ID))
	assert.Equal(t, 75, stockOf(t, db, milk.ID))

	stored, err := svc.GetTransaction(context.Background(), biz.ID, txn.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, cashier.ID, stored.UserID)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 3, stored.Items[0].Quantity)

	assert.Equal(t, []string{TopicTransactionCreated}, bus.topics)
}

func TestCreateTransactionDefaultsToCash(t *testing.T) {
	db := testkit.NewDB(t)
	biz := testkit.SeedBusiness(t, db, "Demo Store")
	bread := testkit.SeedProduct(t, db, biz.ID, "Bread", "1234567890125", 2.50, 100)
	svc := NewService(db, nil)

	txn, err := svc.CreateTransaction(context.Background(), CreateTransactionRequest{
		BusinessID: biz.ID,
		Items:      []ItemRequest{{ProductID: bread.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCash, txn.PaymentMethod)
}

func TestCreateTransactionInsufficientStockWritesNothing(t *testing.T) {
	db := testkit.NewDB(t)
	biz := testkit.SeedBusiness(t, db, "Demo Store")
	bread := testkit.SeedProduct(t, db, biz.ID, "Bread", "1234567890125", 2.50, 100)
	laptop := testkit.SeedProduct(t, db, biz.ID, "Laptop", "1234567890124", 599.99, 2)
	bus := &recordingBus{}
	svc := NewService(db, bus)

	_, err := svc.CreateTransaction(context.Background(), CreateTransactionRequest{
		BusinessID: biz.ID,
		Items: []ItemRequest{
			{ProductID: bread.ID, Quantity: 5},
			{ProductID: laptop.ID, Quantity: 3},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	var stockErr *StockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "Insufficient stock for Laptop", stockErr.Error())
	assert.Equal(t, 2, stockErr.Available)

	assert.Equal(t, 100, stockOf(t, db, bread.ID))
	assert.Equal(t, 2, stockOf(t, db, laptop.ID))
	txns, items := countTransactions(t, db)
	assert.Zero(t, txns)
	assert.Zero(t, items)
	assert.Empty(t, bus.topics)
}

func TestCreateTransactionAggregatesDuplicateLines(t *testing.T) {
	db := testkit.NewDB(t)
	biz := testkit.SeedBusiness(t, db, "Demo Store")
	coffee := testkit.SeedProduct(t, db, biz.ID, "Coffee", "1234567890127", 12.99, 4)
	svc := NewService(db, nil)

	_, err := svc.CreateTransaction(context.Background(), CreateTransactionRequest{
		BusinessID: biz.ID,
		Items: []ItemRequest{
			{ProductID: coffee.ID, Quantity: 3},
			{ProductID: coffee.ID, Quantity: 2},
		},
	})
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, 4, stockOf(t, db, coffee.ID))

	txn, err := svc.CreateTransaction(context.Background(), CreateTransactionRequest{
		BusinessID: biz.ID,
		Items: []ItemRequest{
			{ProductID: coffee.ID, Quantity: 2},
			{ProductID: coffee.ID, Quantity: 2},
		},
		TotalAmount: floatPtr(51.96),
	})
	require.NoError(t, err)
	assert.Len(t, txn.Items, 2)
	assert.Equal(t, 0, stockOf(t, db, coffee.ID))
}

func TestCreateTransactionRejectsOtherBusinessProduct(t *testing.T) {
	db := testkit.NewDB(t)
	b1 := testkit.SeedBusiness(t, db, "Store One")
	b2 := testkit.SeedBusiness(t, db, "Store Two")
	foreign := testkit.SeedProduct(t, db, b2.ID, "Milk", "1234567890126", 3.99, 75)
	svc := NewService(db, nil)

	_, err := svc.CreateTransaction(context.Background(), CreateTransactionRequest{
		BusinessID: b1.ID,
		Items:      []ItemRequest{{ProductID: foreign.ID, Quantity: 1}},
	})
	assert.True(t, errors.Is(err, ErrProductNotFound))
	assert.Equal(t, 75, stockOf(t, db, foreign.ID))
}

func TestCreateTransactionRejectsInactiveProduct(t *testing.T) {
	db := testkit.NewDB(t)
	biz := testkit.SeedBusiness(t, db, "Demo Store")
	p := testkit.SeedProduct(t, db, biz.ID, "Milk", "1234567890126", 3.99, 75)
	require.NoError(t, db.Model(p).Update("active", false).Error)
	svc := NewService(db, nil)

	_, err := svc.CreateTransaction(context.Background(), CreateTransactionRequest{
		BusinessID: biz.ID,
		Items:      []ItemRequest{{ProductID: p.ID, Quantity: 1}},
	})
	assert.True(t, errors.Is(err, ErrProductNotFound))
}

func TestCreateTransactionTotalMismatch(t *testing.T) {
	db := testkit.NewDB(t)
	biz := testkit.SeedBusiness(t, db, "Demo Store")
	bread := testkit.SeedProduct(t, db, biz.ID, "Bread", "1234567890125", 2.50, 100)
	svc := NewService(db, nil)

	_, err := svc.CreateTransaction(context.Background(), CreateTransactionRequest{
		BusinessID:  biz.ID,
		Items:       []ItemRequest{{ProductID: bread.ID, Quantity: 3}},
		TotalAmount: floatPtr(1.00),
	})
	assert.True(t, errors.Is(err, ErrTotalMismatch))
	assert.Equal(t, 100, stockOf(t, db, bread.ID))
}

func TestCreateTransactionValidation(t *testing.T) {
	db := testkit.NewDB(t)
	biz := testkit.SeedBusiness(t, db, "Demo Store")
	bread := testkit.SeedProduct(t, db, biz.ID, "Bread", "1234567890125", 2.50, 100)
	svc := NewService(db, nil)

	tests := []struct {
		name string
		req  CreateTransactionRequest
		want error
	}{
		{"no items", CreateTransactionRequest{BusinessID: biz.ID}, ErrEmptyTransaction},
		{"zero quantity", CreateTransactionRequest{BusinessID: biz.ID, Items: []ItemRequest{{ProductID: bread.ID}}}, ErrInvalidQuantity},
		{"negative quantity", CreateTransactionRequest{BusinessID: biz.ID, Items: []ItemRequest{{ProductID: bread.ID, Quantity: -2}}}, ErrInvalidQuantity},
		{"bad payment", CreateTransactionRequest{BusinessID: biz.ID, Items: []ItemRequest{{ProductID: bread.ID, Quantity: 1}}, PaymentMethod: "barter"}, ErrInvalidPaymentMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateTransaction(context.Background(), tt.req)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
	assert.Equal(t, 100, stockOf(t, db, bread.ID))
}

func TestTransactionIDRetriesOnCollision(t *testing.T) {
	db := testkit.NewDB(t)
	biz := testkit.SeedBusiness(t, db, "Demo Store")
	bread := testkit.SeedProduct(t, db, biz.ID, "Bread", "1234567890125", 2.50, 100)
	svc := NewService(db, nil)

	ids := []string{"AAAA1111", "AAAA1111", "BBBB2222"}
	svc.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	req := CreateTransactionRequest{BusinessID: biz.ID, Items: []ItemRequest{{ProductID: bread.ID, Quantity: 1}}}

	first, err := svc.CreateTransaction(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "AAAA1111", first.TransactionID)

	second, err := svc.CreateTransaction(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "BBBB2222", second.TransactionID)
}

func TestTransactionIDExhausted(t *testing.T) {
	db := testkit.NewDB(t)
	biz := testkit.SeedBusiness(t, db, "Demo Store")
	bread := testkit.SeedProduct(t, db, biz.ID, "Bread", "1234567890125", 2.50, 100)
	svc := NewService(db, nil)
	svc.newID = func() string { return "SAMEID00" }
	req := CreateTransactionRequest{BusinessID: biz.ID, Items: []ItemRequest{{ProductID: bread.ID, Quantity: 1}}}

	_, err := svc.CreateTransaction(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.CreateTransaction(context.Background(), req)
	assert.True(t, errors.Is(err, ErrTransactionID))
	assert.Equal(t, 99, stockOf(t, db, bread.ID))
}

func TestGetTransactionIsScopedToBusiness(t *testing.T) {
	db := testkit.NewDB(t)
	b1 := testkit.SeedBusiness(t, db, "Store One")
	b2 := testkit.SeedBusiness(t, db, "Store Two")
	bread := testkit.SeedProduct(t, db, b1.ID, "Bread", "1234567890125", 2.50, 100)
	svc := NewService(db, nil)

	txn, err := svc.CreateTransaction(context.Background(), CreateTransactionRequest{
		BusinessID: b1.ID,
		Items:      []ItemRequest{{ProductID: bread.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.GetTransaction(context.Background(), b2.ID, txn.TransactionID)
	assert.True(t, errors.Is(err, ErrTransactionNotFound))

	recent, err := svc.RecentTransactions(context.Background(), b1.ID, 5)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
	recent, err = svc.RecentTransactions(context.Background(), b2.ID, 5)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
