package exports

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/testkit"
	"github.com/talkincode/toughpos/pkg/common"
)

func TestParseRange(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	from, to, err := ParseRange("", "", now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -DefaultRangeDays), from)
	assert.Equal(t, now, to)

	from, to, err = ParseRange("2024-03-01", "03/10/2024", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), to)

	_, _, err = ParseRange("2024-03-10", "2024-03-01", now)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, _, err = ParseRange("not a date", "", now)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestInventoryCSV(t *testing.T) {
	db := testkit.NewDB(t)
	biz := testkit.SeedBusiness(t, db, "Demo Store")
	other := testkit.SeedBusiness(t, db, "Other Store")
	testkit.SeedProduct(t, db, biz.ID, "Bread", "1234567890125", 2.50, 100)
	testkit.SeedProduct(t, db, biz.ID, "Coffee", "1234567890127", 12.99, 3)
	testkit.SeedProduct(t, db, other.ID, "Milk", "1234567890126", 3.99, 75)

	var buf bytes.Buffer
	require.NoError(t, NewService(db).InventoryCSV(context.Background(), biz.ID, &buf))

	var rows []*InventoryRow
	require.NoError(t, gocsv.UnmarshalBytes(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "Bread", rows[0].Name)
	assert.False(t, rows[0].LowStock)
	assert.Equal(t, "Coffee", rows[1].Name)
	assert.True(t, rows[1].LowStock)
}

func TestTransactionsXLSX(t *testing.T) {
	db := testkit.NewDB(t)
	biz := testkit.SeedBusiness(t, db, "Demo Store")
	cashier := testkit.SeedUser(t, db, biz.ID, "cashier", domain.RoleCashier)
	at := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	require.NoError(t, db.Create(&domain.Transaction{
		ID:            common.UUIDint64(),
		TransactionID: "ABCD1234",
		UserID:        cashier.ID,
		BusinessID:    biz.ID,
		TotalAmount:   7.5,
		PaymentMethod: domain.PaymentCard,
		Items: []domain.TransactionItem{
			{ID: common.UUIDint64(), ProductID: 1, ProductName: "Bread", Quantity: 3, UnitPrice: 2.5, TotalPrice: 7.5},
		},
		CreatedAt: at,
	}).Error)

	var buf bytes.Buffer
	svc := NewService(db)
	require.NoError(t, svc.TransactionsXLSX(context.Background(), biz.ID, at.AddDate(0, 0, -1), at.AddDate(0, 0, 1), &buf))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "Transaction", f.GetCellValue(sheet, "A1"))
	assert.Equal(t, "ABCD1234", f.GetCellValue(sheet, "A2"))
	assert.Equal(t, "cashier", f.GetCellValue(sheet, "C2"))
	assert.Equal(t, "card", f.GetCellValue(sheet, "D2"))
	assert.Equal(t, "3", f.GetCellValue(sheet, "E2"))
	assert.Equal(t, "", f.GetCellValue(sheet, "A3"))
}
