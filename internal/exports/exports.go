// Package exports writes inventory and sales data as spreadsheet files.
package exports

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/araddon/dateparse"
	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/talkincode/toughpos/internal/domain"
	"gorm.io/gorm"
)

const (
	DefaultRangeDays = 30
	sheet            = "Sheet1"
)

var ErrInvalidRange = errors.New("invalid date range")

type InventoryRow struct {
	Name          string  `csv:"name"`
	Barcode       string  `csv:"barcode"`
	Category      string  `csv:"category"`
	Price         float64 `csv:"price"`
	Cost          float64 `csv:"cost"`
	StockQuantity int     `csv:"stock_quantity"`
	MinStockLevel int     `csv:"min_stock_level"`
	LowStock      bool    `csv:"low_stock"`
	Active        bool    `csv:"active"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ParseRange reads start and end in any common date layout. Missing values
// select the last DefaultRangeDays days up to now. The returned end is exclusive.
func ParseRange(start, end string, now time.Time) (time.Time, time.Time, error) {
	to := now
	from := now.AddDate(0, 0, -DefaultRangeDays)
	var err error
	if s := strings.TrimSpace(start); s != "" {
		if from, err = dateparse.ParseIn(s, time.UTC); err != nil {
			return from, to, errors.Wrap(ErrInvalidRange, err.Error())
		}
	}
	if s := strings.TrimSpace(end); s != "" {
		if to, err = dateparse.ParseIn(s, time.UTC); err != nil {
			return from, to, errors.Wrap(ErrInvalidRange, err.Error())
		}
		// a bare date includes the whole day
		if to.Equal(time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, to.Location())) {
			to = to.AddDate(0, 0, 1)
		}
	}
	if !from.Before(to) {
		return from, to, ErrInvalidRange
	}
	return from, to, nil
}

// InventoryCSV writes every product of the business
func (s *Service) InventoryCSV(ctx context.Context, businessID int64, w io.Writer) error {
	var products []domain.Product
	err := s.db.WithContext(ctx).Preload("Category").
		Where("business_id = ?", businessID).
		Order("name").
		Find(&products).Error
	if err != nil {
		return err
	}
	rows := make([]*InventoryRow, 0, len(products))
	for _, p := range products {
		row := &InventoryRow{
			Name:          p.Name,
			Barcode:       p.Barcode,
			Price:         p.Price,
			Cost:          p.Cost,
			StockQuantity: p.StockQuantity,
			MinStockLevel: p.MinStockLevel,
			LowStock:      p.LowStock(),
			Active:        p.Active,
		}
		if p.Category != nil {
			row.Category = p.Category.Name
		}
		rows = append(rows, row)
	}
	return errors.Wrap(gocsv.Marshal(rows, w), "write inventory csv")
}

var transactionHeader = []string{"Transaction", "Date", "Cashier", "Payment", "Items", "Total"}

// TransactionsXLSX writes the transactions of the business created in [from, to)
func (s *Service) TransactionsXLSX(ctx context.Context, businessID int64, from, to time.Time, w io.Writer) error {
	var txns []domain.Transaction
	err := s.db.WithContext(ctx).Preload("Items").
		Where("business_id = ? AND created_at >= ? AND created_at < ?", businessID, from.UTC(), to.UTC()).
		Order("created_at").
		Find(&txns).Error
	if err != nil {
		return err
	}

	userIDs := make([]int64, 0, len(txns))
	for _, t := range txns {
		userIDs = append(userIDs, t.UserID)
	}
	usernames := map[int64]string{}
	if len(userIDs) > 0 {
		var users []domain.User
		if err := s.db.WithContext(ctx).Select("id", "username").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return err
		}
		for _, u := range users {
			usernames[u.ID] = u.Username
		}
	}

	f := excelize.NewFile()
	for i, h := range transactionHeader {
		f.SetCellValue(sheet, cell(i, 1), h)
	}
	for r, t := range txns {
		row := r + 2
		qty := 0
		for _, it := range t.Items {
			qty += it.Quantity
		}
		f.SetCellValue(sheet, cell(0, row), t.TransactionID)
		f.SetCellValue(sheet, cell(1, row), t.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheet, cell(2, row), usernames[t.UserID])
		f.SetCellValue(sheet, cell(3, row), string(t.PaymentMethod))
		f.SetCellValue(sheet, cell(4, row), qty)
		f.SetCellValue(sheet, cell(5, row), t.TotalAmount)
	}
	return errors.Wrap(f.Write(w), "write transactions xlsx")
}

func cell(col, row int) string {
	return fmt.Sprintf("%c%d", 'A'+col, row)
}
