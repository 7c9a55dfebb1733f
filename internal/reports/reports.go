// Package reports aggregates committed transactions into daily totals,
// candles and a naive forecast.
package reports

import (
	"context"
	"time"

	"github.com/google/btree"
	"github.com/montanaflynn/stats"
	"github.com/talkincode/toughpos/internal/domain"
	"gorm.io/gorm"
)

const (
	DefaultSalesDays   = 7
	DefaultCandleCount = 50
	MaxCandleCount     = 500
	DefaultForecast    = 5
	forecastWindow     = 3
	forecastBand       = 0.10
)

// DayTotal sales of one UTC day
type DayTotal struct {
	Date  string  `json:"date"`
	Sales float64 `json:"sales"`
}

// Candle aggregates the transactions of one bucket: first, max, min and last
// total plus the transaction count
type Candle struct {
	Time     time.Time `json:"time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   int       `json:"volume"`
	Forecast bool      `json:"forecast,omitempty"`
}

type DashboardStats struct {
	TodaySales       float64 `json:"today_sales"`
	MonthSales       float64 `json:"month_sales"`
	TotalProducts    int64   `json:"total_products"`
	LowStockProducts int64   `json:"low_stock_products"`
	TotalUsers       int64   `json:"total_users"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type sale struct {
	CreatedAt   time.Time
	TotalAmount float64
}

func (s *Service) sales(ctx context.Context, businessID int64, from, to time.Time) ([]sale, error) {
	var rows []sale
	err := s.db.WithContext(ctx).Model(&domain.Transaction{}).
		Select("created_at, total_amount").
		Where("business_id = ? AND created_at >= ? AND created_at < ?", businessID, from.UTC(), to.UTC()).
		Order("created_at").
		Scan(&rows).Error
	return rows, err
}

func candleLess(a, b *Candle) bool {
	return a.Time.Before(b.Time)
}

// bucketize folds sales into count buckets ending with the bucket of now
func bucketize(rows []sale, tf Timeframe, count int, now time.Time) []Candle {
	last := tf.Floor(now)
	first := tf.Shift(last, -(count - 1))

	tree := btree.NewG[*Candle](8, candleLess)
	for i := 0; i < count; i++ {
		tree.ReplaceOrInsert(&Candle{Time: tf.Shift(first, i)})
	}
	for _, r := range rows {
		c, ok := tree.Get(&Candle{Time: tf.Floor(r.CreatedAt)})
		if !ok {
			continue
		}
		if c.Volume == 0 {
			c.Open, c.High, c.Low = r.TotalAmount, r.TotalAmount, r.TotalAmount
		}
		if r.TotalAmount > c.High {
			c.High = r.TotalAmount
		}
		if r.TotalAmount < c.Low {
			c.Low = r.TotalAmount
		}
		c.Close = r.TotalAmount
		c.Volume++
	}

	out := make([]Candle, 0, count)
	tree.Ascend(func(c *Candle) bool {
		out = append(out, *c)
		return true
	})
	return out
}

// Candles returns count buckets in chronological order, the last one holding now.
// Buckets without sales are zero candles.
func (s *Service) Candles(ctx context.Context, businessID int64, tf Timeframe, count int, now time.Time) ([]Candle, error) {
	if count <= 0 {
		count = DefaultCandleCount
	}
	if count > MaxCandleCount {
		count = MaxCandleCount
	}
	last := tf.Floor(now)
	from := tf.Shift(last, -(count - 1))
	rows, err := s.sales(ctx, businessID, from, tf.Shift(last, 1))
	if err != nil {
		return nil, err
	}
	return bucketize(rows, tf, count, now), nil
}

// Forecast extends the recent candles by periods buckets. Each projected
// close is the mean of the three preceding closes with a ±10% band.
func (s *Service) Forecast(ctx context.Context, businessID int64, tf Timeframe, periods int, now time.Time) ([]Candle, error) {
	if periods <= 0 {
		periods = DefaultForecast
	}
	history, err := s.Candles(ctx, businessID, tf, forecastWindow, now)
	if err != nil {
		return nil, err
	}
	return project(history, tf, periods), nil
}

func project(history []Candle, tf Timeframe, periods int) []Candle {
	closes := make(stats.Float64Data, 0, len(history)+periods)
	for _, c := range history {
		closes = append(closes, c.Close)
	}
	next := tf.Shift(history[len(history)-1].Time, 1)

	out := make([]Candle, 0, periods)
	for i := 0; i < periods; i++ {
		window := closes
		if len(window) > forecastWindow {
			window = window[len(window)-forecastWindow:]
		}
		mean, err := stats.Mean(window)
		if err != nil {
			mean = 0
		}
		mean, _ = stats.Round(mean, 2)
		high, _ := stats.Round(mean*(1+forecastBand), 2)
		low, _ := stats.Round(mean*(1-forecastBand), 2)
		out = append(out, Candle{
			Time:     next,
			Open:     mean,
			High:     high,
			Low:      low,
			Close:    mean,
			Forecast: true,
		})
		closes = append(closes, mean)
		next = tf.Shift(next, 1)
	}
	return out
}

// SalesData daily totals of the last days days, newest first
func (s *Service) SalesData(ctx context.Context, businessID int64, days int, now time.Time) ([]DayTotal, error) {
	if days <= 0 {
		days = DefaultSalesDays
	}
	today := Day.Floor(now)
	rows, err := s.sales(ctx, businessID, Day.Shift(today, -(days-1)), Day.Shift(today, 1))
	if err != nil {
		return nil, err
	}
	buckets := bucketize(nil, Day, days, now)
	totals := make(map[time.Time]float64, days)
	for _, r := range rows {
		totals[Day.Floor(r.CreatedAt)] += r.TotalAmount
	}
	out := make([]DayTotal, 0, days)
	for i := len(buckets) - 1; i >= 0; i-- {
		v, _ := stats.Round(totals[buckets[i].Time], 2)
		out = append(out, DayTotal{Date: buckets[i].Time.Format("2006-01-02"), Sales: v})
	}
	return out, nil
}

func (s *Service) sum(ctx context.Context, businessID int64, from, to time.Time) (float64, error) {
	var total float64
	err := s.db.WithContext(ctx).Model(&domain.Transaction{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Where("business_id = ? AND created_at >= ? AND created_at < ?", businessID, from.UTC(), to.UTC()).
		Scan(&total).Error
	return total, err
}

func (s *Service) DashboardStats(ctx context.Context, businessID int64, now time.Time) (*DashboardStats, error) {
	db := s.db.WithContext(ctx)
	st := &DashboardStats{}
	var err error

	today := Day.Floor(now)
	if st.TodaySales, err = s.sum(ctx, businessID, today, Day.Shift(today, 1)); err != nil {
		return nil, err
	}
	month := Month.Floor(now)
	if st.MonthSales, err = s.sum(ctx, businessID, month, Month.Shift(month, 1)); err != nil {
		return nil, err
	}
	if err = db.Model(&domain.Product{}).Where("business_id = ?", businessID).Count(&st.TotalProducts).Error; err != nil {
		return nil, err
	}
	if err = db.Model(&domain.Product{}).
		Where("business_id = ? AND stock_quantity <= min_stock_level", businessID).
		Count(&st.LowStockProducts).Error; err != nil {
		return nil, err
	}
	if err = db.Model(&domain.User{}).Where("business_id = ?", businessID).Count(&st.TotalUsers).Error; err != nil {
		return nil, err
	}
	return st, nil
}
