package domain

import "time"

// Category groups products of one business
type Category struct {
	ID         int64     `json:"id,string" form:"id"`
	BusinessID int64     `gorm:"index;not null" json:"business_id,string"`
	Name       string    `gorm:"size:50;not null" json:"name" form:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName Specify table name
func (Category) TableName() string {
	return "category"
}

// Product is a sellable item. Barcodes are unique across all businesses.
type Product struct {
	ID            int64     `json:"id,string" form:"id"`
	BusinessID    int64     `gorm:"index;not null" json:"business_id,string"`
	CategoryID    *int64    `gorm:"index" json:"category_id,string,omitempty"`
	Category      *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Name          string    `gorm:"size:100;not null" json:"name"`
	Barcode       string    `gorm:"size:50;uniqueIndex;not null" json:"barcode"`
	Price         float64   `gorm:"not null" json:"price"`
	Cost          float64   `json:"cost"`
	StockQuantity int       `json:"stock_quantity"`
	MinStockLevel int       `json:"min_stock_level"`
	ImageURL      string    `gorm:"size:200" json:"image_url"`
	Active        bool      `gorm:"not null" json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Product) TableName() string {
	return "product"
}

// LowStock reports whether the stock level reached the reorder threshold
func (p Product) LowStock() bool {
	return p.StockQuantity <= p.MinStockLevel
}

// Profit is the per-unit profit
func (p Product) Profit() float64 {
	return p.Price - p.Cost
}

// Margin is (price-cost)/cost in percent, 0 when the cost is unknown.
func (p Product) Margin() float64 {
	if p.Cost == 0 {
		return 0
	}
	return (p.Price - p.Cost) / p.Cost * 100
}
