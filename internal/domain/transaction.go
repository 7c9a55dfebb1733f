package domain

import "time"

// PaymentMethod how a sale was settled
type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "cash"
	PaymentCard    PaymentMethod = "card"
	PaymentDigital PaymentMethod = "digital"
)

// Valid reports whether m is a supported payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentDigital:
		return true
	}
	return false
}

// Transaction is a committed sale. TransactionID is the short id printed on receipts.
type Transaction struct {
	ID            int64             `json:"id,string"`
	TransactionID string            `gorm:"size:50;uniqueIndex;not null" json:"transaction_id"`
	UserID        int64             `gorm:"index;not null" json:"user_id,string"`
	BusinessID    int64             `gorm:"index;not null" json:"business_id,string"`
	TotalAmount   float64           `gorm:"not null" json:"total_amount"`
	PaymentMethod PaymentMethod     `gorm:"size:20;not null" json:"payment_method"`
	Items         []TransactionItem `gorm:"foreignKey:TransactionID;references:ID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt     time.Time         `gorm:"index" json:"created_at"`
}

// TableName Specify table name
func (Transaction) TableName() string {
	return "pos_transaction"
}

// TransactionItem is one line of a sale
type TransactionItem struct {
	ID            int64   `json:"id,string"`
	TransactionID int64   `gorm:"index;not null" json:"transaction_id,string"`
	ProductID     int64   `gorm:"index;not null" json:"product_id,string"`
	ProductName   string  `gorm:"size:100" json:"product_name"`
	Quantity      int     `gorm:"not null" json:"quantity"`
	UnitPrice     float64 `gorm:"not null" json:"unit_price"`
	TotalPrice    float64 `gorm:"not null" json:"total_price"`
}

// TableName Specify table name
func (TransactionItem) TableName() string {
	return "transaction_item"
}
