package domain

import "time"

// Business is the tenancy root. Every operational row carries a business id.
type Business struct {
	ID        int64     `json:"id,string" form:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" form:"name"`
	Address   string    `gorm:"type:text" json:"address" form:"address"`
	Phone     string    `gorm:"size:20" json:"phone" form:"phone"`
	Email     string    `gorm:"size:100" json:"email" form:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Business) TableName() string {
	return "business"
}
