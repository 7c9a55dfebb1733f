package domain

import "time"

// Role is the access tag carried by every user.
type Role string

const (
	RoleCashier Role = "cashier"
	RoleManager Role = "manager"
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCashier, RoleManager, RoleOwner, RoleAdmin:
		return true
	}
	return false
}

// User is a login account. Admin users are platform level and have BusinessID 0.
type User struct {
	ID           int64     `json:"id,string" form:"id"`
	BusinessID   int64     `gorm:"index" json:"business_id,string" form:"business_id"`
	Username     string    `gorm:"size:80;uniqueIndex;not null" json:"username" form:"username"`
	Email        string    `gorm:"size:120;not null" json:"email" form:"email"`
	PasswordHash string    `gorm:"size:128" json:"-"`
	Role         Role      `gorm:"size:20;not null" json:"role" form:"role"`
	Active       bool      `gorm:"not null" json:"active" form:"active"`
	LastLogin    time.Time `json:"last_login"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName Specify table name
func (User) TableName() string {
	return "pos_user"
}
