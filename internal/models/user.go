package models

import (
	"time"
)

// Role values for User.Role.
const (
	RoleTechnician = "technician"
	RoleAdmin      = "admin"
)

// User represents an authenticated account: technicians add billing lines,
// admins review discounts.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string    `gorm:"size:255" json:"name,omitempty"`
	Role      string    `gorm:"size:20;not null;index" json:"role"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
}

// IsAdmin reports whether the user may approve discounts.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Customer is the minimal directory entry needed for pricing: a customer
// may be assigned one price list.
type Customer struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	PriceListID *uint     `gorm:"index" json:"price_list_id,omitempty"`
}
