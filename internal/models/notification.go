package models

import "time"

// NotificationKindDiscountApproval marks a request to review a line discount.
const NotificationKindDiscountApproval = "discount_approval"

// Notification is an in-app message addressed to one user.
type Notification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	Kind      string     `gorm:"size:50;not null" json:"kind"`
	Title     string     `gorm:"size:255;not null" json:"title"`
	Body      string     `gorm:"type:text" json:"body"`
	Reference string     `gorm:"size:64;index" json:"reference,omitempty"`
	EventID   string     `gorm:"size:36;index" json:"event_id,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}
