package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationTypeReminder marks in-app notifications created by reminder delivery
const NotificationTypeReminder = "reminder"

// Notification is an in-app inbox entry
type Notification struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	AppName   string         `gorm:"size:20;not null;default:'general'" json:"app_name"`
	Type      string         `gorm:"size:20;not null" json:"type"`
	Title     string         `gorm:"size:200;not null" json:"title"`
	Message   string         `gorm:"type:text;not null" json:"message"`
	Payload   datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty"`
	Read      bool           `gorm:"not null;default:false;index" json:"read"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
}

// BeforeCreate hook is called before creating a new notification
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return nil
}

// TableName specifies the table name for the Notification model
func (Notification) TableName() string {
	return "notification"
}
