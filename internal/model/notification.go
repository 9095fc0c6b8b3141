package model

import "time"

// Notification records one delivered lifecycle event. EventID carries the
// producer's uuid; the unique index makes consumer replays no-ops.
type Notification struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	EventID  string `gorm:"size:64;uniqueIndex;not null" json:"event_id"`
	OrderID  uint   `gorm:"not null;index" json:"order_id"`
	Kind     string `gorm:"size:32;not null" json:"kind"`
	StatusID uint   `gorm:"not null" json:"status_id"`
	Payload  string `gorm:"size:1024" json:"payload"`
}

func (Notification) TableName() string { return "notifications" }
