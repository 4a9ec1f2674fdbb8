package model

import "time"

// Notification 站内通知表 — 对应 notifications
type Notification struct {
	NotificationID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"notification_id"`
	RecipientID    string    `gorm:"type:varchar(20);not null;index"                json:"recipient_id"` // 学号
	Type           string    `gorm:"type:varchar(50);not null"                      json:"type"`         // match | manual_match | badge | archive
	Title          string    `gorm:"type:varchar(200);not null"                     json:"title"`
	Content        string    `gorm:"type:text;not null"                             json:"content"`
	IsRead         bool      `gorm:"not null;default:false"                         json:"is_read"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }
