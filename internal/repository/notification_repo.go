package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Makarand-Tighare/project-api-sub000/internal/model"
)

// NotificationRepository 站内通知数据访问接口
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]model.Notification, error)
	MarkRead(ctx context.Context, recipientID, id string) error
}

type notificationRepo struct {
	db *gorm.DB
}

// NewNotificationRepo 创建 NotificationRepository 实例
func NewNotificationRepo(db *gorm.DB) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Create(ctx context.Context, n *model.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepo) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]model.Notification, error) {
	db := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		db = db.Where("is_read = ?", false)
	}
	var list []model.Notification
	err := db.Order("created_at DESC").Limit(100).Find(&list).Error
	return list, err
}

func (r *notificationRepo) MarkRead(ctx context.Context, recipientID, id string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("notification_id = ? AND recipient_id = ?", id, recipientID).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
