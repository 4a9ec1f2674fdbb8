package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Makarand-Tighare/project-api-sub000/internal/dto"
	"github.com/Makarand-Tighare/project-api-sub000/internal/repository"
)

var ErrNotificationNotFound = errors.New("通知不存在")

// NotificationService 站内通知查询接口
type NotificationService interface {
	List(ctx context.Context, recipientID string, unreadOnly bool) ([]dto.NotificationResponse, error)
	MarkRead(ctx context.Context, recipientID, id string) error
}

type notificationService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(repo *repository.Repository, logger *zap.Logger) NotificationService {
	return &notificationService{repo: repo, logger: logger}
}

func (s *notificationService) List(ctx context.Context, recipientID string, unreadOnly bool) ([]dto.NotificationResponse, error) {
	list, err := s.repo.Notification.ListByRecipient(ctx, recipientID, unreadOnly)
	if err != nil {
		s.logger.Error("查询通知失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.NotificationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, dto.NotificationResponse{
			NotificationID: n.NotificationID,
			Type:           n.Type,
			Title:          n.Title,
			Content:        n.Content,
			IsRead:         n.IsRead,
			CreatedAt:      n.CreatedAt.Format(time.RFC3339),
		})
	}
	return out, nil
}

// MarkRead 只能标记自己的通知
func (s *notificationService) MarkRead(ctx context.Context, recipientID, id string) error {
	if err := s.repo.Notification.MarkRead(ctx, recipientID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		s.logger.Error("标记通知已读失败", zap.Error(err))
		return err
	}
	return nil
}
