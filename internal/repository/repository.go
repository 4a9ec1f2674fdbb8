package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	Participant      ParticipantRepository
	Department       DepartmentRepository
	Relationship     RelationshipRepository
	History          HistoryRepository
	Badge            BadgeRepository
	ParticipantBadge ParticipantBadgeRepository
	Session          SessionRepository
	Quiz             QuizRepository
	Feedback         FeedbackRepository
	Notification     NotificationRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:               db,
		Participant:      NewParticipantRepo(db),
		Department:       NewDepartmentRepo(db),
		Relationship:     NewRelationshipRepo(db),
		History:          NewHistoryRepo(db),
		Badge:            NewBadgeRepo(db),
		ParticipantBadge: NewParticipantBadgeRepo(db),
		Session:          NewSessionRepo(db),
		Quiz:             NewQuizRepo(db),
		Feedback:         NewFeedbackRepo(db),
		Notification:     NewNotificationRepo(db),
	}
}

// DB 返回底层连接（集成测试手动开启事务使用）
func (r *Repository) DB() *gorm.DB { return r.db }

// WithTx 基于事务连接构建新的 Repository 聚合
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}

// Transaction 在单个数据库事务中执行 fn，fn 返回错误时整体回滚
// db 为 nil（单元测试直接组装的聚合）时直接在当前聚合上执行
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
