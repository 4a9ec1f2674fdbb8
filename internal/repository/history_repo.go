package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Makarand-Tighare/project-api-sub000/internal/model"
)

// HistoryRepository 学期归档记录数据访问接口（只追加）
type HistoryRepository interface {
	Append(ctx context.Context, h *model.ParticipantHistory) error
	ListByRegistrationNo(ctx context.Context, regNo string) ([]model.ParticipantHistory, error)
	LatestByRegistrationNos(ctx context.Context, regNos []string) (map[string]model.ParticipantHistory, error)
}

// historyRepo HistoryRepository 的 GORM 实现
type historyRepo struct {
	db *gorm.DB
}

// NewHistoryRepo 创建 HistoryRepository 实例
func NewHistoryRepo(db *gorm.DB) HistoryRepository {
	return &historyRepo{db: db}
}

func (r *historyRepo) Append(ctx context.Context, h *model.ParticipantHistory) error {
	return r.db.WithContext(ctx).Create(h).Error
}

// ListByRegistrationNo 按学期结束时间倒序
func (r *historyRepo) ListByRegistrationNo(ctx context.Context, regNo string) ([]model.ParticipantHistory, error) {
	var list []model.ParticipantHistory
	err := r.db.WithContext(ctx).
		Where("registration_no = ?", regNo).
		Order("semester_end DESC, created_at DESC").
		Find(&list).Error
	return list, err
}

// LatestByRegistrationNos 每位参与者最近一条归档记录
func (r *historyRepo) LatestByRegistrationNos(ctx context.Context, regNos []string) (map[string]model.ParticipantHistory, error) {
	latest := make(map[string]model.ParticipantHistory, len(regNos))
	if len(regNos) == 0 {
		return latest, nil
	}

	var list []model.ParticipantHistory
	err := r.db.WithContext(ctx).
		Where("registration_no IN ?", regNos).
		Order("registration_no ASC, semester_end DESC, created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	for _, h := range list {
		if _, ok := latest[h.RegistrationNo]; !ok {
			latest[h.RegistrationNo] = h
		}
	}
	return latest, nil
}
