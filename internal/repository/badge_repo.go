package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Makarand-Tighare/project-api-sub000/internal/model"
	pkgerrors "github.com/Makarand-Tighare/project-api-sub000/pkg/errors"
)

// BadgeRepository 徽章目录数据访问接口
type BadgeRepository interface {
	Create(ctx context.Context, badge *model.Badge) error
	GetByID(ctx context.Context, id string) (*model.Badge, error)
	GetByCode(ctx context.Context, code string) (*model.Badge, error)
	List(ctx context.Context) ([]model.Badge, error)
}

// badgeRepo BadgeRepository 的 GORM 实现
type badgeRepo struct {
	db *gorm.DB
}

// NewBadgeRepo 创建 BadgeRepository 实例
func NewBadgeRepo(db *gorm.DB) BadgeRepository {
	return &badgeRepo{db: db}
}

func (r *badgeRepo) Create(ctx context.Context, badge *model.Badge) error {
	return r.db.WithContext(ctx).Create(badge).Error
}

func (r *badgeRepo) GetByID(ctx context.Context, id string) (*model.Badge, error) {
	var badge model.Badge
	err := r.db.WithContext(ctx).
		Where("badge_id = ?", id).
		First(&badge).Error
	if err != nil {
		return nil, err
	}
	return &badge, nil
}

func (r *badgeRepo) GetByCode(ctx context.Context, code string) (*model.Badge, error) {
	var badge model.Badge
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&badge).Error
	if err != nil {
		return nil, err
	}
	return &badge, nil
}

// List 按所需积分升序
func (r *badgeRepo) List(ctx context.Context) ([]model.Badge, error) {
	var list []model.Badge
	err := r.db.WithContext(ctx).
		Order("points_required ASC, name ASC").
		Find(&list).Error
	return list, err
}

// ── 徽章授予 ──

// ParticipantBadgeRepository 徽章授予记录数据访问接口
type ParticipantBadgeRepository interface {
	Create(ctx context.Context, pb *model.ParticipantBadge) error
	GetByID(ctx context.Context, id string) (*model.ParticipantBadge, error)
	ListByParticipant(ctx context.Context, participantID string) ([]model.ParticipantBadge, error)
	Update(ctx context.Context, pb *model.ParticipantBadge) error
	Delete(ctx context.Context, id string) error
	DeleteByParticipants(ctx context.Context, participantIDs []string) (int64, error)
}

// participantBadgeRepo ParticipantBadgeRepository 的 GORM 实现
type participantBadgeRepo struct {
	db *gorm.DB
}

// NewParticipantBadgeRepo 创建 ParticipantBadgeRepository 实例
func NewParticipantBadgeRepo(db *gorm.DB) ParticipantBadgeRepository {
	return &participantBadgeRepo{db: db}
}

// Create 授予徽章；同一参与者重复授予同一徽章时返回 ErrConflict
func (r *participantBadgeRepo) Create(ctx context.Context, pb *model.ParticipantBadge) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(pb)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrConflict
	}
	return nil
}

func (r *participantBadgeRepo) GetByID(ctx context.Context, id string) (*model.ParticipantBadge, error) {
	var pb model.ParticipantBadge
	err := r.db.WithContext(ctx).
		Preload("Badge").
		Where("id = ?", id).
		First(&pb).Error
	if err != nil {
		return nil, err
	}
	return &pb, nil
}

func (r *participantBadgeRepo) ListByParticipant(ctx context.Context, participantID string) ([]model.ParticipantBadge, error) {
	var list []model.ParticipantBadge
	err := r.db.WithContext(ctx).
		Preload("Badge").
		Where("participant_id = ?", participantID).
		Order("earned_date ASC").
		Find(&list).Error
	return list, err
}

func (r *participantBadgeRepo) Update(ctx context.Context, pb *model.ParticipantBadge) error {
	return r.db.WithContext(ctx).
		Model(&model.ParticipantBadge{}).
		Where("id = ?", pb.ID).
		Updates(map[string]interface{}{
			"is_claimed":      pb.IsClaimed,
			"claimed_date":    pb.ClaimedDate,
			"linkedin_shared": pb.LinkedinShared,
		}).Error
}

func (r *participantBadgeRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.ParticipantBadge{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *participantBadgeRepo) DeleteByParticipants(ctx context.Context, participantIDs []string) (int64, error) {
	if len(participantIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("participant_id IN ?", participantIDs).
		Delete(&model.ParticipantBadge{})
	return result.RowsAffected, result.Error
}
