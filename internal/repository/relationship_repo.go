package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Makarand-Tighare/project-api-sub000/internal/model"
	pkgerrors "github.com/Makarand-Tighare/project-api-sub000/pkg/errors"
)

// RelationshipFilter 关系查询条件
// DepartmentID 非空时：导师或学员任一方属于该院系即命中
type RelationshipFilter struct {
	MentorID     string
	MenteeID     string
	DepartmentID string
}

// RelationshipRepository 导师-学员关系数据访问接口
type RelationshipRepository interface {
	Create(ctx context.Context, rel *model.Relationship) error
	GetByID(ctx context.Context, id string) (*model.Relationship, error)
	List(ctx context.Context, filter RelationshipFilter) ([]model.Relationship, error)
	CountByMentors(ctx context.Context, mentorIDs []string) (map[string]int, error)
	Delete(ctx context.Context, id string) error
	DeleteByMentor(ctx context.Context, mentorID string) (int64, error)
	DeleteByScope(ctx context.Context, departmentID string) (int64, error)
}

// relationshipRepo RelationshipRepository 的 GORM 实现
type relationshipRepo struct {
	db *gorm.DB
}

// NewRelationshipRepo 创建 RelationshipRepository 实例
func NewRelationshipRepo(db *gorm.DB) RelationshipRepository {
	return &relationshipRepo{db: db}
}

// Create 插入关系；违反唯一约束（学员已有导师 / 重复配对）时返回 ErrConflict
func (r *relationshipRepo) Create(ctx context.Context, rel *model.Relationship) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rel)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrConflict
	}
	return nil
}

func (r *relationshipRepo) GetByID(ctx context.Context, id string) (*model.Relationship, error) {
	var rel model.Relationship
	err := r.db.WithContext(ctx).
		Preload("Mentor").
		Preload("Mentee").
		Where("relationship_id = ?", id).
		First(&rel).Error
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

func departmentMembers(db *gorm.DB, departmentID string) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).
		Model(&model.Participant{}).
		Select("registration_no").
		Where("department_id = ?", departmentID)
}

func scopeRelationships(db *gorm.DB, departmentID string) *gorm.DB {
	if departmentID == "" {
		return db
	}
	sub := departmentMembers(db, departmentID)
	return db.Where("mentor_id IN (?) OR mentee_id IN (?)", sub, sub)
}

func (r *relationshipRepo) List(ctx context.Context, filter RelationshipFilter) ([]model.Relationship, error) {
	db := r.db.WithContext(ctx).Model(&model.Relationship{})
	if filter.MentorID != "" {
		db = db.Where("mentor_id = ?", filter.MentorID)
	}
	if filter.MenteeID != "" {
		db = db.Where("mentee_id = ?", filter.MenteeID)
	}
	db = scopeRelationships(db, filter.DepartmentID)

	var list []model.Relationship
	err := db.Preload("Mentor").
		Preload("Mentee").
		Order("created_at ASC, relationship_id ASC").
		Find(&list).Error
	return list, err
}

// CountByMentors 统计每位导师当前的学员数（未出现在结果中的导师视为 0）
func (r *relationshipRepo) CountByMentors(ctx context.Context, mentorIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(mentorIDs))
	if len(mentorIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		MentorID string
		Total    int
	}
	err := r.db.WithContext(ctx).
		Model(&model.Relationship{}).
		Select("mentor_id, COUNT(*) AS total").
		Where("mentor_id IN ?", mentorIDs).
		Group("mentor_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.MentorID] = row.Total
	}
	return counts, nil
}

func (r *relationshipRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("relationship_id = ?", id).
		Delete(&model.Relationship{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *relationshipRepo) DeleteByMentor(ctx context.Context, mentorID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("mentor_id = ?", mentorID).
		Delete(&model.Relationship{})
	return result.RowsAffected, result.Error
}

// DeleteByScope 删除范围内全部关系；departmentID 为空表示全局
// 院系范围按学员归属：学员在该院系的关系被删除，院系导师带的外院系学员保留
func (r *relationshipRepo) DeleteByScope(ctx context.Context, departmentID string) (int64, error) {
	db := r.db.WithContext(ctx)
	if departmentID == "" {
		// 全局删除需显式条件，避免 gorm 拦截无 WHERE 的批量删除
		db = db.Where("1 = 1")
	} else {
		db = db.Where("mentee_id IN (?)", departmentMembers(db, departmentID))
	}
	result := db.Delete(&model.Relationship{})
	return result.RowsAffected, result.Error
}
