package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Makarand-Tighare/project-api-sub000/internal/model"
	pkgerrors "github.com/Makarand-Tighare/project-api-sub000/pkg/errors"
)

// ParticipantFilter 参与者查询条件（零值字段不参与过滤）
type ParticipantFilter struct {
	DepartmentID        string
	Status              string
	ApprovalStatus      string
	MentoringPreference string
	Semester            int
	Keyword             string // 姓名 / 学号模糊匹配
	RegistrationNos     []string
}

// ParticipantRepository 参与者数据访问接口
type ParticipantRepository interface {
	Create(ctx context.Context, p *model.Participant) error
	GetByID(ctx context.Context, regNo string) (*model.Participant, error)
	List(ctx context.Context, filter ParticipantFilter) ([]model.Participant, error)
	ListPage(ctx context.Context, filter ParticipantFilter, offset, limit int) ([]model.Participant, int64, error)
	Update(ctx context.Context, p *model.Participant) error
	UpdateFields(ctx context.Context, regNo string, fields map[string]interface{}) error
	BulkUpdate(ctx context.Context, filter ParticipantFilter, fields map[string]interface{}) (int64, error)
	AdjustBadgesEarned(ctx context.Context, regNo string, delta int) (int, error)
	Delete(ctx context.Context, regNo string) error
}

// participantRepo ParticipantRepository 的 GORM 实现
type participantRepo struct {
	db *gorm.DB
}

// NewParticipantRepo 创建 ParticipantRepository 实例
func NewParticipantRepo(db *gorm.DB) ParticipantRepository {
	return &participantRepo{db: db}
}

func (r *participantRepo) Create(ctx context.Context, p *model.Participant) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *participantRepo) GetByID(ctx context.Context, regNo string) (*model.Participant, error) {
	var p model.Participant
	err := r.db.WithContext(ctx).
		Preload("Department").
		Where("registration_no = ?", regNo).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func applyParticipantFilter(db *gorm.DB, f ParticipantFilter) *gorm.DB {
	if f.DepartmentID != "" {
		db = db.Where("department_id = ?", f.DepartmentID)
	}
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.ApprovalStatus != "" {
		db = db.Where("approval_status = ?", f.ApprovalStatus)
	}
	if f.MentoringPreference != "" {
		db = db.Where("mentoring_preference = ?", f.MentoringPreference)
	}
	if f.Semester > 0 {
		db = db.Where("semester = ?", f.Semester)
	}
	if f.Keyword != "" {
		like := "%" + f.Keyword + "%"
		db = db.Where("name ILIKE ? OR registration_no ILIKE ?", like, like)
	}
	if len(f.RegistrationNos) > 0 {
		db = db.Where("registration_no IN ?", f.RegistrationNos)
	}
	return db
}

// List 按学号升序返回（匹配算法依赖该顺序做确定性遍历）
func (r *participantRepo) List(ctx context.Context, filter ParticipantFilter) ([]model.Participant, error) {
	var list []model.Participant
	err := applyParticipantFilter(r.db.WithContext(ctx).Model(&model.Participant{}), filter).
		Preload("Department").
		Order("registration_no ASC").
		Find(&list).Error
	return list, err
}

func (r *participantRepo) ListPage(ctx context.Context, filter ParticipantFilter, offset, limit int) ([]model.Participant, int64, error) {
	var list []model.Participant
	var total int64

	db := applyParticipantFilter(r.db.WithContext(ctx).Model(&model.Participant{}), filter)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Preload("Department").
		Order("registration_no ASC").
		Offset(offset).
		Limit(limit).
		Find(&list).Error
	return list, total, err
}

// Update 更新个人资料（乐观锁）
func (r *participantRepo) Update(ctx context.Context, p *model.Participant) error {
	oldVersion := p.Version
	result := r.db.WithContext(ctx).
		Model(&model.Participant{}).
		Where("registration_no = ? AND version = ?", p.RegistrationNo, oldVersion).
		Updates(map[string]interface{}{
			"name":                           p.Name,
			"email":                          p.Email,
			"mobile_number":                  p.MobileNumber,
			"semester":                       p.Semester,
			"branch":                         p.Branch,
			"department_id":                  p.DepartmentID,
			"mentoring_preference":           p.MentoringPreference,
			"previous_mentoring_experience":  p.PreviousMentoringExperience,
			"tech_stack":                     p.TechStack,
			"areas_of_interest":              p.AreasOfInterest,
			"interest_preference1":           p.InterestPreference1,
			"interest_preference2":           p.InterestPreference2,
			"interest_preference3":           p.InterestPreference3,
			"published_research_papers":      p.PublishedResearchPapers,
			"hackathon_participation":        p.HackathonParticipation,
			"number_of_wins":                 p.NumberOfWins,
			"number_of_participations":       p.NumberOfParticipations,
			"hackathon_role":                 p.HackathonRole,
			"coding_competitions":            p.CodingCompetitions,
			"level_of_competition":           p.LevelOfCompetition,
			"number_of_coding_competitions":  p.NumberOfCodingCompetitions,
			"cgpa":                           p.CGPA,
			"sgpa":                           p.SGPA,
			"internship_experience":          p.InternshipExperience,
			"number_of_internships":          p.NumberOfInternships,
			"internship_description":         p.InternshipDescription,
			"seminars_or_workshops_attended": p.SeminarsOrWorkshopsAttended,
			"describe_seminars":              p.DescribeSeminars,
			"extracurricular_activities":     p.ExtracurricularActivities,
			"describe_extracurricular":       p.DescribeExtracurricular,
			"proof_documents":                p.ProofDocuments,
			"updated_by":                     p.UpdatedBy,
			"version":                        oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	p.Version = oldVersion + 1
	return nil
}

// UpdateFields 按字段更新单个参与者，记录不存在时返回 gorm.ErrRecordNotFound
func (r *participantRepo) UpdateFields(ctx context.Context, regNo string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.Participant{}).
		Where("registration_no = ?", regNo).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// BulkUpdate 按条件批量更新，返回影响行数
func (r *participantRepo) BulkUpdate(ctx context.Context, filter ParticipantFilter, fields map[string]interface{}) (int64, error) {
	result := applyParticipantFilter(r.db.WithContext(ctx).Model(&model.Participant{}), filter).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// AdjustBadgesEarned 原子增减已领取徽章数（下限 0），返回调整后的值
func (r *participantRepo) AdjustBadgesEarned(ctx context.Context, regNo string, delta int) (int, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Participant{}).
		Where("registration_no = ?", regNo).
		Update("badges_earned", gorm.Expr("GREATEST(badges_earned + ?, 0)", delta))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	var earned int
	err := r.db.WithContext(ctx).
		Model(&model.Participant{}).
		Where("registration_no = ?", regNo).
		Pluck("badges_earned", &earned).Error
	return earned, err
}

// Delete 删除参与者（关系、徽章、会话等按外键级联；历史记录保留）
func (r *participantRepo) Delete(ctx context.Context, regNo string) error {
	result := r.db.WithContext(ctx).
		Where("registration_no = ?", regNo).
		Delete(&model.Participant{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
