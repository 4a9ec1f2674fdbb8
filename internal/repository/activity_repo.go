package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Makarand-Tighare/project-api-sub000/internal/model"
)

// ════════════════════════════════════════════════════════════
// 会话
// ════════════════════════════════════════════════════════════

// SessionRepository 辅导会话数据访问接口
type SessionRepository interface {
	Create(ctx context.Context, s *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	ListByParticipant(ctx context.Context, regNo string) ([]model.Session, error)
	Delete(ctx context.Context, id string) error
	// 以下统计仅计入 since 之后创建的记录（当前学期窗口）
	CountConducted(ctx context.Context, mentorID string, since time.Time) (int64, error)
	CountAttended(ctx context.Context, participantID string, since time.Time) (int64, error)
}

type sessionRepo struct {
	db *gorm.DB
}

// NewSessionRepo 创建 SessionRepository 实例
func NewSessionRepo(db *gorm.DB) SessionRepository {
	return &sessionRepo{db: db}
}

// Create 连同参与者关联一并写入
func (r *sessionRepo) Create(ctx context.Context, s *model.Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	err := r.db.WithContext(ctx).
		Preload("Attendees").
		Where("session_id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByParticipant 作为导师主持或作为参与者出席的会话
func (r *sessionRepo) ListByParticipant(ctx context.Context, regNo string) ([]model.Session, error) {
	attended := r.db.Session(&gorm.Session{NewDB: true}).
		Model(&model.SessionAttendee{}).
		Select("session_id").
		Where("participant_id = ?", regNo)

	var list []model.Session
	err := r.db.WithContext(ctx).
		Preload("Attendees").
		Where("mentor_id = ? OR session_id IN (?)", regNo, attended).
		Order("date_time DESC").
		Find(&list).Error
	return list, err
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("session_id = ?", id).
		Delete(&model.Session{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *sessionRepo) CountConducted(ctx context.Context, mentorID string, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("mentor_id = ? AND created_at >= ?", mentorID, since).
		Count(&n).Error
	return n, err
}

func (r *sessionRepo) CountAttended(ctx context.Context, participantID string, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.SessionAttendee{}).
		Joins("JOIN sessions ON sessions.session_id = session_attendees.session_id").
		Where("session_attendees.participant_id = ? AND sessions.created_at >= ?", participantID, since).
		Count(&n).Error
	return n, err
}

// ════════════════════════════════════════════════════════════
// 测验
// ════════════════════════════════════════════════════════════

// QuizStats 参与者的测验汇总
type QuizStats struct {
	Count             int64
	AvgPercentage     float64 // 仅统计已完成的测验
	CompletedScoreSum int64
}

// QuizRepository 测验数据访问接口
type QuizRepository interface {
	Create(ctx context.Context, q *model.QuizResult) error
	GetByID(ctx context.Context, id string) (*model.QuizResult, error)
	Update(ctx context.Context, q *model.QuizResult) error
	ListByParticipant(ctx context.Context, regNo string) ([]model.QuizResult, error)
	CountAssignedBy(ctx context.Context, mentorID string, since time.Time) (int64, error)
	SumCompletedScoreAssignedBy(ctx context.Context, mentorID string, since time.Time) (int64, error)
	SumCompletedScore(ctx context.Context, participantIDs []string, since time.Time) (int64, error)
	Stats(ctx context.Context, participantID string, since time.Time) (*QuizStats, error)
}

type quizRepo struct {
	db *gorm.DB
}

// NewQuizRepo 创建 QuizRepository 实例
func NewQuizRepo(db *gorm.DB) QuizRepository {
	return &quizRepo{db: db}
}

func (r *quizRepo) Create(ctx context.Context, q *model.QuizResult) error {
	return r.db.WithContext(ctx).Create(q).Error
}

func (r *quizRepo) GetByID(ctx context.Context, id string) (*model.QuizResult, error) {
	var q model.QuizResult
	err := r.db.WithContext(ctx).
		Where("quiz_id = ?", id).
		First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *quizRepo) Update(ctx context.Context, q *model.QuizResult) error {
	return r.db.WithContext(ctx).Save(q).Error
}

// ListByParticipant 作为答题人或布置人的测验
func (r *quizRepo) ListByParticipant(ctx context.Context, regNo string) ([]model.QuizResult, error) {
	var list []model.QuizResult
	err := r.db.WithContext(ctx).
		Where("participant_id = ? OR mentor_id = ?", regNo, regNo).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *quizRepo) CountAssignedBy(ctx context.Context, mentorID string, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.QuizResult{}).
		Where("mentor_id = ? AND created_at >= ?", mentorID, since).
		Count(&n).Error
	return n, err
}

func (r *quizRepo) SumCompletedScoreAssignedBy(ctx context.Context, mentorID string, since time.Time) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&model.QuizResult{}).
		Select("COALESCE(SUM(score), 0)").
		Where("mentor_id = ? AND status = ? AND created_at >= ?", mentorID, model.QuizCompleted, since).
		Scan(&sum).Error
	return sum, err
}

func (r *quizRepo) SumCompletedScore(ctx context.Context, participantIDs []string, since time.Time) (int64, error) {
	if len(participantIDs) == 0 {
		return 0, nil
	}
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&model.QuizResult{}).
		Select("COALESCE(SUM(score), 0)").
		Where("participant_id IN ? AND status = ? AND created_at >= ?", participantIDs, model.QuizCompleted, since).
		Scan(&sum).Error
	return sum, err
}

func (r *quizRepo) Stats(ctx context.Context, participantID string, since time.Time) (*QuizStats, error) {
	var row struct {
		Total    int64
		AvgPct   float64
		ScoreSum int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.QuizResult{}).
		Select(`COUNT(*) AS total,
			COALESCE(AVG(percentage) FILTER (WHERE status = ?), 0) AS avg_pct,
			COALESCE(SUM(score) FILTER (WHERE status = ?), 0) AS score_sum`,
			model.QuizCompleted, model.QuizCompleted).
		Where("participant_id = ? AND created_at >= ?", participantID, since).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &QuizStats{Count: row.Total, AvgPercentage: row.AvgPct, CompletedScoreSum: row.ScoreSum}, nil
}

// ════════════════════════════════════════════════════════════
// 评价
// ════════════════════════════════════════════════════════════

// FeedbackRepository 评价数据访问接口
type FeedbackRepository interface {
	Create(ctx context.Context, f *model.Feedback) error
	AverageRating(ctx context.Context, toID, ratedRole string, since time.Time) (*float64, error)
	ListByTarget(ctx context.Context, toID string) ([]model.Feedback, error)
}

type feedbackRepo struct {
	db *gorm.DB
}

// NewFeedbackRepo 创建 FeedbackRepository 实例
func NewFeedbackRepo(db *gorm.DB) FeedbackRepository {
	return &feedbackRepo{db: db}
}

func (r *feedbackRepo) Create(ctx context.Context, f *model.Feedback) error {
	return r.db.WithContext(ctx).Create(f).Error
}

// AverageRating 平均评分；无任何评价时返回 nil
func (r *feedbackRepo) AverageRating(ctx context.Context, toID, ratedRole string, since time.Time) (*float64, error) {
	var avg *float64
	err := r.db.WithContext(ctx).
		Model(&model.Feedback{}).
		Select("AVG(rating)").
		Where("to_id = ? AND rated_role = ? AND created_at >= ?", toID, ratedRole, since).
		Scan(&avg).Error
	return avg, err
}

func (r *feedbackRepo) ListByTarget(ctx context.Context, toID string) ([]model.Feedback, error) {
	var list []model.Feedback
	err := r.db.WithContext(ctx).
		Where("to_id = ?", toID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}
