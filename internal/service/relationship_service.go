package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Makarand-Tighare/project-api-sub000/config"
	"github.com/Makarand-Tighare/project-api-sub000/internal/dto"
	"github.com/Makarand-Tighare/project-api-sub000/internal/model"
	"github.com/Makarand-Tighare/project-api-sub000/internal/repository"
	pkgerrors "github.com/Makarand-Tighare/project-api-sub000/pkg/errors"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/metrics"
)

// ── 关系模块业务错误 ──

var (
	ErrRelationshipNotFound  = errors.New("导师-学员关系不存在")
	ErrRelationshipExists    = errors.New("该导师与学员已建立关系")
	ErrMenteeAlreadyMatched  = errors.New("该学员已有导师")
	ErrMentorAtCapacity      = errors.New("导师名下学员已满")
	ErrSelfRelationship      = errors.New("导师与学员不能是同一人")
	ErrParticipantIneligible = errors.New("参与者未通过审核或已停用")
	ErrRoleMismatch          = errors.New("参与者的导师/学员意向与所选角色不符")
	ErrNoMentor              = errors.New("该学员暂未分配导师")
)

// RelationshipService 导师-学员关系管理接口（手动建立 / 解除 / 查询）
type RelationshipService interface {
	CreateManual(ctx context.Context, req *dto.CreateRelationshipRequest, callerID string) (*dto.RelationshipResponse, error)
	Delete(ctx context.Context, id, callerID string) error
	Get(ctx context.Context, id string) (*dto.RelationshipResponse, error)
	List(ctx context.Context, scope Scope) ([]dto.RelationshipResponse, error)
	ListByMentor(ctx context.Context, mentorID string) ([]dto.RelationshipResponse, error)
	GetMentor(ctx context.Context, menteeID string) (*dto.ParticipantBrief, error)
}

type relationshipService struct {
	repo     *repository.Repository
	cfg      config.MatchingConfig
	locker   ScopeLocker
	notifier Notifier
	logger   *zap.Logger
}

// NewRelationshipService 创建 RelationshipService 实例
func NewRelationshipService(
	repo *repository.Repository,
	cfg config.MatchingConfig,
	locker ScopeLocker,
	notifier Notifier,
	logger *zap.Logger,
) RelationshipService {
	return &relationshipService{repo: repo, cfg: cfg, locker: locker, notifier: notifier, logger: logger}
}

// ════════════════════════════════════════════════════════════
// CreateManual
// ════════════════════════════════════════════════════════════

// CreateManual 管理员手动指定导师；与自动匹配共用学员唯一、导师容量两条约束
func (s *relationshipService) CreateManual(ctx context.Context, req *dto.CreateRelationshipRequest, callerID string) (*dto.RelationshipResponse, error) {
	if req.MentorID == req.MenteeID {
		return nil, ErrSelfRelationship
	}

	mentor, err := s.repo.Participant.GetByID(ctx, req.MentorID)
	if err != nil {
		return nil, mapParticipantErr(err, s.logger)
	}
	mentee, err := s.repo.Participant.GetByID(ctx, req.MenteeID)
	if err != nil {
		return nil, mapParticipantErr(err, s.logger)
	}
	if !mentor.IsEligible() || !mentee.IsEligible() {
		return nil, ErrParticipantIneligible
	}
	if mentor.MentoringPreference != model.PreferenceMentor || mentee.MentoringPreference != model.PreferenceMentee {
		return nil, ErrRoleMismatch
	}

	// 以学员所在院系加锁，与该院系（及全局）的匹配 / 归档互斥
	var scope Scope
	if mentee.DepartmentID != nil {
		scope.DepartmentID = *mentee.DepartmentID
	}

	var rel *model.Relationship
	err = withScopeLock(ctx, s.locker, scope, "manual_match", func() error {
		return s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			existing, err := tx.Relationship.List(ctx, repository.RelationshipFilter{MenteeID: mentee.RegistrationNo})
			if err != nil {
				return err
			}
			for _, r := range existing {
				if r.MentorID == mentor.RegistrationNo {
					return ErrRelationshipExists
				}
			}
			if len(existing) > 0 {
				return ErrMenteeAlreadyMatched
			}

			load, err := tx.Relationship.CountByMentors(ctx, []string{mentor.RegistrationNo})
			if err != nil {
				return err
			}
			if load[mentor.RegistrationNo] >= s.cfg.MaxMenteesPerMentor {
				return ErrMentorAtCapacity
			}

			rel = &model.Relationship{
				MentorID:        mentor.RegistrationNo,
				MenteeID:        mentee.RegistrationNo,
				ManuallyCreated: true,
				CreatedBy:       &callerID,
			}
			if err := tx.Relationship.Create(ctx, rel); err != nil {
				if errors.Is(err, pkgerrors.ErrConflict) {
					// 并发下被其他请求抢先写入
					return ErrMenteeAlreadyMatched
				}
				return err
			}
			return nil
		})
	})
	if err != nil {
		if !isRelationshipBusinessError(err) {
			s.logger.Error("手动建立关系失败",
				zap.String("mentor", req.MentorID),
				zap.String("mentee", req.MenteeID),
				zap.Error(err))
		}
		return nil, err
	}

	metrics.MatchesCreated.WithLabelValues("manual").Inc()
	s.logger.Info("手动建立导师-学员关系",
		zap.String("relationship_id", rel.RelationshipID),
		zap.String("mentor", mentor.RegistrationNo),
		zap.String("mentee", mentee.RegistrationNo),
		zap.String("operator", callerID))

	notifyAll(ctx, s.notifier, s.logger, manualMatchNotices(mentor, mentee))

	rel.Mentor, rel.Mentee = mentor, mentee
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now()
	}
	resp := toRelationshipResponse(rel)
	return &resp, nil
}

func isRelationshipBusinessError(err error) bool {
	switch {
	case errors.Is(err, ErrRelationshipExists),
		errors.Is(err, ErrMenteeAlreadyMatched),
		errors.Is(err, ErrMentorAtCapacity),
		errors.Is(err, ErrScopeBusy):
		return true
	}
	return false
}

func manualMatchNotices(mentor, mentee *model.Participant) []outgoing {
	return []outgoing{
		{
			to: recipientOf(mentor),
			msg: Message{
				Type:    NotifyManualMatch,
				Subject: "新的学员已分配给你",
				Body:    fmt.Sprintf("管理员已将 %s（%s）指定为你的学员。", mentee.Name, mentee.RegistrationNo),
			},
		},
		{
			to: recipientOf(mentee),
			msg: Message{
				Type:    NotifyManualMatch,
				Subject: "你的导师已确定",
				Body:    fmt.Sprintf("管理员已为你指定导师 %s（%s）。", mentor.Name, mentor.RegistrationNo),
			},
		},
	}
}

// ════════════════════════════════════════════════════════════
// Delete / Query
// ════════════════════════════════════════════════════════════

func (s *relationshipService) Delete(ctx context.Context, id, callerID string) error {
	if err := s.repo.Relationship.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRelationshipNotFound
		}
		s.logger.Error("删除关系失败", zap.String("relationship_id", id), zap.Error(err))
		return err
	}
	s.logger.Info("导师-学员关系已解除", zap.String("relationship_id", id), zap.String("operator", callerID))
	return nil
}

func (s *relationshipService) Get(ctx context.Context, id string) (*dto.RelationshipResponse, error) {
	rel, err := s.repo.Relationship.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRelationshipNotFound
		}
		s.logger.Error("查询关系失败", zap.Error(err))
		return nil, err
	}
	resp := toRelationshipResponse(rel)
	return &resp, nil
}

func (s *relationshipService) List(ctx context.Context, scope Scope) ([]dto.RelationshipResponse, error) {
	if err := checkScope(ctx, s.repo, scope); err != nil {
		return nil, err
	}
	return s.list(ctx, repository.RelationshipFilter{DepartmentID: scope.DepartmentID})
}

func (s *relationshipService) ListByMentor(ctx context.Context, mentorID string) ([]dto.RelationshipResponse, error) {
	if _, err := s.repo.Participant.GetByID(ctx, mentorID); err != nil {
		return nil, mapParticipantErr(err, s.logger)
	}
	return s.list(ctx, repository.RelationshipFilter{MentorID: mentorID})
}

func (s *relationshipService) list(ctx context.Context, filter repository.RelationshipFilter) ([]dto.RelationshipResponse, error) {
	list, err := s.repo.Relationship.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询关系列表失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.RelationshipResponse, 0, len(list))
	for i := range list {
		out = append(out, toRelationshipResponse(&list[i]))
	}
	return out, nil
}

// GetMentor 学员查看自己的导师
func (s *relationshipService) GetMentor(ctx context.Context, menteeID string) (*dto.ParticipantBrief, error) {
	list, err := s.repo.Relationship.List(ctx, repository.RelationshipFilter{MenteeID: menteeID})
	if err != nil {
		s.logger.Error("查询学员导师失败", zap.Error(err))
		return nil, err
	}
	if len(list) == 0 || list[0].Mentor == nil {
		return nil, ErrNoMentor
	}
	brief := toBrief(list[0].Mentor)
	return &brief, nil
}

// ── 转换 ──

func toRelationshipResponse(rel *model.Relationship) dto.RelationshipResponse {
	resp := dto.RelationshipResponse{
		RelationshipID:  rel.RelationshipID,
		ManuallyCreated: rel.ManuallyCreated,
		CreatedAt:       rel.CreatedAt.Format(time.RFC3339),
	}
	if rel.Mentor != nil {
		b := toBrief(rel.Mentor)
		resp.Mentor = &b
	} else {
		resp.Mentor = &dto.ParticipantBrief{RegistrationNo: rel.MentorID}
	}
	if rel.Mentee != nil {
		b := toBrief(rel.Mentee)
		resp.Mentee = &b
	} else {
		resp.Mentee = &dto.ParticipantBrief{RegistrationNo: rel.MenteeID}
	}
	return resp
}
