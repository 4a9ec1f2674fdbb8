package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Makarand-Tighare/project-api-sub000/internal/dto"
	"github.com/Makarand-Tighare/project-api-sub000/internal/model"
	"github.com/Makarand-Tighare/project-api-sub000/internal/repository"
	pkgerrors "github.com/Makarand-Tighare/project-api-sub000/pkg/errors"
)

// ── 参与者模块业务错误 ──

var (
	ErrParticipantNotFound = errors.New("参与者不存在")
	ErrParticipantExists   = errors.New("该学号已报名")
	ErrDepartmentNotFound  = errors.New("院系不存在")
	ErrInvalidApproval     = errors.New("当前审批状态不允许该操作")
	ErrParticipantInactive = errors.New("参与者已停用")
	ErrVersionConflict     = errors.New("资料已被他人修改，请刷新后重试")
)

// ParticipantService 参与者业务接口
type ParticipantService interface {
	Register(ctx context.Context, req *dto.RegisterParticipantRequest) (*dto.ParticipantResponse, error)
	Get(ctx context.Context, regNo string) (*dto.ParticipantResponse, error)
	List(ctx context.Context, req *dto.ParticipantListRequest) ([]dto.ParticipantResponse, int64, error)
	Approve(ctx context.Context, regNo, callerID string) (*dto.ParticipantResponse, error)
	Reject(ctx context.Context, regNo, callerID string) (*dto.ParticipantResponse, error)
	Deactivate(ctx context.Context, regNo, callerID string) (*dto.ParticipantResponse, error)
	Reactivate(ctx context.Context, regNo, callerID string) (*dto.ParticipantResponse, error)
	UpdateProfile(ctx context.Context, regNo string, req *dto.UpdateProfileRequest, callerID string) (*dto.ParticipantResponse, error)
	Delete(ctx context.Context, regNo string) error
	// DepartmentOf 返回参与者所属院系（院系管理员越权校验使用）
	DepartmentOf(ctx context.Context, regNo string) (string, error)
}

type participantService struct {
	repo     *repository.Repository
	notifier Notifier
	logger   *zap.Logger
}

// NewParticipantService 创建 ParticipantService 实例
func NewParticipantService(repo *repository.Repository, notifier Notifier, logger *zap.Logger) ParticipantService {
	return &participantService{repo: repo, notifier: notifier, logger: logger}
}

// ────────────────────── Register ──────────────────────

func (s *participantService) Register(ctx context.Context, req *dto.RegisterParticipantRequest) (*dto.ParticipantResponse, error) {
	var deptID *string
	if req.DepartmentID != "" {
		if _, err := s.repo.Department.GetByID(ctx, req.DepartmentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrDepartmentNotFound
			}
			s.logger.Error("查询院系失败", zap.Error(err))
			return nil, err
		}
		deptID = &req.DepartmentID
	}

	p := &model.Participant{
		RegistrationNo: req.RegistrationNo,
		Name:           req.Name,
		Email:          req.Email,
		MobileNumber:   req.MobileNumber,
		Semester:       req.Semester,
		Branch:         req.Branch,
		DepartmentID:   deptID,
		Status:         model.ParticipantStatusActive,
		ApprovalStatus: model.ApprovalPending,
		RegisteredAt:   time.Now(),
	}
	applyProfile(p, &req.ProfileRequest)
	p.CreatedBy = &req.RegistrationNo
	p.UpdatedBy = &req.RegistrationNo

	if err := s.repo.Participant.Create(ctx, p); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrParticipantExists
		}
		s.logger.Error("创建参与者失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("参与者报名成功", zap.String("registration_no", p.RegistrationNo))
	return s.Get(ctx, p.RegistrationNo)
}

// applyProfile 将资料字段写入模型
func applyProfile(p *model.Participant, r *dto.ProfileRequest) {
	p.MentoringPreference = r.MentoringPreference
	p.PreviousMentoringExperience = r.PreviousMentoringExperience
	p.TechStack = r.TechStack
	p.AreasOfInterest = r.AreasOfInterest
	p.InterestPreference1 = r.InterestPreference1
	p.InterestPreference2 = r.InterestPreference2
	p.InterestPreference3 = r.InterestPreference3
	p.PublishedResearchPapers = r.PublishedResearchPapers
	p.HackathonParticipation = r.HackathonParticipation
	p.NumberOfWins = r.NumberOfWins
	p.NumberOfParticipations = r.NumberOfParticipations
	p.HackathonRole = r.HackathonRole
	p.CodingCompetitions = r.CodingCompetitions
	p.LevelOfCompetition = r.LevelOfCompetition
	p.NumberOfCodingCompetitions = r.NumberOfCodingCompetitions
	p.CGPA = r.CGPA
	p.SGPA = r.SGPA
	p.InternshipExperience = r.InternshipExperience
	p.NumberOfInternships = r.NumberOfInternships
	p.InternshipDescription = r.InternshipDescription
	p.SeminarsOrWorkshopsAttended = r.SeminarsOrWorkshopsAttended
	p.DescribeSeminars = r.DescribeSeminars
	p.ExtracurricularActivities = r.ExtracurricularActivities
	p.DescribeExtracurricular = r.DescribeExtracurricular
	if r.ProofDocuments != nil {
		docs := make(datatypes.JSONMap, len(r.ProofDocuments))
		for k, v := range r.ProofDocuments {
			docs[k] = v
		}
		p.ProofDocuments = docs
	}
}

// ────────────────────── Query ──────────────────────

func (s *participantService) Get(ctx context.Context, regNo string) (*dto.ParticipantResponse, error) {
	p, err := s.getParticipant(ctx, regNo)
	if err != nil {
		return nil, err
	}
	resp := toParticipantResponse(p)
	return &resp, nil
}

func (s *participantService) getParticipant(ctx context.Context, regNo string) (*model.Participant, error) {
	p, err := s.repo.Participant.GetByID(ctx, regNo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParticipantNotFound
		}
		s.logger.Error("查询参与者失败", zap.Error(err))
		return nil, err
	}
	return p, nil
}

func (s *participantService) List(ctx context.Context, req *dto.ParticipantListRequest) ([]dto.ParticipantResponse, int64, error) {
	filter := repository.ParticipantFilter{
		DepartmentID:        req.DepartmentID,
		Status:              req.Status,
		ApprovalStatus:      req.ApprovalStatus,
		MentoringPreference: req.MentoringPreference,
		Semester:            req.Semester,
		Keyword:             req.Keyword,
	}
	list, total, err := s.repo.Participant.ListPage(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询参与者列表失败", zap.Error(err))
		return nil, 0, err
	}

	out := make([]dto.ParticipantResponse, 0, len(list))
	for i := range list {
		out = append(out, toParticipantResponse(&list[i]))
	}
	return out, total, nil
}

func (s *participantService) DepartmentOf(ctx context.Context, regNo string) (string, error) {
	p, err := s.getParticipant(ctx, regNo)
	if err != nil {
		return "", err
	}
	if p.DepartmentID == nil {
		return "", nil
	}
	return *p.DepartmentID, nil
}

// ────────────────────── 审批 / 状态 ──────────────────────

func (s *participantService) Approve(ctx context.Context, regNo, callerID string) (*dto.ParticipantResponse, error) {
	resp, err := s.transition(ctx, regNo, callerID, func(p *model.Participant) (map[string]interface{}, error) {
		if p.ApprovalStatus == model.ApprovalApproved {
			return nil, ErrInvalidApproval
		}
		return map[string]interface{}{"approval_status": model.ApprovalApproved}, nil
	})
	if err != nil {
		return nil, err
	}
	s.notifyApproval(ctx, resp, "你的报名资料已通过审核，将参与下一次匹配。")
	return resp, nil
}

// Reject 待审批或已通过的资料均可驳回
func (s *participantService) Reject(ctx context.Context, regNo, callerID string) (*dto.ParticipantResponse, error) {
	resp, err := s.transition(ctx, regNo, callerID, func(p *model.Participant) (map[string]interface{}, error) {
		if p.ApprovalStatus == model.ApprovalRejected {
			return nil, ErrInvalidApproval
		}
		return map[string]interface{}{"approval_status": model.ApprovalRejected}, nil
	})
	if err != nil {
		return nil, err
	}
	s.notifyApproval(ctx, resp, "你的报名资料未通过审核，请修改后重新提交。")
	return resp, nil
}

func (s *participantService) notifyApproval(ctx context.Context, p *dto.ParticipantResponse, body string) {
	notifyAll(ctx, s.notifier, s.logger, []outgoing{{
		to:  Recipient{RegistrationNo: p.RegistrationNo, Name: p.Name, Email: p.Email},
		msg: Message{Type: NotifyApproval, Subject: "报名审核结果", Body: body},
	}})
}

// Deactivate 停用参与者，并在同一事务内解除其作为导师和学员的全部关系
func (s *participantService) Deactivate(ctx context.Context, regNo, callerID string) (*dto.ParticipantResponse, error) {
	p, err := s.getParticipant(ctx, regNo)
	if err != nil {
		return nil, err
	}
	if p.Status == model.ParticipantStatusDeactivated {
		return nil, ErrParticipantInactive
	}

	var removed int64
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Participant.UpdateFields(ctx, regNo, map[string]interface{}{
			"status":     model.ParticipantStatusDeactivated,
			"updated_by": callerID,
		}); err != nil {
			return err
		}
		n, err := tx.Relationship.DeleteByMentor(ctx, regNo)
		if err != nil {
			return err
		}
		removed += n

		asMentee, err := tx.Relationship.List(ctx, repository.RelationshipFilter{MenteeID: regNo})
		if err != nil {
			return err
		}
		for _, rel := range asMentee {
			if err := tx.Relationship.Delete(ctx, rel.RelationshipID); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		s.logger.Error("停用参与者失败", zap.String("registration_no", regNo), zap.Error(err))
		return nil, err
	}

	s.logger.Info("参与者已停用",
		zap.String("registration_no", regNo),
		zap.Int64("relationships_removed", removed),
		zap.String("operator", callerID))
	return s.Get(ctx, regNo)
}

func (s *participantService) Reactivate(ctx context.Context, regNo, callerID string) (*dto.ParticipantResponse, error) {
	return s.transition(ctx, regNo, callerID, func(p *model.Participant) (map[string]interface{}, error) {
		if p.Status == model.ParticipantStatusActive {
			return nil, ErrInvalidApproval
		}
		return map[string]interface{}{"status": model.ParticipantStatusActive}, nil
	})
}

func (s *participantService) transition(
	ctx context.Context,
	regNo, callerID string,
	decide func(p *model.Participant) (map[string]interface{}, error),
) (*dto.ParticipantResponse, error) {
	p, err := s.getParticipant(ctx, regNo)
	if err != nil {
		return nil, err
	}
	fields, err := decide(p)
	if err != nil {
		return nil, err
	}
	fields["updated_by"] = callerID

	if err := s.repo.Participant.UpdateFields(ctx, regNo, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParticipantNotFound
		}
		s.logger.Error("更新参与者状态失败", zap.String("registration_no", regNo), zap.Error(err))
		return nil, err
	}

	s.logger.Info("参与者状态已更新",
		zap.String("registration_no", regNo),
		zap.Any("fields", fields),
		zap.String("operator", callerID))
	return s.Get(ctx, regNo)
}

// ────────────────────── UpdateProfile ──────────────────────

func (s *participantService) UpdateProfile(ctx context.Context, regNo string, req *dto.UpdateProfileRequest, callerID string) (*dto.ParticipantResponse, error) {
	p, err := s.getParticipant(ctx, regNo)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Email != nil {
		p.Email = *req.Email
	}
	if req.Semester != nil {
		p.Semester = *req.Semester
	}
	if req.DepartmentID != nil {
		if _, err := s.repo.Department.GetByID(ctx, *req.DepartmentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrDepartmentNotFound
			}
			return nil, err
		}
		p.DepartmentID = req.DepartmentID
	}
	applyProfile(p, &req.ProfileRequest)
	p.Version = req.Version
	p.UpdatedBy = &callerID

	if err := s.repo.Participant.Update(ctx, p); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrVersionConflict
		}
		s.logger.Error("更新参与者资料失败", zap.Error(err))
		return nil, err
	}
	return s.Get(ctx, regNo)
}

// ────────────────────── Delete ──────────────────────

// Delete 删除参与者：关系与活动记录随外键级联删除，归档历史保留
func (s *participantService) Delete(ctx context.Context, regNo string) error {
	if err := s.repo.Participant.Delete(ctx, regNo); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrParticipantNotFound
		}
		s.logger.Error("删除参与者失败", zap.Error(err))
		return err
	}
	s.logger.Info("参与者已删除", zap.String("registration_no", regNo))
	return nil
}

// ── 转换 ──

func toParticipantResponse(p *model.Participant) dto.ParticipantResponse {
	resp := dto.ParticipantResponse{
		RegistrationNo:      p.RegistrationNo,
		Name:                p.Name,
		Email:               p.Email,
		Semester:            p.Semester,
		Branch:              p.Branch,
		MentoringPreference: p.MentoringPreference,
		TechStack:           p.TechStack,
		AreasOfInterest:     p.AreasOfInterest,
		BadgesEarned:        p.BadgesEarned,
		IsSuperMentor:       p.IsSuperMentor,
		LeaderboardPoints:   p.LeaderboardPoints,
		Status:              p.Status,
		ApprovalStatus:      p.ApprovalStatus,
		Score:               EvaluateStudent(NewSnapshot(p, nil)),
		RegisteredAt:        p.RegisteredAt.Format(time.RFC3339),
		Version:             p.Version,
	}
	if p.Department != nil {
		resp.Department = &dto.DepartmentResponse{
			ID:   p.Department.DepartmentID,
			Name: p.Department.Name,
			Code: p.Department.Code,
		}
	}
	return resp
}

func toBrief(p *model.Participant) dto.ParticipantBrief {
	return dto.ParticipantBrief{
		RegistrationNo: p.RegistrationNo,
		Name:           p.Name,
		Semester:       p.Semester,
		Department:     p.DepartmentLabel(),
	}
}
