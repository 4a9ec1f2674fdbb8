package service

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Makarand-Tighare/project-api-sub000/internal/dto"
	"github.com/Makarand-Tighare/project-api-sub000/internal/model"
	"github.com/Makarand-Tighare/project-api-sub000/internal/repository"
)

// ── 活动模块业务错误 ──

var (
	ErrSessionNotFound   = errors.New("会话不存在")
	ErrQuizNotFound      = errors.New("测验不存在")
	ErrNotYourMentee     = errors.New("对方不是你的学员")
	ErrNotRelated        = errors.New("只能评价自己的导师或学员")
	ErrSelfFeedback      = errors.New("不能评价自己")
	ErrQuizNotPending    = errors.New("测验已完成或已过期")
	ErrQuizScoreTooHigh  = errors.New("得分不能超过题目总数")
	ErrActivityForbidden = errors.New("无权操作该记录")
)

// ActivityService 会话 / 测验 / 评价业务接口
type ActivityService interface {
	CreateSession(ctx context.Context, mentorID string, req *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	ListSessions(ctx context.Context, regNo string) ([]dto.SessionResponse, error)
	// DeleteSession 仅主持导师或管理员（admin=true）可删除
	DeleteSession(ctx context.Context, id, callerID string, admin bool) error

	AssignQuiz(ctx context.Context, mentorID string, req *dto.AssignQuizRequest) (*dto.QuizResponse, error)
	CompleteQuiz(ctx context.Context, quizID, participantID string, req *dto.CompleteQuizRequest) (*dto.QuizResponse, error)
	ListQuizzes(ctx context.Context, regNo string) ([]dto.QuizResponse, error)

	SubmitFeedback(ctx context.Context, fromID string, req *dto.SubmitFeedbackRequest) (*dto.FeedbackResponse, error)
	ListFeedback(ctx context.Context, toID string) ([]dto.FeedbackResponse, error)
}

type activityService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewActivityService 创建 ActivityService 实例
func NewActivityService(repo *repository.Repository, logger *zap.Logger) ActivityService {
	return &activityService{repo: repo, logger: logger}
}

// isMentorOf mentorID 与 menteeID 之间是否存在关系
func (s *activityService) isMentorOf(ctx context.Context, mentorID, menteeID string) (bool, error) {
	list, err := s.repo.Relationship.List(ctx, repository.RelationshipFilter{MentorID: mentorID, MenteeID: menteeID})
	if err != nil {
		return false, err
	}
	return len(list) > 0, nil
}

// ════════════════════════════════════════════════════════════
// 会话
// ════════════════════════════════════════════════════════════

func (s *activityService) CreateSession(ctx context.Context, mentorID string, req *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	if _, err := s.repo.Participant.GetByID(ctx, mentorID); err != nil {
		return nil, mapParticipantErr(err, s.logger)
	}

	seen := make(map[string]bool, len(req.Attendees))
	attendees := make([]model.SessionAttendee, 0, len(req.Attendees))
	for _, id := range req.Attendees {
		if seen[id] {
			continue
		}
		seen[id] = true
		ok, err := s.isMentorOf(ctx, mentorID, id)
		if err != nil {
			s.logger.Error("校验会话参与者失败", zap.Error(err))
			return nil, err
		}
		if !ok {
			return nil, ErrNotYourMentee
		}
		attendees = append(attendees, model.SessionAttendee{ParticipantID: id})
	}

	session := &model.Session{
		MentorID:    mentorID,
		SessionType: req.SessionType,
		DateTime:    req.DateTime,
		Summary:     req.Summary,
		Attendees:   attendees,
	}
	if req.SessionType == model.SessionVirtual {
		session.MeetingLink = &req.MeetingLink
	} else {
		session.Location = &req.Location
	}
	session.CreatedBy = &mentorID
	session.UpdatedBy = &mentorID

	if err := s.repo.Session.Create(ctx, session); err != nil {
		s.logger.Error("创建会话失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("辅导会话已创建",
		zap.String("session_id", session.SessionID),
		zap.String("mentor", mentorID),
		zap.Int("attendees", len(attendees)))
	resp := toSessionResponse(session)
	return &resp, nil
}

func (s *activityService) ListSessions(ctx context.Context, regNo string) ([]dto.SessionResponse, error) {
	list, err := s.repo.Session.ListByParticipant(ctx, regNo)
	if err != nil {
		s.logger.Error("查询会话失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.SessionResponse, 0, len(list))
	for i := range list {
		out = append(out, toSessionResponse(&list[i]))
	}
	return out, nil
}

func (s *activityService) DeleteSession(ctx context.Context, id, callerID string, admin bool) error {
	session, err := s.repo.Session.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		s.logger.Error("查询会话失败", zap.Error(err))
		return err
	}
	if !admin && session.MentorID != callerID {
		return ErrActivityForbidden
	}
	if err := s.repo.Session.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		s.logger.Error("删除会话失败", zap.Error(err))
		return err
	}
	return nil
}

// ════════════════════════════════════════════════════════════
// 测验
// ════════════════════════════════════════════════════════════

func (s *activityService) AssignQuiz(ctx context.Context, mentorID string, req *dto.AssignQuizRequest) (*dto.QuizResponse, error) {
	ok, err := s.isMentorOf(ctx, mentorID, req.MenteeID)
	if err != nil {
		s.logger.Error("校验测验对象失败", zap.Error(err))
		return nil, err
	}
	if !ok {
		return nil, ErrNotYourMentee
	}

	q := &model.QuizResult{
		ParticipantID:  req.MenteeID,
		MentorID:       &mentorID,
		QuizTopic:      req.QuizTopic,
		TotalQuestions: req.TotalQuestions,
		Status:         model.QuizPending,
	}
	if err := s.repo.Quiz.Create(ctx, q); err != nil {
		s.logger.Error("布置测验失败", zap.Error(err))
		return nil, err
	}
	resp := toQuizResponse(q)
	return &resp, nil
}

// CompleteQuiz 答题人提交成绩；百分比 = 得分 / 题目总数 × 100（保留两位小数）
func (s *activityService) CompleteQuiz(ctx context.Context, quizID, participantID string, req *dto.CompleteQuizRequest) (*dto.QuizResponse, error) {
	q, err := s.repo.Quiz.GetByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuizNotFound
		}
		s.logger.Error("查询测验失败", zap.Error(err))
		return nil, err
	}
	if q.ParticipantID != participantID {
		return nil, ErrActivityForbidden
	}
	if q.Status != model.QuizPending {
		return nil, ErrQuizNotPending
	}
	if req.Score > q.TotalQuestions {
		return nil, ErrQuizScoreTooHigh
	}

	now := time.Now()
	q.Score = req.Score
	q.Percentage = quizPercentage(req.Score, q.TotalQuestions)
	q.Status = model.QuizCompleted
	q.CompletedDate = &now
	if err := s.repo.Quiz.Update(ctx, q); err != nil {
		s.logger.Error("提交测验失败", zap.Error(err))
		return nil, err
	}
	resp := toQuizResponse(q)
	return &resp, nil
}

func quizPercentage(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(score)/float64(total)*10000) / 100
}

func (s *activityService) ListQuizzes(ctx context.Context, regNo string) ([]dto.QuizResponse, error) {
	list, err := s.repo.Quiz.ListByParticipant(ctx, regNo)
	if err != nil {
		s.logger.Error("查询测验失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.QuizResponse, 0, len(list))
	for i := range list {
		out = append(out, toQuizResponse(&list[i]))
	}
	return out, nil
}

// ════════════════════════════════════════════════════════════
// 评价
// ════════════════════════════════════════════════════════════

// SubmitFeedback 被评价角色由双方关系决定：评价导师记为 mentor，评价学员记为 mentee
func (s *activityService) SubmitFeedback(ctx context.Context, fromID string, req *dto.SubmitFeedbackRequest) (*dto.FeedbackResponse, error) {
	if fromID == req.ToID {
		return nil, ErrSelfFeedback
	}

	var role string
	isMentee, err := s.isMentorOf(ctx, req.ToID, fromID)
	if err != nil {
		s.logger.Error("校验评价关系失败", zap.Error(err))
		return nil, err
	}
	if isMentee {
		role = model.RatedRoleMentor
	} else {
		isMentor, err := s.isMentorOf(ctx, fromID, req.ToID)
		if err != nil {
			s.logger.Error("校验评价关系失败", zap.Error(err))
			return nil, err
		}
		if !isMentor {
			return nil, ErrNotRelated
		}
		role = model.RatedRoleMentee
	}

	f := &model.Feedback{
		FromID:    fromID,
		ToID:      req.ToID,
		RatedRole: role,
		Rating:    req.Rating,
		Comments:  req.Comments,
		Anonymous: req.Anonymous,
	}
	if err := s.repo.Feedback.Create(ctx, f); err != nil {
		s.logger.Error("提交评价失败", zap.Error(err))
		return nil, err
	}
	resp := toFeedbackResponse(f)
	return &resp, nil
}

func (s *activityService) ListFeedback(ctx context.Context, toID string) ([]dto.FeedbackResponse, error) {
	list, err := s.repo.Feedback.ListByTarget(ctx, toID)
	if err != nil {
		s.logger.Error("查询评价失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.FeedbackResponse, 0, len(list))
	for i := range list {
		out = append(out, toFeedbackResponse(&list[i]))
	}
	return out, nil
}

// ── 转换 ──

func toSessionResponse(s *model.Session) dto.SessionResponse {
	resp := dto.SessionResponse{
		SessionID:   s.SessionID,
		MentorID:    s.MentorID,
		SessionType: s.SessionType,
		DateTime:    s.DateTime.Format(time.RFC3339),
		MeetingLink: s.MeetingLink,
		Location:    s.Location,
		Summary:     s.Summary,
		Attendees:   make([]string, 0, len(s.Attendees)),
	}
	for _, a := range s.Attendees {
		resp.Attendees = append(resp.Attendees, a.ParticipantID)
	}
	return resp
}

func toQuizResponse(q *model.QuizResult) dto.QuizResponse {
	resp := dto.QuizResponse{
		QuizID:         q.QuizID,
		ParticipantID:  q.ParticipantID,
		MentorID:       q.MentorID,
		QuizTopic:      q.QuizTopic,
		TotalQuestions: q.TotalQuestions,
		Score:          q.Score,
		Percentage:     q.Percentage,
		Status:         q.Status,
	}
	if q.CompletedDate != nil {
		d := q.CompletedDate.Format(time.RFC3339)
		resp.CompletedDate = &d
	}
	return resp
}

func toFeedbackResponse(f *model.Feedback) dto.FeedbackResponse {
	resp := dto.FeedbackResponse{
		FeedbackID: f.FeedbackID,
		ToID:       f.ToID,
		RatedRole:  f.RatedRole,
		Rating:     f.Rating,
		Comments:   f.Comments,
		CreatedAt:  f.CreatedAt.Format(time.RFC3339),
	}
	if !f.Anonymous {
		resp.FromID = f.FromID
	}
	return resp
}
