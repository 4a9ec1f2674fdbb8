package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Makarand-Tighare/project-api-sub000/internal/dto"
	"github.com/Makarand-Tighare/project-api-sub000/internal/model"
	"github.com/Makarand-Tighare/project-api-sub000/internal/repository"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/metrics"
)

// ArchiveService 学期归档接口
type ArchiveService interface {
	// Archive 归档范围内所有活跃参与者的本学期数据，解除范围内全部关系并重置资料
	Archive(ctx context.Context, scope Scope, callerID string) (*dto.ArchiveResult, error)
	// History 参与者的历史归档记录（最近的学期在前）
	History(ctx context.Context, regNo string) ([]dto.HistoryResponse, error)
}

type archiveService struct {
	repo     *repository.Repository
	locker   ScopeLocker
	cache    LeaderboardCache
	notifier Notifier
	logger   *zap.Logger
}

// NewArchiveService 创建 ArchiveService 实例
func NewArchiveService(
	repo *repository.Repository,
	locker ScopeLocker,
	cache LeaderboardCache,
	notifier Notifier,
	logger *zap.Logger,
) ArchiveService {
	return &archiveService{repo: repo, locker: locker, cache: cache, notifier: notifier, logger: logger}
}

// semesterResetFields 归档后写回参与者的字段：重新进入"待填写资料"状态
// 学号、姓名、联系方式、学期、院系、GPA 保留
func semesterResetFields(now time.Time, callerID string) map[string]interface{} {
	return map[string]interface{}{
		"mentoring_preference":           "",
		"approval_status":                model.ApprovalPending,
		"badges_earned":                  0,
		"leaderboard_points":             0,
		"is_super_mentor":                false,
		"previous_mentoring_experience":  "",
		"tech_stack":                     "",
		"areas_of_interest":              "",
		"interest_preference1":           "",
		"interest_preference2":           "",
		"interest_preference3":           "",
		"published_research_papers":      "None",
		"hackathon_participation":        "None",
		"number_of_wins":                 0,
		"number_of_participations":       0,
		"hackathon_role":                 "",
		"coding_competitions":            "no",
		"level_of_competition":           "",
		"number_of_coding_competitions":  0,
		"internship_experience":          "no",
		"number_of_internships":          0,
		"internship_description":         "",
		"seminars_or_workshops_attended": "no",
		"describe_seminars":              "",
		"extracurricular_activities":     "no",
		"describe_extracurricular":       "",
		"proof_documents":                nil,
		"registered_at":                  now,
		"updated_by":                     callerID,
	}
}

// ════════════════════════════════════════════════════════════
// Archive
// ════════════════════════════════════════════════════════════

func (s *archiveService) Archive(ctx context.Context, scope Scope, callerID string) (*dto.ArchiveResult, error) {
	if err := checkScope(ctx, s.repo, scope); err != nil {
		return nil, err
	}

	var result *dto.ArchiveResult
	var archived []model.Participant
	err := withScopeLock(ctx, s.locker, scope, "archive", func() error {
		var err error
		result, archived, err = s.archive(ctx, scope, callerID)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrScopeBusy) {
			s.logger.Error("学期归档失败，已回滚", zap.String("scope", scope.Key()), zap.Error(err))
		}
		return nil, err
	}

	metrics.ParticipantsArchived.Add(float64(result.ParticipantsArchived))
	invalidateLeaderboards(ctx, s.cache, s.logger, append([]Scope{scope}, overlappingScopes(scope, archived)...))

	notices := make([]outgoing, 0, len(archived))
	for i := range archived {
		notices = append(notices, outgoing{
			to: recipientOf(&archived[i]),
			msg: Message{
				Type:    NotifyArchive,
				Subject: "本学期导师计划已归档",
				Body:    "本学期的辅导记录已归档，请在新学期重新填写报名资料。",
			},
		})
	}
	notifyAll(ctx, s.notifier, s.logger, notices)

	s.logger.Info("学期归档完成",
		zap.String("scope", scope.Key()),
		zap.Int("participants", result.ParticipantsArchived),
		zap.Int("relationships", result.RelationshipsArchived),
		zap.String("operator", callerID))
	return result, nil
}

func (s *archiveService) archive(ctx context.Context, scope Scope, callerID string) (*dto.ArchiveResult, []model.Participant, error) {
	now := time.Now()
	result := &dto.ArchiveResult{RelationshipsEnded: []dto.EndedRelationship{}}
	var participants []model.Participant

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		// ── 1. 结束的关系快照（院系范围只结束学员属于该院系的关系） ──
		rels, err := tx.Relationship.List(ctx, repository.RelationshipFilter{DepartmentID: scope.DepartmentID})
		if err != nil {
			return err
		}
		asMentor := make(map[string]bool, len(rels))
		asMentee := make(map[string]bool, len(rels))
		result.RelationshipsEnded = make([]dto.EndedRelationship, 0, len(rels))
		for _, rel := range rels {
			asMentor[rel.MentorID] = true
			asMentee[rel.MenteeID] = true
			if !menteeInScope(&rel, scope) {
				continue
			}
			ended := dto.EndedRelationship{
				MentorID:  rel.MentorID,
				MenteeID:  rel.MenteeID,
				StartDate: rel.CreatedAt.Format(time.RFC3339),
				EndDate:   now.Format(time.RFC3339),
			}
			if rel.Mentee != nil {
				ended.Department = rel.Mentee.DepartmentLabel()
			}
			result.RelationshipsEnded = append(result.RelationshipsEnded, ended)
		}

		// ── 2. 逐人写入历史 ──
		participants, err = tx.Participant.List(ctx, repository.ParticipantFilter{
			DepartmentID: scope.DepartmentID,
			Status:       model.ParticipantStatusActive,
		})
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(participants))
		for i := range participants {
			p := &participants[i]
			h, err := buildHistory(ctx, tx, p, now)
			if err != nil {
				return err
			}
			h.WasMentor = asMentor[p.RegistrationNo]
			h.WasMentee = asMentee[p.RegistrationNo]
			if err := tx.History.Append(ctx, h); err != nil {
				return err
			}
			ids = append(ids, p.RegistrationNo)
		}

		// ── 3. 解除关系、清空徽章、重置资料 ──
		n, err := tx.Relationship.DeleteByScope(ctx, scope.DepartmentID)
		if err != nil {
			return err
		}
		result.RelationshipsArchived = int(n)

		if _, err := tx.ParticipantBadge.DeleteByParticipants(ctx, ids); err != nil {
			return err
		}

		if len(ids) > 0 {
			reset, err := tx.Participant.BulkUpdate(ctx,
				repository.ParticipantFilter{RegistrationNos: ids},
				semesterResetFields(now, callerID))
			if err != nil {
				return err
			}
			result.ParticipantsReset = reset
		}
		result.ParticipantsArchived = len(ids)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, participants, nil
}

func menteeInScope(rel *model.Relationship, scope Scope) bool {
	if scope.IsGlobal() {
		return true
	}
	return rel.Mentee != nil && rel.Mentee.DepartmentID != nil && *rel.Mentee.DepartmentID == scope.DepartmentID
}

// buildHistory 汇总一名参与者本学期（registered_at 至今）的数据
func buildHistory(ctx context.Context, tx *repository.Repository, p *model.Participant, now time.Time) (*model.ParticipantHistory, error) {
	since := p.RegisteredAt

	quiz, err := tx.Quiz.Stats(ctx, p.RegistrationNo, since)
	if err != nil {
		return nil, err
	}
	mentorRating, err := tx.Feedback.AverageRating(ctx, p.RegistrationNo, model.RatedRoleMentor, since)
	if err != nil {
		return nil, err
	}
	menteeRating, err := tx.Feedback.AverageRating(ctx, p.RegistrationNo, model.RatedRoleMentee, since)
	if err != nil {
		return nil, err
	}
	conducted, err := tx.Session.CountConducted(ctx, p.RegistrationNo, since)
	if err != nil {
		return nil, err
	}
	attended, err := tx.Session.CountAttended(ctx, p.RegistrationNo, since)
	if err != nil {
		return nil, err
	}
	awards, err := tx.ParticipantBadge.ListByParticipant(ctx, p.RegistrationNo)
	if err != nil {
		return nil, err
	}
	claimed := make([]string, 0, len(awards))
	for _, a := range awards {
		if a.IsClaimed && a.Badge != nil {
			claimed = append(claimed, a.Badge.Name)
		}
	}

	return &model.ParticipantHistory{
		RegistrationNo:         p.RegistrationNo,
		Name:                   p.Name,
		DepartmentLabel:        p.DepartmentLabel(),
		Semester:               p.Semester,
		SemesterStart:          since,
		SemesterEnd:            now,
		TotalBadgesEarned:      p.BadgesEarned,
		TotalLeaderboardPoints: p.LeaderboardPoints,
		WasSuperMentor:         p.IsSuperMentor,
		QuizCount:              int(quiz.Count),
		AvgQuizPercentage:      quiz.AvgPercentage,
		MentorRating:           mentorRating,
		MenteeRating:           menteeRating,
		SessionsConducted:      int(conducted),
		SessionsAttended:       int(attended),
		ClaimedBadges:          claimed,
	}, nil
}

// ════════════════════════════════════════════════════════════
// History
// ════════════════════════════════════════════════════════════

func (s *archiveService) History(ctx context.Context, regNo string) ([]dto.HistoryResponse, error) {
	list, err := s.repo.History.ListByRegistrationNo(ctx, regNo)
	if err != nil {
		s.logger.Error("查询归档记录失败", zap.Error(err))
		return nil, err
	}
	if len(list) == 0 {
		// 参与者已删除时历史仍可查询；两者都不存在才算未找到
		if _, err := s.repo.Participant.GetByID(ctx, regNo); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrParticipantNotFound
			}
			return nil, err
		}
	}

	out := make([]dto.HistoryResponse, 0, len(list))
	for _, h := range list {
		out = append(out, toHistoryResponse(h))
	}
	return out, nil
}

func toHistoryResponse(h model.ParticipantHistory) dto.HistoryResponse {
	badges := []string(h.ClaimedBadges)
	if badges == nil {
		badges = []string{}
	}
	return dto.HistoryResponse{
		HistoryID:              h.HistoryID,
		RegistrationNo:         h.RegistrationNo,
		Name:                   h.Name,
		Department:             h.DepartmentLabel,
		Semester:               h.Semester,
		SemesterStart:          h.SemesterStart.Format(time.RFC3339),
		SemesterEnd:            h.SemesterEnd.Format(time.RFC3339),
		TotalBadgesEarned:      h.TotalBadgesEarned,
		TotalLeaderboardPoints: h.TotalLeaderboardPoints,
		WasSuperMentor:         h.WasSuperMentor,
		QuizCount:              h.QuizCount,
		AvgQuizPercentage:      h.AvgQuizPercentage,
		WasMentor:              h.WasMentor,
		WasMentee:              h.WasMentee,
		MentorRating:           h.MentorRating,
		MenteeRating:           h.MenteeRating,
		SessionsConducted:      h.SessionsConducted,
		SessionsAttended:       h.SessionsAttended,
		ClaimedBadges:          badges,
	}
}
