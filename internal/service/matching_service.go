package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Makarand-Tighare/project-api-sub000/config"
	"github.com/Makarand-Tighare/project-api-sub000/internal/dto"
	"github.com/Makarand-Tighare/project-api-sub000/internal/model"
	"github.com/Makarand-Tighare/project-api-sub000/internal/repository"
	pkgerrors "github.com/Makarand-Tighare/project-api-sub000/pkg/errors"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/metrics"
)

// ── 匹配模块业务错误 ──

var (
	ErrPendingApprovals       = errors.New("范围内存在待审批的参与者")
	ErrNoEligibleParticipants = errors.New("范围内没有可参与匹配的导师或学员")
)

// PendingApprovalError 待审批阻塞匹配，携带阻塞人数与学号
type PendingApprovalError struct {
	Count           int
	RegistrationNos []string
}

func (e *PendingApprovalError) Error() string {
	return fmt.Sprintf("范围内仍有 %d 名已填写资料的参与者待审批，请先完成审批再执行匹配", e.Count)
}

// Is 使 errors.Is(err, ErrPendingApprovals) 成立
func (e *PendingApprovalError) Is(target error) bool {
	return target == ErrPendingApprovals
}

const (
	matchSourceAlgorithm = "algorithm"
	matchSourceSpillover = "spillover"
)

// MatchingService 导师-学员自动匹配业务接口
type MatchingService interface {
	// Run 对指定范围执行一次匹配运行
	Run(ctx context.Context, scope Scope, callerID string) (*dto.MatchResult, error)
}

type matchingService struct {
	repo     *repository.Repository
	cfg      config.MatchingConfig
	locker   ScopeLocker
	notifier Notifier
	logger   *zap.Logger
}

// NewMatchingService 创建 MatchingService 实例
func NewMatchingService(
	repo *repository.Repository,
	cfg config.MatchingConfig,
	locker ScopeLocker,
	notifier Notifier,
	logger *zap.Logger,
) MatchingService {
	return &matchingService{repo: repo, cfg: cfg, locker: locker, notifier: notifier, logger: logger}
}

// candidate 匹配候选人：原始记录 + 评分快照
type candidate struct {
	p    *model.Participant
	snap ParticipantSnapshot
}

// plannedMatch 规划阶段产生的配对，持久化后才算生效
type plannedMatch struct {
	mentor  *candidate
	mentee  *candidate
	quality float64
	overlap InterestOverlap
	source  string
}

// ════════════════════════════════════════════════════════════
// Run
// ════════════════════════════════════════════════════════════

func (s *matchingService) Run(ctx context.Context, scope Scope, callerID string) (*dto.MatchResult, error) {
	if err := checkScope(ctx, s.repo, scope); err != nil {
		return nil, err
	}

	start := time.Now()
	var result *dto.MatchResult
	var notices []outgoing

	err := withScopeLock(ctx, s.locker, scope, "match", func() error {
		var err error
		result, notices, err = s.run(ctx, scope, callerID)
		return err
	})
	metrics.ObserveSince(metrics.MatchDuration, start)
	if err != nil {
		metrics.MatchRuns.WithLabelValues(matchOutcome(err)).Inc()
		return nil, err
	}
	metrics.MatchRuns.WithLabelValues("success").Inc()

	// 事务已提交，通知失败不影响结果
	notifyAll(ctx, s.notifier, s.logger, notices)
	return result, nil
}

func matchOutcome(err error) string {
	switch {
	case errors.Is(err, ErrPendingApprovals):
		return "pending_approvals"
	case errors.Is(err, ErrNoEligibleParticipants):
		return "no_participants"
	case errors.Is(err, ErrScopeBusy):
		return "busy"
	default:
		return "error"
	}
}

func (s *matchingService) run(ctx context.Context, scope Scope, callerID string) (*dto.MatchResult, []outgoing, error) {
	// ── 1. 待审批检查 ──
	pending, err := s.repo.Participant.List(ctx, repository.ParticipantFilter{
		DepartmentID:   scope.DepartmentID,
		Status:         model.ParticipantStatusActive,
		ApprovalStatus: model.ApprovalPending,
	})
	if err != nil {
		s.logger.Error("查询待审批参与者失败", zap.Error(err))
		return nil, nil, err
	}
	var blockers []string
	for i := range pending {
		if pending[i].HasMatchingProfile() {
			blockers = append(blockers, pending[i].RegistrationNo)
		}
	}
	if len(blockers) > 0 {
		return nil, nil, &PendingApprovalError{Count: len(blockers), RegistrationNos: blockers}
	}

	// ── 2. 候选人群 ──
	population, err := s.repo.Participant.List(ctx, repository.ParticipantFilter{
		DepartmentID:   scope.DepartmentID,
		Status:         model.ParticipantStatusActive,
		ApprovalStatus: model.ApprovalApproved,
	})
	if err != nil {
		s.logger.Error("查询参与者失败", zap.Error(err))
		return nil, nil, err
	}
	var mentors, mentees []*model.Participant
	for i := range population {
		switch population[i].MentoringPreference {
		case model.PreferenceMentor:
			mentors = append(mentors, &population[i])
		case model.PreferenceMentee:
			mentees = append(mentees, &population[i])
		}
	}
	if len(mentors) == 0 || len(mentees) == 0 {
		return nil, nil, ErrNoEligibleParticipants
	}

	// ── 3. 排除已有关系的参与者 ──
	existing, err := s.repo.Relationship.List(ctx, repository.RelationshipFilter{DepartmentID: scope.DepartmentID})
	if err != nil {
		s.logger.Error("查询已有关系失败", zap.Error(err))
		return nil, nil, err
	}
	matched := make(map[string]bool, len(existing)*2)
	for _, rel := range existing {
		matched[rel.MentorID] = true
		matched[rel.MenteeID] = true
	}
	mentors = excludeMatched(mentors, matched)
	mentees = excludeMatched(mentees, matched)

	spillPool := s.spilloverPool(existing, scope)

	// ── 4. 历史数据 + 当前负载 ──
	ids := make([]string, 0, len(mentors)+len(mentees)+len(spillPool))
	for _, m := range mentors {
		ids = append(ids, m.RegistrationNo)
	}
	for _, m := range mentees {
		ids = append(ids, m.RegistrationNo)
	}
	mentorIDs := make([]string, 0, len(mentors)+len(spillPool))
	for _, m := range mentors {
		mentorIDs = append(mentorIDs, m.RegistrationNo)
	}
	for _, m := range spillPool {
		ids = append(ids, m.RegistrationNo)
		mentorIDs = append(mentorIDs, m.RegistrationNo)
	}

	history, err := s.repo.History.LatestByRegistrationNos(ctx, ids)
	if err != nil {
		s.logger.Error("查询历史数据失败", zap.Error(err))
		return nil, nil, err
	}
	load, err := s.repo.Relationship.CountByMentors(ctx, mentorIDs)
	if err != nil {
		s.logger.Error("统计导师负载失败", zap.Error(err))
		return nil, nil, err
	}

	mentorCands := toCandidates(mentors, history)
	menteeCands := toCandidates(mentees, history)
	spillCands := toCandidates(spillPool, history)

	// ── 5. 贪心匹配 + 6. 溢出分配 ──
	planned, leftover := greedyAssign(mentorCands, menteeCands, load, s.cfg.MaxMenteesPerMentor)
	spilled, leftover := spilloverAssign(spillCands, leftover, load, s.cfg.MaxMenteesPerMentor, scope)
	planned = append(planned, spilled...)

	// ── 7. 持久化（全部成功或全部回滚；单对冲突跳过） ──
	var created []plannedMatch
	skipped := 0
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		created = created[:0]
		skipped = 0
		for _, pm := range planned {
			rel := &model.Relationship{
				MentorID:        pm.mentor.p.RegistrationNo,
				MenteeID:        pm.mentee.p.RegistrationNo,
				ManuallyCreated: false,
				CreatedBy:       &callerID,
			}
			if err := tx.Relationship.Create(ctx, rel); err != nil {
				if errors.Is(err, pkgerrors.ErrConflict) {
					skipped++
					s.logger.Warn("关系已存在，跳过",
						zap.String("mentor", rel.MentorID),
						zap.String("mentee", rel.MenteeID))
					continue
				}
				return err
			}
			created = append(created, pm)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("写入匹配结果失败，已回滚", zap.String("scope", scope.Key()), zap.Error(err))
		return nil, nil, err
	}

	// ── 8. 结果 ──
	result := &dto.MatchResult{
		Matches:          make([]dto.MatchItem, 0, len(created)),
		UnmatchedMentees: make([]dto.ParticipantBrief, 0, len(leftover)),
		UnmatchedMentors: []dto.ParticipantBrief{},
	}
	assignedMentors := make(map[string]bool)
	notices := make([]outgoing, 0, len(created)*2)
	for _, pm := range created {
		assignedMentors[pm.mentor.p.RegistrationNo] = true
		result.Matches = append(result.Matches, toMatchItem(pm))
		if pm.source == matchSourceSpillover {
			result.Statistics.SpilloverMatches++
		}
		metrics.MatchesCreated.WithLabelValues(pm.source).Inc()
		notices = append(notices, matchNotices(pm.mentor.p, pm.mentee.p)...)
	}
	for _, c := range leftover {
		result.UnmatchedMentees = append(result.UnmatchedMentees, toBrief(c.p))
	}
	for _, c := range mentorCands {
		if !assignedMentors[c.p.RegistrationNo] {
			result.UnmatchedMentors = append(result.UnmatchedMentors, toBrief(c.p))
		}
	}

	manual, auto := 0, 0
	for _, rel := range existing {
		if rel.ManuallyCreated {
			manual++
		} else {
			auto++
		}
	}
	result.Statistics.ManualRelationships = manual
	result.Statistics.AutomaticRelationships = auto + len(created)
	result.Statistics.TotalRelationships = manual + auto + len(created)
	result.Statistics.NewMatches = len(created)
	result.Statistics.SkippedConflicts = skipped
	result.Statistics.UnmatchedMentees = len(result.UnmatchedMentees)
	result.Statistics.UnmatchedMentors = len(result.UnmatchedMentors)

	s.logger.Info("匹配运行完成",
		zap.String("scope", scope.Key()),
		zap.Int("new_matches", len(created)),
		zap.Int("spillover", result.Statistics.SpilloverMatches),
		zap.Int("skipped", skipped),
		zap.Int("unmatched_mentees", len(leftover)),
		zap.String("operator", callerID))

	return result, notices, nil
}

// spilloverPool 已有关系中的导师：需已审批、活跃，院系范围下必须属于该院系
func (s *matchingService) spilloverPool(existing []model.Relationship, scope Scope) []*model.Participant {
	seen := make(map[string]bool)
	var pool []*model.Participant
	for i := range existing {
		m := existing[i].Mentor
		if m == nil || seen[m.RegistrationNo] {
			continue
		}
		seen[m.RegistrationNo] = true
		if !m.IsEligible() {
			continue
		}
		if !scope.IsGlobal() && (m.DepartmentID == nil || *m.DepartmentID != scope.DepartmentID) {
			continue
		}
		pool = append(pool, m)
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].RegistrationNo < pool[j].RegistrationNo })
	return pool
}

func excludeMatched(list []*model.Participant, matched map[string]bool) []*model.Participant {
	out := list[:0:0]
	for _, p := range list {
		if !matched[p.RegistrationNo] {
			out = append(out, p)
		}
	}
	return out
}

func toCandidates(list []*model.Participant, history map[string]model.ParticipantHistory) []*candidate {
	out := make([]*candidate, 0, len(list))
	for _, p := range list {
		var h *model.ParticipantHistory
		if rec, ok := history[p.RegistrationNo]; ok {
			h = &rec
		}
		out = append(out, &candidate{p: p, snap: NewSnapshot(p, h)})
	}
	return out
}

// greedyAssign 逐个学员选择得分最高的导师
// 导师按学号升序扫描，严格大于才替换，因此同分时学号最小者胜出
func greedyAssign(mentors, mentees []*candidate, load map[string]int, capacity int) ([]plannedMatch, []*candidate) {
	var planned []plannedMatch
	var leftover []*candidate

	for _, mentee := range mentees {
		var best *candidate
		var bestOverlap InterestOverlap
		bestScore := math.Inf(-1)

		for _, mentor := range mentors {
			if load[mentor.p.RegistrationNo] >= capacity {
				continue
			}
			if mentor.p.RegistrationNo == mentee.p.RegistrationNo {
				continue
			}
			if EvaluateStudent(mentor.snap) <= DisqualifiedScore {
				continue
			}
			score, overlap := PairScore(mentor.snap, mentee.snap)
			if score > bestScore {
				best, bestScore, bestOverlap = mentor, score, overlap
			}
		}

		if best == nil || bestScore <= 0 {
			leftover = append(leftover, mentee)
			continue
		}
		load[best.p.RegistrationNo]++
		planned = append(planned, plannedMatch{
			mentor:  best,
			mentee:  mentee,
			quality: bestScore,
			overlap: bestOverlap,
			source:  matchSourceAlgorithm,
		})
	}
	return planned, leftover
}

// spilloverAssign 将剩余学员直接分给负载最低的已有导师（负载相同按学号）
func spilloverAssign(pool, mentees []*candidate, load map[string]int, capacity int, scope Scope) ([]plannedMatch, []*candidate) {
	if len(pool) == 0 {
		return nil, mentees
	}

	var planned []plannedMatch
	var leftover []*candidate
	for _, mentee := range mentees {
		sort.SliceStable(pool, func(i, j int) bool {
			li, lj := load[pool[i].p.RegistrationNo], load[pool[j].p.RegistrationNo]
			if li != lj {
				return li < lj
			}
			return pool[i].p.RegistrationNo < pool[j].p.RegistrationNo
		})

		var chosen *candidate
		for _, mentor := range pool {
			if load[mentor.p.RegistrationNo] >= capacity {
				continue
			}
			if mentor.p.RegistrationNo == mentee.p.RegistrationNo {
				continue
			}
			if !scope.IsGlobal() && mentor.snap.DepartmentID != scope.DepartmentID {
				continue
			}
			chosen = mentor
			break
		}
		if chosen == nil {
			leftover = append(leftover, mentee)
			continue
		}

		load[chosen.p.RegistrationNo]++
		quality, overlap := PairScore(chosen.snap, mentee.snap)
		planned = append(planned, plannedMatch{
			mentor:  chosen,
			mentee:  mentee,
			quality: quality,
			overlap: overlap,
			source:  matchSourceSpillover,
		})
	}
	return planned, leftover
}

func toMatchItem(pm plannedMatch) dto.MatchItem {
	item := dto.MatchItem{
		Mentor:          toBrief(pm.mentor.p),
		Mentee:          toBrief(pm.mentee.p),
		MatchQuality:    math.Round(pm.quality*100) / 100,
		MentorScore:     EvaluateStudent(pm.mentor.snap),
		CommonTech:      make([]string, 0, len(pm.overlap.CommonTech)),
		CommonInterests: make([]string, 0, len(pm.overlap.CommonInterests)),
		PreferenceScore: pm.overlap.PreferenceScore,
		Source:          pm.source,
	}
	for _, t := range pm.overlap.CommonTech {
		item.CommonTech = append(item.CommonTech, t.String())
	}
	for _, t := range pm.overlap.CommonInterests {
		item.CommonInterests = append(item.CommonInterests, t.String())
	}
	return item
}

func matchNotices(mentor, mentee *model.Participant) []outgoing {
	return []outgoing{
		{
			to: recipientOf(mentor),
			msg: Message{
				Type:    NotifyMatch,
				Subject: "你有一位新的学员",
				Body:    fmt.Sprintf("%s（%s）已被分配为你的学员。", mentee.Name, mentee.RegistrationNo),
			},
		},
		{
			to: recipientOf(mentee),
			msg: Message{
				Type:    NotifyMatch,
				Subject: "你已匹配到导师",
				Body:    fmt.Sprintf("%s（%s）将担任你本学期的导师。", mentor.Name, mentor.RegistrationNo),
			},
		},
	}
}
