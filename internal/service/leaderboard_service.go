package service

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Makarand-Tighare/project-api-sub000/internal/dto"
	"github.com/Makarand-Tighare/project-api-sub000/internal/model"
	"github.com/Makarand-Tighare/project-api-sub000/internal/repository"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/metrics"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/redis"
)

// ── 积分权重 ──

const (
	pointsPerSessionConducted = 20
	pointsPerSessionAttended  = 10
	pointsPerQuizAssigned     = 5
	pointsPerMentee           = 40
	pointsPerBadge            = 20
	superMentorBonus          = 100
)

// 触发来源（指标标签）
const (
	TriggerAPI       = "api"
	TriggerScheduler = "scheduler"
)

// LeaderboardCache 排行榜缓存；未命中返回 (nil, nil)
type LeaderboardCache interface {
	Store(ctx context.Context, scope Scope, entries []dto.LeaderboardEntry) error
	Load(ctx context.Context, scope Scope, limit int) ([]dto.LeaderboardEntry, error)
	Invalidate(ctx context.Context, scope Scope) error
}

// LeaderboardService 排行榜业务接口
type LeaderboardService interface {
	// Sync 重新计算范围内全部活跃参与者的积分，写回并补发徽章
	Sync(ctx context.Context, scope Scope, trigger string) ([]dto.LeaderboardEntry, error)
	// Leaderboard 读取排行榜（优先缓存，否则按已存储积分排序）
	Leaderboard(ctx context.Context, scope Scope, limit int) ([]dto.LeaderboardEntry, error)
	// Breakdown 单个参与者的实时分项（不写回）
	Breakdown(ctx context.Context, regNo string) (*dto.LeaderboardEntry, error)
}

type leaderboardService struct {
	repo     *repository.Repository
	locker   ScopeLocker
	cache    LeaderboardCache
	notifier Notifier
	logger   *zap.Logger
}

// NewLeaderboardService 创建 LeaderboardService 实例；cache 可为 nil
func NewLeaderboardService(
	repo *repository.Repository,
	locker ScopeLocker,
	cache LeaderboardCache,
	notifier Notifier,
	logger *zap.Logger,
) LeaderboardService {
	return &leaderboardService{repo: repo, locker: locker, cache: cache, notifier: notifier, logger: logger}
}

// ────────────────────── Sync ──────────────────────

func (s *leaderboardService) Sync(ctx context.Context, scope Scope, trigger string) ([]dto.LeaderboardEntry, error) {
	if err := checkScope(ctx, s.repo, scope); err != nil {
		return nil, err
	}

	var entries []dto.LeaderboardEntry
	var notices []outgoing
	var participants []model.Participant
	err := withScopeLock(ctx, s.locker, scope, "leaderboard", func() error {
		var err error
		entries, notices, participants, err = s.sync(ctx, scope)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.LeaderboardSyncs.WithLabelValues(trigger).Inc()

	if s.cache != nil {
		// 院系重算改变了全局榜上的积分；全局重算则改变各院系榜
		invalidateLeaderboards(ctx, s.cache, s.logger, overlappingScopes(scope, participants))
		if err := s.cache.Store(ctx, scope, entries); err != nil {
			s.logger.Warn("写入排行榜缓存失败", zap.String("scope", scope.Key()), zap.Error(err))
		}
	}
	notifyAll(ctx, s.notifier, s.logger, notices)
	return entries, nil
}

func (s *leaderboardService) sync(ctx context.Context, scope Scope) ([]dto.LeaderboardEntry, []outgoing, []model.Participant, error) {
	participants, err := s.repo.Participant.List(ctx, repository.ParticipantFilter{
		DepartmentID:   scope.DepartmentID,
		Status:         model.ParticipantStatusActive,
		ApprovalStatus: model.ApprovalApproved,
	})
	if err != nil {
		s.logger.Error("查询参与者失败", zap.Error(err))
		return nil, nil, nil, err
	}

	entries := make([]dto.LeaderboardEntry, 0, len(participants))
	var notices []outgoing
	for i := range participants {
		p := &participants[i]
		entry, err := computeEntry(ctx, s.repo, p)
		if err != nil {
			s.logger.Error("计算积分失败", zap.String("registration_no", p.RegistrationNo), zap.Error(err))
			return nil, nil, nil, err
		}

		// 积分写回与徽章补发同一事务；不同参与者之间互不影响（后写覆盖）
		var awarded []model.ParticipantBadge
		err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			if err := tx.Participant.UpdateFields(ctx, p.RegistrationNo, map[string]interface{}{
				"leaderboard_points": entry.TotalScore,
			}); err != nil {
				return err
			}
			var err error
			awarded, err = awardEligibleBadges(ctx, tx, p.RegistrationNo, entry.TotalScore, s.logger)
			return err
		})
		if err != nil {
			s.logger.Error("写回积分失败", zap.String("registration_no", p.RegistrationNo), zap.Error(err))
			return nil, nil, nil, err
		}

		entry.NewBadges = len(awarded)
		for j := range awarded {
			notices = append(notices, badgeNotice(p, awarded[j].Badge))
		}
		entries = append(entries, entry)
	}

	rankEntries(entries)
	s.logger.Info("排行榜已重新计算", zap.String("scope", scope.Key()), zap.Int("participants", len(entries)))
	return entries, notices, participants, nil
}

// overlappingScopes 与 scope 共享参与者的其他排行榜范围
func overlappingScopes(scope Scope, participants []model.Participant) []Scope {
	if !scope.IsGlobal() {
		return []Scope{{}}
	}
	seen := make(map[string]bool)
	var scopes []Scope
	for i := range participants {
		dept := participants[i].DepartmentID
		if dept == nil || *dept == "" || seen[*dept] {
			continue
		}
		seen[*dept] = true
		scopes = append(scopes, Scope{DepartmentID: *dept})
	}
	return scopes
}

// participantScopes 参与者出现的排行榜：全局以及所属院系
func participantScopes(p *model.Participant) []Scope {
	scopes := []Scope{{}}
	if p != nil && p.DepartmentID != nil && *p.DepartmentID != "" {
		scopes = append(scopes, Scope{DepartmentID: *p.DepartmentID})
	}
	return scopes
}

// invalidateLeaderboards 逐个清除缓存；失败只记录，下次同步会覆盖
func invalidateLeaderboards(ctx context.Context, cache LeaderboardCache, logger *zap.Logger, scopes []Scope) {
	if cache == nil {
		return
	}
	for _, scope := range scopes {
		if err := cache.Invalidate(ctx, scope); err != nil {
			logger.Warn("清除排行榜缓存失败", zap.String("scope", scope.Key()), zap.Error(err))
		}
	}
}

// computeEntry 按本学期（registered_at 之后）的活动记录计算分项积分
func computeEntry(ctx context.Context, repo *repository.Repository, p *model.Participant) (dto.LeaderboardEntry, error) {
	since := p.RegisteredAt
	entry := dto.LeaderboardEntry{
		RegistrationNo: p.RegistrationNo,
		Name:           p.Name,
		Department:     p.DepartmentLabel(),
		BadgesEarned:   p.BadgesEarned,
		IsSuperMentor:  p.IsSuperMentor,
	}

	conducted, err := repo.Session.CountConducted(ctx, p.RegistrationNo, since)
	if err != nil {
		return entry, err
	}
	attended, err := repo.Session.CountAttended(ctx, p.RegistrationNo, since)
	if err != nil {
		return entry, err
	}
	entry.SessionsScore = int(conducted)*pointsPerSessionConducted + int(attended)*pointsPerSessionAttended

	assigned, err := repo.Quiz.CountAssignedBy(ctx, p.RegistrationNo, since)
	if err != nil {
		return entry, err
	}
	assignedScore, err := repo.Quiz.SumCompletedScoreAssignedBy(ctx, p.RegistrationNo, since)
	if err != nil {
		return entry, err
	}
	entry.QuizAssignmentScore = int(assigned)*pointsPerQuizAssigned + int(assignedScore)

	rels, err := repo.Relationship.List(ctx, repository.RelationshipFilter{MentorID: p.RegistrationNo})
	if err != nil {
		return entry, err
	}
	if len(rels) > 0 {
		menteeIDs := make([]string, 0, len(rels))
		for _, rel := range rels {
			menteeIDs = append(menteeIDs, rel.MenteeID)
		}
		entry.MenteeScore = len(rels) * pointsPerMentee
		sum, err := repo.Quiz.SumCompletedScore(ctx, menteeIDs, since)
		if err != nil {
			return entry, err
		}
		entry.QuizScore = int(sum)
	} else {
		sum, err := repo.Quiz.SumCompletedScore(ctx, []string{p.RegistrationNo}, since)
		if err != nil {
			return entry, err
		}
		entry.QuizScore = int(sum)
	}

	entry.BadgeScore = p.BadgesEarned * pointsPerBadge
	if p.IsSuperMentor {
		entry.SuperMentorBonus = superMentorBonus
	}
	entry.TotalScore = entry.SessionsScore + entry.QuizScore + entry.MenteeScore +
		entry.QuizAssignmentScore + entry.BadgeScore + entry.SuperMentorBonus
	return entry, nil
}

// rankEntries 按总分降序稳定排序（同分保持学号顺序）并填写名次
func rankEntries(entries []dto.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalScore > entries[j].TotalScore
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// ────────────────────── 读取 ──────────────────────

func (s *leaderboardService) Leaderboard(ctx context.Context, scope Scope, limit int) ([]dto.LeaderboardEntry, error) {
	if err := checkScope(ctx, s.repo, scope); err != nil {
		return nil, err
	}

	if s.cache != nil {
		cached, err := s.cache.Load(ctx, scope, limit)
		if err != nil {
			s.logger.Warn("读取排行榜缓存失败，回退数据库", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	participants, err := s.repo.Participant.List(ctx, repository.ParticipantFilter{
		DepartmentID:   scope.DepartmentID,
		Status:         model.ParticipantStatusActive,
		ApprovalStatus: model.ApprovalApproved,
	})
	if err != nil {
		s.logger.Error("查询参与者失败", zap.Error(err))
		return nil, err
	}

	entries := make([]dto.LeaderboardEntry, 0, len(participants))
	for i := range participants {
		p := &participants[i]
		entries = append(entries, dto.LeaderboardEntry{
			RegistrationNo: p.RegistrationNo,
			Name:           p.Name,
			Department:     p.DepartmentLabel(),
			TotalScore:     p.LeaderboardPoints,
			BadgesEarned:   p.BadgesEarned,
			IsSuperMentor:  p.IsSuperMentor,
		})
	}
	rankEntries(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *leaderboardService) Breakdown(ctx context.Context, regNo string) (*dto.LeaderboardEntry, error) {
	p, err := s.repo.Participant.GetByID(ctx, regNo)
	if err != nil {
		return nil, mapParticipantErr(err, s.logger)
	}
	entry, err := computeEntry(ctx, s.repo, p)
	if err != nil {
		s.logger.Error("计算积分失败", zap.String("registration_no", regNo), zap.Error(err))
		return nil, err
	}
	return &entry, nil
}

// ════════════════════════════════════════════════════════════
// Redis 缓存实现
// ════════════════════════════════════════════════════════════

// rankingStore pkg/redis.Client 提供的排行榜存取能力
type rankingStore interface {
	SaveRanking(ctx context.Context, scope string, members []redis.RankedMember, ttl time.Duration) error
	TopRanking(ctx context.Context, scope string, limit int) ([][]byte, error)
	InvalidateRanking(ctx context.Context, scope string) error
}

type redisLeaderboardCache struct {
	store rankingStore
	ttl   time.Duration
}

// NewRedisLeaderboardCache 基于有序集合的排行榜缓存
func NewRedisLeaderboardCache(store rankingStore, ttl time.Duration) LeaderboardCache {
	return &redisLeaderboardCache{store: store, ttl: ttl}
}

// Store 以名次倒数作为分数，保证读取顺序与计算结果一致
func (c *redisLeaderboardCache) Store(ctx context.Context, scope Scope, entries []dto.LeaderboardEntry) error {
	members := make([]redis.RankedMember, 0, len(entries))
	for i, e := range entries {
		payload, err := json.Marshal(e)
		if err != nil {
			return err
		}
		members = append(members, redis.RankedMember{
			ID:      e.RegistrationNo,
			Score:   float64(len(entries) - i),
			Payload: payload,
		})
	}
	return c.store.SaveRanking(ctx, scope.Key(), members, c.ttl)
}

func (c *redisLeaderboardCache) Load(ctx context.Context, scope Scope, limit int) ([]dto.LeaderboardEntry, error) {
	raw, err := c.store.TopRanking(ctx, scope.Key(), limit)
	if err != nil || raw == nil {
		return nil, err
	}
	out := make([]dto.LeaderboardEntry, 0, len(raw))
	for _, b := range raw {
		var e dto.LeaderboardEntry
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *redisLeaderboardCache) Invalidate(ctx context.Context, scope Scope) error {
	return c.store.InvalidateRanking(ctx, scope.Key())
}
