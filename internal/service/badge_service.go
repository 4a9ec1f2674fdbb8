package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Makarand-Tighare/project-api-sub000/config"
	"github.com/Makarand-Tighare/project-api-sub000/internal/dto"
	"github.com/Makarand-Tighare/project-api-sub000/internal/model"
	"github.com/Makarand-Tighare/project-api-sub000/internal/repository"
	pkgerrors "github.com/Makarand-Tighare/project-api-sub000/pkg/errors"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/metrics"
)

// ── 徽章模块业务错误 ──

var (
	ErrBadgeNotFound       = errors.New("徽章不存在")
	ErrBadgeExists         = errors.New("同名徽章已存在")
	ErrBadgeAlreadyAwarded = errors.New("该参与者已获得此徽章")
	ErrBadgeNotAwarded     = errors.New("徽章授予记录不存在")
	ErrBadgeAlreadyClaimed = errors.New("徽章已领取")
	ErrBadgeNotClaimed     = errors.New("徽章尚未领取")
)

// BadgeService 徽章业务接口
type BadgeService interface {
	CreateBadge(ctx context.Context, req *dto.CreateBadgeRequest, callerID string) (*dto.BadgeResponse, error)
	ListBadges(ctx context.Context) ([]dto.BadgeResponse, error)
	Award(ctx context.Context, req *dto.AwardBadgeRequest) (*dto.ParticipantBadgeResponse, error)
	UpdateLeaderboardPoints(ctx context.Context, regNo string, points int) (*dto.PointsUpdateResult, error)
	Claim(ctx context.Context, regNo, awardID string) (*dto.ClaimResult, error)
	Unclaim(ctx context.Context, regNo, awardID string) (*dto.ClaimResult, error)
	DeleteAward(ctx context.Context, awardID string) error
	MarkShared(ctx context.Context, regNo, awardID string) (*dto.ParticipantBadgeResponse, error)
	ListAwards(ctx context.Context, regNo string) ([]dto.ParticipantBadgeResponse, error)
}

type badgeService struct {
	repo     *repository.Repository
	cfg      config.MatchingConfig
	cache    LeaderboardCache
	notifier Notifier
	logger   *zap.Logger
}

// NewBadgeService 创建 BadgeService 实例；cache 可为 nil
func NewBadgeService(
	repo *repository.Repository,
	cfg config.MatchingConfig,
	cache LeaderboardCache,
	notifier Notifier,
	logger *zap.Logger,
) BadgeService {
	return &badgeService{repo: repo, cfg: cfg, cache: cache, notifier: notifier, logger: logger}
}

// ────────────────────── 徽章目录 ──────────────────────

func (s *badgeService) CreateBadge(ctx context.Context, req *dto.CreateBadgeRequest, callerID string) (*dto.BadgeResponse, error) {
	code := slug.Make(req.Name)

	if _, err := s.repo.Badge.GetByCode(ctx, code); err == nil {
		return nil, ErrBadgeExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询徽章失败", zap.Error(err))
		return nil, err
	}

	badge := &model.Badge{
		Name:           req.Name,
		Code:           code,
		Description:    req.Description,
		ImageKey:       req.ImageKey,
		PointsRequired: req.PointsRequired,
	}
	badge.CreatedBy = &callerID
	badge.UpdatedBy = &callerID

	if err := s.repo.Badge.Create(ctx, badge); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrBadgeExists
		}
		s.logger.Error("创建徽章失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("徽章已创建", zap.String("code", code), zap.Int("points_required", badge.PointsRequired))
	resp := toBadgeResponse(badge)
	return &resp, nil
}

func (s *badgeService) ListBadges(ctx context.Context) ([]dto.BadgeResponse, error) {
	list, err := s.repo.Badge.List(ctx)
	if err != nil {
		s.logger.Error("查询徽章列表失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.BadgeResponse, 0, len(list))
	for i := range list {
		out = append(out, toBadgeResponse(&list[i]))
	}
	return out, nil
}

// ────────────────────── 授予 ──────────────────────

func (s *badgeService) Award(ctx context.Context, req *dto.AwardBadgeRequest) (*dto.ParticipantBadgeResponse, error) {
	p, err := s.repo.Participant.GetByID(ctx, req.ParticipantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParticipantNotFound
		}
		s.logger.Error("查询参与者失败", zap.Error(err))
		return nil, err
	}
	badge, err := s.repo.Badge.GetByID(ctx, req.BadgeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBadgeNotFound
		}
		s.logger.Error("查询徽章失败", zap.Error(err))
		return nil, err
	}

	pb := &model.ParticipantBadge{
		ParticipantID: p.RegistrationNo,
		BadgeID:       badge.BadgeID,
		EarnedDate:    time.Now(),
	}
	if err := s.repo.ParticipantBadge.Create(ctx, pb); err != nil {
		if errors.Is(err, pkgerrors.ErrConflict) {
			return nil, ErrBadgeAlreadyAwarded
		}
		s.logger.Error("授予徽章失败", zap.Error(err))
		return nil, err
	}
	pb.Badge = badge
	metrics.BadgesAwarded.Inc()

	notifyAll(ctx, s.notifier, s.logger, []outgoing{badgeNotice(p, badge)})
	resp := toAwardResponse(pb)
	return &resp, nil
}

// UpdateLeaderboardPoints 直接设定积分并补发满足门槛的徽章
func (s *badgeService) UpdateLeaderboardPoints(ctx context.Context, regNo string, points int) (*dto.PointsUpdateResult, error) {
	p, err := s.repo.Participant.GetByID(ctx, regNo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParticipantNotFound
		}
		s.logger.Error("查询参与者失败", zap.Error(err))
		return nil, err
	}

	var awarded []model.ParticipantBadge
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Participant.UpdateFields(ctx, regNo, map[string]interface{}{"leaderboard_points": points}); err != nil {
			return err
		}
		var err error
		awarded, err = awardEligibleBadges(ctx, tx, regNo, points, s.logger)
		return err
	})
	if err != nil {
		s.logger.Error("更新积分失败", zap.String("registration_no", regNo), zap.Error(err))
		return nil, err
	}
	invalidateLeaderboards(ctx, s.cache, s.logger, participantScopes(p))

	result := &dto.PointsUpdateResult{
		RegistrationNo:    regNo,
		LeaderboardPoints: points,
		NewBadges:         make([]dto.ParticipantBadgeResponse, 0, len(awarded)),
	}
	notices := make([]outgoing, 0, len(awarded))
	for i := range awarded {
		result.NewBadges = append(result.NewBadges, toAwardResponse(&awarded[i]))
		notices = append(notices, badgeNotice(p, awarded[i].Badge))
	}
	notifyAll(ctx, s.notifier, s.logger, notices)
	return result, nil
}

// awardEligibleBadges 授予 points_required <= points 且尚未获得的徽章
// 先查已有记录过滤，再依赖 (participant_id, badge_id) 唯一约束兜底并发重复
func awardEligibleBadges(ctx context.Context, repo *repository.Repository, regNo string, points int, logger *zap.Logger) ([]model.ParticipantBadge, error) {
	badges, err := repo.Badge.List(ctx)
	if err != nil {
		return nil, err
	}
	owned, err := repo.ParticipantBadge.ListByParticipant(ctx, regNo)
	if err != nil {
		return nil, err
	}
	has := make(map[string]bool, len(owned))
	for _, pb := range owned {
		has[pb.BadgeID] = true
	}

	var awarded []model.ParticipantBadge
	now := time.Now()
	for i := range badges {
		b := &badges[i]
		if b.PointsRequired > points || has[b.BadgeID] {
			continue
		}
		pb := model.ParticipantBadge{ParticipantID: regNo, BadgeID: b.BadgeID, EarnedDate: now}
		if err := repo.ParticipantBadge.Create(ctx, &pb); err != nil {
			if errors.Is(err, pkgerrors.ErrConflict) {
				logger.Debug("徽章已授予，跳过", zap.String("registration_no", regNo), zap.String("badge", b.Code))
				continue
			}
			return nil, err
		}
		pb.Badge = b
		awarded = append(awarded, pb)
		metrics.BadgesAwarded.Inc()
	}
	return awarded, nil
}

// ────────────────────── 领取 / 取消领取 ──────────────────────

func (s *badgeService) Claim(ctx context.Context, regNo, awardID string) (*dto.ClaimResult, error) {
	return s.setClaimed(ctx, regNo, awardID, true)
}

func (s *badgeService) Unclaim(ctx context.Context, regNo, awardID string) (*dto.ClaimResult, error) {
	return s.setClaimed(ctx, regNo, awardID, false)
}

// setClaimed 切换领取状态，并在同一事务内维护 badges_earned 与超级导师标记
func (s *badgeService) setClaimed(ctx context.Context, regNo, awardID string, claim bool) (*dto.ClaimResult, error) {
	var (
		pb       *model.ParticipantBadge
		owner    *model.Participant
		earned   int
		isSuper  bool
		wasSuper bool
	)
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		pb, err = s.getOwnedAward(ctx, tx, regNo, awardID)
		if err != nil {
			return err
		}
		if claim && pb.IsClaimed {
			return ErrBadgeAlreadyClaimed
		}
		if !claim && !pb.IsClaimed {
			return ErrBadgeNotClaimed
		}

		owner, err = tx.Participant.GetByID(ctx, regNo)
		if err != nil {
			return err
		}
		wasSuper = owner.IsSuperMentor

		delta := -1
		pb.IsClaimed = claim
		pb.ClaimedDate = nil
		if claim {
			delta = 1
			now := time.Now()
			pb.ClaimedDate = &now
		}
		if err := tx.ParticipantBadge.Update(ctx, pb); err != nil {
			return err
		}

		earned, isSuper, err = s.adjustEarned(ctx, tx, regNo, delta)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParticipantNotFound
		}
		if !isBadgeBusinessError(err) {
			s.logger.Error("更新徽章领取状态失败", zap.String("award_id", awardID), zap.Error(err))
		}
		return nil, err
	}
	invalidateLeaderboards(ctx, s.cache, s.logger, participantScopes(owner))

	if claim && isSuper && !wasSuper {
		s.logger.Info("参与者晋升为超级导师", zap.String("registration_no", regNo), zap.Int("badges_earned", earned))
		if p, err := s.repo.Participant.GetByID(ctx, regNo); err == nil {
			notifyAll(ctx, s.notifier, s.logger, []outgoing{{
				to: recipientOf(p),
				msg: Message{
					Type:    NotifyBadge,
					Subject: "恭喜成为超级导师",
					Body:    fmt.Sprintf("你已领取 %d 枚徽章，获得超级导师称号。", earned),
				},
			}})
		}
	}

	return &dto.ClaimResult{
		Award:         toAwardResponse(pb),
		BadgesEarned:  earned,
		IsSuperMentor: isSuper,
	}, nil
}

// adjustEarned 增减已领取数并按阈值重算超级导师标记
func (s *badgeService) adjustEarned(ctx context.Context, tx *repository.Repository, regNo string, delta int) (int, bool, error) {
	earned, err := tx.Participant.AdjustBadgesEarned(ctx, regNo, delta)
	if err != nil {
		return 0, false, err
	}
	isSuper := earned >= s.cfg.SuperMentorThreshold
	if err := tx.Participant.UpdateFields(ctx, regNo, map[string]interface{}{"is_super_mentor": isSuper}); err != nil {
		return 0, false, err
	}
	return earned, isSuper, nil
}

func (s *badgeService) getOwnedAward(ctx context.Context, repo *repository.Repository, regNo, awardID string) (*model.ParticipantBadge, error) {
	pb, err := repo.ParticipantBadge.GetByID(ctx, awardID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBadgeNotAwarded
		}
		return nil, err
	}
	if pb.ParticipantID != regNo {
		return nil, ErrBadgeNotAwarded
	}
	return pb, nil
}

// DeleteAward 删除授予记录；已领取的同时扣减 badges_earned
func (s *badgeService) DeleteAward(ctx context.Context, awardID string) error {
	var owner *model.Participant
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		pb, err := tx.ParticipantBadge.GetByID(ctx, awardID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBadgeNotAwarded
			}
			return err
		}
		if err := tx.ParticipantBadge.Delete(ctx, awardID); err != nil {
			return err
		}
		if !pb.IsClaimed {
			return nil
		}
		if _, _, err := s.adjustEarned(ctx, tx, pb.ParticipantID, -1); err != nil {
			return err
		}
		owner, err = tx.Participant.GetByID(ctx, pb.ParticipantID)
		return err
	})
	if err != nil {
		if !isBadgeBusinessError(err) {
			s.logger.Error("删除徽章授予记录失败", zap.String("award_id", awardID), zap.Error(err))
		}
		return err
	}
	if owner != nil {
		invalidateLeaderboards(ctx, s.cache, s.logger, participantScopes(owner))
	}
	return nil
}

// MarkShared 标记已分享到 LinkedIn（仅记录状态）
func (s *badgeService) MarkShared(ctx context.Context, regNo, awardID string) (*dto.ParticipantBadgeResponse, error) {
	pb, err := s.getOwnedAward(ctx, s.repo, regNo, awardID)
	if err != nil {
		if !isBadgeBusinessError(err) {
			s.logger.Error("查询徽章授予记录失败", zap.Error(err))
		}
		return nil, err
	}
	if !pb.IsClaimed {
		return nil, ErrBadgeNotClaimed
	}
	pb.LinkedinShared = true
	if err := s.repo.ParticipantBadge.Update(ctx, pb); err != nil {
		s.logger.Error("更新分享状态失败", zap.Error(err))
		return nil, err
	}
	resp := toAwardResponse(pb)
	return &resp, nil
}

func (s *badgeService) ListAwards(ctx context.Context, regNo string) ([]dto.ParticipantBadgeResponse, error) {
	list, err := s.repo.ParticipantBadge.ListByParticipant(ctx, regNo)
	if err != nil {
		s.logger.Error("查询徽章授予记录失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.ParticipantBadgeResponse, 0, len(list))
	for i := range list {
		out = append(out, toAwardResponse(&list[i]))
	}
	return out, nil
}

func isBadgeBusinessError(err error) bool {
	return errors.Is(err, ErrBadgeNotAwarded) ||
		errors.Is(err, ErrBadgeAlreadyClaimed) ||
		errors.Is(err, ErrBadgeNotClaimed)
}

// ── 转换 ──

func toBadgeResponse(b *model.Badge) dto.BadgeResponse {
	return dto.BadgeResponse{
		BadgeID:        b.BadgeID,
		Name:           b.Name,
		Code:           b.Code,
		Description:    b.Description,
		PointsRequired: b.PointsRequired,
	}
}

func toAwardResponse(pb *model.ParticipantBadge) dto.ParticipantBadgeResponse {
	resp := dto.ParticipantBadgeResponse{
		ID:             pb.ID,
		ParticipantID:  pb.ParticipantID,
		EarnedDate:     pb.EarnedDate.Format(time.RFC3339),
		IsClaimed:      pb.IsClaimed,
		LinkedinShared: pb.LinkedinShared,
	}
	if pb.Badge != nil {
		b := toBadgeResponse(pb.Badge)
		resp.Badge = &b
	}
	if pb.ClaimedDate != nil {
		d := pb.ClaimedDate.Format(time.RFC3339)
		resp.ClaimedDate = &d
	}
	return resp
}

func badgeNotice(p *model.Participant, b *model.Badge) outgoing {
	name := ""
	if b != nil {
		name = b.Name
	}
	return outgoing{
		to: recipientOf(p),
		msg: Message{
			Type:    NotifyBadge,
			Subject: "你获得了新徽章",
			Body:    fmt.Sprintf("恭喜获得徽章「%s」，可在个人主页领取。", name),
		},
	}
}
