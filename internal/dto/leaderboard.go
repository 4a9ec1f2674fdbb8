package dto

// ── 排行榜 / 徽章模块 DTO ──

// LeaderboardEntry 排行榜条目（含分项明细）
type LeaderboardEntry struct {
	Rank                int    `json:"rank"`
	RegistrationNo      string `json:"registration_no"`
	Name                string `json:"name"`
	Department          string `json:"department,omitempty"`
	SessionsScore       int    `json:"sessions_score"`
	QuizScore           int    `json:"quiz_score"`
	MenteeScore         int    `json:"mentee_score"`
	QuizAssignmentScore int    `json:"quiz_assignment_score"`
	BadgeScore          int    `json:"badge_score"`
	SuperMentorBonus    int    `json:"super_mentor_bonus"`
	TotalScore          int    `json:"total_score"`
	BadgesEarned        int    `json:"badges_earned"`
	IsSuperMentor       bool   `json:"is_super_mentor"`
	NewBadges           int    `json:"new_badges,omitempty"`
}

// LeaderboardQuery 排行榜查询参数
type LeaderboardQuery struct {
	ScopeRequest
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// CreateBadgeRequest 创建徽章
type CreateBadgeRequest struct {
	Name           string `json:"name"            binding:"required,min=2,max=100"`
	Description    string `json:"description"     binding:"omitempty,max=500"`
	ImageKey       string `json:"image_key"       binding:"omitempty,max=255"`
	PointsRequired int    `json:"points_required" binding:"min=0"`
}

// AwardBadgeRequest 手动授予徽章
type AwardBadgeRequest struct {
	ParticipantID string `json:"participant_id" binding:"required,max=20"`
	BadgeID       string `json:"badge_id"       binding:"required,uuid"`
}

// UpdatePointsRequest 直接设定积分
type UpdatePointsRequest struct {
	Points int `json:"points" binding:"min=0"`
}

// BadgeResponse 徽章目录条目
type BadgeResponse struct {
	BadgeID        string `json:"badge_id"`
	Name           string `json:"name"`
	Code           string `json:"code"`
	Description    string `json:"description,omitempty"`
	PointsRequired int    `json:"points_required"`
}

// ParticipantBadgeResponse 授予记录
type ParticipantBadgeResponse struct {
	ID             string         `json:"id"`
	ParticipantID  string         `json:"participant_id"`
	Badge          *BadgeResponse `json:"badge,omitempty"`
	EarnedDate     string         `json:"earned_date"`
	IsClaimed      bool           `json:"is_claimed"`
	ClaimedDate    *string        `json:"claimed_date,omitempty"`
	LinkedinShared bool           `json:"linkedin_shared"`
}

// ClaimResult 领取 / 取消领取后的参与者状态
type ClaimResult struct {
	Award         ParticipantBadgeResponse `json:"award"`
	BadgesEarned  int                      `json:"badges_earned"`
	IsSuperMentor bool                     `json:"is_super_mentor"`
}

// PointsUpdateResult 积分更新结果
type PointsUpdateResult struct {
	RegistrationNo    string                     `json:"registration_no"`
	LeaderboardPoints int                        `json:"leaderboard_points"`
	NewBadges         []ParticipantBadgeResponse `json:"new_badges"`
}
