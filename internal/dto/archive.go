package dto

// ── 归档模块 DTO ──

// EndedRelationship 归档时结束的关系快照（仅用于响应，不持久化）
type EndedRelationship struct {
	MentorID   string `json:"mentor_id"`
	MenteeID   string `json:"mentee_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Department string `json:"department,omitempty"`
}

// ArchiveResult 归档结果
// 院系范围的关系按学员归属：学员属于该院系的关系结束；院系导师带的外院系学员关系保留，
// 该导师的资料仍会重置
type ArchiveResult struct {
	RelationshipsArchived int                 `json:"relationships_archived"`
	ParticipantsArchived  int                 `json:"participants_archived"`
	RelationshipsEnded    []EndedRelationship `json:"relationships_ended"`
	ParticipantsReset     int64               `json:"participants_reset"`
}

// HistoryResponse 学期归档记录
type HistoryResponse struct {
	HistoryID              string   `json:"history_id"`
	RegistrationNo         string   `json:"registration_no"`
	Name                   string   `json:"name"`
	Department             string   `json:"department,omitempty"`
	Semester               int      `json:"semester"`
	SemesterStart          string   `json:"semester_start"`
	SemesterEnd            string   `json:"semester_end"`
	TotalBadgesEarned      int      `json:"total_badges_earned"`
	TotalLeaderboardPoints int      `json:"total_leaderboard_points"`
	WasSuperMentor         bool     `json:"was_super_mentor"`
	QuizCount              int      `json:"quiz_count"`
	AvgQuizPercentage      float64  `json:"avg_quiz_percentage"`
	WasMentor              bool     `json:"was_mentor"`
	WasMentee              bool     `json:"was_mentee"`
	MentorRating           *float64 `json:"mentor_rating,omitempty"`
	MenteeRating           *float64 `json:"mentee_rating,omitempty"`
	SessionsConducted      int      `json:"sessions_conducted"`
	SessionsAttended       int      `json:"sessions_attended"`
	ClaimedBadges          []string `json:"claimed_badges"`
}

// NotificationResponse 站内通知
type NotificationResponse struct {
	NotificationID string `json:"notification_id"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	IsRead         bool   `json:"is_read"`
	CreatedAt      string `json:"created_at"`
}
