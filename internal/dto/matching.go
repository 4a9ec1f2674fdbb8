package dto

// ── 匹配模块 DTO ──

// CreateRelationshipRequest 手动建立导师-学员关系
type CreateRelationshipRequest struct {
	MentorID string `json:"mentor_id" binding:"required,max=20"`
	MenteeID string `json:"mentee_id" binding:"required,max=20,nefield=MentorID"`
}

// ParticipantBrief 参与者简要信息（匹配结果内嵌）
type ParticipantBrief struct {
	RegistrationNo string `json:"registration_no"`
	Name           string `json:"name"`
	Semester       int    `json:"semester"`
	Department     string `json:"department,omitempty"`
}

// MatchItem 单条新匹配
type MatchItem struct {
	Mentor          ParticipantBrief `json:"mentor"`
	Mentee          ParticipantBrief `json:"mentee"`
	MatchQuality    float64          `json:"match_quality"`
	MentorScore     float64          `json:"mentor_score"`
	CommonTech      []string         `json:"common_tech"`
	CommonInterests []string         `json:"common_interests"`
	PreferenceScore int              `json:"preference_score"`
	Source          string           `json:"source"` // algorithm | spillover
}

// MatchStatistics 匹配汇总
type MatchStatistics struct {
	TotalRelationships     int `json:"total_relationships"`
	ManualRelationships    int `json:"manual_relationships"`
	AutomaticRelationships int `json:"automatic_relationships"`
	NewMatches             int `json:"new_matches"`
	SpilloverMatches       int `json:"spillover_matches"`
	SkippedConflicts       int `json:"skipped_conflicts"`
	UnmatchedMentees       int `json:"unmatched_mentees"`
	UnmatchedMentors       int `json:"unmatched_mentors"`
}

// MatchResult 一次匹配运行的结果
type MatchResult struct {
	Matches          []MatchItem        `json:"matches"`
	UnmatchedMentees []ParticipantBrief `json:"unmatched_mentees"`
	UnmatchedMentors []ParticipantBrief `json:"unmatched_mentors"`
	Statistics       MatchStatistics    `json:"statistics"`
}

// RelationshipResponse 关系信息
type RelationshipResponse struct {
	RelationshipID  string            `json:"relationship_id"`
	Mentor          *ParticipantBrief `json:"mentor,omitempty"`
	Mentee          *ParticipantBrief `json:"mentee,omitempty"`
	ManuallyCreated bool              `json:"manually_created"`
	CreatedAt       string            `json:"created_at"`
}
