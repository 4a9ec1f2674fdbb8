package model

import (
	"time"

	"gorm.io/datatypes"
)

// ParticipantHistory 学期归档记录表 — 对应 participant_histories
// registration_no 不建外键：参与者被删除后历史仍保留
type ParticipantHistory struct {
	HistoryID              string                      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"history_id"`
	RegistrationNo         string                      `gorm:"type:varchar(20);not null;index"                json:"registration_no"`
	Name                   string                      `gorm:"type:varchar(100);not null"                     json:"name"`
	DepartmentLabel        string                      `gorm:"type:varchar(100)"                              json:"department_label,omitempty"`
	Semester               int                         `gorm:"not null"                                       json:"semester"`
	SemesterStart          time.Time                   `gorm:"not null"                                       json:"semester_start"`
	SemesterEnd            time.Time                   `gorm:"not null"                                       json:"semester_end"`
	TotalBadgesEarned      int                         `gorm:"not null;default:0"                             json:"total_badges_earned"`
	TotalLeaderboardPoints int                         `gorm:"not null;default:0"                             json:"total_leaderboard_points"`
	WasSuperMentor         bool                        `gorm:"not null;default:false"                         json:"was_super_mentor"`
	QuizCount              int                         `gorm:"not null;default:0"                             json:"quiz_count"`
	AvgQuizPercentage      float64                     `gorm:"type:numeric(5,2);not null;default:0"           json:"avg_quiz_percentage"`
	WasMentor              bool                        `gorm:"not null;default:false"                         json:"was_mentor"`
	WasMentee              bool                        `gorm:"not null;default:false"                         json:"was_mentee"`
	MentorRating           *float64                    `gorm:"type:numeric(3,2)"                              json:"mentor_rating,omitempty"`
	MenteeRating           *float64                    `gorm:"type:numeric(3,2)"                              json:"mentee_rating,omitempty"`
	SessionsConducted      int                         `gorm:"not null;default:0"                             json:"sessions_conducted"`
	SessionsAttended       int                         `gorm:"not null;default:0"                             json:"sessions_attended"`
	ClaimedBadges          datatypes.JSONSlice[string] `gorm:"type:jsonb"                                     json:"claimed_badges"`
	CreatedAt              time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (ParticipantHistory) TableName() string { return "participant_histories" }
