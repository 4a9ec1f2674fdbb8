package model

import "time"

// Badge 徽章目录表 — 对应 badges
type Badge struct {
	BadgeID        string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"badge_id"`
	Name           string `gorm:"type:varchar(100);not null"                     json:"name"`
	Code           string `gorm:"type:varchar(100);not null;uniqueIndex"         json:"code"` // 由名称生成的 slug
	Description    string `gorm:"type:text"                                      json:"description,omitempty"`
	ImageKey       string `gorm:"type:varchar(255)"                              json:"image_key,omitempty"`
	PointsRequired int    `gorm:"not null;default:0"                             json:"points_required"`
	BaseModel
}

// TableName 指定表名
func (Badge) TableName() string { return "badges" }

// ParticipantBadge 徽章授予记录表 — 对应 participant_badges
// 约束：(participant_id, badge_id) 唯一
type ParticipantBadge struct {
	ID             string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ParticipantID  string     `gorm:"type:varchar(20);not null;index"                json:"participant_id"`
	BadgeID        string     `gorm:"type:uuid;not null"                             json:"badge_id"`
	EarnedDate     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"earned_date"`
	IsClaimed      bool       `gorm:"not null;default:false"                         json:"is_claimed"`
	ClaimedDate    *time.Time `                                                      json:"claimed_date,omitempty"`
	LinkedinShared bool       `gorm:"not null;default:false"                         json:"linkedin_shared"`
	Badge          *Badge     `gorm:"foreignKey:BadgeID"                             json:"badge,omitempty"`
}

// TableName 指定表名
func (ParticipantBadge) TableName() string { return "participant_badges" }
