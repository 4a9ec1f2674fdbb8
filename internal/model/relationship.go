package model

import "time"

// Relationship 导师-学员关系表 — 对应 mentor_mentee_relationships
// 约束：mentee_id 唯一（一名学员同时只有一位导师），(mentor_id, mentee_id) 唯一
type Relationship struct {
	RelationshipID  string       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"relationship_id"`
	MentorID        string       `gorm:"type:varchar(20);not null;index"                json:"mentor_id"`
	MenteeID        string       `gorm:"type:varchar(20);not null;uniqueIndex"          json:"mentee_id"`
	ManuallyCreated bool         `gorm:"not null;default:false"                         json:"manually_created"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	CreatedBy       *string      `gorm:"type:varchar(50)"                               json:"created_by,omitempty"`
	Mentor          *Participant `gorm:"foreignKey:MentorID;references:RegistrationNo"  json:"mentor,omitempty"`
	Mentee          *Participant `gorm:"foreignKey:MenteeID;references:RegistrationNo"  json:"mentee,omitempty"`
}

// TableName 指定表名
func (Relationship) TableName() string { return "mentor_mentee_relationships" }
