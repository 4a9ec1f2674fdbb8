package model

import (
	"time"

	"gorm.io/datatypes"
)

// ── 参与者状态枚举 ──

const (
	ParticipantStatusActive      = "active"
	ParticipantStatusDeactivated = "deactivated"

	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"

	PreferenceMentor = "mentor"
	PreferenceMentee = "mentee"
)

// Participant 参与者表 — 对应 participants（以学号为主键）
type Participant struct {
	RegistrationNo string      `gorm:"type:varchar(20);primaryKey"        json:"registration_no"`
	Name           string      `gorm:"type:varchar(100);not null"         json:"name"`
	Email          string      `gorm:"type:varchar(100);not null"         json:"email"`
	MobileNumber   string      `gorm:"type:varchar(15)"                   json:"mobile_number,omitempty"`
	Semester       int         `gorm:"not null"                           json:"semester"` // 1-8
	Branch         string      `gorm:"type:varchar(100)"                  json:"branch,omitempty"`
	DepartmentID   *string     `gorm:"type:uuid;index"                    json:"department_id,omitempty"`
	Department     *Department `gorm:"foreignKey:DepartmentID"            json:"department,omitempty"`

	// ── 匹配偏好 ──
	MentoringPreference         string `gorm:"type:varchar(10)" json:"mentoring_preference"` // mentor | mentee
	PreviousMentoringExperience string `gorm:"type:text"        json:"previous_mentoring_experience,omitempty"`
	TechStack                   string `gorm:"type:text"        json:"tech_stack"`        // 逗号分隔
	AreasOfInterest             string `gorm:"type:text"        json:"areas_of_interest"` // 逗号分隔
	InterestPreference1         string `gorm:"type:varchar(100)" json:"interest_preference1,omitempty"`
	InterestPreference2         string `gorm:"type:varchar(100)" json:"interest_preference2,omitempty"`
	InterestPreference3         string `gorm:"type:varchar(100)" json:"interest_preference3,omitempty"`

	// ── 学业与成就 ──
	PublishedResearchPapers     string   `gorm:"type:varchar(20)"        json:"published_research_papers,omitempty"` // International | National | College | None
	HackathonParticipation      string   `gorm:"type:varchar(20)"        json:"hackathon_participation,omitempty"`   // International | National | College | None
	NumberOfWins                int      `gorm:"not null;default:0"      json:"number_of_wins"`
	NumberOfParticipations      int      `gorm:"not null;default:0"      json:"number_of_participations"`
	HackathonRole               string   `gorm:"type:varchar(20)"        json:"hackathon_role,omitempty"`      // Team Leader | Participant
	CodingCompetitions          string   `gorm:"type:varchar(3)"         json:"coding_competitions,omitempty"` // yes | no
	LevelOfCompetition          string   `gorm:"type:varchar(20)"        json:"level_of_competition,omitempty"`
	NumberOfCodingCompetitions  int      `gorm:"not null;default:0"      json:"number_of_coding_competitions"`
	CGPA                        *float64 `gorm:"column:cgpa;type:numeric(4,2)" json:"cgpa,omitempty"`
	SGPA                        *float64 `gorm:"column:sgpa;type:numeric(4,2)" json:"sgpa,omitempty"`
	InternshipExperience        string   `gorm:"type:varchar(3)"         json:"internship_experience,omitempty"`
	NumberOfInternships         int      `gorm:"not null;default:0"      json:"number_of_internships"`
	InternshipDescription       string   `gorm:"type:text"               json:"internship_description,omitempty"`
	SeminarsOrWorkshopsAttended string   `gorm:"type:varchar(3)"         json:"seminars_or_workshops_attended,omitempty"`
	DescribeSeminars            string   `gorm:"type:text"               json:"describe_seminars,omitempty"`
	ExtracurricularActivities   string   `gorm:"type:varchar(3)"         json:"extracurricular_activities,omitempty"`
	DescribeExtracurricular     string   `gorm:"type:text"               json:"describe_extracurricular,omitempty"`

	// ProofDocuments 证明材料引用（类型 → 存储键），文件本体不在本服务内
	ProofDocuments datatypes.JSONMap `gorm:"type:jsonb" json:"proof_documents,omitempty"`

	// ── 积分与徽章（排行榜、徽章领取维护） ──
	BadgesEarned      int  `gorm:"not null;default:0"     json:"badges_earned"`
	IsSuperMentor     bool `gorm:"not null;default:false" json:"is_super_mentor"`
	LeaderboardPoints int  `gorm:"not null;default:0"     json:"leaderboard_points"`

	Status         string    `gorm:"type:varchar(20);not null;default:'active'"  json:"status"`          // active | deactivated
	ApprovalStatus string    `gorm:"type:varchar(20);not null;default:'pending'" json:"approval_status"` // pending | approved | rejected
	RegisteredAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"          json:"registered_at"`   // 本学期起点
	VersionedModel
}

// TableName 指定表名
func (Participant) TableName() string { return "participants" }

// IsEligible 已审批且处于活跃状态
func (p *Participant) IsEligible() bool {
	return p.ApprovalStatus == ApprovalApproved && p.Status == ParticipantStatusActive
}

// HasMatchingProfile 技术栈与兴趣均已填写
func (p *Participant) HasMatchingProfile() bool {
	return p.TechStack != "" && p.AreasOfInterest != ""
}

// DepartmentLabel 院系展示名（未关联院系时回退到 branch）
func (p *Participant) DepartmentLabel() string {
	if p.Department != nil {
		return p.Department.Name
	}
	return p.Branch
}
