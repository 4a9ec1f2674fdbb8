package model

import "time"

// ── 会话 ──

const (
	SessionVirtual  = "virtual"
	SessionPhysical = "physical"
)

// Session 辅导会话表 — 对应 sessions
type Session struct {
	SessionID   string            `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"session_id"`
	MentorID    string            `gorm:"type:varchar(20);not null;index"                json:"mentor_id"`
	SessionType string            `gorm:"type:varchar(10);not null"                      json:"session_type"` // virtual | physical
	DateTime    time.Time         `gorm:"not null"                                       json:"date_time"`
	MeetingLink *string           `gorm:"type:varchar(255)"                              json:"meeting_link,omitempty"`
	Location    *string           `gorm:"type:varchar(255)"                              json:"location,omitempty"`
	Summary     string            `gorm:"type:text"                                      json:"summary,omitempty"`
	Attendees   []SessionAttendee `gorm:"foreignKey:SessionID"                   json:"attendees,omitempty"`
	BaseModel
}

// TableName 指定表名
func (Session) TableName() string { return "sessions" }

// SessionAttendee 会话参与者关联表 — 对应 session_attendees
type SessionAttendee struct {
	SessionID     string `gorm:"type:uuid;primaryKey"        json:"session_id"`
	ParticipantID string `gorm:"type:varchar(20);primaryKey" json:"participant_id"`
}

// TableName 指定表名
func (SessionAttendee) TableName() string { return "session_attendees" }

// ── 测验 ──

const (
	QuizPending   = "pending"
	QuizCompleted = "completed"
	QuizExpired   = "expired"
)

// QuizResult 测验记录表 — 对应 quiz_results
type QuizResult struct {
	QuizID         string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"quiz_id"`
	ParticipantID  string     `gorm:"type:varchar(20);not null;index"                json:"participant_id"`      // 答题人
	MentorID       *string    `gorm:"type:varchar(20);index"                         json:"mentor_id,omitempty"` // 布置人
	QuizTopic      string     `gorm:"type:varchar(255);not null"                     json:"quiz_topic"`
	TotalQuestions int        `gorm:"not null;default:0"                             json:"total_questions"`
	Score          int        `gorm:"not null;default:0"                             json:"score"`
	Percentage     float64    `gorm:"type:numeric(5,2);not null;default:0"           json:"percentage"`
	Status         string     `gorm:"type:varchar(10);not null;default:'pending'"    json:"status"` // pending | completed | expired
	CompletedDate  *time.Time `                                                      json:"completed_date,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (QuizResult) TableName() string { return "quiz_results" }

// ── 评价 ──

const (
	RatedRoleMentor = "mentor"
	RatedRoleMentee = "mentee"
)

// Feedback 评价表 — 对应 feedbacks（被评价人按角色分别统计平均分）
type Feedback struct {
	FeedbackID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"feedback_id"`
	FromID     string    `gorm:"type:varchar(20);not null"                      json:"from_id"`
	ToID       string    `gorm:"type:varchar(20);not null;index"                json:"to_id"`
	RatedRole  string    `gorm:"type:varchar(10);not null"                      json:"rated_role"` // mentor | mentee
	Rating     int       `gorm:"not null"                                       json:"rating"`     // 1-5
	Comments   string    `gorm:"type:text"                                      json:"comments,omitempty"`
	Anonymous  bool      `gorm:"not null;default:false"                         json:"anonymous"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (Feedback) TableName() string { return "feedbacks" }
