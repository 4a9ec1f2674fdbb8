package dto

import "time"

// ── 活动模块 DTO（会话 / 测验 / 评价） ──

// CreateSessionRequest 创建辅导会话
type CreateSessionRequest struct {
	SessionType string    `json:"session_type" binding:"required,oneof=virtual physical"`
	DateTime    time.Time `json:"date_time"    binding:"required"`
	MeetingLink string    `json:"meeting_link" binding:"required_if=SessionType virtual,omitempty,url,max=255"`
	Location    string    `json:"location"     binding:"required_if=SessionType physical,omitempty,max=255"`
	Summary     string    `json:"summary"      binding:"omitempty,max=2000"`
	Attendees   []string  `json:"attendees"    binding:"required,min=1,dive,max=20"`
}

// SessionResponse 会话信息
type SessionResponse struct {
	SessionID   string   `json:"session_id"`
	MentorID    string   `json:"mentor_id"`
	SessionType string   `json:"session_type"`
	DateTime    string   `json:"date_time"`
	MeetingLink *string  `json:"meeting_link,omitempty"`
	Location    *string  `json:"location,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Attendees   []string `json:"attendees"`
}

// AssignQuizRequest 布置测验
type AssignQuizRequest struct {
	MenteeID       string `json:"mentee_id"       binding:"required,max=20"`
	QuizTopic      string `json:"quiz_topic"      binding:"required,max=255"`
	TotalQuestions int    `json:"total_questions" binding:"required,min=1,max=200"`
}

// CompleteQuizRequest 提交测验结果
type CompleteQuizRequest struct {
	Score int `json:"score" binding:"min=0"`
}

// QuizResponse 测验信息
type QuizResponse struct {
	QuizID         string  `json:"quiz_id"`
	ParticipantID  string  `json:"participant_id"`
	MentorID       *string `json:"mentor_id,omitempty"`
	QuizTopic      string  `json:"quiz_topic"`
	TotalQuestions int     `json:"total_questions"`
	Score          int     `json:"score"`
	Percentage     float64 `json:"percentage"`
	Status         string  `json:"status"`
	CompletedDate  *string `json:"completed_date,omitempty"`
}

// SubmitFeedbackRequest 提交评价
type SubmitFeedbackRequest struct {
	ToID      string `json:"to_id"     binding:"required,max=20"`
	Rating    int    `json:"rating"    binding:"required,min=1,max=5"`
	Comments  string `json:"comments"  binding:"omitempty,max=2000"`
	Anonymous bool   `json:"anonymous"`
}

// FeedbackResponse 评价信息（匿名时隐藏评价人）
type FeedbackResponse struct {
	FeedbackID string `json:"feedback_id"`
	FromID     string `json:"from_id,omitempty"`
	ToID       string `json:"to_id"`
	RatedRole  string `json:"rated_role"`
	Rating     int    `json:"rating"`
	Comments   string `json:"comments,omitempty"`
	CreatedAt  string `json:"created_at"`
}
