package dto

// ── 参与者模块 DTO ──

// RegisterParticipantRequest 参与者报名请求
type RegisterParticipantRequest struct {
	RegistrationNo string `json:"registration_no" binding:"required,min=4,max=20,alphanum"`
	Name           string `json:"name"            binding:"required,min=2,max=100"`
	Email          string `json:"email"           binding:"required,email"`
	MobileNumber   string `json:"mobile_number"   binding:"omitempty,max=15,numeric"`
	Semester       int    `json:"semester"        binding:"required,min=1,max=8"`
	Branch         string `json:"branch"          binding:"omitempty,max=100"`
	DepartmentID   string `json:"department_id"   binding:"omitempty,uuid"`
	ProfileRequest
}

// ProfileRequest 匹配资料（报名与更新共用）
type ProfileRequest struct {
	MentoringPreference         string            `json:"mentoring_preference"           binding:"omitempty,oneof=mentor mentee"`
	PreviousMentoringExperience string            `json:"previous_mentoring_experience"  binding:"omitempty,max=2000"`
	TechStack                   string            `json:"tech_stack"                     binding:"omitempty,csvlist"`
	AreasOfInterest             string            `json:"areas_of_interest"              binding:"omitempty,csvlist"`
	InterestPreference1         string            `json:"interest_preference1"           binding:"omitempty,max=100"`
	InterestPreference2         string            `json:"interest_preference2"           binding:"omitempty,max=100"`
	InterestPreference3         string            `json:"interest_preference3"           binding:"omitempty,max=100"`
	PublishedResearchPapers     string            `json:"published_research_papers"      binding:"omitempty,oneof=International National College Conferences None"`
	HackathonParticipation      string            `json:"hackathon_participation"        binding:"omitempty,oneof=International National College None"`
	NumberOfWins                int               `json:"number_of_wins"                 binding:"omitempty,min=0"`
	NumberOfParticipations      int               `json:"number_of_participations"       binding:"omitempty,min=0"`
	HackathonRole               string            `json:"hackathon_role"                 binding:"omitempty,oneof='Team Leader' Participant"`
	CodingCompetitions          string            `json:"coding_competitions"            binding:"omitempty,oneof=yes no"`
	LevelOfCompetition          string            `json:"level_of_competition"           binding:"omitempty,max=20"`
	NumberOfCodingCompetitions  int               `json:"number_of_coding_competitions"  binding:"omitempty,min=0"`
	CGPA                        *float64          `json:"cgpa"                           binding:"omitempty,min=0,max=10"`
	SGPA                        *float64          `json:"sgpa"                           binding:"omitempty,min=0,max=10"`
	InternshipExperience        string            `json:"internship_experience"          binding:"omitempty,oneof=yes no"`
	NumberOfInternships         int               `json:"number_of_internships"          binding:"omitempty,min=0"`
	InternshipDescription       string            `json:"internship_description"         binding:"omitempty,max=2000"`
	SeminarsOrWorkshopsAttended string            `json:"seminars_or_workshops_attended" binding:"omitempty,oneof=yes no"`
	DescribeSeminars            string            `json:"describe_seminars"              binding:"omitempty,max=2000"`
	ExtracurricularActivities   string            `json:"extracurricular_activities"     binding:"omitempty,oneof=yes no"`
	DescribeExtracurricular     string            `json:"describe_extracurricular"       binding:"omitempty,max=2000"`
	ProofDocuments              map[string]string `json:"proof_documents"`
}

// UpdateProfileRequest 更新资料请求（version 用于乐观锁）
type UpdateProfileRequest struct {
	Name         *string `json:"name"          binding:"omitempty,min=2,max=100"`
	Email        *string `json:"email"         binding:"omitempty,email"`
	Semester     *int    `json:"semester"      binding:"omitempty,min=1,max=8"`
	DepartmentID *string `json:"department_id" binding:"omitempty,uuid"`
	Version      int     `json:"version"       binding:"required,min=1"`
	ProfileRequest
}

// ParticipantListRequest 参与者列表查询参数
type ParticipantListRequest struct {
	PaginationRequest
	DepartmentID        string `form:"department_id"        binding:"omitempty,uuid"`
	Status              string `form:"status"               binding:"omitempty,oneof=active deactivated"`
	ApprovalStatus      string `form:"approval_status"      binding:"omitempty,oneof=pending approved rejected"`
	MentoringPreference string `form:"mentoring_preference" binding:"omitempty,oneof=mentor mentee"`
	Semester            int    `form:"semester"             binding:"omitempty,min=1,max=8"`
	Keyword             string `form:"keyword"              binding:"omitempty,max=50"`
}

// ParticipantResponse 参与者信息
type ParticipantResponse struct {
	RegistrationNo      string              `json:"registration_no"`
	Name                string              `json:"name"`
	Email               string              `json:"email"`
	Semester            int                 `json:"semester"`
	Branch              string              `json:"branch,omitempty"`
	Department          *DepartmentResponse `json:"department,omitempty"`
	MentoringPreference string              `json:"mentoring_preference"`
	TechStack           string              `json:"tech_stack"`
	AreasOfInterest     string              `json:"areas_of_interest"`
	BadgesEarned        int                 `json:"badges_earned"`
	IsSuperMentor       bool                `json:"is_super_mentor"`
	LeaderboardPoints   int                 `json:"leaderboard_points"`
	Status              string              `json:"status"`
	ApprovalStatus      string              `json:"approval_status"`
	Score               float64             `json:"score"`
	RegisteredAt        string              `json:"registered_at"`
	Version             int                 `json:"version"`
}
