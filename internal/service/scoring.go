package service

import (
	"math"
	"strings"

	"github.com/Makarand-Tighare/project-api-sub000/internal/model"
)

// DisqualifiedScore 未审批或已停用参与者的评分，保证永远不会被选为最佳导师
const DisqualifiedScore = -1000.0

// ════════════════════════════════════════════════════════════
// 评分快照
// ════════════════════════════════════════════════════════════

// HistoricalStats 参与者最近一个已归档学期的统计（nil 字段表示无数据）
type HistoricalStats struct {
	TotalBadges       int
	TotalPoints       int
	SessionsConducted int
	SessionsAttended  int
	MentorRating      *float64
	MenteeRating      *float64
}

// ParticipantSnapshot 匹配与评分使用的只读参与者快照
type ParticipantSnapshot struct {
	RegistrationNo string
	Name           string
	Semester       int
	DepartmentID   string
	Department     string
	Approved       bool
	Active         bool

	PreviousMentoringExperience string
	TechStack                   string
	AreasOfInterest             string
	Preferences                 [3]string

	PublishedResearchPapers    string
	HackathonParticipation     string
	NumberOfWins               int
	HackathonRole              string
	CodingCompetitions         string
	NumberOfCodingCompetitions int
	CGPA                       *float64
	SGPA                       *float64
	InternshipExperience       string
	NumberOfInternships        int
	Seminars                   string
	Extracurricular            string

	BadgesEarned      int
	IsSuperMentor     bool
	LeaderboardPoints int

	History *HistoricalStats
}

// NewSnapshot 由参与者记录与（可选的）最近归档记录构建快照
func NewSnapshot(p *model.Participant, h *model.ParticipantHistory) ParticipantSnapshot {
	s := ParticipantSnapshot{
		RegistrationNo:              p.RegistrationNo,
		Name:                        p.Name,
		Semester:                    p.Semester,
		Department:                  p.DepartmentLabel(),
		Approved:                    p.ApprovalStatus == model.ApprovalApproved,
		Active:                      p.Status == model.ParticipantStatusActive,
		PreviousMentoringExperience: p.PreviousMentoringExperience,
		TechStack:                   p.TechStack,
		AreasOfInterest:             p.AreasOfInterest,
		Preferences:                 [3]string{p.InterestPreference1, p.InterestPreference2, p.InterestPreference3},
		PublishedResearchPapers:     p.PublishedResearchPapers,
		HackathonParticipation:      p.HackathonParticipation,
		NumberOfWins:                p.NumberOfWins,
		HackathonRole:               p.HackathonRole,
		CodingCompetitions:          p.CodingCompetitions,
		NumberOfCodingCompetitions:  p.NumberOfCodingCompetitions,
		CGPA:                        p.CGPA,
		SGPA:                        p.SGPA,
		InternshipExperience:        p.InternshipExperience,
		NumberOfInternships:         p.NumberOfInternships,
		Seminars:                    p.SeminarsOrWorkshopsAttended,
		Extracurricular:             p.ExtracurricularActivities,
		BadgesEarned:                p.BadgesEarned,
		IsSuperMentor:               p.IsSuperMentor,
		LeaderboardPoints:           p.LeaderboardPoints,
	}
	if p.DepartmentID != nil {
		s.DepartmentID = *p.DepartmentID
	}
	if h != nil {
		s.History = &HistoricalStats{
			TotalBadges:       h.TotalBadgesEarned,
			TotalPoints:       h.TotalLeaderboardPoints,
			SessionsConducted: h.SessionsConducted,
			SessionsAttended:  h.SessionsAttended,
			MentorRating:      h.MentorRating,
			MenteeRating:      h.MenteeRating,
		}
	}
	return s
}

// ════════════════════════════════════════════════════════════
// EvaluateStudent 成就评分
// ════════════════════════════════════════════════════════════

// 已领取徽章数 1..5 对应的加分；超过 5 个后每个 +15
var badgeTierBonus = [...]float64{10, 25, 45, 70, 100}

// EvaluateStudent 按成就累加评分；未审批或已停用返回 DisqualifiedScore
func EvaluateStudent(s ParticipantSnapshot) float64 {
	if !s.Approved || !s.Active {
		return DisqualifiedScore
	}

	score := 0.0

	if s.Semester >= 6 && s.Semester <= 8 {
		score += 30
	}
	if present(s.PreviousMentoringExperience) {
		score += 15
	}
	if present(s.PublishedResearchPapers) {
		score += 25
	}

	// ── 黑客松 ──
	switch strings.ToLower(strings.TrimSpace(s.HackathonParticipation)) {
	case "international":
		score += 25
	case "national":
		score += 20
	case "college":
		score += 15
	}
	score += float64(s.NumberOfWins) * 5
	switch strings.ToLower(strings.TrimSpace(s.HackathonRole)) {
	case "team leader":
		score += 10
	case "participant", "member":
		score += 5
	}

	// ── 编程竞赛 / 实习 ──
	if yes(s.CodingCompetitions) {
		score += 20 + float64(s.NumberOfCodingCompetitions)*3
	}
	if yes(s.InternshipExperience) {
		score += 15 + float64(s.NumberOfInternships)*5
	}

	if s.CGPA != nil {
		score += *s.CGPA
	}
	if s.SGPA != nil {
		score += *s.SGPA
	}

	if yes(s.Seminars) {
		score += 5
	}
	if yes(s.Extracurricular) {
		score += 5
	}

	// ── 徽章 / 超级导师 / 积分 ──
	score += badgeBonus(s.BadgesEarned)
	if s.IsSuperMentor {
		score += 50
	}
	score += float64(s.LeaderboardPoints) * 0.5

	return score
}

func badgeBonus(n int) float64 {
	switch {
	case n <= 0:
		return 0
	case n <= len(badgeTierBonus):
		return badgeTierBonus[n-1]
	default:
		return badgeTierBonus[len(badgeTierBonus)-1] + float64(n-len(badgeTierBonus))*15
	}
}

// present 非空且不是占位值（"nan" / "none"）
func present(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v != "" && v != "nan" && v != "none"
}

func yes(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "yes")
}

// ════════════════════════════════════════════════════════════
// HasCommonInterests 兴趣重合
// ════════════════════════════════════════════════════════════

// TokenPair 一对互相包含的词条（导师侧, 学员侧）
type TokenPair struct {
	Mentor string
	Mentee string
}

// String 展示用 "mentor~mentee"，两侧相同时只显示一次
func (p TokenPair) String() string {
	if strings.EqualFold(p.Mentor, p.Mentee) {
		return p.Mentor
	}
	return p.Mentor + "~" + p.Mentee
}

// InterestOverlap 兴趣重合结果
type InterestOverlap struct {
	CommonTech      []TokenPair
	CommonInterests []TokenPair
	PreferenceScore int
}

// 偏好 1/2/3 的权重
var preferenceWeights = [3]int{10, 6, 3}

// HasCommonInterests 计算技术栈 / 兴趣方向的重合与偏好得分
// 词条按逗号切分、去空白，任一方向的大小写不敏感子串包含即视为匹配
func HasCommonInterests(mentor, mentee ParticipantSnapshot) InterestOverlap {
	mentorTech := tokenize(mentor.TechStack)
	menteeTech := tokenize(mentee.TechStack)
	mentorInterests := tokenize(mentor.AreasOfInterest)
	menteeInterests := tokenize(mentee.AreasOfInterest)

	out := InterestOverlap{
		CommonTech:      overlapPairs(mentorTech, menteeTech),
		CommonInterests: overlapPairs(mentorInterests, menteeInterests),
	}

	menteeAll := append(append([]string{}, menteeTech...), menteeInterests...)
	mentorAll := append(append([]string{}, mentorTech...), mentorInterests...)
	out.PreferenceScore = preferenceScore(mentor.Preferences, menteeAll) +
		preferenceScore(mentee.Preferences, mentorAll)

	return out
}

func tokenize(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func tokensMatch(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}

func overlapPairs(mentorTokens, menteeTokens []string) []TokenPair {
	var pairs []TokenPair
	for _, a := range mentorTokens {
		for _, b := range menteeTokens {
			if tokensMatch(a, b) {
				pairs = append(pairs, TokenPair{Mentor: a, Mentee: b})
			}
		}
	}
	return pairs
}

// preferenceScore 某一方的偏好命中对方任一词条即按位次加权
func preferenceScore(prefs [3]string, otherTokens []string) int {
	score := 0
	for i, pref := range prefs {
		pref = strings.TrimSpace(pref)
		if pref == "" {
			continue
		}
		for _, t := range otherTokens {
			if tokensMatch(pref, t) {
				score += preferenceWeights[i]
				break
			}
		}
	}
	return score
}

// ════════════════════════════════════════════════════════════
// CalculateMatchQuality 历史表现加成
// ════════════════════════════════════════════════════════════

// CalculateMatchQuality 基于历史评分、会话数与徽章的有界加成
func CalculateMatchQuality(mentor, mentee ParticipantSnapshot) float64 {
	bonus := 0.0

	if h := mentor.History; h != nil {
		if h.MentorRating != nil {
			bonus += math.Min(*h.MentorRating/2, 2)
		}
		bonus += math.Min(float64(h.SessionsConducted)/5, 1)
	}
	if h := mentee.History; h != nil {
		if h.MenteeRating != nil {
			bonus += math.Min(*h.MenteeRating/2, 2)
		}
		bonus += math.Min(float64(h.SessionsAttended)/5, 1)
	}

	bonus += math.Min(float64(mentor.BadgesEarned)*0.5, 2)
	if mentor.IsSuperMentor {
		bonus += 2
	}
	return bonus
}

// PairScore 贪心匹配使用的综合得分
func PairScore(mentor, mentee ParticipantSnapshot) (float64, InterestOverlap) {
	overlap := HasCommonInterests(mentor, mentee)
	score := CalculateMatchQuality(mentor, mentee) +
		float64(len(overlap.CommonTech)) +
		float64(len(overlap.CommonInterests)) +
		float64(overlap.PreferenceScore)
	return score, overlap
}
