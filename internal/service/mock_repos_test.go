package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Makarand-Tighare/project-api-sub000/internal/model"
	"github.com/Makarand-Tighare/project-api-sub000/internal/repository"
	pkgerrors "github.com/Makarand-Tighare/project-api-sub000/pkg/errors"
)

// ── Mock DepartmentRepository ──

type mockDeptRepo struct {
	depts map[string]*model.Department
}

func newMockDeptRepo() *mockDeptRepo {
	return &mockDeptRepo{depts: map[string]*model.Department{
		"dept-cse": {DepartmentID: "dept-cse", Name: "Computer Science", Code: "CSE"},
		"dept-it":  {DepartmentID: "dept-it", Name: "Information Technology", Code: "IT"},
	}}
}

func (m *mockDeptRepo) Create(_ context.Context, dept *model.Department) error {
	if dept.DepartmentID == "" {
		dept.DepartmentID = "dept-" + strings.ToLower(dept.Code)
	}
	for _, d := range m.depts {
		if d.Name == dept.Name {
			return gorm.ErrDuplicatedKey
		}
	}
	m.depts[dept.DepartmentID] = dept
	return nil
}

func (m *mockDeptRepo) GetByID(_ context.Context, id string) (*model.Department, error) {
	if d, ok := m.depts[id]; ok {
		return d, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDeptRepo) GetByCode(_ context.Context, code string) (*model.Department, error) {
	for _, d := range m.depts {
		if d.Code == code {
			return d, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDeptRepo) List(_ context.Context) ([]model.Department, error) {
	var result []model.Department
	for _, d := range m.depts {
		result = append(result, *d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

// ── Mock ParticipantRepository ──

type mockParticipantRepo struct {
	participants map[string]*model.Participant
	depts        *mockDeptRepo
}

func newMockParticipantRepo(depts *mockDeptRepo) *mockParticipantRepo {
	return &mockParticipantRepo{participants: make(map[string]*model.Participant), depts: depts}
}

// withDept 模拟 Preload("Department")
func (m *mockParticipantRepo) withDept(p model.Participant) model.Participant {
	p.Department = nil
	if p.DepartmentID != nil {
		if d, ok := m.depts.depts[*p.DepartmentID]; ok {
			p.Department = d
		}
	}
	return p
}

func (m *mockParticipantRepo) Create(_ context.Context, p *model.Participant) error {
	if _, ok := m.participants[p.RegistrationNo]; ok {
		return gorm.ErrDuplicatedKey
	}
	if p.Version == 0 {
		p.Version = 1
	}
	cp := *p
	m.participants[p.RegistrationNo] = &cp
	return nil
}

func (m *mockParticipantRepo) GetByID(_ context.Context, regNo string) (*model.Participant, error) {
	if p, ok := m.participants[regNo]; ok {
		cp := m.withDept(*p)
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func matchParticipant(p *model.Participant, f repository.ParticipantFilter) bool {
	if f.DepartmentID != "" && (p.DepartmentID == nil || *p.DepartmentID != f.DepartmentID) {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.ApprovalStatus != "" && p.ApprovalStatus != f.ApprovalStatus {
		return false
	}
	if f.MentoringPreference != "" && p.MentoringPreference != f.MentoringPreference {
		return false
	}
	if f.Semester > 0 && p.Semester != f.Semester {
		return false
	}
	if f.Keyword != "" && !strings.Contains(p.Name, f.Keyword) && !strings.Contains(p.RegistrationNo, f.Keyword) {
		return false
	}
	if len(f.RegistrationNos) > 0 {
		found := false
		for _, id := range f.RegistrationNos {
			if id == p.RegistrationNo {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *mockParticipantRepo) List(_ context.Context, filter repository.ParticipantFilter) ([]model.Participant, error) {
	var result []model.Participant
	for _, p := range m.participants {
		if matchParticipant(p, filter) {
			result = append(result, m.withDept(*p))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RegistrationNo < result[j].RegistrationNo })
	return result, nil
}

func (m *mockParticipantRepo) ListPage(ctx context.Context, filter repository.ParticipantFilter, offset, limit int) ([]model.Participant, int64, error) {
	all, _ := m.List(ctx, filter)
	total := int64(len(all))
	if offset >= len(all) {
		return []model.Participant{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockParticipantRepo) Update(_ context.Context, p *model.Participant) error {
	old, ok := m.participants[p.RegistrationNo]
	if !ok || old.Version != p.Version {
		return pkgerrors.ErrOptimisticLock
	}
	cp := *p
	cp.Version++
	cp.Department = nil
	m.participants[p.RegistrationNo] = &cp
	p.Version = cp.Version
	return nil
}

// applyParticipantFields 只处理业务代码实际写入的列
func applyParticipantFields(p *model.Participant, fields map[string]interface{}) {
	for k, v := range fields {
		switch k {
		case "status":
			p.Status = v.(string)
		case "approval_status":
			p.ApprovalStatus = v.(string)
		case "mentoring_preference":
			p.MentoringPreference = v.(string)
		case "leaderboard_points":
			p.LeaderboardPoints = v.(int)
		case "badges_earned":
			p.BadgesEarned = v.(int)
		case "is_super_mentor":
			p.IsSuperMentor = v.(bool)
		case "tech_stack":
			p.TechStack = v.(string)
		case "areas_of_interest":
			p.AreasOfInterest = v.(string)
		case "published_research_papers":
			p.PublishedResearchPapers = v.(string)
		case "hackathon_participation":
			p.HackathonParticipation = v.(string)
		case "coding_competitions":
			p.CodingCompetitions = v.(string)
		case "internship_experience":
			p.InternshipExperience = v.(string)
		case "number_of_wins":
			p.NumberOfWins = v.(int)
		case "registered_at":
			p.RegisteredAt = v.(time.Time)
		case "proof_documents":
			p.ProofDocuments = nil
		}
	}
}

func (m *mockParticipantRepo) UpdateFields(_ context.Context, regNo string, fields map[string]interface{}) error {
	p, ok := m.participants[regNo]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	applyParticipantFields(p, fields)
	return nil
}

func (m *mockParticipantRepo) BulkUpdate(_ context.Context, filter repository.ParticipantFilter, fields map[string]interface{}) (int64, error) {
	var n int64
	for _, p := range m.participants {
		if matchParticipant(p, filter) {
			applyParticipantFields(p, fields)
			n++
		}
	}
	return n, nil
}

func (m *mockParticipantRepo) AdjustBadgesEarned(_ context.Context, regNo string, delta int) (int, error) {
	p, ok := m.participants[regNo]
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}
	p.BadgesEarned += delta
	if p.BadgesEarned < 0 {
		p.BadgesEarned = 0
	}
	return p.BadgesEarned, nil
}

func (m *mockParticipantRepo) Delete(_ context.Context, regNo string) error {
	if _, ok := m.participants[regNo]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.participants, regNo)
	return nil
}

// ── Mock RelationshipRepository ──

type mockRelationshipRepo struct {
	rels         []*model.Relationship
	participants *mockParticipantRepo
	seq          int
	// failOnCreate 第 N 次 Create 返回错误（0 表示不注入）
	failOnCreate int
	creates      int
	// beforeCreate 在冲突检查之前调用，模拟并发写入
	beforeCreate func(rel *model.Relationship)
}

func newMockRelationshipRepo(participants *mockParticipantRepo) *mockRelationshipRepo {
	return &mockRelationshipRepo{participants: participants}
}

func (m *mockRelationshipRepo) preload(rel model.Relationship) model.Relationship {
	if p, ok := m.participants.participants[rel.MentorID]; ok {
		cp := m.participants.withDept(*p)
		rel.Mentor = &cp
	}
	if p, ok := m.participants.participants[rel.MenteeID]; ok {
		cp := m.participants.withDept(*p)
		rel.Mentee = &cp
	}
	return rel
}

func (m *mockRelationshipRepo) Create(_ context.Context, rel *model.Relationship) error {
	m.creates++
	if m.failOnCreate > 0 && m.creates == m.failOnCreate {
		return fmt.Errorf("模拟写入失败")
	}
	if m.beforeCreate != nil {
		m.beforeCreate(rel)
	}
	for _, r := range m.rels {
		if r.MenteeID == rel.MenteeID {
			return pkgerrors.ErrConflict
		}
	}
	m.seq++
	rel.RelationshipID = fmt.Sprintf("rel-%03d", m.seq)
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now()
	}
	cp := *rel
	cp.Mentor, cp.Mentee = nil, nil
	m.rels = append(m.rels, &cp)
	return nil
}

func (m *mockRelationshipRepo) GetByID(_ context.Context, id string) (*model.Relationship, error) {
	for _, r := range m.rels {
		if r.RelationshipID == id {
			cp := m.preload(*r)
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRelationshipRepo) inDept(regNo, deptID string) bool {
	p, ok := m.participants.participants[regNo]
	return ok && p.DepartmentID != nil && *p.DepartmentID == deptID
}

func (m *mockRelationshipRepo) List(_ context.Context, filter repository.RelationshipFilter) ([]model.Relationship, error) {
	var result []model.Relationship
	for _, r := range m.rels {
		if filter.MentorID != "" && r.MentorID != filter.MentorID {
			continue
		}
		if filter.MenteeID != "" && r.MenteeID != filter.MenteeID {
			continue
		}
		if filter.DepartmentID != "" && !m.inDept(r.MentorID, filter.DepartmentID) && !m.inDept(r.MenteeID, filter.DepartmentID) {
			continue
		}
		result = append(result, m.preload(*r))
	}
	return result, nil
}

func (m *mockRelationshipRepo) CountByMentors(_ context.Context, mentorIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(mentorIDs))
	want := make(map[string]bool, len(mentorIDs))
	for _, id := range mentorIDs {
		want[id] = true
	}
	for _, r := range m.rels {
		if want[r.MentorID] {
			counts[r.MentorID]++
		}
	}
	return counts, nil
}

func (m *mockRelationshipRepo) remove(keep func(r *model.Relationship) bool) int64 {
	var kept []*model.Relationship
	var n int64
	for _, r := range m.rels {
		if keep(r) {
			kept = append(kept, r)
		} else {
			n++
		}
	}
	m.rels = kept
	return n
}

func (m *mockRelationshipRepo) Delete(_ context.Context, id string) error {
	if m.remove(func(r *model.Relationship) bool { return r.RelationshipID != id }) == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (m *mockRelationshipRepo) DeleteByMentor(_ context.Context, mentorID string) (int64, error) {
	return m.remove(func(r *model.Relationship) bool { return r.MentorID != mentorID }), nil
}

func (m *mockRelationshipRepo) DeleteByScope(_ context.Context, departmentID string) (int64, error) {
	if departmentID == "" {
		return m.remove(func(*model.Relationship) bool { return false }), nil
	}
	return m.remove(func(r *model.Relationship) bool {
		return !m.inDept(r.MenteeID, departmentID)
	}), nil
}

// ── Mock HistoryRepository ──

type mockHistoryRepo struct {
	records []model.ParticipantHistory
}

func newMockHistoryRepo() *mockHistoryRepo {
	return &mockHistoryRepo{}
}

func (m *mockHistoryRepo) Append(_ context.Context, h *model.ParticipantHistory) error {
	h.HistoryID = fmt.Sprintf("hist-%03d", len(m.records)+1)
	h.CreatedAt = time.Now()
	m.records = append(m.records, *h)
	return nil
}

func (m *mockHistoryRepo) ListByRegistrationNo(_ context.Context, regNo string) ([]model.ParticipantHistory, error) {
	var result []model.ParticipantHistory
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].RegistrationNo == regNo {
			result = append(result, m.records[i])
		}
	}
	return result, nil
}

func (m *mockHistoryRepo) LatestByRegistrationNos(_ context.Context, regNos []string) (map[string]model.ParticipantHistory, error) {
	want := make(map[string]bool, len(regNos))
	for _, id := range regNos {
		want[id] = true
	}
	latest := make(map[string]model.ParticipantHistory)
	for _, h := range m.records {
		if want[h.RegistrationNo] {
			latest[h.RegistrationNo] = h
		}
	}
	return latest, nil
}

// ── Mock BadgeRepository ──

type mockBadgeRepo struct {
	badges map[string]*model.Badge
}

func newMockBadgeRepo() *mockBadgeRepo {
	return &mockBadgeRepo{badges: make(map[string]*model.Badge)}
}

func (m *mockBadgeRepo) Create(_ context.Context, badge *model.Badge) error {
	if badge.BadgeID == "" {
		badge.BadgeID = "badge-" + badge.Code
	}
	m.badges[badge.BadgeID] = badge
	return nil
}

func (m *mockBadgeRepo) GetByID(_ context.Context, id string) (*model.Badge, error) {
	if b, ok := m.badges[id]; ok {
		return b, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockBadgeRepo) GetByCode(_ context.Context, code string) (*model.Badge, error) {
	for _, b := range m.badges {
		if b.Code == code {
			return b, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockBadgeRepo) List(_ context.Context) ([]model.Badge, error) {
	var result []model.Badge
	for _, b := range m.badges {
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].PointsRequired != result[j].PointsRequired {
			return result[i].PointsRequired < result[j].PointsRequired
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// ── Mock ParticipantBadgeRepository ──

type mockParticipantBadgeRepo struct {
	awards []*model.ParticipantBadge
	badges *mockBadgeRepo
	seq    int
}

func newMockParticipantBadgeRepo(badges *mockBadgeRepo) *mockParticipantBadgeRepo {
	return &mockParticipantBadgeRepo{badges: badges}
}

func (m *mockParticipantBadgeRepo) preload(pb model.ParticipantBadge) model.ParticipantBadge {
	if b, ok := m.badges.badges[pb.BadgeID]; ok {
		pb.Badge = b
	}
	return pb
}

func (m *mockParticipantBadgeRepo) Create(_ context.Context, pb *model.ParticipantBadge) error {
	for _, a := range m.awards {
		if a.ParticipantID == pb.ParticipantID && a.BadgeID == pb.BadgeID {
			return pkgerrors.ErrConflict
		}
	}
	m.seq++
	pb.ID = fmt.Sprintf("award-%03d", m.seq)
	cp := *pb
	cp.Badge = nil
	m.awards = append(m.awards, &cp)
	return nil
}

func (m *mockParticipantBadgeRepo) GetByID(_ context.Context, id string) (*model.ParticipantBadge, error) {
	for _, a := range m.awards {
		if a.ID == id {
			cp := m.preload(*a)
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockParticipantBadgeRepo) ListByParticipant(_ context.Context, participantID string) ([]model.ParticipantBadge, error) {
	var result []model.ParticipantBadge
	for _, a := range m.awards {
		if a.ParticipantID == participantID {
			result = append(result, m.preload(*a))
		}
	}
	return result, nil
}

func (m *mockParticipantBadgeRepo) Update(_ context.Context, pb *model.ParticipantBadge) error {
	for _, a := range m.awards {
		if a.ID == pb.ID {
			a.IsClaimed = pb.IsClaimed
			a.ClaimedDate = pb.ClaimedDate
			a.LinkedinShared = pb.LinkedinShared
			return nil
		}
	}
	return nil
}

func (m *mockParticipantBadgeRepo) Delete(_ context.Context, id string) error {
	for i, a := range m.awards {
		if a.ID == id {
			m.awards = append(m.awards[:i], m.awards[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockParticipantBadgeRepo) DeleteByParticipants(_ context.Context, participantIDs []string) (int64, error) {
	want := make(map[string]bool, len(participantIDs))
	for _, id := range participantIDs {
		want[id] = true
	}
	var kept []*model.ParticipantBadge
	var n int64
	for _, a := range m.awards {
		if want[a.ParticipantID] {
			n++
			continue
		}
		kept = append(kept, a)
	}
	m.awards = kept
	return n, nil
}

// ── Mock SessionRepository ──

type mockSessionRepo struct {
	sessions []*model.Session
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{}
}

func (m *mockSessionRepo) Create(_ context.Context, s *model.Session) error {
	s.SessionID = fmt.Sprintf("sess-%03d", len(m.sessions)+1)
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	for i := range s.Attendees {
		s.Attendees[i].SessionID = s.SessionID
	}
	cp := *s
	m.sessions = append(m.sessions, &cp)
	return nil
}

func (m *mockSessionRepo) GetByID(_ context.Context, id string) (*model.Session, error) {
	for _, s := range m.sessions {
		if s.SessionID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func attends(s *model.Session, regNo string) bool {
	for _, a := range s.Attendees {
		if a.ParticipantID == regNo {
			return true
		}
	}
	return false
}

func (m *mockSessionRepo) ListByParticipant(_ context.Context, regNo string) ([]model.Session, error) {
	var result []model.Session
	for _, s := range m.sessions {
		if s.MentorID == regNo || attends(s, regNo) {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *mockSessionRepo) Delete(_ context.Context, id string) error {
	for i, s := range m.sessions {
		if s.SessionID == id {
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockSessionRepo) CountConducted(_ context.Context, mentorID string, since time.Time) (int64, error) {
	var n int64
	for _, s := range m.sessions {
		if s.MentorID == mentorID && !s.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *mockSessionRepo) CountAttended(_ context.Context, participantID string, since time.Time) (int64, error) {
	var n int64
	for _, s := range m.sessions {
		if attends(s, participantID) && !s.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// ── Mock QuizRepository ──

type mockQuizRepo struct {
	quizzes []*model.QuizResult
}

func newMockQuizRepo() *mockQuizRepo {
	return &mockQuizRepo{}
}

func (m *mockQuizRepo) Create(_ context.Context, q *model.QuizResult) error {
	q.QuizID = fmt.Sprintf("quiz-%03d", len(m.quizzes)+1)
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	cp := *q
	m.quizzes = append(m.quizzes, &cp)
	return nil
}

func (m *mockQuizRepo) GetByID(_ context.Context, id string) (*model.QuizResult, error) {
	for _, q := range m.quizzes {
		if q.QuizID == id {
			cp := *q
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockQuizRepo) Update(_ context.Context, q *model.QuizResult) error {
	for i, old := range m.quizzes {
		if old.QuizID == q.QuizID {
			cp := *q
			m.quizzes[i] = &cp
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockQuizRepo) ListByParticipant(_ context.Context, regNo string) ([]model.QuizResult, error) {
	var result []model.QuizResult
	for _, q := range m.quizzes {
		if q.ParticipantID == regNo || (q.MentorID != nil && *q.MentorID == regNo) {
			result = append(result, *q)
		}
	}
	return result, nil
}

func (m *mockQuizRepo) CountAssignedBy(_ context.Context, mentorID string, since time.Time) (int64, error) {
	var n int64
	for _, q := range m.quizzes {
		if q.MentorID != nil && *q.MentorID == mentorID && !q.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *mockQuizRepo) SumCompletedScoreAssignedBy(_ context.Context, mentorID string, since time.Time) (int64, error) {
	var sum int64
	for _, q := range m.quizzes {
		if q.MentorID != nil && *q.MentorID == mentorID && q.Status == model.QuizCompleted && !q.CreatedAt.Before(since) {
			sum += int64(q.Score)
		}
	}
	return sum, nil
}

func (m *mockQuizRepo) SumCompletedScore(_ context.Context, participantIDs []string, since time.Time) (int64, error) {
	want := make(map[string]bool, len(participantIDs))
	for _, id := range participantIDs {
		want[id] = true
	}
	var sum int64
	for _, q := range m.quizzes {
		if want[q.ParticipantID] && q.Status == model.QuizCompleted && !q.CreatedAt.Before(since) {
			sum += int64(q.Score)
		}
	}
	return sum, nil
}

func (m *mockQuizRepo) Stats(_ context.Context, participantID string, since time.Time) (*repository.QuizStats, error) {
	stats := &repository.QuizStats{}
	var pctSum float64
	var completed int
	for _, q := range m.quizzes {
		if q.ParticipantID != participantID || q.CreatedAt.Before(since) {
			continue
		}
		stats.Count++
		if q.Status == model.QuizCompleted {
			completed++
			pctSum += q.Percentage
			stats.CompletedScoreSum += int64(q.Score)
		}
	}
	if completed > 0 {
		stats.AvgPercentage = pctSum / float64(completed)
	}
	return stats, nil
}

// ── Mock FeedbackRepository ──

type mockFeedbackRepo struct {
	feedbacks []*model.Feedback
}

func newMockFeedbackRepo() *mockFeedbackRepo {
	return &mockFeedbackRepo{}
}

func (m *mockFeedbackRepo) Create(_ context.Context, f *model.Feedback) error {
	f.FeedbackID = fmt.Sprintf("fb-%03d", len(m.feedbacks)+1)
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	cp := *f
	m.feedbacks = append(m.feedbacks, &cp)
	return nil
}

func (m *mockFeedbackRepo) AverageRating(_ context.Context, toID, ratedRole string, since time.Time) (*float64, error) {
	var sum, n int
	for _, f := range m.feedbacks {
		if f.ToID == toID && f.RatedRole == ratedRole && !f.CreatedAt.Before(since) {
			sum += f.Rating
			n++
		}
	}
	if n == 0 {
		return nil, nil
	}
	avg := float64(sum) / float64(n)
	return &avg, nil
}

func (m *mockFeedbackRepo) ListByTarget(_ context.Context, toID string) ([]model.Feedback, error) {
	var result []model.Feedback
	for _, f := range m.feedbacks {
		if f.ToID == toID {
			result = append(result, *f)
		}
	}
	return result, nil
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	items []*model.Notification
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{}
}

func (m *mockNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	n.NotificationID = fmt.Sprintf("ntf-%03d", len(m.items)+1)
	n.CreatedAt = time.Now()
	cp := *n
	m.items = append(m.items, &cp)
	return nil
}

func (m *mockNotificationRepo) ListByRecipient(_ context.Context, recipientID string, unreadOnly bool) ([]model.Notification, error) {
	var result []model.Notification
	for _, n := range m.items {
		if n.RecipientID != recipientID || (unreadOnly && n.IsRead) {
			continue
		}
		result = append(result, *n)
	}
	return result, nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, recipientID, id string) error {
	for _, n := range m.items {
		if n.NotificationID == id && n.RecipientID == recipientID {
			n.IsRead = true
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ════════════════════════════════════════════════════════════
// 测试环境
// ════════════════════════════════════════════════════════════

// testEnv 组装全部 mock 仓储；Repository.db 为 nil，事务直接在当前聚合上执行
type testEnv struct {
	repo          *repository.Repository
	depts         *mockDeptRepo
	participants  *mockParticipantRepo
	relationships *mockRelationshipRepo
	history       *mockHistoryRepo
	badges        *mockBadgeRepo
	awards        *mockParticipantBadgeRepo
	sessions      *mockSessionRepo
	quizzes       *mockQuizRepo
	feedbacks     *mockFeedbackRepo
	notifications *mockNotificationRepo
}

func newTestEnv() *testEnv {
	depts := newMockDeptRepo()
	participants := newMockParticipantRepo(depts)
	badges := newMockBadgeRepo()
	env := &testEnv{
		depts:         depts,
		participants:  participants,
		relationships: newMockRelationshipRepo(participants),
		history:       newMockHistoryRepo(),
		badges:        badges,
		awards:        newMockParticipantBadgeRepo(badges),
		sessions:      newMockSessionRepo(),
		quizzes:       newMockQuizRepo(),
		feedbacks:     newMockFeedbackRepo(),
		notifications: newMockNotificationRepo(),
	}
	env.repo = &repository.Repository{
		Participant:      env.participants,
		Department:       env.depts,
		Relationship:     env.relationships,
		History:          env.history,
		Badge:            env.badges,
		ParticipantBadge: env.awards,
		Session:          env.sessions,
		Quiz:             env.quizzes,
		Feedback:         env.feedbacks,
		Notification:     env.notifications,
	}
	return env
}

// semesterStart 测试数据的学期起点
var semesterStart = time.Now().Add(-30 * 24 * time.Hour)

// addParticipant 写入一名已审批、活跃的参与者；opts 可覆盖任意字段
func (e *testEnv) addParticipant(regNo, pref, deptID string, opts ...func(p *model.Participant)) *model.Participant {
	p := &model.Participant{
		RegistrationNo:          regNo,
		Name:                    "学生" + regNo,
		Email:                   regNo + "@example.edu",
		Semester:                5,
		MentoringPreference:     pref,
		TechStack:               "Python",
		AreasOfInterest:         "AI",
		PublishedResearchPapers: "None",
		HackathonParticipation:  "None",
		CodingCompetitions:      "no",
		InternshipExperience:    "no",
		Status:                  model.ParticipantStatusActive,
		ApprovalStatus:          model.ApprovalApproved,
		RegisteredAt:            semesterStart,
	}
	if deptID != "" {
		id := deptID
		p.DepartmentID = &id
	}
	for _, opt := range opts {
		opt(p)
	}
	p.Version = 1
	e.participants.participants[regNo] = p
	return p
}

// link 直接写入一条关系
func (e *testEnv) link(mentorID, menteeID string, manual bool) {
	e.relationships.seq++
	e.relationships.rels = append(e.relationships.rels, &model.Relationship{
		RelationshipID:  fmt.Sprintf("rel-%03d", e.relationships.seq),
		MentorID:        mentorID,
		MenteeID:        menteeID,
		ManuallyCreated: manual,
		CreatedAt:       semesterStart.Add(time.Hour),
	})
}

// recordingNotifier 记录发出的通知
type recordingNotifier struct {
	sent []Message
	to   []string
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, to Recipient, msg Message) error {
	n.sent = append(n.sent, msg)
	n.to = append(n.to, to.RegistrationNo)
	return n.err
}

// failingNotifier 每次发送都失败
type failingNotifier struct {
	calls int
}

func (n *failingNotifier) Send(context.Context, Recipient, Message) error {
	n.calls++
	return errors.New("notification channel unavailable")
}
