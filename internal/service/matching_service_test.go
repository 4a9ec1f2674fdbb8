package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/Makarand-Tighare/project-api-sub000/config"
	"github.com/Makarand-Tighare/project-api-sub000/internal/model"
)

// ── 测试辅助 ──

func newTestMatchingService(env *testEnv, capacity int, notifier Notifier, locker ScopeLocker) MatchingService {
	if locker == nil {
		locker = NewLocalScopeLocker()
	}
	cfg := config.MatchingConfig{MaxMenteesPerMentor: capacity, SuperMentorThreshold: 5}
	return NewMatchingService(env.repo, cfg, locker, notifier, zap.NewNop())
}

func menteeCount(env *testEnv) map[string]int {
	seen := make(map[string]int)
	for _, r := range env.relationships.rels {
		seen[r.MenteeID]++
	}
	return seen
}

func mentorLoad(env *testEnv) map[string]int {
	load := make(map[string]int)
	for _, r := range env.relationships.rels {
		load[r.MentorID]++
	}
	return load
}

// ── 容量 ──

func TestMatchingService_Run_ExistingLoadCountsTowardCapacity(t *testing.T) {
	env := newTestEnv()
	env.addParticipant("M001", model.PreferenceMentor, "dept-cse")
	env.addParticipant("M002", model.PreferenceMentor, "dept-cse", func(p *model.Participant) { p.TechStack = "Java" })
	env.addParticipant("X001", model.PreferenceMentee, "dept-cse")
	env.link("M001", "X001", false)

	env.addParticipant("S001", model.PreferenceMentee, "dept-cse")
	env.addParticipant("S002", model.PreferenceMentee, "dept-cse")

	svc := newTestMatchingService(env, 1, nil, nil)
	result, err := svc.Run(context.Background(), Scope{}, "admin")
	if err != nil {
		t.Fatalf("Run 应成功: %v", err)
	}

	load := mentorLoad(env)
	if load["M001"] != 1 {
		t.Errorf("M001 已满，不应再分配，实际负载=%d", load["M001"])
	}
	if load["M002"] != 1 {
		t.Errorf("期望 M002 分到 1 名学员，实际=%d", load["M002"])
	}
	if result.Statistics.NewMatches != 1 {
		t.Errorf("期望新增 1 对，实际=%d", result.Statistics.NewMatches)
	}
	if result.Statistics.UnmatchedMentees != 1 {
		t.Errorf("期望 1 名学员未匹配，实际=%d", result.Statistics.UnmatchedMentees)
	}
	if result.Statistics.TotalRelationships != 2 {
		t.Errorf("期望关系总数=2，实际=%d", result.Statistics.TotalRelationships)
	}
}

func TestMatchingService_Run_UniqueMenteeAndCapacity(t *testing.T) {
	env := newTestEnv()
	env.addParticipant("M001", model.PreferenceMentor, "")
	for _, id := range []string{"S001", "S002", "S003", "S004", "S005", "S006"} {
		env.addParticipant(id, model.PreferenceMentee, "")
	}

	svc := newTestMatchingService(env, 4, nil, nil)
	result, err := svc.Run(context.Background(), Scope{}, "admin")
	if err != nil {
		t.Fatalf("Run 应成功: %v", err)
	}

	if got := mentorLoad(env)["M001"]; got != 4 {
		t.Errorf("期望导师负载=4，实际=%d", got)
	}
	for mentee, n := range menteeCount(env) {
		if n > 1 {
			t.Errorf("学员 %s 出现在 %d 条关系中", mentee, n)
		}
	}
	if len(result.UnmatchedMentees) != 2 {
		t.Errorf("期望 2 名学员未匹配，实际=%d", len(result.UnmatchedMentees))
	}

	// 再次运行：已匹配者被排除，容量已满，不产生新关系
	result, err = svc.Run(context.Background(), Scope{}, "admin")
	if err != nil {
		t.Fatalf("第二次 Run 应成功: %v", err)
	}
	if result.Statistics.NewMatches != 0 {
		t.Errorf("期望第二次运行无新增，实际=%d", result.Statistics.NewMatches)
	}
	if len(env.relationships.rels) != 4 {
		t.Errorf("期望关系数保持 4，实际=%d", len(env.relationships.rels))
	}
}

// ── 待审批 / 无参与者 ──

func TestMatchingService_Run_PendingApprovalsAbort(t *testing.T) {
	env := newTestEnv()
	env.addParticipant("M001", model.PreferenceMentor, "")
	env.addParticipant("S001", model.PreferenceMentee, "")
	env.addParticipant("P001", model.PreferenceMentee, "", func(p *model.Participant) {
		p.ApprovalStatus = model.ApprovalPending
	})
	// 未填写资料的待审批者不阻塞
	env.addParticipant("P002", model.PreferenceMentee, "", func(p *model.Participant) {
		p.ApprovalStatus = model.ApprovalPending
		p.TechStack = ""
	})

	svc := newTestMatchingService(env, 4, nil, nil)
	_, err := svc.Run(context.Background(), Scope{}, "admin")
	if !errors.Is(err, ErrPendingApprovals) {
		t.Fatalf("期望 ErrPendingApprovals，实际: %v", err)
	}
	var pending *PendingApprovalError
	if !errors.As(err, &pending) {
		t.Fatal("期望 *PendingApprovalError")
	}
	if pending.Count != 1 || pending.RegistrationNos[0] != "P001" {
		t.Errorf("期望阻塞者仅 P001，实际=%v", pending.RegistrationNos)
	}
	if len(env.relationships.rels) != 0 {
		t.Error("中止时不应写入任何关系")
	}
}

func TestMatchingService_Run_NoEligibleParticipants(t *testing.T) {
	env := newTestEnv()
	env.addParticipant("S001", model.PreferenceMentee, "")
	env.addParticipant("M001", model.PreferenceMentor, "", func(p *model.Participant) {
		p.Status = model.ParticipantStatusDeactivated
	})

	svc := newTestMatchingService(env, 4, nil, nil)
	_, err := svc.Run(context.Background(), Scope{}, "admin")
	if !errors.Is(err, ErrNoEligibleParticipants) {
		t.Errorf("期望 ErrNoEligibleParticipants，实际: %v", err)
	}
}

func TestMatchingService_Run_UnknownDepartment(t *testing.T) {
	env := newTestEnv()
	svc := newTestMatchingService(env, 4, nil, nil)
	_, err := svc.Run(context.Background(), Scope{DepartmentID: "dept-none"}, "admin")
	if !errors.Is(err, ErrDepartmentNotFound) {
		t.Errorf("期望 ErrDepartmentNotFound，实际: %v", err)
	}
}

// ── 选择规则 ──

func TestGreedyAssign_DisqualifiedMentorNeverChosen(t *testing.T) {
	strong := &model.Participant{
		RegistrationNo: "M001", ApprovalStatus: model.ApprovalRejected, Status: model.ParticipantStatusActive,
		TechStack: "Python, Go, Rust", AreasOfInterest: "AI, ML", InterestPreference1: "AI",
	}
	weak := &model.Participant{
		RegistrationNo: "M002", ApprovalStatus: model.ApprovalApproved, Status: model.ParticipantStatusActive,
		TechStack: "Python",
	}
	mentee := &model.Participant{
		RegistrationNo: "S001", ApprovalStatus: model.ApprovalApproved, Status: model.ParticipantStatusActive,
		TechStack: "Python, Go, Rust", AreasOfInterest: "AI, ML", InterestPreference1: "AI",
	}

	mentors := toCandidates([]*model.Participant{strong, weak}, nil)
	mentees := toCandidates([]*model.Participant{mentee}, nil)
	planned, leftover := greedyAssign(mentors, mentees, map[string]int{}, 4)

	if len(leftover) != 0 || len(planned) != 1 {
		t.Fatalf("期望 1 对匹配，实际 planned=%d leftover=%d", len(planned), len(leftover))
	}
	if planned[0].mentor.p.RegistrationNo != "M002" {
		t.Errorf("未审批导师不应被选中，实际=%s", planned[0].mentor.p.RegistrationNo)
	}
}

func TestMatchingService_Run_TieBreakByRegistrationNo(t *testing.T) {
	env := newTestEnv()
	env.addParticipant("M009", model.PreferenceMentor, "")
	env.addParticipant("M003", model.PreferenceMentor, "")
	env.addParticipant("S001", model.PreferenceMentee, "")

	svc := newTestMatchingService(env, 4, nil, nil)
	result, err := svc.Run(context.Background(), Scope{}, "admin")
	if err != nil {
		t.Fatalf("Run 应成功: %v", err)
	}
	if len(result.Matches) != 1 {
		t.Fatalf("期望 1 对匹配，实际=%d", len(result.Matches))
	}
	if got := result.Matches[0].Mentor.RegistrationNo; got != "M003" {
		t.Errorf("同分时应选学号最小的导师，实际=%s", got)
	}
	if len(result.UnmatchedMentors) != 1 || result.UnmatchedMentors[0].RegistrationNo != "M009" {
		t.Errorf("期望 M009 未分配，实际=%v", result.UnmatchedMentors)
	}
}

func TestMatchingService_Run_BestOverlapWins(t *testing.T) {
	env := newTestEnv()
	env.addParticipant("M001", model.PreferenceMentor, "")
	env.addParticipant("M002", model.PreferenceMentor, "", func(p *model.Participant) {
		p.AreasOfInterest = "AI, Robotics"
		p.InterestPreference1 = "Robotics"
	})
	env.addParticipant("S001", model.PreferenceMentee, "", func(p *model.Participant) {
		p.AreasOfInterest = "Robotics"
	})

	svc := newTestMatchingService(env, 4, nil, nil)
	result, err := svc.Run(context.Background(), Scope{}, "admin")
	if err != nil {
		t.Fatalf("Run 应成功: %v", err)
	}
	if got := result.Matches[0].Mentor.RegistrationNo; got != "M002" {
		t.Errorf("期望重合度更高的 M002，实际=%s", got)
	}
	if result.Matches[0].PreferenceScore != 10 {
		t.Errorf("期望偏好得分=10，实际=%d", result.Matches[0].PreferenceScore)
	}
}

// ── 溢出分配 ──

func TestMatchingService_Run_SpilloverToExistingMentor(t *testing.T) {
	env := newTestEnv()
	env.addParticipant("M001", model.PreferenceMentor, "")
	env.addParticipant("X001", model.PreferenceMentee, "")
	env.link("M001", "X001", true)

	env.addParticipant("M002", model.PreferenceMentor, "", func(p *model.Participant) {
		p.TechStack = "Java"
		p.AreasOfInterest = "Web"
	})
	env.addParticipant("S001", model.PreferenceMentee, "", func(p *model.Participant) {
		p.TechStack = "Haskell"
		p.AreasOfInterest = "Poetry"
	})

	svc := newTestMatchingService(env, 4, nil, nil)
	result, err := svc.Run(context.Background(), Scope{}, "admin")
	if err != nil {
		t.Fatalf("Run 应成功: %v", err)
	}
	if len(result.Matches) != 1 {
		t.Fatalf("期望 1 对溢出匹配，实际=%d", len(result.Matches))
	}
	m := result.Matches[0]
	if m.Source != matchSourceSpillover || m.Mentor.RegistrationNo != "M001" {
		t.Errorf("期望溢出到 M001，实际 source=%s mentor=%s", m.Source, m.Mentor.RegistrationNo)
	}
	if result.Statistics.SpilloverMatches != 1 || result.Statistics.ManualRelationships != 1 {
		t.Errorf("统计不符: %+v", result.Statistics)
	}
	if len(result.UnmatchedMentors) != 1 || result.UnmatchedMentors[0].RegistrationNo != "M002" {
		t.Errorf("期望 M002 未分配，实际=%v", result.UnmatchedMentors)
	}
}

func TestSpilloverAssign_LowestLoadFirst(t *testing.T) {
	mk := func(id string) *model.Participant {
		return &model.Participant{RegistrationNo: id, ApprovalStatus: model.ApprovalApproved, Status: model.ParticipantStatusActive}
	}
	pool := toCandidates([]*model.Participant{mk("M001"), mk("M002")}, nil)
	mentees := toCandidates([]*model.Participant{mk("S001"), mk("S002"), mk("S003")}, nil)
	load := map[string]int{"M001": 2, "M002": 1}

	planned, leftover := spilloverAssign(pool, mentees, load, 3, Scope{})
	if len(planned) != 3 || len(leftover) != 0 {
		t.Fatalf("期望全部分配，实际 planned=%d leftover=%d", len(planned), len(leftover))
	}
	got := []string{planned[0].mentor.p.RegistrationNo, planned[1].mentor.p.RegistrationNo, planned[2].mentor.p.RegistrationNo}
	want := []string{"M002", "M001", "M002"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("第 %d 次分配期望 %s，实际 %s", i+1, want[i], got[i])
		}
	}
	if load["M001"] != 3 || load["M002"] != 3 {
		t.Errorf("负载不符: %v", load)
	}
}

// ── 院系范围 ──

func TestMatchingService_Run_DepartmentScope(t *testing.T) {
	env := newTestEnv()
	env.addParticipant("M001", model.PreferenceMentor, "dept-cse")
	env.addParticipant("S001", model.PreferenceMentee, "dept-cse")
	env.addParticipant("M101", model.PreferenceMentor, "dept-it")
	env.addParticipant("S101", model.PreferenceMentee, "dept-it")
	// IT 的待审批者不影响 CSE 范围
	env.addParticipant("P101", model.PreferenceMentee, "dept-it", func(p *model.Participant) {
		p.ApprovalStatus = model.ApprovalPending
	})

	svc := newTestMatchingService(env, 4, nil, nil)
	result, err := svc.Run(context.Background(), Scope{DepartmentID: "dept-cse"}, "admin")
	if err != nil {
		t.Fatalf("Run 应成功: %v", err)
	}
	if len(result.Matches) != 1 || result.Matches[0].Mentee.RegistrationNo != "S001" {
		t.Fatalf("期望仅匹配 CSE 学员，实际=%v", result.Matches)
	}
	if menteeCount(env)["S101"] != 0 {
		t.Error("IT 学员不应被匹配")
	}
}

// ── 通知 / 锁 / 写入失败 ──

func TestMatchingService_Run_NotifiesBothSides(t *testing.T) {
	env := newTestEnv()
	env.addParticipant("M001", model.PreferenceMentor, "")
	env.addParticipant("S001", model.PreferenceMentee, "")

	notifier := &recordingNotifier{err: errors.New("smtp down")}
	svc := newTestMatchingService(env, 4, notifier, nil)
	if _, err := svc.Run(context.Background(), Scope{}, "admin"); err != nil {
		t.Fatalf("通知失败不应影响匹配结果: %v", err)
	}
	if len(notifier.sent) != 2 {
		t.Fatalf("期望 2 条通知，实际=%d", len(notifier.sent))
	}
	if notifier.to[0] != "M001" || notifier.to[1] != "S001" {
		t.Errorf("通知对象不符: %v", notifier.to)
	}
	if notifier.sent[0].Type != NotifyMatch {
		t.Errorf("期望类型 %s，实际 %s", NotifyMatch, notifier.sent[0].Type)
	}
}

func TestMatchingService_Run_ScopeBusy(t *testing.T) {
	env := newTestEnv()
	env.addParticipant("M001", model.PreferenceMentor, "dept-cse")
	env.addParticipant("S001", model.PreferenceMentee, "dept-cse")

	locker := NewLocalScopeLocker()
	unlock, err := locker.TryLock(context.Background(), Scope{})
	if err != nil {
		t.Fatalf("TryLock 应成功: %v", err)
	}
	defer unlock()

	svc := newTestMatchingService(env, 4, nil, locker)
	_, err = svc.Run(context.Background(), Scope{DepartmentID: "dept-cse"}, "admin")
	if !errors.Is(err, ErrScopeBusy) {
		t.Errorf("全局锁被占用时期望 ErrScopeBusy，实际: %v", err)
	}
}

func TestMatchingService_Run_WriteFailurePropagates(t *testing.T) {
	env := newTestEnv()
	env.addParticipant("M001", model.PreferenceMentor, "")
	env.addParticipant("S001", model.PreferenceMentee, "")
	env.addParticipant("S002", model.PreferenceMentee, "")
	env.relationships.failOnCreate = 2

	notifier := &recordingNotifier{}
	svc := newTestMatchingService(env, 4, notifier, nil)
	if _, err := svc.Run(context.Background(), Scope{}, "admin"); err == nil {
		t.Fatal("写入失败时期望返回错误")
	}
	if len(notifier.sent) != 0 {
		t.Error("写入失败时不应发送通知")
	}
}

func TestMatchingService_Run_ConflictingPairSkipped(t *testing.T) {
	env := newTestEnv()
	env.addParticipant("M001", model.PreferenceMentor, "")
	env.addParticipant("S001", model.PreferenceMentee, "")
	env.addParticipant("S002", model.PreferenceMentee, "")

	// 第一对写入时，另一名学员已被其他导师抢先匹配
	var taken string
	env.relationships.beforeCreate = func(rel *model.Relationship) {
		if taken != "" {
			return
		}
		taken = "S001"
		if rel.MenteeID == "S001" {
			taken = "S002"
		}
		env.link("M900", taken, true)
	}

	notifier := &recordingNotifier{}
	svc := newTestMatchingService(env, 4, notifier, nil)
	result, err := svc.Run(context.Background(), Scope{}, "admin")
	if err != nil {
		t.Fatalf("单对冲突不应使整次运行失败: %v", err)
	}
	if result.Statistics.SkippedConflicts != 1 {
		t.Errorf("期望跳过 1 对，实际=%d", result.Statistics.SkippedConflicts)
	}
	if result.Statistics.NewMatches != 1 || len(result.Matches) != 1 {
		t.Fatalf("期望新增 1 对，实际=%d/%d", result.Statistics.NewMatches, len(result.Matches))
	}
	if result.Matches[0].Mentee.RegistrationNo == taken {
		t.Errorf("冲突的学员 %s 不应出现在结果中", taken)
	}
	for mentee, n := range menteeCount(env) {
		if n != 1 {
			t.Errorf("学员 %s 出现在 %d 条关系中", mentee, n)
		}
	}
	if got := mentorLoad(env)["M001"]; got != 1 {
		t.Errorf("期望 M001 负载=1，实际=%d", got)
	}
	if len(notifier.sent) != 2 {
		t.Errorf("只应通知已写入的一对，实际=%d 条", len(notifier.sent))
	}
}

func TestMatchingService_Run_NotifierFailureKeepsMatches(t *testing.T) {
	env := newTestEnv()
	env.addParticipant("M001", model.PreferenceMentor, "")
	env.addParticipant("S001", model.PreferenceMentee, "")
	env.addParticipant("S002", model.PreferenceMentee, "")

	notifier := &failingNotifier{}
	svc := newTestMatchingService(env, 4, notifier, nil)
	result, err := svc.Run(context.Background(), Scope{}, "admin")
	if err != nil {
		t.Fatalf("通知失败不应影响匹配结果: %v", err)
	}
	if result.Statistics.NewMatches != 2 {
		t.Errorf("期望新增 2 对，实际=%d", result.Statistics.NewMatches)
	}
	if len(env.relationships.rels) != 2 {
		t.Errorf("关系应已持久化，实际=%d", len(env.relationships.rels))
	}
	if notifier.calls != 4 {
		t.Errorf("每一方都应尝试通知，实际=%d 次", notifier.calls)
	}
}
