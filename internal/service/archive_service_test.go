package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Makarand-Tighare/project-api-sub000/internal/model"
)

func newTestArchiveService(env *testEnv, cache LeaderboardCache, notifier Notifier) ArchiveService {
	return NewArchiveService(env.repo, NewLocalScopeLocker(), cache, notifier, zap.NewNop())
}

func TestArchiveService_Archive_RoundTrip(t *testing.T) {
	env := newTestEnv()
	seedActivity(env)
	ctx := context.Background()

	b := env.addBadge("Helper", 0)
	env.award("M001", b.BadgeID, true)
	env.participants.participants["M001"].LeaderboardPoints = 121
	_ = env.feedbacks.Create(ctx, &model.Feedback{FromID: "S001", ToID: "M001", RatedRole: model.RatedRoleMentor, Rating: 4})
	env.addParticipant("D001", model.PreferenceMentee, "", func(p *model.Participant) {
		p.Status = model.ParticipantStatusDeactivated
	})

	cache := newMemoryCache()
	notifier := &recordingNotifier{}
	svc := newTestArchiveService(env, cache, notifier)

	before := time.Now()
	result, err := svc.Archive(ctx, Scope{}, "admin")
	require.NoError(t, err)

	assert.Equal(t, 1, result.RelationshipsArchived)
	assert.Equal(t, 2, result.ParticipantsArchived, "停用的参与者不归档")
	assert.EqualValues(t, 2, result.ParticipantsReset)
	require.Len(t, result.RelationshipsEnded, 1)
	assert.Equal(t, "M001", result.RelationshipsEnded[0].MentorID)

	// 关系与徽章授予清空
	assert.Empty(t, env.relationships.rels)
	assert.Empty(t, env.awards.awards)

	// 历史快照
	history, err := svc.History(ctx, "M001")
	require.NoError(t, err)
	require.Len(t, history, 1)
	h := history[0]
	assert.True(t, h.WasMentor)
	assert.False(t, h.WasMentee)
	assert.Equal(t, 1, h.SessionsConducted, "上学期会话不计入")
	assert.Equal(t, 121, h.TotalLeaderboardPoints)
	assert.Equal(t, 2, h.TotalBadgesEarned)
	assert.Equal(t, []string{"Helper"}, h.ClaimedBadges)
	require.NotNil(t, h.MentorRating)
	assert.Equal(t, 4.0, *h.MentorRating)

	menteeHistory, err := svc.History(ctx, "S001")
	require.NoError(t, err)
	require.Len(t, menteeHistory, 1)
	assert.True(t, menteeHistory[0].WasMentee)
	assert.Equal(t, 1, menteeHistory[0].QuizCount)
	assert.Equal(t, 80.0, menteeHistory[0].AvgQuizPercentage)

	// 资料重置，新学期从零计分
	p := env.participants.participants["M001"]
	assert.Equal(t, model.ApprovalPending, p.ApprovalStatus)
	assert.Empty(t, p.MentoringPreference)
	assert.Empty(t, p.TechStack)
	assert.Zero(t, p.BadgesEarned)
	assert.Zero(t, p.LeaderboardPoints)
	assert.False(t, p.IsSuperMentor)
	assert.False(t, p.RegisteredAt.Before(before))

	entry, err := computeEntry(ctx, env.repo, p)
	require.NoError(t, err)
	assert.Zero(t, entry.TotalScore, "归档后不再计入上学期活动")

	assert.Equal(t, model.ApprovalApproved, env.participants.participants["D001"].ApprovalStatus)
	assert.Contains(t, cache.invalidated, "global")
	assert.Len(t, notifier.sent, 2)

	// 重新填写资料并审批后可以再次匹配
	for _, id := range []string{"M001", "S001"} {
		env.participants.participants[id].ApprovalStatus = model.ApprovalApproved
		env.participants.participants[id].TechStack = "Go"
		env.participants.participants[id].AreasOfInterest = "Cloud"
	}
	env.participants.participants["M001"].MentoringPreference = model.PreferenceMentor
	env.participants.participants["S001"].MentoringPreference = model.PreferenceMentee

	match, err := newTestMatchingService(env, 4, nil, nil).Run(ctx, Scope{}, "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, match.Statistics.NewMatches)
}

func TestArchiveService_Archive_DepartmentScope(t *testing.T) {
	env := newTestEnv()
	env.addParticipant("C001", model.PreferenceMentor, "dept-cse")
	env.addParticipant("C002", model.PreferenceMentee, "dept-cse")
	env.addParticipant("I001", model.PreferenceMentor, "dept-it")
	env.addParticipant("I002", model.PreferenceMentee, "dept-it")
	env.link("C001", "C002", false)
	env.link("I001", "I002", false)

	cache := newMemoryCache()
	svc := newTestArchiveService(env, cache, nil)

	result, err := svc.Archive(context.Background(), Scope{DepartmentID: "dept-cse"}, "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, result.RelationshipsArchived)
	assert.Equal(t, 2, result.ParticipantsArchived)

	require.Len(t, env.relationships.rels, 1)
	assert.Equal(t, "I001", env.relationships.rels[0].MentorID)
	assert.Equal(t, model.ApprovalApproved, env.participants.participants["I001"].ApprovalStatus)
	assert.Equal(t, "Python", env.participants.participants["I002"].TechStack)
	assert.Equal(t, model.ApprovalPending, env.participants.participants["C001"].ApprovalStatus)

	assert.Len(t, env.history.records, 2)
	assert.ElementsMatch(t, []string{"dept:dept-cse", "global"}, cache.invalidated)
}

func TestArchiveService_Archive_Errors(t *testing.T) {
	env := newTestEnv()
	svc := newTestArchiveService(env, nil, nil)

	_, err := svc.Archive(context.Background(), Scope{DepartmentID: "dept-none"}, "admin")
	assert.ErrorIs(t, err, ErrDepartmentNotFound)

	locker := NewLocalScopeLocker()
	unlock, err := locker.TryLock(context.Background(), Scope{DepartmentID: "dept-it"})
	require.NoError(t, err)
	defer unlock()

	busy := NewArchiveService(env.repo, locker, nil, nil, zap.NewNop())
	_, err = busy.Archive(context.Background(), Scope{}, "admin")
	assert.True(t, errors.Is(err, ErrScopeBusy), "院系锁占用时全局归档应失败")
}

func TestArchiveService_History_SurvivesParticipantDelete(t *testing.T) {
	env := newTestEnv()
	env.addParticipant("R001", model.PreferenceMentee, "")
	svc := newTestArchiveService(env, nil, nil)
	ctx := context.Background()

	list, err := svc.History(ctx, "R001")
	require.NoError(t, err)
	assert.Empty(t, list, "无归档记录时返回空列表")

	_, err = svc.Archive(ctx, Scope{}, "admin")
	require.NoError(t, err)
	require.NoError(t, env.participants.Delete(ctx, "R001"))

	list, err = svc.History(ctx, "R001")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "学生R001", list[0].Name)

	_, err = svc.History(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrParticipantNotFound)
}

func TestArchiveService_Archive_NotifierFailureKeepsArchive(t *testing.T) {
	env := newTestEnv()
	seedActivity(env)
	ctx := context.Background()

	notifier := &failingNotifier{}
	svc := newTestArchiveService(env, nil, notifier)

	result, err := svc.Archive(ctx, Scope{}, "admin")
	require.NoError(t, err, "通知失败不应影响归档")
	assert.Equal(t, 2, result.ParticipantsArchived)
	assert.Equal(t, 2, notifier.calls)

	assert.Empty(t, env.relationships.rels)
	assert.Len(t, env.history.records, 2)
	assert.Equal(t, model.ApprovalPending, env.participants.participants["M001"].ApprovalStatus)
}

func TestArchiveService_Archive_GlobalInvalidatesDepartments(t *testing.T) {
	env := newTestEnv()
	env.addParticipant("C001", model.PreferenceMentor, "dept-cse")
	env.addParticipant("I001", model.PreferenceMentee, "dept-it")
	env.addParticipant("N001", model.PreferenceMentee, "")

	cache := newMemoryCache()
	svc := newTestArchiveService(env, cache, nil)

	_, err := svc.Archive(context.Background(), Scope{}, "admin")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"global", "dept:dept-cse", "dept:dept-it"}, cache.invalidated)
}

func TestArchiveService_Archive_CrossDepartmentFollowsMentee(t *testing.T) {
	env := newTestEnv()
	env.addParticipant("C001", model.PreferenceMentor, "dept-cse")
	env.addParticipant("C002", model.PreferenceMentee, "dept-cse")
	env.addParticipant("I001", model.PreferenceMentor, "dept-it")
	env.addParticipant("I002", model.PreferenceMentee, "dept-it")
	env.link("C001", "I002", true)
	env.link("I001", "C002", true)

	svc := newTestArchiveService(env, nil, nil)
	ctx := context.Background()

	result, err := svc.Archive(ctx, Scope{DepartmentID: "dept-cse"}, "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, result.RelationshipsArchived)
	require.Len(t, result.RelationshipsEnded, 1)
	assert.Equal(t, "C002", result.RelationshipsEnded[0].MenteeID)

	require.Len(t, env.relationships.rels, 1, "外院系学员的关系保留")
	assert.Equal(t, "I002", env.relationships.rels[0].MenteeID)

	history, err := svc.History(ctx, "C001")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].WasMentor, "带外院系学员的导师仍记为导师")
}
