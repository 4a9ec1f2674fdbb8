package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ── HTTP ──
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mentor_http_requests_total", Help: "HTTP requests by route and status"},
		[]string{"method", "route", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "mentor_http_request_duration_seconds", Help: "HTTP request latency", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)

	// ── 匹配 ──
	MatchRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mentor_match_runs_total", Help: "Matching runs by outcome"},
		[]string{"outcome"},
	)
	MatchesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mentor_matches_created_total", Help: "Relationships created, by source"},
		[]string{"source"}, // algorithm | spillover | manual
	)
	MatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "mentor_match_duration_seconds", Help: "Matching run latency", Buckets: prometheus.DefBuckets},
	)

	// ── 排行榜 / 徽章 ──
	LeaderboardSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mentor_leaderboard_syncs_total", Help: "Leaderboard recomputations by trigger"},
		[]string{"trigger"}, // api | scheduler
	)
	BadgesAwarded = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "mentor_badges_awarded_total", Help: "Badges awarded"},
	)

	// ── 归档 ──
	ParticipantsArchived = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "mentor_participants_archived_total", Help: "Participant history rows written"},
	)

	// ── 范围锁 ──
	ScopeLockBusy = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mentor_scope_lock_busy_total", Help: "Rejected operations because the scope was locked"},
		[]string{"operation"},
	)
)

// Register 注册全部指标到默认注册表（进程启动时调用一次）
func Register() {
	prometheus.MustRegister(
		HTTPRequests, HTTPDuration,
		MatchRuns, MatchesCreated, MatchDuration,
		LeaderboardSyncs, BadgesAwarded,
		ParticipantsArchived,
		ScopeLockBusy,
	)
}

// ObserveSince 记录自 start 起的耗时
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
