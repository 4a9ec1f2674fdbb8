package handler

import "github.com/Makarand-Tighare/project-api-sub000/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Participant  *ParticipantHandler
	Matching     *MatchingHandler
	Leaderboard  *LeaderboardHandler
	Archive      *ArchiveHandler
	Activity     *ActivityHandler
	Notification *NotificationHandler
	Department   *DepartmentHandler
	Export       *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	// 参与者服务同时承担院系归属查询（越权校验）
	resolver := svc.Participant
	return &Handler{
		Participant:  NewParticipantHandler(svc.Participant),
		Matching:     NewMatchingHandler(svc.Matching, svc.Relationship, resolver),
		Leaderboard:  NewLeaderboardHandler(svc.Leaderboard, svc.Badge, resolver),
		Archive:      NewArchiveHandler(svc.Archive, resolver),
		Activity:     NewActivityHandler(svc.Activity, resolver),
		Notification: NewNotificationHandler(svc.Notification),
		Department:   NewDepartmentHandler(svc.Department),
		Export:       NewExportHandler(svc.Export),
	}
}
