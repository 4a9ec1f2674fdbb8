package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Makarand-Tighare/project-api-sub000/internal/model"
	"github.com/Makarand-Tighare/project-api-sub000/internal/repository"
)

// ── 通知类型 ──

const (
	NotifyMatch       = "match"
	NotifyApproval    = "approval"
	NotifyManualMatch = "manual_match"
	NotifyBadge       = "badge"
	NotifyArchive     = "archive"
)

// Recipient 通知接收人
type Recipient struct {
	RegistrationNo string
	Name           string
	Email          string
}

// Message 通知内容
type Message struct {
	Type    string
	Subject string
	Body    string
}

// Notifier 通知发送接口；调用方在事务提交后调用，失败只记录日志
type Notifier interface {
	Send(ctx context.Context, to Recipient, msg Message) error
}

func recipientOf(p *model.Participant) Recipient {
	return Recipient{RegistrationNo: p.RegistrationNo, Name: p.Name, Email: p.Email}
}

// notifyAll 逐个发送，单个失败不影响其余
func notifyAll(ctx context.Context, n Notifier, logger *zap.Logger, items []outgoing) {
	if n == nil {
		return
	}
	for _, it := range items {
		if err := n.Send(ctx, it.to, it.msg); err != nil {
			logger.Warn("发送通知失败",
				zap.String("recipient", it.to.RegistrationNo),
				zap.String("type", it.msg.Type),
				zap.Error(err))
		}
	}
}

type outgoing struct {
	to  Recipient
	msg Message
}

// ── 站内通知 ──

type inAppNotifier struct {
	repo *repository.Repository
}

// NewInAppNotifier 将通知写入 notifications 表
func NewInAppNotifier(repo *repository.Repository) Notifier {
	return &inAppNotifier{repo: repo}
}

func (n *inAppNotifier) Send(ctx context.Context, to Recipient, msg Message) error {
	return n.repo.Notification.Create(ctx, &model.Notification{
		RecipientID: to.RegistrationNo,
		Type:        msg.Type,
		Title:       msg.Subject,
		Content:     msg.Body,
	})
}

// ── 邮件通知 ──

// MailSender 邮件发送能力（pkg/mail.Sender 实现）
type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type mailNotifier struct {
	sender  MailSender
	timeout time.Duration
}

// NewMailNotifier 通过 SMTP 发送邮件通知
func NewMailNotifier(sender MailSender) Notifier {
	return &mailNotifier{sender: sender, timeout: 10 * time.Second}
}

func (n *mailNotifier) Send(ctx context.Context, to Recipient, msg Message) error {
	if to.Email == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	return n.sender.Send(ctx, to.Email, msg.Subject, msg.Body)
}

// ── 组合 ──

type multiNotifier []Notifier

// NewMultiNotifier 依次调用多个通知渠道，汇总错误
func NewMultiNotifier(ns ...Notifier) Notifier {
	return multiNotifier(ns)
}

func (m multiNotifier) Send(ctx context.Context, to Recipient, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, to, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
