package mail

import (
	"context"
	"fmt"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/Makarand-Tighare/project-api-sub000/config"
)

// Sender SMTP 邮件发送器（匹配、徽章、归档通知）
type Sender struct {
	client *gomail.Client
	from   string
}

// NewSender 根据配置创建发送器；连接在每次发送时建立
func NewSender(cfg *config.MailConfig) (*Sender, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	client, err := gomail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("创建 SMTP 客户端失败: %w", err)
	}
	return &Sender{client: client, from: cfg.From}, nil
}

func tlsPolicy(name string) gomail.TLSPolicy {
	switch strings.ToLower(name) {
	case "mandatory":
		return gomail.TLSMandatory
	case "none":
		return gomail.NoTLS
	default:
		return gomail.TLSOpportunistic
	}
}

// Send 发送纯文本邮件
func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	msg, err := newMessage(s.from, to, subject, body)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	return nil
}

func newMessage(from, to, subject, body string) (*gomail.Msg, error) {
	if to == "" {
		return nil, fmt.Errorf("收件人为空")
	}
	msg := gomail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("发件人地址无效: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("收件人地址无效: %w", err)
	}
	msg.Subject(subject)
	msg.SetDateWithValue(time.Now())
	msg.SetMessageID()
	msg.SetBodyString(gomail.TypeTextPlain, body)
	return msg, nil
}
