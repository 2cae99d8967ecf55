package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/betbot/celebsentry/internal/domain"
	"github.com/betbot/celebsentry/pkg/config"
	"github.com/pkg/errors"
)

// SendMailFunc 与 smtp.SendMail 同签名，测试中可替换
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailChannel SMTP 邮件通道（服务器支持时 smtp.SendMail 会自动 STARTTLS）
type EmailChannel struct {
	cfg      config.EmailConfig
	linkBase string
	send     SendMailFunc
	now      func() time.Time
}

func NewEmailChannel(cfg config.EmailConfig, linkBase string) *EmailChannel {
	return &EmailChannel{cfg: cfg, linkBase: linkBase, send: smtp.SendMail, now: time.Now}
}

func (e *EmailChannel) Name() string { return config.AlertEmail }

func (e *EmailChannel) Send(ctx context.Context, coin domain.CandidateCoin) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(e.cfg.Recipients) == 0 {
		return errors.New("no email recipients")
	}

	addr := net.JoinHostPort(e.cfg.SMTPHost, strconv.Itoa(e.cfg.SMTPPort))
	var auth smtp.Auth
	if e.cfg.Password != "" {
		auth = smtp.PlainAuth("", e.cfg.Sender, e.cfg.Password, e.cfg.SMTPHost)
	}
	msg := e.compose(coin)
	if err := e.send(addr, auth, e.cfg.Sender, e.cfg.Recipients, msg); err != nil {
		return errors.Wrapf(err, "smtp send via %s", addr)
	}
	return nil
}

func (e *EmailChannel) compose(coin domain.CandidateCoin) []byte {
	var b strings.Builder
	header := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }
	header("From", e.cfg.Sender)
	header("To", strings.Join(e.cfg.Recipients, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", Subject(coin)))
	header("Date", e.now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="utf-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(PlainBody(coin, e.linkBase), "\n", "\r\n"))
	return []byte(b.String())
}
