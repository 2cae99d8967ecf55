package notify

import (
	"context"

	"github.com/betbot/celebsentry/internal/domain"
	"github.com/betbot/celebsentry/pkg/config"
	sdkhttp "github.com/betbot/celebsentry/pkg/sdk/http"
	"github.com/pkg/errors"
)

// WebhookChannel 向 webhook 地址 POST {content, username?, avatar_url?}
type WebhookChannel struct {
	cfg      config.WebhookConfig
	linkBase string
	client   *sdkhttp.Client
}

type webhookPayload struct {
	Content   string `json:"content"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// NewWebhookChannel 使用独立客户端：不重试，不走外呼节流
func NewWebhookChannel(cfg config.WebhookConfig, linkBase string) *WebhookChannel {
	return &WebhookChannel{
		cfg:      cfg,
		linkBase: linkBase,
		client:   sdkhttp.NewClient(sdkhttp.Options{Timeout: cfg.Timeout}),
	}
}

func (w *WebhookChannel) Name() string { return config.AlertWebhook }

func (w *WebhookChannel) Send(ctx context.Context, coin domain.CandidateCoin) error {
	if w.cfg.URL == "" {
		return errors.New("webhook url is empty")
	}
	return w.client.PostJSON(ctx, w.cfg.URL, webhookPayload{
		Content:   MarkdownContent(coin, w.linkBase),
		Username:  w.cfg.Username,
		AvatarURL: w.cfg.AvatarURL,
	})
}
