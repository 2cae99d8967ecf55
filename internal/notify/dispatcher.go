// Package notify 把确认命中的币种分发到已启用的通道（邮件、webhook）。
// 各通道相互隔离：一个通道失败只记录日志，不影响其他通道。
package notify

import (
	"context"
	"fmt"

	"github.com/betbot/celebsentry/internal/domain"
	"github.com/betbot/celebsentry/pkg/config"
	"github.com/betbot/celebsentry/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Channel 告警通道
type Channel interface {
	Name() string
	Send(ctx context.Context, coin domain.CandidateCoin) error
}

// Outcome 单个通道的投递结果
type Outcome struct {
	Channel string
	Err     error
}

// Result 一次分发的全部结果
type Result struct {
	Outcomes []Outcome
}

// Delivered 至少一个通道投递成功
func (r Result) Delivered() bool {
	for _, o := range r.Outcomes {
		if o.Err == nil {
			return true
		}
	}
	return false
}

// DeliveredChannels 成功的通道名
func (r Result) DeliveredChannels() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.Err == nil {
			out = append(out, o.Channel)
		}
	}
	return out
}

// FailedChannels 失败的通道名
func (r Result) FailedChannels() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o.Channel)
		}
	}
	return out
}

// Dispatcher 告警分发器
type Dispatcher struct {
	channels []Channel
}

func NewDispatcher(channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels}
}

// FromConfig 按 alert_method 构建通道
func FromConfig(cfg *config.Config) (*Dispatcher, error) {
	var channels []Channel
	if cfg.EmailEnabled() {
		channels = append(channels, NewEmailChannel(cfg.Email, cfg.CoinGecko.CoinPageBase))
	}
	if cfg.WebhookEnabled() {
		channels = append(channels, NewWebhookChannel(cfg.Webhook, cfg.CoinGecko.CoinPageBase))
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("没有启用任何告警通道: %s", cfg.AlertMethod)
	}
	return NewDispatcher(channels...), nil
}

// Channels 已启用的通道名
func (d *Dispatcher) Channels() []string {
	out := make([]string, 0, len(d.channels))
	for _, c := range d.channels {
		out = append(out, c.Name())
	}
	return out
}

// Notify 依次尝试每个通道，错误只记录不返回
func (d *Dispatcher) Notify(ctx context.Context, coin domain.CandidateCoin) Result {
	res := Result{Outcomes: make([]Outcome, 0, len(d.channels))}
	for _, ch := range d.channels {
		log := logger.WithFields(logrus.Fields{"channel": ch.Name(), "coin": coin.ID})
		err := ch.Send(ctx, coin)
		if err != nil {
			log.Errorf("告警发送失败: %v", err)
		} else {
			log.Infof("告警已发送: %s (%s)", coin.Name, coin.Symbol)
		}
		res.Outcomes = append(res.Outcomes, Outcome{Channel: ch.Name(), Err: err})
	}
	return res
}
