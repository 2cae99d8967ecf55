// Package detector 实现检测循环：拉取候选、两阶段匹配、分发告警、记录已告警集合。
//
// 每轮按来源顺序逐个处理候选，不并发，外呼节流因此保持可预期，
// 同一个标识也不会被并发重复告警。轮与轮之间按配置的间隔休眠，
// 休眠和每个候选之前都检查 ctx，关闭信号能尽快生效。
package detector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/betbot/celebsentry/internal/domain"
	"github.com/betbot/celebsentry/internal/enrich"
	"github.com/betbot/celebsentry/internal/journal"
	"github.com/betbot/celebsentry/internal/matcher"
	"github.com/betbot/celebsentry/internal/metrics"
	"github.com/betbot/celebsentry/internal/notify"
	"github.com/betbot/celebsentry/internal/source"
	"github.com/betbot/celebsentry/internal/state"
	"github.com/betbot/celebsentry/pkg/config"
	"github.com/betbot/celebsentry/pkg/logger"
	"github.com/betbot/celebsentry/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Notifier 告警分发
type Notifier interface {
	Notify(ctx context.Context, coin domain.CandidateCoin) notify.Result
}

// Matcher 两阶段匹配，*matcher.Matcher 实现
type Matcher interface {
	PreFilter(coin domain.CandidateCoin) (string, bool)
	Confirm(coin domain.CandidateCoin, description string) (string, bool)
	Len() int
}

var _ Matcher = (*matcher.Matcher)(nil)

// cacheSweeper 带缓存的 Describer 在轮次之间清理过期项
type cacheSweeper interface {
	Sweep() int
}

// Recorder 告警流水（可选）
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Options 检测器依赖
type Options struct {
	Source    source.Source
	Describer enrich.Describer
	Matcher   Matcher
	Notifier  Notifier
	Alerted   *state.AlertedSet
	Journal   Recorder // nil 表示不记录
	Policy    string   // config.PolicyAttempted / config.PolicyDelivered
	Interval  time.Duration
}

// CycleReport 一轮检测的统计
type CycleReport struct {
	CycleID         string    `json:"cycle_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Candidates      int       `json:"candidates"`
	Skipped         int       `json:"skipped"`
	PrefilterHits   int       `json:"prefilter_hits"`
	Enriched        int       `json:"enriched"`
	Confirmed       int       `json:"confirmed"`
	NewlyAlerted    []string  `json:"newly_alerted"`
	PersistFailures int       `json:"persist_failures"`
	Interrupted     bool      `json:"interrupted"`
}

// Detector 检测循环
type Detector struct {
	opts Options

	mu     sync.RWMutex
	last   CycleReport
	cycles int
}

func New(opts Options) (*Detector, error) {
	switch {
	case opts.Source == nil:
		return nil, errors.New("detector: source is required")
	case opts.Describer == nil:
		return nil, errors.New("detector: describer is required")
	case opts.Matcher == nil:
		return nil, errors.New("detector: matcher is required")
	case opts.Notifier == nil:
		return nil, errors.New("detector: notifier is required")
	case opts.Alerted == nil:
		return nil, errors.New("detector: alerted set is required")
	}
	if opts.Policy == "" {
		opts.Policy = config.PolicyAttempted
	}
	if opts.Policy != config.PolicyAttempted && opts.Policy != config.PolicyDelivered {
		return nil, errors.New("detector: unknown alert policy " + opts.Policy)
	}
	return &Detector{opts: opts}, nil
}

// Run 循环执行直到 ctx 结束
func (d *Detector) Run(ctx context.Context) error {
	for {
		d.RunCycle(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if s, ok := d.opts.Describer.(cacheSweeper); ok {
			if n := s.Sweep(); n > 0 {
				logger.Debugf("清理过期描述缓存 %d 项", n)
			}
		}
		logger.Infof("休眠 %s 后进入下一轮检测", d.opts.Interval)
		if err := ratelimit.Sleep(ctx, d.opts.Interval); err != nil {
			return nil
		}
	}
}

// RunCycle 执行一轮检测
func (d *Detector) RunCycle(ctx context.Context) CycleReport {
	rep := CycleReport{CycleID: uuid.NewString(), StartedAt: time.Now(), NewlyAlerted: []string{}}
	log := logger.WithFields(logrus.Fields{"cycle": rep.CycleID, "source": d.opts.Source.Name()})
	metrics.Cycles.Add(1)

	coins := d.opts.Source.Fetch(ctx)
	rep.Candidates = len(coins)
	metrics.Candidates.Add(int64(len(coins)))
	if len(coins) == 0 {
		log.Warn("没有获取到候选币种，等待下一轮")
	}

	for _, coin := range coins {
		if ctx.Err() != nil {
			rep.Interrupted = true
			log.Warn("收到关闭信号，中断本轮")
			break
		}
		d.process(ctx, log, coin, &rep)
	}

	rep.FinishedAt = time.Now()
	log.Infof("本轮结束: 候选=%d 跳过=%d 初筛命中=%d 确认=%d 新告警=%d 落盘失败=%d",
		rep.Candidates, rep.Skipped, rep.PrefilterHits, rep.Confirmed, len(rep.NewlyAlerted), rep.PersistFailures)

	d.mu.Lock()
	d.last = rep
	d.cycles++
	d.mu.Unlock()
	return rep
}

func (d *Detector) process(ctx context.Context, cycleLog *logrus.Entry, coin domain.CandidateCoin, rep *CycleReport) {
	coin.ID = domain.NormalizeID(coin.ID)
	if !coin.IsValid() || d.opts.Alerted.Contains(coin.ID) {
		rep.Skipped++
		return
	}
	log := cycleLog.WithFields(logrus.Fields{"coin": coin.ID, "symbol": coin.Symbol})

	if _, ok := d.opts.Matcher.PreFilter(coin); !ok {
		log.Debugf("%s (%s) 未通过初筛", coin.Name, coin.Symbol)
		return
	}
	rep.PrefilterHits++
	metrics.PrefilterHits.Add(1)

	coin.Description = d.opts.Describer.Describe(ctx, coin.ID)
	rep.Enriched++
	metrics.Enrichments.Add(1)

	ref, ok := d.opts.Matcher.Confirm(coin, coin.Description)
	if !ok {
		log.Infof("%s (%s) 未通过最终确认", coin.Name, coin.Symbol)
		return
	}
	rep.Confirmed++
	metrics.Confirmations.Add(1)
	log.WithField("reference", ref).Infof("发现名人币: %s (%s)", coin.Name, coin.Symbol)

	res := d.opts.Notifier.Notify(ctx, coin)
	metrics.Alerts.Add(1)
	metrics.ChannelFailures.Add(int64(len(res.FailedChannels())))

	entry := journal.Entry{
		CycleID:     rep.CycleID,
		CoinID:      coin.ID,
		Name:        coin.Name,
		Symbol:      coin.Symbol,
		Price:       coin.PriceText(),
		Reference:   ref,
		Description: coin.Description,
		Delivered:   res.DeliveredChannels(),
		Failed:      res.FailedChannels(),
	}

	if d.opts.Policy == config.PolicyDelivered && !res.Delivered() {
		log.Warn("所有通道均失败，按 delivered 策略不标记，下轮重试")
	} else if err := d.opts.Alerted.Add(coin.ID); err != nil {
		// 落盘失败时不能当作已告警，否则重启后会丢失去重保证
		rep.PersistFailures++
		metrics.PersistFailures.Add(1)
		entry.PersistError = err.Error()
		log.Errorf("已告警集合落盘失败，本币种未标记: %v", err)
	} else {
		entry.Marked = true
		rep.NewlyAlerted = append(rep.NewlyAlerted, coin.ID)
	}

	if d.opts.Journal != nil {
		if err := d.opts.Journal.Record(ctx, entry); err != nil {
			log.Warnf("写入告警流水失败: %v", err)
		}
	}
}

// LastReport 最近一轮的统计
func (d *Detector) LastReport() CycleReport {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last
}

// Status 状态接口输出
func (d *Detector) Status() any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return map[string]any{
		"cycles":     d.cycles,
		"alerted":    d.opts.Alerted.Len(),
		"references": d.opts.Matcher.Len(),
		"source":     d.opts.Source.Name(),
		"policy":     d.opts.Policy,
		"interval":   d.opts.Interval.String(),
		"last_cycle": d.last,
	}
}
