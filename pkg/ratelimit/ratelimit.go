package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Pacer 固定间隔节流器：每次外呼之后阻塞一个固定时长再发起下一次请求。
// 第三方接口（CoinGecko 免费档、Wikipedia）按调用频率限流，这里不做令牌桶，
// 只保证两次外呼之间至少间隔 delay。
type Pacer struct {
	delay time.Duration

	mu     sync.Mutex
	pauses int // 已执行的暂停次数
}

// NewPacer 创建节流器；delay <= 0 表示不节流
func NewPacer(delay time.Duration) *Pacer {
	if delay < 0 {
		delay = 0
	}
	return &Pacer{delay: delay}
}

// Delay 返回节流间隔
func (p *Pacer) Delay() time.Duration {
	if p == nil {
		return 0
	}
	return p.delay
}

// Pause 在一次外呼后调用：阻塞 delay，或在 ctx 取消时提前返回 ctx.Err()
func (p *Pacer) Pause(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	p.pauses++
	p.mu.Unlock()
	if p.delay == 0 {
		if ctx != nil {
			return ctx.Err()
		}
		return nil
	}
	return Sleep(ctx, p.delay)
}

// Pauses 返回累计暂停次数
func (p *Pacer) Pauses() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pauses
}

// Sleep 可取消的阻塞等待
func Sleep(ctx context.Context, d time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
