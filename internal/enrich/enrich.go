// Package enrich 按需获取单个币种的详情描述。
package enrich

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/betbot/celebsentry/pkg/cache"
	"github.com/betbot/celebsentry/pkg/logger"
	sdkhttp "github.com/betbot/celebsentry/pkg/sdk/http"
)

// Describer 返回币种描述；任何失败都返回空字符串
type Describer interface {
	Describe(ctx context.Context, id string) string
}

// CoinGecko 通过 /coins/{id} 接口读取 description.en
type CoinGecko struct {
	client  *sdkhttp.Client
	apiBase string
	cache   cache.Cache[string, string] // nil 表示不缓存
}

// New ttl<=0 时不缓存
func New(client *sdkhttp.Client, apiBase string, ttl time.Duration) *CoinGecko {
	d := &CoinGecko{client: client, apiBase: strings.TrimSuffix(apiBase, "/")}
	if ttl > 0 {
		d.cache = cache.NewInMemoryCache[string, string](ttl)
	}
	return d
}

type coinDetail struct {
	Description struct {
		En string `json:"en"`
	} `json:"description"`
}

func (d *CoinGecko) Describe(ctx context.Context, id string) string {
	if d.cache != nil {
		if desc, ok := d.cache.Get(id); ok {
			logger.Debugf("描述命中缓存: %s", id)
			return desc
		}
	}

	var detail coinDetail
	err := d.client.GetJSON(ctx, d.apiBase+"/coins/"+url.PathEscape(id), map[string]any{
		"localization":   false,
		"market_data":    false,
		"community_data": false,
		"developer_data": false,
	}, &detail)
	if err != nil {
		logger.WithField("coin", id).Errorf("获取币种描述失败: %v", err)
		return ""
	}

	desc := strings.TrimSpace(detail.Description.En)
	if desc != "" && d.cache != nil {
		d.cache.Set(id, desc, 0)
	}
	return desc
}

// Sweep 清理过期的描述缓存，返回清理数量；未启用缓存时返回 0
func (d *CoinGecko) Sweep() int {
	if s, ok := d.cache.(interface{ Sweep() int }); ok {
		return s.Sweep()
	}
	return 0
}
