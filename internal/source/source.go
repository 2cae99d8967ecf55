// Package source 提供候选币种来源。两种策略互斥，由配置选择；
// 任何传输或解析错误都只记日志并返回空列表。
package source

import (
	"context"
	"fmt"

	"github.com/betbot/celebsentry/internal/domain"
	"github.com/betbot/celebsentry/pkg/config"
	sdkhttp "github.com/betbot/celebsentry/pkg/sdk/http"
)

// Source 候选来源
type Source interface {
	Name() string
	Fetch(ctx context.Context) []domain.CandidateCoin
}

// New 按配置选择来源策略
func New(cfg *config.Config, client *sdkhttp.Client) (Source, error) {
	switch cfg.Source {
	case config.SourceRecentlyAdded:
		return NewRecentlyAdded(client, cfg.CoinGecko.RecentlyAddedURL), nil
	case config.SourceMarkets:
		return NewMarkets(client, cfg.CoinGecko.APIBase, cfg.CoinGecko.MarketsPerPage), nil
	default:
		return nil, fmt.Errorf("未知的候选来源: %s", cfg.Source)
	}
}
