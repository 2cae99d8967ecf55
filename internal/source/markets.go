package source

import (
	"context"

	"github.com/betbot/celebsentry/internal/domain"
	"github.com/betbot/celebsentry/pkg/logger"
	sdkhttp "github.com/betbot/celebsentry/pkg/sdk/http"
	"github.com/shopspring/decimal"
)

// Markets 市值排行接口，返回固定页大小并带价格
type Markets struct {
	client  *sdkhttp.Client
	apiBase string
	perPage int
}

func NewMarkets(client *sdkhttp.Client, apiBase string, perPage int) *Markets {
	if perPage <= 0 {
		perPage = 10
	}
	return &Markets{client: client, apiBase: apiBase, perPage: perPage}
}

func (s *Markets) Name() string { return "markets" }

type marketRow struct {
	ID           string           `json:"id"`
	Symbol       string           `json:"symbol"`
	Name         string           `json:"name"`
	CurrentPrice *decimal.Decimal `json:"current_price"`
}

func (s *Markets) Fetch(ctx context.Context) []domain.CandidateCoin {
	log := logger.WithField("source", s.Name())

	var rows []marketRow
	err := s.client.GetJSON(ctx, s.apiBase+"/coins/markets", map[string]any{
		"vs_currency": "usd",
		"order":       "market_cap_desc",
		"per_page":    s.perPage,
		"page":        1,
		"sparkline":   false,
		"locale":      "en",
	}, &rows)
	if err != nil {
		log.Errorf("获取市值排行失败: %v", err)
		return nil
	}

	coins := make([]domain.CandidateCoin, 0, len(rows))
	for _, r := range rows {
		coins = append(coins, domain.CandidateCoin{
			ID:     r.ID,
			Name:   r.Name,
			Symbol: r.Symbol,
			Price:  r.CurrentPrice,
		})
	}
	log.Debugf("市值排行返回 %d 个候选", len(coins))
	return coins
}
