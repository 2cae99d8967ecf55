package source

import (
	"context"
	"strings"

	"github.com/betbot/celebsentry/internal/domain"
	"github.com/betbot/celebsentry/internal/extract"
	"github.com/betbot/celebsentry/pkg/logger"
	sdkhttp "github.com/betbot/celebsentry/pkg/sdk/http"
)

// RecentlyAdded 抓取 "Recently Added" 页面，条目多但没有价格
type RecentlyAdded struct {
	client *sdkhttp.Client
	url    string
}

func NewRecentlyAdded(client *sdkhttp.Client, url string) *RecentlyAdded {
	return &RecentlyAdded{client: client, url: url}
}

func (s *RecentlyAdded) Name() string { return "recently_added" }

func (s *RecentlyAdded) Fetch(ctx context.Context) []domain.CandidateCoin {
	log := logger.WithField("source", s.Name())

	page, err := s.client.GetText(ctx, s.url, nil)
	if err != nil {
		log.Errorf("获取 Recently Added 页面失败: %v", err)
		return nil
	}
	rows, err := extract.RecentlyAddedRows(strings.NewReader(page))
	if err != nil {
		log.Warnf("解析 Recently Added 页面失败: %v", err)
		return nil
	}

	coins := make([]domain.CandidateCoin, 0, len(rows))
	for _, row := range rows {
		id := row.Slug
		if id == "" {
			id = fallbackID(row.Name)
		}
		coins = append(coins, domain.CandidateCoin{ID: id, Name: row.Name, Symbol: row.Symbol})
	}
	log.Debugf("Recently Added 返回 %d 个候选", len(coins))
	return coins
}

// fallbackID 链接里没有 slug 时用名称拼出一个稳定标识
func fallbackID(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-") + "-unknown"
}
