package harvester

import (
	"context"
	"sort"

	"github.com/betbot/celebsentry/pkg/logger"
	sdkhttp "github.com/betbot/celebsentry/pkg/sdk/http"
)

type revisionResponse struct {
	Query struct {
		Pages map[string]struct {
			Title     string `json:"title"`
			Revisions []struct {
				Timestamp string `json:"timestamp"`
			} `json:"revisions"`
		} `json:"pages"`
	} `json:"query"`
}

// latestRevision 通过 MediaWiki API 读取页面最后修订时间；失败或没有修订时返回 false
func latestRevision(ctx context.Context, client *sdkhttp.Client, apiURL, title string) (string, bool) {
	var resp revisionResponse
	err := client.GetJSON(ctx, apiURL, map[string]any{
		"action": "query",
		"prop":   "revisions",
		"rvprop": "timestamp",
		"titles": title,
		"format": "json",
	}, &resp)
	if err != nil {
		logger.WithField("page", title).Errorf("获取页面修订时间失败: %v", err)
		return "", false
	}

	// 通常只有一个页面；按 key 排序保证结果确定
	keys := make([]string, 0, len(resp.Query.Pages))
	for k := range resp.Query.Pages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if revs := resp.Query.Pages[k].Revisions; len(revs) > 0 && revs[0].Timestamp != "" {
			return revs[0].Timestamp, true
		}
	}
	logger.WithField("page", title).Warn("响应中没有修订信息")
	return "", false
}
