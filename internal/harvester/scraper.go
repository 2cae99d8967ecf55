package harvester

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/betbot/celebsentry/internal/extract"
	"github.com/betbot/celebsentry/pkg/logger"
	sdkhttp "github.com/betbot/celebsentry/pkg/sdk/http"
)

const maxNameRunes = 60

// isCandidateName 至少两个词且少于 60 个字符
func isCandidateName(s string) bool {
	return len(strings.Fields(s)) >= 2 && utf8.RuneCountInString(s) < maxNameRunes
}

// scraper 从目录页发现子列表页，再从子列表页提取名称
type scraper struct {
	client  *sdkhttp.Client
	baseURL string
}

func (s *scraper) fetchLinks(ctx context.Context, path string) ([]extract.Link, error) {
	body, err := s.client.GetText(ctx, s.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return extract.ListLinks(strings.NewReader(body))
}

// subPages 目录页中指向站内页面的链接（去重，保持首次出现顺序）
func (s *scraper) subPages(ctx context.Context, mainTitle string) []string {
	links, err := s.fetchLinks(ctx, "/wiki/"+mainTitle)
	if err != nil {
		logger.WithField("page", mainTitle).Errorf("获取目录页失败: %v", err)
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, l := range links {
		if !strings.HasPrefix(l.Href, "/wiki/") {
			continue
		}
		if _, ok := seen[l.Href]; ok {
			continue
		}
		seen[l.Href] = struct{}{}
		out = append(out, l.Href)
	}
	return out
}

// names 从单个子列表页提取候选名称；失败时返回空
func (s *scraper) names(ctx context.Context, path string) []string {
	links, err := s.fetchLinks(ctx, path)
	if err != nil {
		logger.WithField("page", path).Warnf("获取子列表页失败: %v", err)
		return nil
	}
	var out []string
	for _, l := range links {
		// 名单文件一行一个名称，链接文本里的换行和连续空白折叠成单个空格
		name := strings.Join(strings.Fields(l.Text), " ")
		if isCandidateName(name) {
			out = append(out, name)
		}
	}
	return out
}
