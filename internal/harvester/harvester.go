// Package harvester 定期从外部目录页刷新名人名单。
// 只有目录页修订时间变化（或没有历史记录）时才重新抓取；
// 任何抓取失败都保持现有名单和修订标记不变，下一轮重试。
package harvester

import (
	"context"
	"errors"

	"github.com/betbot/celebsentry/internal/metrics"
	"github.com/betbot/celebsentry/internal/state"
	"github.com/betbot/celebsentry/pkg/config"
	"github.com/betbot/celebsentry/pkg/logger"
	"github.com/betbot/celebsentry/pkg/persistence"
	"github.com/betbot/celebsentry/pkg/ratelimit"
	sdkhttp "github.com/betbot/celebsentry/pkg/sdk/http"
)

// Status 一轮采集的结果
type Status string

const (
	StatusUnchanged Status = "unchanged"
	StatusHarvested Status = "harvested"
	StatusFailed    Status = "failed"  // 修订检查或保存失败
	StatusAborted   Status = "aborted" // 没有子页面、没有名称或被取消
)

// Report 一轮采集的统计
type Report struct {
	Status   Status `json:"status"`
	Revision string `json:"revision,omitempty"`
	Pages    int    `json:"pages"`
	Names    int    `json:"names"`
}

// revisionMarker 修订标记文件内容
type revisionMarker struct {
	LastTimestamp *string `json:"last_timestamp"`
}

// Harvester 名人名单采集器
type Harvester struct {
	cfg       config.HarvesterConfig
	client    *sdkhttp.Client
	scraper   *scraper
	namesPath string
	marker    *persistence.JSONFile
}

func New(cfg config.HarvesterConfig, files config.FilesConfig, client *sdkhttp.Client) *Harvester {
	return &Harvester{
		cfg:       cfg,
		client:    client,
		scraper:   &scraper{client: client, baseURL: cfg.BaseURL},
		namesPath: files.CelebrityNames,
		marker:    persistence.NewJSONFile(files.LastRevision),
	}
}

// Run 循环执行直到 ctx 结束
func (h *Harvester) Run(ctx context.Context) error {
	for {
		h.RunOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		logger.Infof("休眠 %s 后再次检查目录页", h.cfg.Interval)
		if err := ratelimit.Sleep(ctx, h.cfg.Interval); err != nil {
			return nil
		}
	}
}

// RunOnce 执行一轮：检查修订 → 抓取 → 保存名单 → 保存修订标记
func (h *Harvester) RunOnce(ctx context.Context) Report {
	log := logger.WithField("page", h.cfg.MainPageTitle)
	log.Info("检查目录页是否更新")

	current, ok := latestRevision(ctx, h.client, h.cfg.APIURL, h.cfg.MainPageTitle)
	if !ok {
		metrics.HarvestFailures.Add(1)
		log.Warn("无法获取当前修订时间，下一轮重试")
		return Report{Status: StatusFailed}
	}

	previous := h.loadMarker()
	if previous != nil && *previous == current {
		metrics.HarvestSkips.Add(1)
		log.Infof("目录页没有变化 (revision=%s)，沿用现有名单", current)
		return Report{Status: StatusUnchanged, Revision: current}
	}
	if previous == nil {
		log.Info("没有历史修订记录，首次抓取")
	} else {
		log.Infof("目录页已更新 (%s -> %s)，重新抓取", *previous, current)
	}

	rep := Report{Status: StatusAborted, Revision: current}
	pages := h.scraper.subPages(ctx, h.cfg.MainPageTitle)
	rep.Pages = len(pages)
	if len(pages) == 0 {
		metrics.HarvestFailures.Add(1)
		log.Warn("目录页没有发现任何子列表，放弃本轮")
		return rep
	}

	var names []string
	for _, p := range pages {
		if ctx.Err() != nil {
			log.Warn("收到关闭信号，放弃本轮抓取")
			return rep
		}
		names = append(names, h.scraper.names(ctx, p)...)
	}
	unique := state.NewReferenceSet(names).Names()
	if len(unique) == 0 {
		metrics.HarvestFailures.Add(1)
		log.Warn("没有提取到任何名称，保留现有名单")
		return rep
	}

	if err := state.SaveReferenceSet(h.namesPath, unique); err != nil {
		metrics.HarvestFailures.Add(1)
		log.Errorf("保存名人名单失败: %v", err)
		rep.Status = StatusFailed
		return rep
	}
	if err := h.marker.Save(revisionMarker{LastTimestamp: &current}); err != nil {
		// 名单已更新；标记未保存只会导致下一轮重复抓取
		log.Errorf("保存修订标记失败: %v", err)
	}

	metrics.Harvests.Add(1)
	rep.Status = StatusHarvested
	rep.Names = len(unique)
	log.Infof("已抓取并保存 %d 个名称（%d 个子列表）", rep.Names, rep.Pages)
	return rep
}

func (h *Harvester) loadMarker() *string {
	var m revisionMarker
	if err := h.marker.Load(&m); err != nil {
		if !errors.Is(err, persistence.ErrNotExists) {
			logger.Warnf("读取修订标记失败，按首次抓取处理: %v", err)
		}
		return nil
	}
	return m.LastTimestamp
}
