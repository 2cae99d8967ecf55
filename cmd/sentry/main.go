package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/betbot/celebsentry/internal/app"
	"github.com/betbot/celebsentry/internal/detector"
	"github.com/betbot/celebsentry/internal/enrich"
	"github.com/betbot/celebsentry/internal/journal"
	"github.com/betbot/celebsentry/internal/matcher"
	"github.com/betbot/celebsentry/internal/metrics"
	"github.com/betbot/celebsentry/internal/notify"
	"github.com/betbot/celebsentry/internal/source"
	"github.com/betbot/celebsentry/internal/state"
	"github.com/betbot/celebsentry/pkg/logger"
	"github.com/betbot/celebsentry/pkg/shutdown"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// .env 可选，不存在时使用真实环境变量
	_ = godotenv.Load()

	configPath := flag.String("config", "", "配置文件路径（支持 .yaml, .yml, .json；默认 "+app.DefaultConfigPath+"）")
	once := flag.Bool("once", false, "只执行一轮检测后退出")
	flag.Parse()

	cfg, err := app.LoadConfig(app.ResolveConfigPath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := app.InitLogger(cfg); err != nil {
		panic(fmt.Sprintf("初始化日志失败: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		logrus.Errorf("配置无效: %v", err)
		os.Exit(1)
	}
	app.Banner("sentry", app.SentrySettings(cfg))

	refs, err := state.LoadReferenceSet(cfg.Files.CelebrityNames)
	if err != nil {
		logrus.Errorf("加载名人名单失败: %v", err)
		os.Exit(1)
	}
	alerted, err := state.LoadAlertedSet(cfg.Files.AlertedCoins)
	if err != nil {
		logrus.Errorf("加载已告警集合失败: %v", err)
		os.Exit(1)
	}

	client, _ := app.NewClient(cfg.RequestTimeout, cfg.RequestPacing, cfg.UserAgent())
	src, err := source.New(cfg, client)
	if err != nil {
		logrus.Errorf("初始化候选来源失败: %v", err)
		os.Exit(1)
	}
	dispatcher, err := notify.FromConfig(cfg)
	if err != nil {
		logrus.Errorf("初始化告警通道失败: %v", err)
		os.Exit(1)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()
	sm := shutdown.NewManager()

	opts := detector.Options{
		Source:    src,
		Describer: enrich.New(client, cfg.CoinGecko.APIBase, cfg.EnrichCacheTTL),
		Matcher:   matcher.New(refs.Names()),
		Notifier:  dispatcher,
		Alerted:   alerted,
		Policy:    cfg.AlertPolicy,
		Interval:  cfg.CheckInterval,
	}

	var jr *journal.Journal
	if cfg.JournalDB != "" {
		jr, err = journal.Open(cfg.JournalDB)
		if err != nil {
			logrus.Errorf("打开告警流水失败: %v", err)
			os.Exit(1)
		}
		opts.Journal = jr
		sm.OnShutdown("journal", func(context.Context) error { return jr.Close() })
	}

	det, err := detector.New(opts)
	if err != nil {
		logrus.Errorf("初始化检测器失败: %v", err)
		os.Exit(1)
	}

	if *once {
		rep := det.RunCycle(rootCtx)
		logger.Infof("单轮检测完成: 新告警 %d 个", len(rep.NewlyAlerted))
		sm.Shutdown(context.Background())
		return
	}

	if cfg.StatusListen != "" {
		sources := metrics.Sources{Status: det.Status}
		if jr != nil {
			sources.Alerts = func(ctx context.Context, limit int) (any, error) { return jr.Recent(ctx, limit) }
		}
		srv, err := metrics.StartAsync(rootCtx, cfg.StatusListen, sources)
		if err != nil {
			logrus.Errorf("启动状态服务失败: %v", err)
			os.Exit(1)
		}
		logrus.Infof("状态服务已启动: http://%s", srv.Addr)
		sm.OnShutdown("status", srv.Shutdown)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = det.Run(rootCtx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logrus.Infof("收到信号 %v，开始关闭", sig)
	case <-done:
	}

	rootCancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logrus.Warn("等待检测循环退出超时")
	}
	if failed := sm.Shutdown(shutdownCtx); failed > 0 {
		logrus.Warnf("%d 个关闭回调失败", failed)
	}
	logrus.Info("已退出")
}
