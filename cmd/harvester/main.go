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
	"github.com/betbot/celebsentry/internal/harvester"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "配置文件路径（支持 .yaml, .yml, .json；默认 "+app.DefaultConfigPath+"）")
	once := flag.Bool("once", false, "只执行一轮检查后退出")
	flag.Parse()

	cfg, err := app.LoadConfig(app.ResolveConfigPath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := app.InitLogger(cfg); err != nil {
		panic(fmt.Sprintf("初始化日志失败: %v", err))
	}
	if err := cfg.ValidateHarvester(); err != nil {
		logrus.Errorf("配置无效: %v", err)
		os.Exit(1)
	}
	app.Banner("harvester", app.HarvesterSettings(cfg))

	client, _ := app.NewClient(cfg.Harvester.RequestTimeout, cfg.Harvester.RequestPacing, cfg.UserAgent())
	h := harvester.New(cfg.Harvester, cfg.Files, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		rep := h.RunOnce(ctx)
		logrus.Infof("单轮采集完成: status=%s names=%d", rep.Status, rep.Names)
		if rep.Status == harvester.StatusFailed {
			os.Exit(1)
		}
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logrus.Infof("收到信号 %v，开始关闭", sig)
	cancel()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logrus.Warn("等待采集循环退出超时")
	}
	logrus.Info("已退出")
}
