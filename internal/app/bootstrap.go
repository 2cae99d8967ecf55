// Package app 进程启动公共步骤：加载配置、补齐凭据、初始化日志、构建外呼客户端。
package app

import (
	"os"
	"strings"
	"time"

	"github.com/betbot/celebsentry/pkg/config"
	"github.com/betbot/celebsentry/pkg/logger"
	"github.com/betbot/celebsentry/pkg/ratelimit"
	sdkhttp "github.com/betbot/celebsentry/pkg/sdk/http"
	"github.com/betbot/celebsentry/pkg/secretstore"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	Name    = "CelebCoinSentry"
	Version = "1.0.0"
)

// DefaultConfigPath 未指定 -config 时尝试加载的配置文件
const DefaultConfigPath = "yml/celebsentry.yaml"

// ResolveConfigPath 显式路径优先；否则默认配置文件存在时使用它，都没有时返回空（仅环境变量和默认值）
func ResolveConfigPath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return DefaultConfigPath
	}
	return ""
}

// LoadConfig 加载配置；配置了凭据库时用它补齐仍为空的通道凭据
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if cfg.Secrets.BadgerPath == "" {
		return cfg, nil
	}

	key, err := secretstore.ParseKey(cfg.Secrets.Key)
	if err != nil {
		return nil, errors.Wrap(err, "parse secret key")
	}
	store, err := secretstore.Open(secretstore.OpenOptions{
		Path:          cfg.Secrets.BadgerPath,
		EncryptionKey: key,
		ReadOnly:      true,
		Prefix:        cfg.Secrets.Prefix,
	})
	if err != nil {
		return nil, err
	}
	defer store.Close()
	cfg.ApplySecrets(store.Lookup)
	return cfg, nil
}

// InitLogger 按配置初始化日志
func InitLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
}

// NewClient 外呼客户端：每次请求后按 pacing 暂停
func NewClient(timeout, pacing time.Duration, userAgent string) (*sdkhttp.Client, *ratelimit.Pacer) {
	pacer := ratelimit.NewPacer(pacing)
	return sdkhttp.NewClient(sdkhttp.Options{
		Timeout:   timeout,
		UserAgent: userAgent,
		Pacer:     pacer,
	}), pacer
}

// Banner 启动信息：组件名、版本和关键运行参数
func Banner(component string, settings logrus.Fields) {
	logger.WithFields(settings).Infof("%s %s v%s started", Name, component, Version)
}

// SentrySettings 检测进程的关键参数
func SentrySettings(cfg *config.Config) logrus.Fields {
	return logrus.Fields{
		"alert_method":   cfg.AlertMethod,
		"alert_policy":   cfg.AlertPolicy,
		"source":         cfg.Source,
		"check_interval": cfg.CheckInterval.String(),
		"pacing":         cfg.RequestPacing.String(),
		"custom_ua":      cfg.UseCustomUserAgent,
	}
}

// HarvesterSettings 采集进程的关键参数
func HarvesterSettings(cfg *config.Config) logrus.Fields {
	return logrus.Fields{
		"page":     cfg.Harvester.MainPageTitle,
		"interval": cfg.Harvester.Interval.String(),
		"pacing":   cfg.Harvester.RequestPacing.String(),
		"names":    cfg.Files.CelebrityNames,
	}
}
