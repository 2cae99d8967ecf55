package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 告警通道选择
const (
	AlertEmail   = "email"
	AlertWebhook = "webhook"
	AlertDiscord = "discord" // webhook 的别名（原始部署使用 Discord webhook）
	AlertBoth    = "both"
)

// 候选来源策略
const (
	SourceRecentlyAdded = "recently_added" // 抓取 "Recently Added" HTML 页面（无价格）
	SourceMarkets       = "markets"        // 市值排行 API（带价格，固定页大小）
)

// 标记策略：何时把币种写入已告警集合
const (
	PolicyAttempted = "attempted" // 只要尝试过分发就标记（默认，与原部署一致）
	PolicyDelivered = "delivered" // 至少一个通道投递成功才标记
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"

// EmailConfig 邮件通道配置
type EmailConfig struct {
	Sender     string
	Password   string
	SMTPHost   string
	SMTPPort   int
	Recipients []string
}

// WebhookConfig webhook 通道配置
type WebhookConfig struct {
	URL       string
	Username  string
	AvatarURL string
	Timeout   time.Duration
}

// CoinGeckoConfig 列表来源与详情接口
type CoinGeckoConfig struct {
	RecentlyAddedURL string
	APIBase          string
	CoinPageBase     string // 告警消息里的规范链接前缀
	MarketsPerPage   int
}

// FilesConfig 持久化文件路径
type FilesConfig struct {
	CelebrityNames string
	AlertedCoins   string
	LastRevision   string
}

// HarvesterConfig 名人名单采集进程配置
type HarvesterConfig struct {
	Interval       time.Duration
	RequestPacing  time.Duration
	RequestTimeout time.Duration
	APIURL         string // MediaWiki API
	BaseURL        string
	MainPageTitle  string
}

// SecretsConfig Badger 凭据库
type SecretsConfig struct {
	BadgerPath string
	Key        string
	Prefix     string
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// Config 应用配置
type Config struct {
	AlertMethod        string
	AlertPolicy        string
	CheckInterval      time.Duration
	Source             string
	RequestPacing      time.Duration
	RequestTimeout     time.Duration
	UseCustomUserAgent bool
	CustomUserAgent    string
	EnrichCacheTTL     time.Duration // 0 表示不缓存描述
	CoinGecko          CoinGeckoConfig
	Email              EmailConfig
	Webhook            WebhookConfig
	Files              FilesConfig
	Harvester          HarvesterConfig
	Secrets            SecretsConfig
	Log                LogConfig
	JournalDB          string // sqlite 告警流水，空表示关闭
	StatusListen       string // 状态/调试 HTTP 监听地址，空表示关闭
}

// ConfigFile 配置文件结构（用于 YAML/JSON 解析）
type ConfigFile struct {
	AlertMethod           string `yaml:"alert_method" json:"alert_method"`
	AlertPolicy           string `yaml:"alert_policy" json:"alert_policy"`
	CheckIntervalSeconds  int    `yaml:"check_interval_seconds" json:"check_interval_seconds"`
	Source                string `yaml:"source" json:"source"`
	RequestPacingSeconds  *int   `yaml:"request_pacing_seconds" json:"request_pacing_seconds"` // 允许显式配置 0
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`
	EnrichCacheTTLSeconds int    `yaml:"enrich_cache_ttl_seconds" json:"enrich_cache_ttl_seconds"`
	UserAgent             struct {
		Enabled *bool  `yaml:"enabled" json:"enabled"`
		Value   string `yaml:"value" json:"value"`
	} `yaml:"user_agent" json:"user_agent"`
	CoinGecko struct {
		RecentlyAddedURL string `yaml:"recently_added_url" json:"recently_added_url"`
		APIBase          string `yaml:"api_base" json:"api_base"`
		CoinPageBase     string `yaml:"coin_page_base" json:"coin_page_base"`
		MarketsPerPage   int    `yaml:"markets_per_page" json:"markets_per_page"`
	} `yaml:"coingecko" json:"coingecko"`
	Email struct {
		Sender     string   `yaml:"sender" json:"sender"`
		Password   string   `yaml:"password" json:"password"`
		SMTPHost   string   `yaml:"smtp_host" json:"smtp_host"`
		SMTPPort   int      `yaml:"smtp_port" json:"smtp_port"`
		Recipients []string `yaml:"recipients" json:"recipients"`
	} `yaml:"email" json:"email"`
	Webhook struct {
		URL            string `yaml:"url" json:"url"`
		Username       string `yaml:"username" json:"username"`
		AvatarURL      string `yaml:"avatar_url" json:"avatar_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	} `yaml:"webhook" json:"webhook"`
	Files struct {
		CelebrityNames string `yaml:"celebrity_names" json:"celebrity_names"`
		AlertedCoins   string `yaml:"alerted_coins" json:"alerted_coins"`
		LastRevision   string `yaml:"last_revision" json:"last_revision"`
	} `yaml:"files" json:"files"`
	Harvester struct {
		IntervalSeconds       int    `yaml:"interval_seconds" json:"interval_seconds"`
		RequestPacingSeconds  *int   `yaml:"request_pacing_seconds" json:"request_pacing_seconds"`
		RequestTimeoutSeconds int    `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`
		APIURL                string `yaml:"api_url" json:"api_url"`
		BaseURL               string `yaml:"base_url" json:"base_url"`
		MainPageTitle         string `yaml:"main_page_title" json:"main_page_title"`
	} `yaml:"harvester" json:"harvester"`
	Secrets struct {
		BadgerPath string `yaml:"badger_path" json:"badger_path"`
		Key        string `yaml:"key" json:"key"`
		Prefix     string `yaml:"prefix" json:"prefix"`
	} `yaml:"secrets" json:"secrets"`
	Log struct {
		Level      string `yaml:"level" json:"level"`
		File       string `yaml:"file" json:"file"`
		MaxSize    int    `yaml:"max_size" json:"max_size"`
		MaxBackups int    `yaml:"max_backups" json:"max_backups"`
		MaxAge     int    `yaml:"max_age" json:"max_age"`
		Compress   *bool  `yaml:"compress" json:"compress"`
	} `yaml:"log" json:"log"`
	JournalDB    string `yaml:"journal_db" json:"journal_db"`
	StatusListen string `yaml:"status_listen" json:"status_listen"`
}

// LoadFromFile 从指定文件加载配置；filePath 为空时只使用环境变量和默认值。
// 不做校验：检测进程调用 Validate，采集进程调用 ValidateHarvester。
func LoadFromFile(filePath string) (*Config, error) {
	cf := &ConfigFile{}
	if filePath != "" {
		var err error
		cf, err = loadConfigFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
	}

	// 优先级：配置文件 > 环境变量 > 默认值；凭据：环境变量 > 配置文件 > 凭据库
	cfg := &Config{
		AlertMethod:        strings.ToLower(pickString(cf.AlertMethod, "CELEB_ALERT_METHOD", AlertDiscord)),
		AlertPolicy:        strings.ToLower(pickString(cf.AlertPolicy, "CELEB_ALERT_POLICY", PolicyAttempted)),
		CheckInterval:      seconds(pickInt(cf.CheckIntervalSeconds, "CELEB_CHECK_INTERVAL", 3600)),
		Source:             strings.ToLower(pickString(cf.Source, "CELEB_SOURCE", SourceRecentlyAdded)),
		RequestPacing:      seconds(pickIntPtr(cf.RequestPacingSeconds, "CELEB_REQUEST_PACING", 60)),
		RequestTimeout:     seconds(pickInt(cf.RequestTimeoutSeconds, "CELEB_REQUEST_TIMEOUT", 20)),
		UseCustomUserAgent: pickBool(cf.UserAgent.Enabled, "CELEB_USE_CUSTOM_USER_AGENT", true),
		CustomUserAgent:    pickString(cf.UserAgent.Value, "CELEB_USER_AGENT", DefaultUserAgent),
		EnrichCacheTTL:     seconds(pickInt(cf.EnrichCacheTTLSeconds, "CELEB_ENRICH_CACHE_TTL", 0)),
		CoinGecko: CoinGeckoConfig{
			RecentlyAddedURL: pickString(cf.CoinGecko.RecentlyAddedURL, "COINGECKO_RECENTLY_ADDED_URL", "https://www.coingecko.com/en/coins/recently_added"),
			APIBase:          strings.TrimSuffix(pickString(cf.CoinGecko.APIBase, "COINGECKO_API_BASE", "https://api.coingecko.com/api/v3"), "/"),
			CoinPageBase:     pickString(cf.CoinGecko.CoinPageBase, "COINGECKO_COIN_PAGE_BASE", "https://www.coingecko.com/en/coins/"),
			MarketsPerPage:   pickInt(cf.CoinGecko.MarketsPerPage, "COINGECKO_MARKETS_PER_PAGE", 10),
		},
		Email: EmailConfig{
			Sender:     envFirst("EMAIL_SENDER", cf.Email.Sender),
			Password:   envFirst("EMAIL_PASSWORD", cf.Email.Password),
			SMTPHost:   pickString(cf.Email.SMTPHost, "EMAIL_SMTP_SERVER", "smtp.gmail.com"),
			SMTPPort:   pickInt(cf.Email.SMTPPort, "EMAIL_SMTP_PORT", 587),
			Recipients: pickList(cf.Email.Recipients, "EMAIL_RECIPIENTS"),
		},
		Webhook: WebhookConfig{
			URL:       envFirst("WEBHOOK_URL", envFirst("DISCORD_WEBHOOK_URL", cf.Webhook.URL)),
			Username:  pickString(cf.Webhook.Username, "WEBHOOK_USERNAME", "CelebCoinSentry Bot"),
			AvatarURL: pickString(cf.Webhook.AvatarURL, "WEBHOOK_AVATAR_URL", ""),
			Timeout:   seconds(pickInt(cf.Webhook.TimeoutSeconds, "WEBHOOK_TIMEOUT", 10)),
		},
		Files: FilesConfig{
			CelebrityNames: pickString(cf.Files.CelebrityNames, "CELEB_NAMES_FILE", "data/celebrity_names.txt"),
			AlertedCoins:   pickString(cf.Files.AlertedCoins, "CELEB_ALERTED_FILE", "data/alerted_coins.txt"),
			LastRevision:   pickString(cf.Files.LastRevision, "CELEB_REVISION_FILE", "data/last_revision.json"),
		},
		Harvester: HarvesterConfig{
			Interval:       seconds(pickInt(cf.Harvester.IntervalSeconds, "HARVEST_INTERVAL", 86400)),
			RequestPacing:  seconds(pickIntPtr(cf.Harvester.RequestPacingSeconds, "HARVEST_REQUEST_PACING", 1)),
			RequestTimeout: seconds(pickInt(cf.Harvester.RequestTimeoutSeconds, "HARVEST_REQUEST_TIMEOUT", 15)),
			APIURL:         pickString(cf.Harvester.APIURL, "WIKIPEDIA_API_URL", "https://en.wikipedia.org/w/api.php"),
			BaseURL:        strings.TrimSuffix(pickString(cf.Harvester.BaseURL, "WIKIPEDIA_BASE_URL", "https://en.wikipedia.org"), "/"),
			MainPageTitle:  pickString(cf.Harvester.MainPageTitle, "WIKIPEDIA_MAIN_PAGE", "Lists_of_celebrities"),
		},
		Secrets: SecretsConfig{
			BadgerPath: pickString(cf.Secrets.BadgerPath, "CELEB_SECRET_DB", ""),
			Key:        envFirst("CELEB_SECRET_KEY", cf.Secrets.Key),
			Prefix:     pickString(cf.Secrets.Prefix, "CELEB_SECRET_PREFIX", "env/"),
		},
		Log: LogConfig{
			Level:      pickString(cf.Log.Level, "LOG_LEVEL", "info"),
			File:       pickString(cf.Log.File, "LOG_FILE", "logs/celebsentry.log"),
			MaxSize:    pickInt(cf.Log.MaxSize, "LOG_MAX_SIZE", 100),
			MaxBackups: pickInt(cf.Log.MaxBackups, "LOG_MAX_BACKUPS", 3),
			MaxAge:     pickInt(cf.Log.MaxAge, "LOG_MAX_AGE", 7),
			Compress:   pickBool(cf.Log.Compress, "LOG_COMPRESS", true),
		},
		JournalDB:    pickString(cf.JournalDB, "CELEB_JOURNAL_DB", ""),
		StatusListen: pickString(cf.StatusListen, "CELEB_STATUS_LISTEN", ""),
	}
	return cfg, nil
}

// loadConfigFile 加载配置文件（支持 YAML 和 JSON）
func loadConfigFile(filePath string) (*ConfigFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var configFile ConfigFile
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
	}

	return &configFile, nil
}

// EmailEnabled 是否启用邮件通道
func (c *Config) EmailEnabled() bool {
	return c.AlertMethod == AlertEmail || c.AlertMethod == AlertBoth
}

// WebhookEnabled 是否启用 webhook 通道
func (c *Config) WebhookEnabled() bool {
	return c.AlertMethod == AlertWebhook || c.AlertMethod == AlertDiscord || c.AlertMethod == AlertBoth
}

// UserAgent 返回外呼使用的客户端标识头；未启用自定义时返回空字符串
func (c *Config) UserAgent() string {
	if !c.UseCustomUserAgent {
		return ""
	}
	return c.CustomUserAgent
}

// ApplySecrets 用凭据库补齐仍为空的通道凭据（键名与环境变量同名）
func (c *Config) ApplySecrets(lookup func(key string) string) {
	if lookup == nil {
		return
	}
	if c.Email.Sender == "" {
		c.Email.Sender = lookup("EMAIL_SENDER")
	}
	if c.Email.Password == "" {
		c.Email.Password = lookup("EMAIL_PASSWORD")
	}
	if c.Webhook.URL == "" {
		c.Webhook.URL = lookup("WEBHOOK_URL")
	}
	if c.Webhook.URL == "" {
		c.Webhook.URL = lookup("DISCORD_WEBHOOK_URL")
	}
}

// Validate 校验检测进程所需配置
func (c *Config) Validate() error {
	switch c.AlertMethod {
	case AlertEmail, AlertWebhook, AlertDiscord, AlertBoth:
	default:
		return fmt.Errorf("未知的告警方式: %s (支持 email, webhook, discord, both)", c.AlertMethod)
	}
	switch c.AlertPolicy {
	case PolicyAttempted, PolicyDelivered:
	default:
		return fmt.Errorf("未知的标记策略: %s (支持 attempted, delivered)", c.AlertPolicy)
	}
	switch c.Source {
	case SourceRecentlyAdded, SourceMarkets:
	default:
		return fmt.Errorf("未知的候选来源: %s (支持 recently_added, markets)", c.Source)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check_interval_seconds 必须大于 0")
	}
	if c.RequestPacing < 0 {
		return fmt.Errorf("request_pacing_seconds 不能为负数")
	}
	if c.UseCustomUserAgent && strings.TrimSpace(c.CustomUserAgent) == "" {
		return fmt.Errorf("启用了自定义 User-Agent 但 user_agent.value 为空")
	}
	if c.Source == SourceMarkets && (c.CoinGecko.MarketsPerPage <= 0 || c.CoinGecko.MarketsPerPage > 250) {
		return fmt.Errorf("coingecko.markets_per_page 必须在 1 到 250 之间")
	}
	if c.EmailEnabled() {
		if c.Email.Sender == "" {
			return fmt.Errorf("EMAIL_SENDER 未配置")
		}
		if c.Email.SMTPHost == "" || c.Email.SMTPPort <= 0 {
			return fmt.Errorf("SMTP 服务器配置无效: %s:%d", c.Email.SMTPHost, c.Email.SMTPPort)
		}
		if len(c.Email.Recipients) == 0 {
			return fmt.Errorf("EMAIL_RECIPIENTS 不能为空")
		}
	}
	if c.WebhookEnabled() && c.Webhook.URL == "" {
		return fmt.Errorf("WEBHOOK_URL 未配置")
	}
	if c.Files.CelebrityNames == "" || c.Files.AlertedCoins == "" {
		return fmt.Errorf("files.celebrity_names 和 files.alerted_coins 不能为空")
	}
	return nil
}

// ValidateHarvester 校验采集进程所需配置
func (c *Config) ValidateHarvester() error {
	if c.Harvester.Interval <= 0 {
		return fmt.Errorf("harvester.interval_seconds 必须大于 0")
	}
	if c.Harvester.RequestPacing < 0 {
		return fmt.Errorf("harvester.request_pacing_seconds 不能为负数")
	}
	if c.Harvester.APIURL == "" || c.Harvester.BaseURL == "" || c.Harvester.MainPageTitle == "" {
		return fmt.Errorf("harvester 的 api_url / base_url / main_page_title 不能为空")
	}
	if c.Files.CelebrityNames == "" || c.Files.LastRevision == "" {
		return fmt.Errorf("files.celebrity_names 和 files.last_revision 不能为空")
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// pickString 配置文件值优先，其次环境变量，最后默认值
func pickString(fileValue, envKey, defaultValue string) string {
	if strings.TrimSpace(fileValue) != "" {
		return strings.TrimSpace(fileValue)
	}
	return getEnv(envKey, defaultValue)
}

func pickInt(fileValue int, envKey string, defaultValue int) int {
	if fileValue > 0 {
		return fileValue
	}
	return parseIntEnv(envKey, defaultValue)
}

func pickIntPtr(fileValue *int, envKey string, defaultValue int) int {
	if fileValue != nil {
		return *fileValue
	}
	return parseIntEnv(envKey, defaultValue)
}

func pickBool(fileValue *bool, envKey string, defaultValue bool) bool {
	if fileValue != nil {
		return *fileValue
	}
	return parseBoolEnv(envKey, defaultValue)
}

func pickList(fileValue []string, envKey string) []string {
	if len(fileValue) > 0 {
		return cleanList(fileValue)
	}
	return parseList(getEnv(envKey, ""))
}

// envFirst 环境变量优先，其次配置文件值（用于凭据）
func envFirst(envKey, fileValue string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	return strings.TrimSpace(fileValue)
}

// parseList 解析逗号分隔的列表
func parseList(str string) []string {
	if str == "" {
		return nil
	}
	return cleanList(strings.Split(str, ","))
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, part := range in {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv 解析整数环境变量
func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

// parseBoolEnv 解析布尔环境变量
func parseBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}
