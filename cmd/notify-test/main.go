package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/betbot/celebsentry/internal/app"
	"github.com/betbot/celebsentry/internal/domain"
	"github.com/betbot/celebsentry/internal/notify"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// 通过已配置的通道发送一条示例告警，用来验证凭据和地址
func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "配置文件路径（支持 .yaml, .yml, .json；默认 "+app.DefaultConfigPath+"）")
	coinID := flag.String("id", "test-celebrity-coin", "示例币种标识")
	flag.Parse()

	cfg, err := app.LoadConfig(app.ResolveConfigPath(*configPath))
	if err != nil {
		fatal(err)
	}
	cfg.Log.File = ""
	if err := app.InitLogger(cfg); err != nil {
		fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	dispatcher, err := notify.FromConfig(cfg)
	if err != nil {
		fatal(err)
	}

	price := decimal.RequireFromString("0.000123")
	coin := domain.CandidateCoin{ID: *coinID, Name: "Test Celebrity Coin", Symbol: "TEST", Price: &price}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res := dispatcher.Notify(ctx, coin)

	for _, o := range res.Outcomes {
		if o.Err != nil {
			fmt.Fprintf(os.Stdout, "%-8s FAILED  %v\n", o.Channel, o.Err)
			continue
		}
		fmt.Fprintf(os.Stdout, "%-8s sent\n", o.Channel)
	}
	if !res.Delivered() {
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
