package notify

import (
	"fmt"
	"strings"

	"github.com/betbot/celebsentry/internal/domain"
)

// DefaultCoinPageBase 币种规范链接前缀
const DefaultCoinPageBase = "https://www.coingecko.com/en/coins/"

// CoinLink 返回币种页面链接
func CoinLink(base string, coin domain.CandidateCoin) string {
	if base == "" {
		base = DefaultCoinPageBase
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + coin.ID
}

// Subject 邮件标题
func Subject(coin domain.CandidateCoin) string {
	return fmt.Sprintf("Celebrity Coin Alert: %s (%s)", coin.Name, coin.Symbol)
}

// PlainBody 纯文本正文（邮件）
func PlainBody(coin domain.CandidateCoin, linkBase string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Coin ID: %s\n", coin.ID)
	fmt.Fprintf(&b, "Name: %s\n", coin.Name)
	fmt.Fprintf(&b, "Symbol: %s\n", coin.Symbol)
	fmt.Fprintf(&b, "Price: %s\n", coin.PriceText())
	fmt.Fprintf(&b, "More info: %s\n", CoinLink(linkBase, coin))
	return b.String()
}

// MarkdownContent webhook 消息内容（Discord 风格 markdown）
func MarkdownContent(coin domain.CandidateCoin, linkBase string) string {
	return strings.Join([]string{
		"**Celebrity Coin Alert**",
		fmt.Sprintf("**Name**: %s (%s)", coin.Name, coin.Symbol),
		fmt.Sprintf("**Price**: %s", coin.PriceText()),
		fmt.Sprintf("**Link**: %s", CoinLink(linkBase, coin)),
	}, "\n")
}
