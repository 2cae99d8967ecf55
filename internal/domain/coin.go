package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PriceUnknown 价格缺失时告警消息里的占位符
const PriceUnknown = "unknown"

// CandidateCoin 一轮检测中的候选币种
type CandidateCoin struct {
	ID          string           // 币种标识（去重键）
	Name        string           // 展示名称
	Symbol      string           // ticker
	Price       *decimal.Decimal // 仅 markets 来源提供
	Description string           // 详情描述，补充前为空
}

// NormalizeID 去掉标识首尾空白，和已告警集合文件重新加载后的形式一致
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}

// IsValid 标识为空或含换行的记录在匹配前丢弃（已告警集合按行存储）
func (c CandidateCoin) IsValid() bool {
	id := NormalizeID(c.ID)
	return id != "" && !strings.ContainsAny(id, "\r\n")
}

// PriceText 以美元格式返回价格，缺失时返回 PriceUnknown
func (c CandidateCoin) PriceText() string {
	if c.Price == nil {
		return PriceUnknown
	}
	return "$" + c.Price.String()
}
