// Package matcher 判断候选币种是否引用了名人：不区分大小写的子串包含。
//
// 第一阶段只看名称和 ticker，用来避免为绝大多数不相关的币种请求详情；
// 第二阶段再加上详情描述。多个名称同时命中时取第一个，不做排序打分。
package matcher

import (
	"strings"

	"github.com/betbot/celebsentry/internal/domain"
)

type reference struct {
	display string
	lower   string
}

// Matcher 名人名称匹配器，构建后只读
type Matcher struct {
	refs []reference
}

// New 按给定顺序构建；空白名称会被忽略（空串是任何字符串的子串）
func New(names []string) *Matcher {
	m := &Matcher{refs: make([]reference, 0, len(names))}
	for _, n := range names {
		lower := strings.ToLower(strings.TrimSpace(n))
		if lower == "" {
			continue
		}
		m.refs = append(m.refs, reference{display: n, lower: lower})
	}
	return m
}

// Len 参与匹配的名称数量
func (m *Matcher) Len() int {
	return len(m.refs)
}

// PreFilter 第一阶段：名称 + ticker
func (m *Matcher) PreFilter(c domain.CandidateCoin) (string, bool) {
	return m.find(c.Name + " " + c.Symbol)
}

// Confirm 第二阶段：名称 + ticker + 描述
func (m *Matcher) Confirm(c domain.CandidateCoin, description string) (string, bool) {
	return m.find(c.Name + " " + c.Symbol + " " + description)
}

func (m *Matcher) find(text string) (string, bool) {
	haystack := strings.ToLower(text)
	for _, r := range m.refs {
		if strings.Contains(haystack, r.lower) {
			return r.display, true
		}
	}
	return "", false
}
