package state

import (
	"sort"
	"strings"

	"github.com/betbot/celebsentry/pkg/logger"
	"github.com/betbot/celebsentry/pkg/persistence"
	"github.com/pkg/errors"
)

// ReferenceSet 名人名称集合（保留原始大小写，匹配时再小写）
type ReferenceSet struct {
	names []string
}

// NewReferenceSet 去重后构建集合
func NewReferenceSet(names []string) *ReferenceSet {
	return &ReferenceSet{names: uniqueSorted(names)}
}

// LoadReferenceSet 启动时加载名人名单；文件不存在只告警并返回空集合
func LoadReferenceSet(path string) (*ReferenceSet, error) {
	lines, err := persistence.ReadLines(path)
	if err != nil {
		if errors.Is(err, persistence.ErrNotExists) {
			logger.Warnf("名人名单文件不存在，本进程不会产生任何命中（先运行 harvester）: %s", path)
			return NewReferenceSet(nil), nil
		}
		return nil, errors.Wrap(err, "load reference set")
	}
	rs := NewReferenceSet(lines)
	logger.Infof("已加载名人名单: %d 个名称 (%s)", rs.Len(), path)
	return rs, nil
}

// SaveReferenceSet 按升序整文件重写名人名单
func SaveReferenceSet(path string, names []string) error {
	if err := persistence.WriteLines(path, uniqueSorted(names)); err != nil {
		return errors.Wrap(err, "save reference set")
	}
	return nil
}

// Names 返回升序副本
func (r *ReferenceSet) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len 名称数量
func (r *ReferenceSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// uniqueSorted 折叠名称内的空白（名单文件一行一个），去重后升序
func uniqueSorted(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.Join(strings.Fields(n), " ")
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
