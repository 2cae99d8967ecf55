package state

import (
	"sort"
	"strings"
	"sync"

	"github.com/betbot/celebsentry/pkg/logger"
	"github.com/betbot/celebsentry/pkg/persistence"
	"github.com/pkg/errors"
)

// AlertedSet 已告警币种集合：只增不减，每次新增后整文件重写。
// 新标识只有在落盘成功后才进入内存集合。
type AlertedSet struct {
	mu   sync.RWMutex
	path string
	ids  map[string]struct{}
}

// LoadAlertedSet 从文件加载已告警集合；文件不存在视为空集合
func LoadAlertedSet(path string) (*AlertedSet, error) {
	s := &AlertedSet{path: path, ids: make(map[string]struct{})}
	lines, err := persistence.ReadLines(path)
	if err != nil {
		if errors.Is(err, persistence.ErrNotExists) {
			logger.Infof("已告警集合文件不存在，从空集合开始: %s", path)
			return s, nil
		}
		return nil, errors.Wrap(err, "load alerted set")
	}
	for _, id := range lines {
		s.ids[id] = struct{}{}
	}
	logger.Infof("已加载已告警集合: %d 个币种 (%s)", len(s.ids), path)
	return s, nil
}

// Contains 判断标识是否已告警（忽略首尾空白）
func (s *AlertedSet) Contains(id string) bool {
	id = strings.TrimSpace(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Add 新增标识并同步落盘；写入失败时返回错误且集合不变。
// 标识去掉首尾空白后保存，与重新加载时读到的内容一致。
func (s *AlertedSet) Add(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("empty coin id")
	}
	if strings.ContainsAny(id, "\r\n") {
		return errors.Errorf("coin id contains line break: %q", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return nil
	}

	next := make([]string, 0, len(s.ids)+1)
	for k := range s.ids {
		next = append(next, k)
	}
	next = append(next, id)
	sort.Strings(next)

	if err := persistence.WriteLines(s.path, next); err != nil {
		return errors.Wrapf(err, "persist alerted set with %s", id)
	}
	s.ids[id] = struct{}{}
	return nil
}

// Len 集合大小
func (s *AlertedSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// IDs 返回排序后的标识副本
func (s *AlertedSet) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.ids))
	for k := range s.ids {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
