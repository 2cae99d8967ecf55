package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/betbot/celebsentry/pkg/logger"
	"github.com/pkg/errors"
)

// Store 存储接口
type Store interface {
	Save(data interface{}) error
	Load(data interface{}) error
}

// ErrNotExists 表示数据不存在
var ErrNotExists = fmt.Errorf("persistence data not exists")

// JSONFile 单文件 JSON 存储（例如修订标记 {"last_timestamp": ...}）
type JSONFile struct {
	path string
}

var _ Store = (*JSONFile)(nil)

// NewJSONFile 创建 JSON 文件存储
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Save 保存数据（先写 .tmp 再 rename）
func (s *JSONFile) Save(data interface{}) error {
	logger.Debugf("[persistence] Save: path=%s", s.path)
	b, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "encode json")
	}
	return writeAtomic(s.path, b)
}

// Load 加载数据；文件不存在或为空返回 ErrNotExists
func (s *JSONFile) Load(data interface{}) error {
	logger.Debugf("[persistence] Load: path=%s", s.path)
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotExists
		}
		return errors.Wrapf(err, "read %s", s.path)
	}
	if len(b) == 0 {
		return ErrNotExists
	}
	if err := json.Unmarshal(b, data); err != nil {
		return errors.Wrapf(err, "decode %s", s.path)
	}
	return nil
}

// writeAtomic 写入临时文件、fsync 后 rename，保证要么旧内容要么新内容
func writeAtomic(path string, b []byte) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "mkdir %s", dir)
		}
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open %s", tmp)
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "write %s", tmp)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "sync %s", tmp)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "rename %s", tmp)
	}
	return nil
}
