package persistence

import (
	"bufio"
	"bytes"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ReadLines 读取按行分隔的 UTF-8 文本文件，去掉首尾空白并跳过空行。
// 文件不存在时返回 ErrNotExists。
func ReadLines(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExists
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}

	var out []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "scan %s", path)
	}
	return out, nil
}

// WriteLines 以整文件重写的方式保存，每行一项（含结尾换行）
func WriteLines(path string, lines []string) error {
	var buf bytes.Buffer
	for _, l := range lines {
		if strings.ContainsAny(l, "\r\n") {
			return errors.Errorf("line contains newline: %q", l)
		}
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return writeAtomic(path, buf.Bytes())
}
