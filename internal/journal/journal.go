// Package journal 把每次告警分发记录到 sqlite，供状态接口查询。
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const maxDescriptionRunes = 1000

// Entry 一次分发记录
type Entry struct {
	ID           int64     `json:"id"`
	CycleID      string    `json:"cycle_id"`
	CoinID       string    `json:"coin_id"`
	Name         string    `json:"name"`
	Symbol       string    `json:"symbol"`
	Price        string    `json:"price"`
	Reference    string    `json:"reference"`
	Description  string    `json:"description,omitempty"`
	Delivered    []string  `json:"delivered"`
	Failed       []string  `json:"failed"`
	Marked       bool      `json:"marked"`
	PersistError string    `json:"persist_error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Journal sqlite 告警流水
type Journal struct {
	db *sql.DB
}

// Open 打开（必要时创建）数据库并建表
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS alerts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  cycle_id TEXT NOT NULL,
  coin_id TEXT NOT NULL,
  name TEXT NOT NULL,
  symbol TEXT NOT NULL,
  price TEXT NOT NULL,
  reference TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  delivered TEXT NOT NULL DEFAULT '',
  failed TEXT NOT NULL DEFAULT '',
  marked INTEGER NOT NULL DEFAULT 0,
  persist_error TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_coin ON alerts(coin_id);`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close 关闭数据库；nil 安全
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record 写入一条记录；CreatedAt 为零值时取当前时间
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx, `
INSERT INTO alerts (cycle_id, coin_id, name, symbol, price, reference, description, delivered, failed, marked, persist_error, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
`, e.CycleID, e.CoinID, e.Name, e.Symbol, e.Price, e.Reference, truncateRunes(e.Description, maxDescriptionRunes),
		strings.Join(e.Delivered, ","), strings.Join(e.Failed, ","), boolToInt(e.Marked), e.PersistError,
		e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errors.Wrapf(err, "record alert %s", e.CoinID)
	}
	return nil
}

// Recent 最近的记录（新的在前）
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT id, cycle_id, coin_id, name, symbol, price, reference, description, delivered, failed, marked, persist_error, created_at
FROM alerts
ORDER BY id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query alerts")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			delivered string
			failed    string
			marked    int
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.CycleID, &e.CoinID, &e.Name, &e.Symbol, &e.Price, &e.Reference,
			&e.Description, &delivered, &failed, &marked, &e.PersistError, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scan alert")
		}
		e.Delivered = splitList(delivered)
		e.Failed = splitList(failed)
		e.Marked = marked != 0
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
