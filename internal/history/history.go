// Package history 本地 SQLite 台账，记录每次生成的脚本
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"batchgen/pkg/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS plans (
	id            TEXT PRIMARY KEY,
	ct            TEXT NOT NULL,
	start_time    TEXT NOT NULL,
	total_hosts   INTEGER NOT NULL,
	loaded_nodes  INTEGER NOT NULL,
	imbalance     INTEGER NOT NULL,
	artifact_path TEXT NOT NULL,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_plans_ct ON plans (ct, created_at);
`

// timeLayout 固定宽度的 UTC 时间，按文本排序即按时间排序
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry 台账中的一行
type Entry struct {
	ID           string
	CT           string
	StartTime    string
	TotalHosts   int
	LoadedNodes  int
	Imbalance    int
	ArtifactPath string
	CreatedAt    time.Time
}

// Ledger 生成台账
type Ledger struct {
	db *sql.DB
}

// Open 打开（必要时创建）台账数据库
// path 示例: "/var/lib/batchgen/history.db" 或 ":memory:"
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// 单写者，避免 database is locked
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close 关闭数据库
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record 记录一次生成
func (l *Ledger) Record(ctx context.Context, plan *model.Plan, artifactPath string) (*Entry, error) {
	e := &Entry{
		ID:           plan.ID,
		CT:           plan.CT,
		StartTime:    plan.StartTime.String(),
		ArtifactPath: artifactPath,
		CreatedAt:    plan.CreatedAt.UTC(),
	}
	if plan.Assignment != nil {
		e.TotalHosts = plan.Assignment.Total()
		e.LoadedNodes = len(plan.Assignment.Loaded())
		e.Imbalance = plan.Assignment.Imbalance()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO plans (id, ct, start_time, total_hosts, loaded_nodes, imbalance, artifact_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CT, e.StartTime, e.TotalHosts, e.LoadedNodes, e.Imbalance, e.ArtifactPath,
		e.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("history: record %s: %w", plan.CT, err)
	}
	return e, nil
}

// List 按时间倒序列出记录，ct 为空时列出全部
func (l *Ledger) List(ctx context.Context, ct string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, ct, start_time, total_hosts, loaded_nodes, imbalance, artifact_path, created_at
		FROM plans`
	args := []any{}
	if ct != "" {
		query += ` WHERE ct = ?`
		args = append(args, ct)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			created string
		)
		if err := rows.Scan(&e.ID, &e.CT, &e.StartTime, &e.TotalHosts, &e.LoadedNodes, &e.Imbalance, &e.ArtifactPath, &created); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("history: parse created_at %q: %w", created, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
