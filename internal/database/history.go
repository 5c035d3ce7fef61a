package database

import (
	"context"
	"fmt"
	"time"
)

// Record 是一条音频生成记录。created_at 以毫秒时间戳存储。
type Record struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	MimeType  string    `json:"mime_type"`
	Engine    string    `json:"engine"`
	Voice     string    `json:"voice"`
	Rate      int       `json:"rate"`
	TextChars int       `json:"text_chars"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Insert 写入一条记录。
func (db *DB) Insert(ctx context.Context, r Record) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO artifacts (id, path, mime_type, engine, voice, rate, text_chars, size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Path, r.MimeType, r.Engine, r.Voice, r.Rate, r.TextChars, r.Size, r.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("[database] 写入记录失败: %w", err)
	}
	return nil
}

// Recent 按生成时间倒序返回最近 limit 条记录。
func (db *DB) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, path, mime_type, engine, voice, rate, text_chars, size, created_at
		 FROM artifacts ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("[database] 查询记录失败: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.Path, &r.MimeType, &r.Engine, &r.Voice,
			&r.Rate, &r.TextChars, &r.Size, &createdAt); err != nil {
			return nil, fmt.Errorf("[database] 读取记录失败: %w", err)
		}
		r.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// PruneBefore 删除早于 cutoff 的记录，返回删除的条数。
func (db *DB) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM artifacts WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("[database] 清理记录失败: %w", err)
	}
	return res.RowsAffected()
}
