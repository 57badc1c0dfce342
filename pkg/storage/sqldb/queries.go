package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/rotaworks/rotachat/pkg/storage"
)

func (d *Driver) ActiveModelConfigs(ctx context.Context) ([]storage.ModelConfig, error) {
	q := d.sql.Select("id", "display_name", "model_identifier", "base_url", "system_prompt", "secret_ref", "is_active", "ordering").
		From("model_configs").
		Where(sq.Eq{"is_active": true}).
		OrderBy("ordering ASC")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build model configs query: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query model configs: %w", err)
	}
	defer rows.Close()

	var configs []storage.ModelConfig
	for rows.Next() {
		var cfg storage.ModelConfig
		if err := rows.Scan(
			&cfg.ID,
			&cfg.DisplayName,
			&cfg.ModelIdentifier,
			&cfg.BaseURL,
			&cfg.SystemPrompt,
			&cfg.SecretRef,
			&cfg.IsActive,
			&cfg.Ordering,
		); err != nil {
			return nil, fmt.Errorf("scan model config: %w", err)
		}
		configs = append(configs, cfg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate model configs: %w", err)
	}

	return configs, nil
}

func (d *Driver) InsertModelConfig(ctx context.Context, cfg storage.ModelConfig) error {
	q := d.sql.Insert("model_configs").
		Columns("id", "display_name", "model_identifier", "base_url", "system_prompt", "secret_ref", "is_active", "ordering").
		Values(cfg.ID, cfg.DisplayName, cfg.ModelIdentifier, cfg.BaseURL, cfg.SystemPrompt, cfg.SecretRef, cfg.IsActive, cfg.Ordering)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build model config insert: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert model config: %w", err)
	}

	return nil
}

func (d *Driver) InsertUsageLog(ctx context.Context, entry *storage.UsageLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	q := d.sql.Insert("usage_log").
		Columns("user_id", "model_identifier", "client_message_id", "status",
			"prompt_tokens", "completion_tokens", "total_tokens",
			"error_code", "error_message", "latency_ms", "created_at").
		Values(entry.UserID, entry.ModelIdentifier, entry.ClientMessageID, entry.Status,
			nullableInt(entry.PromptTokens), nullableInt(entry.CompletionTokens), nullableInt(entry.TotalTokens),
			entry.ErrorCode, entry.ErrorMessage, entry.LatencyMS, entry.CreatedAt)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build usage log insert: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert usage log: %w", err)
	}

	return nil
}

func (d *Driver) RecentUsage(ctx context.Context, limit int) ([]storage.UsageLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	q := d.sql.Select("id", "user_id", "model_identifier", "client_message_id", "status",
		"prompt_tokens", "completion_tokens", "total_tokens",
		"error_code", "error_message", "latency_ms", "created_at").
		From("usage_log").
		OrderBy("id DESC").
		Limit(uint64(limit))

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent usage query: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent usage: %w", err)
	}
	defer rows.Close()

	var entries []storage.UsageLogEntry
	for rows.Next() {
		var entry storage.UsageLogEntry
		var prompt, completion, total sql.NullInt64
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.ModelIdentifier,
			&entry.ClientMessageID,
			&entry.Status,
			&prompt,
			&completion,
			&total,
			&entry.ErrorCode,
			&entry.ErrorMessage,
			&entry.LatencyMS,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		entry.PromptTokens = intPtr(prompt)
		entry.CompletionTokens = intPtr(completion)
		entry.TotalTokens = intPtr(total)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage rows: %w", err)
	}

	return entries, nil
}

func (d *Driver) UsageStats(ctx context.Context) ([]storage.UsageStat, error) {
	q := d.sql.Select("model_identifier", "status", "COUNT(*)", "COALESCE(SUM(total_tokens), 0)").
		From("usage_log").
		GroupBy("model_identifier", "status").
		OrderBy("model_identifier ASC", "status ASC")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build usage stats query: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage stats: %w", err)
	}
	defer rows.Close()

	var stats []storage.UsageStat
	for rows.Next() {
		var stat storage.UsageStat
		if err := rows.Scan(&stat.ModelIdentifier, &stat.Status, &stat.Requests, &stat.TotalTokens); err != nil {
			return nil, fmt.Errorf("scan usage stat: %w", err)
		}
		stats = append(stats, stat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage stats: %w", err)
	}

	return stats, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
