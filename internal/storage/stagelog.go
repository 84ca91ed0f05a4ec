package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/models"
)

// AppendStageLog writes one stage change entry. Entries are immutable once
// written; the schema rejects updates and deletes.
func (s *Store) AppendStageLog(ctx context.Context, entry models.StageChangeLogEntry) (*models.StageChangeLogEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	logged, err := s.appendStageLog(ctx, tx, entry)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return logged, nil
}

func (s *Store) appendStageLog(ctx context.Context, tx *sql.Tx, entry models.StageChangeLogEntry) (*models.StageChangeLogEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt == "" {
		entry.CreatedAt = s.stamp()
	}
	if entry.Kind == "" {
		entry.Kind = models.ChangeTransition
	}

	success := 0
	if entry.Success {
		success = 1
	}
	result, err := tx.ExecContext(ctx,
		`INSERT INTO stage_log (id, cocoon_id, from_stage, to_stage, actor, kind, success, reason, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.CocoonID, string(entry.FromStage), string(entry.ToStage), entry.Actor, string(entry.Kind), success, entry.Reason, entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert stage log entry: %w", err)
	}
	entry.Seq, _ = result.LastInsertId()
	return &entry, nil
}

// StageLog returns every entry for a cocoon in append order.
func (s *Store) StageLog(ctx context.Context, cocoonID string) ([]models.StageChangeLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, cocoon_id, from_stage, to_stage, actor, kind, success, reason, created_at
		 FROM stage_log WHERE cocoon_id = ? ORDER BY seq`,
		cocoonID,
	)
	if err != nil {
		return nil, fmt.Errorf("query stage log: %w", err)
	}
	defer rows.Close()

	var entries []models.StageChangeLogEntry
	for rows.Next() {
		var e models.StageChangeLogEntry
		var from, to, kind string
		var success int
		if err := rows.Scan(&e.Seq, &e.ID, &e.CocoonID, &from, &to, &e.Actor, &kind, &success, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stage log entry: %w", err)
		}
		e.FromStage = models.Stage(from)
		e.ToStage = models.Stage(to)
		e.Kind = models.ChangeKind(kind)
		e.Success = success != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
