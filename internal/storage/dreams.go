package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/models"
)

const dreamColumns = `id, title, description, tags, creator, status, score, category_scores, rationale, created_at, updated_at, COALESCE(archived_at, '')`

// DreamFilter narrows ListDreams. Empty fields match everything.
type DreamFilter struct {
	Status          models.DreamStatus
	Creator         string
	IncludeArchived bool
}

// CreateDream inserts a new pending dream. Tags are normalized to a
// lowercase, deduplicated list.
func (s *Store) CreateDream(ctx context.Context, title, description, creator string, tags []string) (*models.Dream, error) {
	id := uuid.New().String()
	now := s.stamp()

	tagsJSON, err := encodeJSON(NormalizeTags(tags))
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dreams (id, title, description, tags, creator, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, 'pending', ?, ?)`,
		id, title, description, tagsJSON, creator, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert dream: %w", err)
	}
	return s.GetDream(ctx, id)
}

// GetDream looks up a dream by id, archived or not.
func (s *Store) GetDream(ctx context.Context, id string) (*models.Dream, error) {
	return getDream(ctx, s.db, id)
}

func getDream(ctx context.Context, q querier, id string) (*models.Dream, error) {
	row := q.QueryRowContext(ctx, `SELECT `+dreamColumns+` FROM dreams WHERE id = ?`, id)
	d, err := scanDream(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dream %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan dream: %w", err)
	}
	return d, nil
}

// ListDreams returns dreams ordered by creation time.
func (s *Store) ListDreams(ctx context.Context, f DreamFilter) ([]models.Dream, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Creator != "" {
		where = append(where, "creator = ?")
		args = append(args, f.Creator)
	}
	if !f.IncludeArchived {
		where = append(where, "archived_at IS NULL")
	}

	query := `SELECT ` + dreamColumns + ` FROM dreams`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dreams: %w", err)
	}
	defer rows.Close()

	var dreams []models.Dream
	for rows.Next() {
		d, err := scanDream(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dream: %w", err)
		}
		dreams = append(dreams, *d)
	}
	return dreams, rows.Err()
}

// RecordScore stores a score on the dream and creates or refreshes its
// evolution chain with the given metadata snapshot, in one transaction.
func (s *Store) RecordScore(ctx context.Context, dreamID string, score int, categories map[string]int, rationale []string, snapshot map[string]any) (*models.Dream, *models.EvolutionChain, error) {
	catJSON, err := encodeJSON(categories)
	if err != nil {
		return nil, nil, fmt.Errorf("encode category scores: %w", err)
	}
	ratJSON, err := encodeJSON(rationale)
	if err != nil {
		return nil, nil, fmt.Errorf("encode rationale: %w", err)
	}
	metaJSON, err := encodeJSON(snapshot)
	if err != nil {
		return nil, nil, fmt.Errorf("encode chain metadata: %w", err)
	}
	now := s.stamp()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE dreams SET score = ?, category_scores = ?, rationale = ?, updated_at = ? WHERE id = ?`,
		score, catJSON, ratJSON, now, dreamID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("update dream score: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil, fmt.Errorf("dream %q: %w", dreamID, ErrNotFound)
	}

	// The stage label is only set on first scoring; promotion owns it after that.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO evolution_chains (dream_id, stage_label, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(dream_id) DO UPDATE SET metadata = excluded.metadata, updated_at = excluded.updated_at`,
		dreamID, models.ChainEvaluated, metaJSON, now, now,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("upsert evolution chain: %w", err)
	}

	dream, err := getDream(ctx, tx, dreamID)
	if err != nil {
		return nil, nil, err
	}
	chain, err := getChain(ctx, tx, dreamID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return dream, chain, nil
}

// SetDreamStatus moves a dream from expected to next. It fails with
// ErrConflict when the stored status is no longer expected.
func (s *Store) SetDreamStatus(ctx context.Context, id string, expected, next models.DreamStatus) (*models.Dream, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE dreams SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(next), s.stamp(), id, string(expected),
	)
	if err != nil {
		return nil, fmt.Errorf("update dream status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		if _, err := s.GetDream(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("dream %q is no longer %s: %w", id, expected, ErrConflict)
	}
	return s.GetDream(ctx, id)
}

// ArchiveDream soft-archives a dream. Dreams are never deleted.
func (s *Store) ArchiveDream(ctx context.Context, id string) (*models.Dream, error) {
	d, err := s.GetDream(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.ArchivedAt != "" {
		return nil, fmt.Errorf("dream %q is already archived: %w", id, ErrConflict)
	}

	now := s.stamp()
	_, err = s.db.ExecContext(ctx,
		`UPDATE dreams SET archived_at = ?, updated_at = ? WHERE id = ? AND archived_at IS NULL`,
		now, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("archive dream: %w", err)
	}
	return s.GetDream(ctx, id)
}

// NormalizeTags lowercases, trims and deduplicates tags, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func scanDream(row rowScanner) (*models.Dream, error) {
	var d models.Dream
	var tags, cats, rationale, status string
	err := row.Scan(&d.ID, &d.Title, &d.Description, &tags, &d.Creator, &status, &d.Score, &cats, &rationale, &d.CreatedAt, &d.UpdatedAt, &d.ArchivedAt)
	if err != nil {
		return nil, err
	}
	d.Status = models.DreamStatus(status)
	if err := decodeJSON(tags, &d.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := decodeJSON(cats, &d.CategoryScores); err != nil {
		return nil, fmt.Errorf("decode category scores: %w", err)
	}
	if err := decodeJSON(rationale, &d.Rationale); err != nil {
		return nil, fmt.Errorf("decode rationale: %w", err)
	}
	return &d, nil
}
