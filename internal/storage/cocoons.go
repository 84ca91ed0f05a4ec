package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/models"
)

const cocoonColumns = `id, dream_id, title, description, creator, stage, dream_score, minted, created_at, updated_at`

// PromoteDream creates the single cocoon forked from a dream. The cocoon
// starts in incubating with the given score, the creator becomes its first
// contributor, the dream is marked evolved and its evolution chain points at
// the new cocoon. All of it happens in one transaction.
func (s *Store) PromoteDream(ctx context.Context, dreamID string, score int) (*models.Cocoon, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	d, err := getDream(ctx, tx, dreamID)
	if err != nil {
		return nil, err
	}

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT id FROM cocoons WHERE dream_id = ?`, dreamID).Scan(&existing)
	switch {
	case err == nil:
		return nil, fmt.Errorf("dream %q already promoted to cocoon %q: %w", dreamID, existing, ErrDuplicate)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("lookup cocoon: %w", err)
	}

	if d.ArchivedAt != "" {
		return nil, fmt.Errorf("dream %q is archived: %w", dreamID, ErrNotPromotable)
	}
	if d.Status != models.DreamPending && d.Status != models.DreamApproved {
		return nil, fmt.Errorf("dream %q is %s: %w", dreamID, d.Status, ErrNotPromotable)
	}

	id := uuid.New().String()
	now := s.stamp()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO cocoons (id, dream_id, title, description, creator, stage, dream_score, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, dreamID, d.Title, d.Description, d.Creator, string(models.StageIncubating), score, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert cocoon: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO cocoon_contributors (cocoon_id, wallet, role, joined_at) VALUES (?, ?, ?, ?)`,
		id, d.Creator, models.RoleCreator, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert creator contributor: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE dreams SET status = 'evolved', updated_at = ? WHERE id = ? AND status = ?`,
		now, dreamID, string(d.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("mark dream evolved: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("dream %q changed during promotion: %w", dreamID, ErrConflict)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO evolution_chains (dream_id, stage_label, cocoon_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(dream_id) DO UPDATE SET stage_label = excluded.stage_label, cocoon_id = excluded.cocoon_id, updated_at = excluded.updated_at`,
		dreamID, models.ChainCocooned, id, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("link evolution chain: %w", err)
	}

	c, err := getCocoon(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return c, nil
}

// GetCocoon loads a cocoon with its contributors and evolution notes.
func (s *Store) GetCocoon(ctx context.Context, id string) (*models.Cocoon, error) {
	return getCocoon(ctx, s.db, id)
}

// GetCocoonByDream loads the cocoon forked from a dream.
func (s *Store) GetCocoonByDream(ctx context.Context, dreamID string) (*models.Cocoon, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM cocoons WHERE dream_id = ?`, dreamID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cocoon for dream %q: %w", dreamID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup cocoon: %w", err)
	}
	return s.GetCocoon(ctx, id)
}

func getCocoon(ctx context.Context, q querier, id string) (*models.Cocoon, error) {
	row := q.QueryRowContext(ctx, `SELECT `+cocoonColumns+` FROM cocoons WHERE id = ?`, id)
	c, err := scanCocoon(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cocoon %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan cocoon: %w", err)
	}

	if c.Contributors, err = getContributors(ctx, q, id); err != nil {
		return nil, err
	}
	if c.EvolutionNotes, err = getNotes(ctx, q, id); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCocoons returns cocoons, optionally only those in stage.
func (s *Store) ListCocoons(ctx context.Context, stage models.Stage) ([]models.Cocoon, error) {
	var rows *sql.Rows
	var err error
	if stage == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+cocoonColumns+` FROM cocoons ORDER BY created_at, rowid`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+cocoonColumns+` FROM cocoons WHERE stage = ? ORDER BY created_at, rowid`, string(stage))
	}
	if err != nil {
		return nil, fmt.Errorf("list cocoons: %w", err)
	}
	defer rows.Close()

	var cocoons []models.Cocoon
	for rows.Next() {
		c, err := scanCocoon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cocoon: %w", err)
		}
		cocoons = append(cocoons, *c)
	}
	return cocoons, rows.Err()
}

// CompareAndSetStage moves a cocoon from expected to next and appends entry
// to the stage log in the same transaction. When score is non-nil it is stored
// as the new dream score. ErrConflict means the stored stage was no longer
// expected; nothing was written.
func (s *Store) CompareAndSetStage(ctx context.Context, id string, expected, next models.Stage, score *int, entry models.StageChangeLogEntry) (*models.Cocoon, *models.StageChangeLogEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	updatedAt := entry.CreatedAt
	if updatedAt == "" {
		updatedAt = s.stamp()
	}

	var scoreArg any
	if score != nil {
		scoreArg = *score
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE cocoons SET stage = ?, dream_score = COALESCE(?, dream_score), updated_at = ? WHERE id = ? AND stage = ?`,
		string(next), scoreArg, updatedAt, id, string(expected),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("update cocoon stage: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM cocoons WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("cocoon %q: %w", id, ErrNotFound)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("lookup cocoon: %w", err)
		}
		return nil, nil, fmt.Errorf("cocoon %q is no longer %s: %w", id, expected, ErrConflict)
	}

	logged, err := s.appendStageLog(ctx, tx, entry)
	if err != nil {
		return nil, nil, err
	}
	c, err := getCocoon(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return c, logged, nil
}

// UpdateCocoonScore stores a re-evaluated dream score.
func (s *Store) UpdateCocoonScore(ctx context.Context, id string, score int) (*models.Cocoon, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE cocoons SET dream_score = ?, updated_at = ? WHERE id = ?`,
		score, s.stamp(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update cocoon score: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("cocoon %q: %w", id, ErrNotFound)
	}
	return s.GetCocoon(ctx, id)
}

// AddContributor adds a wallet to a cocoon's contributor set.
func (s *Store) AddContributor(ctx context.Context, cocoonID, wallet, role string) (*models.Cocoon, error) {
	if _, err := s.GetCocoon(ctx, cocoonID); err != nil {
		return nil, err
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO cocoon_contributors (cocoon_id, wallet, role, joined_at) VALUES (?, ?, ?, ?) ON CONFLICT(cocoon_id, wallet) DO NOTHING`,
		cocoonID, wallet, role, s.stamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert contributor: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("wallet %q already contributes to cocoon %q: %w", wallet, cocoonID, ErrDuplicate)
	}
	return s.GetCocoon(ctx, cocoonID)
}

// AddEvolutionNote appends a note to a cocoon.
func (s *Store) AddEvolutionNote(ctx context.Context, cocoonID, author, content string) (*models.EvolutionNote, error) {
	if _, err := s.GetCocoon(ctx, cocoonID); err != nil {
		return nil, err
	}
	note := models.EvolutionNote{
		ID:        uuid.New().String(),
		Author:    author,
		Content:   content,
		CreatedAt: s.stamp(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evolution_notes (id, cocoon_id, author, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		note.ID, cocoonID, note.Author, note.Content, note.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert evolution note: %w", err)
	}
	return &note, nil
}

func getContributors(ctx context.Context, q querier, cocoonID string) ([]models.Contributor, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT wallet, role, joined_at FROM cocoon_contributors WHERE cocoon_id = ? ORDER BY joined_at, rowid`,
		cocoonID,
	)
	if err != nil {
		return nil, fmt.Errorf("query contributors: %w", err)
	}
	defer rows.Close()

	var out []models.Contributor
	for rows.Next() {
		var c models.Contributor
		if err := rows.Scan(&c.Wallet, &c.Role, &c.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan contributor: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func getNotes(ctx context.Context, q querier, cocoonID string) ([]models.EvolutionNote, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, author, content, created_at FROM evolution_notes WHERE cocoon_id = ? ORDER BY created_at, rowid`,
		cocoonID,
	)
	if err != nil {
		return nil, fmt.Errorf("query evolution notes: %w", err)
	}
	defer rows.Close()

	var out []models.EvolutionNote
	for rows.Next() {
		var n models.EvolutionNote
		if err := rows.Scan(&n.ID, &n.Author, &n.Content, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan evolution note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanCocoon(row rowScanner) (*models.Cocoon, error) {
	var c models.Cocoon
	var stage string
	var minted int
	if err := row.Scan(&c.ID, &c.DreamID, &c.Title, &c.Description, &c.Creator, &stage, &c.DreamScore, &minted, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Stage = models.Stage(stage)
	c.Minted = minted != 0
	return &c, nil
}
