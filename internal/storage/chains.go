package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/models"
)

// GetChain returns the evolution chain of a scored dream.
func (s *Store) GetChain(ctx context.Context, dreamID string) (*models.EvolutionChain, error) {
	return getChain(ctx, s.db, dreamID)
}

func getChain(ctx context.Context, q querier, dreamID string) (*models.EvolutionChain, error) {
	var c models.EvolutionChain
	var meta string
	err := q.QueryRowContext(ctx,
		`SELECT dream_id, stage_label, cocoon_id, metadata, created_at, updated_at FROM evolution_chains WHERE dream_id = ?`,
		dreamID,
	).Scan(&c.DreamID, &c.StageLabel, &c.CocoonID, &meta, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("evolution chain for dream %q: %w", dreamID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan evolution chain: %w", err)
	}
	if err := decodeJSON(meta, &c.Metadata); err != nil {
		return nil, fmt.Errorf("decode chain metadata: %w", err)
	}
	return &c, nil
}
