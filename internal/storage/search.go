package storage

import (
	"context"
	"fmt"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/models"
)

// SearchDreams performs FTS5 full-text search over dream titles, descriptions
// and tags. Archived dreams are excluded.
func (s *Store) SearchDreams(ctx context.Context, query string) ([]models.Dream, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+qualifiedDreamColumns+` FROM dreams d
		 JOIN dreams_fts ON dreams_fts.rowid = d.rowid
		 WHERE dreams_fts MATCH ? AND d.archived_at IS NULL
		 ORDER BY dreams_fts.rank`,
		query,
	)
	if err != nil {
		return nil, fmt.Errorf("search dreams fts: %w", err)
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

const qualifiedDreamColumns = `d.id, d.title, d.description, d.tags, d.creator, d.status, d.score, d.category_scores, d.rationale, d.created_at, d.updated_at, COALESCE(d.archived_at, '')`
