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

const tokenColumns = `id, dream_id, cocoon_id, holder_wallet, purpose, milestone, metadata, minted_at`

// CreateTokenIfAbsent mints tok unless a token with the same
// (cocoon, milestone, holder, purpose) tuple exists. It returns the stored
// token and whether this call created it.
func (s *Store) CreateTokenIfAbsent(ctx context.Context, tok models.DreamToken) (*models.DreamToken, bool, error) {
	if tok.ID == "" {
		tok.ID = uuid.New().String()
	}
	if tok.MintedAt == "" {
		tok.MintedAt = s.stamp()
	}
	metaJSON, err := encodeJSON(tok.Metadata)
	if err != nil {
		return nil, false, fmt.Errorf("encode token metadata: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO dream_tokens (`+tokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(cocoon_id, milestone, holder_wallet, purpose) DO NOTHING`,
		tok.ID, tok.DreamID, tok.CocoonID, tok.HolderWallet, string(tok.Purpose), tok.Milestone, metaJSON, tok.MintedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert token: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		stored, err := s.getToken(ctx, `id = ?`, tok.ID)
		return stored, true, err
	}

	existing, err := s.getToken(ctx,
		`cocoon_id = ? AND milestone = ? AND holder_wallet = ? AND purpose = ?`,
		tok.CocoonID, tok.Milestone, tok.HolderWallet, string(tok.Purpose),
	)
	return existing, false, err
}

// MintArtifact mints the single mint-purpose token a cocoon may carry and
// sets its minted flag in the same transaction. Repeating the call for the
// holder and milestone that already own the artifact returns the stored token
// with created=false. Any other holder or milestone gets ErrAlreadyMinted.
func (s *Store) MintArtifact(ctx context.Context, tok models.DreamToken) (*models.DreamToken, bool, error) {
	if tok.CocoonID == "" {
		return nil, false, fmt.Errorf("mint artifact requires a cocoon")
	}
	tok.Purpose = models.PurposeMint
	if tok.ID == "" {
		tok.ID = uuid.New().String()
	}
	if tok.MintedAt == "" {
		tok.MintedAt = s.stamp()
	}
	metaJSON, err := encodeJSON(tok.Metadata)
	if err != nil {
		return nil, false, fmt.Errorf("encode token metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanToken(tx.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM dream_tokens WHERE cocoon_id = ? AND purpose = ?`,
		tok.CocoonID, string(models.PurposeMint),
	))
	switch {
	case err == nil:
		if existing.HolderWallet == tok.HolderWallet && existing.Milestone == tok.Milestone {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("cocoon %q: %w", tok.CocoonID, ErrAlreadyMinted)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, fmt.Errorf("scan token: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE cocoons SET minted = 1, updated_at = ? WHERE id = ? AND minted = 0`,
		tok.MintedAt, tok.CocoonID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("mark cocoon minted: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM cocoons WHERE id = ?`, tok.CocoonID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, fmt.Errorf("cocoon %q: %w", tok.CocoonID, ErrNotFound)
		}
		if err != nil {
			return nil, false, fmt.Errorf("lookup cocoon: %w", err)
		}
		return nil, false, fmt.Errorf("cocoon %q: %w", tok.CocoonID, ErrAlreadyMinted)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO dream_tokens (`+tokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tok.ID, tok.DreamID, tok.CocoonID, tok.HolderWallet, string(tok.Purpose), tok.Milestone, metaJSON, tok.MintedAt,
	); err != nil {
		return nil, false, fmt.Errorf("insert token: %w", err)
	}
	stored, err := scanToken(tx.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM dream_tokens WHERE id = ?`, tok.ID))
	if err != nil {
		return nil, false, fmt.Errorf("scan token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return stored, true, nil
}

// ListTokens returns tokens matching f in mint order.
func (s *Store) ListTokens(ctx context.Context, f models.TokenFilter) ([]models.DreamToken, error) {
	var where []string
	var args []any
	if f.Wallet != "" {
		where = append(where, "holder_wallet = ?")
		args = append(args, f.Wallet)
	}
	if f.DreamID != "" {
		where = append(where, "dream_id = ?")
		args = append(args, f.DreamID)
	}
	if f.CocoonID != "" {
		where = append(where, "cocoon_id = ?")
		args = append(args, f.CocoonID)
	}
	if f.Purpose != "" {
		where = append(where, "purpose = ?")
		args = append(args, string(f.Purpose))
	}

	query := `SELECT ` + tokenColumns + ` FROM dream_tokens`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY minted_at, rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []models.DreamToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, *t)
	}
	return tokens, rows.Err()
}

func (s *Store) getToken(ctx context.Context, where string, args ...any) (*models.DreamToken, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM dream_tokens WHERE `+where, args...)
	t, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("token: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan token: %w", err)
	}
	return t, nil
}

func scanToken(row rowScanner) (*models.DreamToken, error) {
	var t models.DreamToken
	var purpose, meta string
	if err := row.Scan(&t.ID, &t.DreamID, &t.CocoonID, &t.HolderWallet, &purpose, &t.Milestone, &meta, &t.MintedAt); err != nil {
		return nil, err
	}
	t.Purpose = models.Purpose(purpose)
	if err := decodeJSON(meta, &t.Metadata); err != nil {
		return nil, fmt.Errorf("decode token metadata: %w", err)
	}
	return &t, nil
}
