package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/metrics"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/models"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/scoring"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/storage"
)

// DreamInput is a new submission.
type DreamInput struct {
	Title       string
	Description string
	Tags        []string
	Creator     string
}

// SubmitDream stores a new pending dream.
func (e *Engine) SubmitDream(ctx context.Context, in DreamInput) (*models.Dream, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Creator = strings.TrimSpace(in.Creator)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.Creator == "" {
		return nil, fmt.Errorf("%w: creator is required", ErrInvalidInput)
	}
	d, err := e.repo.CreateDream(ctx, in.Title, in.Description, in.Creator, in.Tags)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	e.logger.Info("dream submitted", zap.String("dream_id", d.ID), zap.String("creator", d.Creator))
	return d, nil
}

// Evaluate scores arbitrary content without persisting anything.
func (e *Engine) Evaluate(c scoring.Content) scoring.Result {
	res := e.scorer.Evaluate(c)
	metrics.Scores.Observe(float64(res.Score))
	return res
}

// ScoreDream evaluates a dream, stores the score on it and creates or
// refreshes its evolution chain with a snapshot of the evaluation.
func (e *Engine) ScoreDream(ctx context.Context, dreamID string) (*models.Dream, *models.EvolutionChain, scoring.Result, error) {
	d, err := e.repo.GetDream(ctx, dreamID)
	if err != nil {
		return nil, nil, scoring.Result{}, mapStoreErr(err)
	}
	return e.score(ctx, d)
}

func (e *Engine) score(ctx context.Context, d *models.Dream) (*models.Dream, *models.EvolutionChain, scoring.Result, error) {
	res := e.Evaluate(scoring.Content{Title: d.Title, Description: d.Description, Tags: d.Tags})
	snapshot := map[string]any{
		"score":           res.Score,
		"raw":             res.Raw,
		"category_scores": res.CategoryScores,
		"rationale":       res.Rationale,
		"evaluated_at":    e.stamp(),
	}
	scored, chain, err := e.repo.RecordScore(ctx, d.ID, res.Score, res.CategoryScores, res.Rationale, snapshot)
	if err != nil {
		return nil, nil, res, mapStoreErr(err)
	}
	e.logger.Info("dream scored",
		zap.String("dream_id", d.ID),
		zap.Int("score", res.Score),
		zap.Int("previous", d.Score))
	return scored, chain, res, nil
}

// SetDreamStatus reviews a dream. pending, approved and rejected may move
// between each other; evolved is reached only through promotion and is final.
func (e *Engine) SetDreamStatus(ctx context.Context, dreamID string, status models.DreamStatus) (*models.Dream, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	if status == models.DreamEvolved {
		return nil, fmt.Errorf("%w: dreams become evolved only through promotion", ErrInvalidInput)
	}
	d, err := e.repo.GetDream(ctx, dreamID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if d.ArchivedAt != "" {
		return nil, fmt.Errorf("%w: dream %q is archived", ErrInvalidInput, d.ID)
	}
	if d.Status == models.DreamEvolved {
		return nil, fmt.Errorf("%w: dream %q already evolved", ErrInvalidTransition, d.ID)
	}
	if d.Status == status {
		return d, nil
	}
	updated, err := e.repo.SetDreamStatus(ctx, d.ID, d.Status, status)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	e.logger.Info("dream status changed",
		zap.String("dream_id", d.ID),
		zap.String("from", string(d.Status)),
		zap.String("to", string(status)))
	return updated, nil
}

// ArchiveDream soft-archives a dream. Archived dreams drop out of listings
// and search and cannot be promoted.
func (e *Engine) ArchiveDream(ctx context.Context, dreamID string) (*models.Dream, error) {
	d, err := e.repo.ArchiveDream(ctx, dreamID)
	if errors.Is(err, storage.ErrConflict) {
		return nil, fmt.Errorf("%w: dream %q is already archived", ErrInvalidInput, dreamID)
	}
	return d, mapStoreErr(err)
}

// PromoteDream re-evaluates a dream and forks it into a cocoon in the
// incubating stage. A dream is promoted at most once.
func (e *Engine) PromoteDream(ctx context.Context, dreamID, actor string) (*models.Cocoon, error) {
	d, err := e.repo.GetDream(ctx, dreamID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	switch {
	case d.Status == models.DreamEvolved:
		return nil, fmt.Errorf("%w: dream %q", ErrAlreadyPromoted, d.ID)
	case d.ArchivedAt != "":
		return nil, fmt.Errorf("%w: dream %q is archived", ErrNotPromotable, d.ID)
	case d.Status == models.DreamRejected:
		return nil, fmt.Errorf("%w: dream %q was rejected", ErrNotPromotable, d.ID)
	}

	_, _, res, err := e.score(ctx, d)
	if err != nil {
		return nil, err
	}

	c, err := e.repo.PromoteDream(ctx, d.ID, res.Score)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %w", ErrAlreadyPromoted, err)
		}
		return nil, mapStoreErr(err)
	}
	e.logger.Info("dream promoted",
		zap.String("dream_id", d.ID),
		zap.String("cocoon_id", c.ID),
		zap.Int("score", c.DreamScore),
		zap.String("actor", actor))
	return c, nil
}
