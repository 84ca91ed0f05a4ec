package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/models"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/scoring"
)

func submitMusicDream(t *testing.T, e *Engine) *models.Dream {
	t.Helper()
	d, err := e.SubmitDream(context.Background(), DreamInput{
		Title:       "AI Music Generator",
		Description: "A revolutionary neural network system that creates music",
		Tags:        []string{"ai", "music", "technology"},
		Creator:     "0xCreator",
	})
	require.NoError(t, err)
	return d
}

func TestSubmitDreamValidation(t *testing.T) {
	e, _ := setupEngine(t, openStore(t))
	ctx := context.Background()

	_, err := e.SubmitDream(ctx, DreamInput{Title: "  ", Creator: "0xA"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.SubmitDream(ctx, DreamInput{Title: "Idea"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	d := submitMusicDream(t, e)
	assert.Equal(t, models.DreamPending, d.Status)
	assert.Zero(t, d.Score)
}

func TestScoreDream(t *testing.T) {
	e, _ := setupEngine(t, openStore(t))
	d := submitMusicDream(t, e)

	scored, chain, res, err := e.ScoreDream(context.Background(), d.ID)
	require.NoError(t, err)

	want := scoring.Evaluate(scoring.Content{Title: d.Title, Description: d.Description, Tags: d.Tags})
	assert.Equal(t, want.Score, res.Score)
	assert.Equal(t, res.Score, scored.Score)
	assert.Equal(t, res.Rationale, scored.Rationale)
	assert.Equal(t, models.ChainEvaluated, chain.StageLabel)
	assert.EqualValues(t, res.Score, chain.Metadata["score"])

	_, _, _, err = e.ScoreDream(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPromoteDream(t *testing.T) {
	s := openStore(t)
	e, _ := setupEngine(t, s)
	ctx := context.Background()
	d := submitMusicDream(t, e)

	c, err := e.PromoteDream(ctx, d.ID, "0xCreator")
	require.NoError(t, err)
	assert.Equal(t, models.StageIncubating, c.Stage)
	assert.Equal(t, d.Title, c.Title)

	want := scoring.Evaluate(scoring.Content{Title: d.Title, Description: d.Description, Tags: d.Tags})
	assert.Equal(t, want.Score, c.DreamScore)

	chain, err := s.GetChain(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, chain.CocoonID)
	assert.Equal(t, models.ChainCocooned, chain.StageLabel)

	_, err = e.PromoteDream(ctx, d.ID, "0xCreator")
	assert.ErrorIs(t, err, ErrAlreadyPromoted)
}

func TestPromoteRejectedOrArchived(t *testing.T) {
	e, _ := setupEngine(t, openStore(t))
	ctx := context.Background()

	rejected := submitMusicDream(t, e)
	_, err := e.SetDreamStatus(ctx, rejected.ID, models.DreamRejected)
	require.NoError(t, err)
	_, err = e.PromoteDream(ctx, rejected.ID, "0xCreator")
	assert.ErrorIs(t, err, ErrNotPromotable)

	archived := submitMusicDream(t, e)
	_, err = e.ArchiveDream(ctx, archived.ID)
	require.NoError(t, err)
	_, err = e.PromoteDream(ctx, archived.ID, "0xCreator")
	assert.ErrorIs(t, err, ErrNotPromotable)

	_, err = e.ArchiveDream(ctx, archived.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSetDreamStatus(t *testing.T) {
	e, _ := setupEngine(t, openStore(t))
	ctx := context.Background()
	d := submitMusicDream(t, e)

	got, err := e.SetDreamStatus(ctx, d.ID, models.DreamApproved)
	require.NoError(t, err)
	assert.Equal(t, models.DreamApproved, got.Status)

	_, err = e.SetDreamStatus(ctx, d.ID, models.DreamEvolved)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.SetDreamStatus(ctx, d.ID, "shelved")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.PromoteDream(ctx, d.ID, "0xCreator")
	require.NoError(t, err)
	_, err = e.SetDreamStatus(ctx, d.ID, models.DreamPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
