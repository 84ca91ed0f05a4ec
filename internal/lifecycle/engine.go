// Package lifecycle validates and applies cocoon stage changes, enforces the
// activation score gate, records every attempt in the stage log and grants
// milestone rewards.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/metrics"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/milestone"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/models"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/scoring"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/storage"
)

// MinActivationScore is the dream score required to move a cocoon from
// incubating to active.
const MinActivationScore = 60

// Repository is the persistence the engine needs. *storage.Store satisfies it.
type Repository interface {
	CreateDream(ctx context.Context, title, description, creator string, tags []string) (*models.Dream, error)
	GetDream(ctx context.Context, id string) (*models.Dream, error)
	RecordScore(ctx context.Context, dreamID string, score int, categories map[string]int, rationale []string, snapshot map[string]any) (*models.Dream, *models.EvolutionChain, error)
	SetDreamStatus(ctx context.Context, id string, expected, next models.DreamStatus) (*models.Dream, error)
	ArchiveDream(ctx context.Context, id string) (*models.Dream, error)

	PromoteDream(ctx context.Context, dreamID string, score int) (*models.Cocoon, error)
	GetCocoon(ctx context.Context, id string) (*models.Cocoon, error)
	CompareAndSetStage(ctx context.Context, id string, expected, next models.Stage, score *int, entry models.StageChangeLogEntry) (*models.Cocoon, *models.StageChangeLogEntry, error)
	UpdateCocoonScore(ctx context.Context, id string, score int) (*models.Cocoon, error)
	AddContributor(ctx context.Context, cocoonID, wallet, role string) (*models.Cocoon, error)
	AddEvolutionNote(ctx context.Context, cocoonID, author, content string) (*models.EvolutionNote, error)

	AppendStageLog(ctx context.Context, entry models.StageChangeLogEntry) (*models.StageChangeLogEntry, error)
	StageLog(ctx context.Context, cocoonID string) ([]models.StageChangeLogEntry, error)

	CreateTokenIfAbsent(ctx context.Context, tok models.DreamToken) (*models.DreamToken, bool, error)
	MintArtifact(ctx context.Context, tok models.DreamToken) (*models.DreamToken, bool, error)
	ListTokens(ctx context.Context, f models.TokenFilter) ([]models.DreamToken, error)
}

var _ Repository = (*storage.Store)(nil)

// Engine owns every stage change. It holds no per-cocoon state; concurrent
// callers are arbitrated by the repository's compare-and-set.
type Engine struct {
	repo   Repository
	scorer scoring.Scorer
	events Publisher
	logger *zap.Logger
	now    func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithScorer replaces the default keyword scorer.
func WithScorer(s scoring.Scorer) EngineOption {
	return func(e *Engine) { e.scorer = s }
}

// WithPublisher sets where domain events go. The default discards them.
func WithPublisher(p Publisher) EngineOption {
	return func(e *Engine) { e.events = p }
}

// WithLogger sets the engine logger. nil means no logging.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the clock used for log entries and tokens.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// New returns an engine over repo.
func New(repo Repository, opts ...EngineOption) *Engine {
	e := &Engine{
		repo:   repo,
		scorer: scoring.Engine{},
		events: nopPublisher{},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.events == nil {
		e.events = nopPublisher{}
	}
	return e
}

// Outcome is the result of a persisted stage change.
type Outcome struct {
	Cocoon   *models.Cocoon              `json:"cocoon"`
	LogEntry *models.StageChangeLogEntry `json:"log_entry"`
	// Minted holds the tokens created by this change. Tokens that already
	// existed for the milestone are not repeated.
	Minted []models.DreamToken `json:"minted,omitempty"`
	// EffectErrors lists milestone side effects that failed. The stage
	// change itself stands.
	EffectErrors []string `json:"effect_errors,omitempty"`
}

type transitionConfig struct {
	score *int
}

// TransitionOption adjusts a single RequestTransition call.
type TransitionOption func(*transitionConfig)

// WithScore supplies a fresh dream score. It is used for the activation gate
// and persisted with the transition.
func WithScore(score int) TransitionOption {
	return func(c *transitionConfig) { c.score = &score }
}

func (e *Engine) stamp() string {
	return storage.Stamp(e.now())
}

// RequestTransition moves a cocoon to target, which must be the immediate
// successor of its current stage. Entering active additionally requires a
// dream score of at least MinActivationScore.
//
// Every call for an existing cocoon appends exactly one stage log entry,
// successful or not. Expected rejections are returned as *RejectionError.
func (e *Engine) RequestTransition(ctx context.Context, cocoonID string, target models.Stage, actor string, opts ...TransitionOption) (*Outcome, error) {
	var cfg transitionConfig
	for _, o := range opts {
		o(&cfg)
	}

	c, err := e.repo.GetCocoon(ctx, cocoonID)
	if err != nil {
		metrics.Transitions.WithLabelValues(string(models.ChangeTransition), outcomeLabel(err)).Inc()
		return nil, mapStoreErr(err)
	}

	from := c.Stage
	entry := models.StageChangeLogEntry{
		CocoonID:  c.ID,
		FromStage: from,
		ToStage:   target,
		Actor:     actor,
		Kind:      models.ChangeTransition,
		CreatedAt: e.stamp(),
	}

	next, hasNext := from.Next()
	if !hasNext || target != next {
		msg := fmt.Sprintf("invalid transition: %s -> %s, expected %s", from, target, next)
		if !hasNext {
			msg = fmt.Sprintf("invalid transition: %s -> %s, %s is terminal", from, target, from)
		}
		rej := &RejectionError{
			Reason:   ReasonInvalidTransition,
			CocoonID: c.ID,
			From:     from,
			Target:   target,
			Expected: next,
			Message:  msg,
		}
		return nil, e.reject(ctx, entry, rej)
	}

	if cfg.score != nil && (*cfg.score < 0 || *cfg.score > scoring.MaxScore) {
		entry.Reason = fmt.Sprintf("invalid input: score %d outside 0..%d", *cfg.score, scoring.MaxScore)
		e.appendFailure(ctx, entry)
		metrics.Transitions.WithLabelValues(string(entry.Kind), "invalid_input").Inc()
		return nil, fmt.Errorf("%w: score %d outside 0..%d", ErrInvalidInput, *cfg.score, scoring.MaxScore)
	}

	score := c.DreamScore
	if cfg.score != nil {
		score = *cfg.score
	}

	entry.Reason = fmt.Sprintf("advanced to %s", target)
	if from == models.StageIncubating && target == models.StageActive {
		if score < MinActivationScore {
			rej := &RejectionError{
				Reason:   ReasonInsufficientScore,
				CocoonID: c.ID,
				From:     from,
				Target:   target,
				Required: MinActivationScore,
				Current:  score,
				Message:  fmt.Sprintf("insufficient score: required %d, current %d", MinActivationScore, score),
			}
			err := e.reject(ctx, entry, rej)
			e.publish(Event{
				Type:      EventInsufficientScore,
				CocoonID:  c.ID,
				DreamID:   c.DreamID,
				Recipient: c.Creator,
				Stage:     from,
				Message:   fmt.Sprintf("Cocoon %q needs a score of %d to become active. Current score: %d.", c.Title, MinActivationScore, score),
			})
			return nil, err
		}
		entry.Reason = fmt.Sprintf("score %d meets required %d", score, MinActivationScore)
	}

	entry.Success = true
	return e.commit(ctx, c, entry, cfg.score)
}

// ForceStage sets a cocoon's stage to any known stage, bypassing ordering
// and the score gate. The override is logged as a force entry and milestone
// rewards for the target stage are granted.
func (e *Engine) ForceStage(ctx context.Context, cocoonID string, target models.Stage, actor string) (*Outcome, error) {
	c, err := e.repo.GetCocoon(ctx, cocoonID)
	if err != nil {
		metrics.Transitions.WithLabelValues(string(models.ChangeForce), outcomeLabel(err)).Inc()
		return nil, mapStoreErr(err)
	}

	entry := models.StageChangeLogEntry{
		CocoonID:  c.ID,
		FromStage: c.Stage,
		ToStage:   target,
		Actor:     actor,
		Kind:      models.ChangeForce,
		CreatedAt: e.stamp(),
	}

	if !target.Valid() {
		rej := &RejectionError{
			Reason:   ReasonInvalidTransition,
			CocoonID: c.ID,
			From:     c.Stage,
			Target:   target,
			Message:  fmt.Sprintf("invalid transition: unknown stage %q", target),
		}
		return nil, e.reject(ctx, entry, rej)
	}

	entry.Success = true
	entry.Reason = fmt.Sprintf("forced from %s to %s", c.Stage, target)
	return e.commit(ctx, c, entry, nil)
}

// commit persists a validated stage change and runs its milestone effects.
func (e *Engine) commit(ctx context.Context, c *models.Cocoon, entry models.StageChangeLogEntry, score *int) (*Outcome, error) {
	updated, logged, err := e.repo.CompareAndSetStage(ctx, c.ID, entry.FromStage, entry.ToStage, score, entry)
	if err != nil {
		entry.Success = false
		switch {
		case errors.Is(err, storage.ErrConflict):
			entry.Reason = fmt.Sprintf("concurrent modification: stage changed from %s since it was read", entry.FromStage)
			e.appendFailure(ctx, entry)
			metrics.Transitions.WithLabelValues(string(entry.Kind), "conflict").Inc()
			e.logger.Info("stage change lost race",
				zap.String("cocoon_id", c.ID),
				zap.String("from", string(entry.FromStage)),
				zap.String("to", string(entry.ToStage)),
				zap.String("actor", entry.Actor))
			return nil, fmt.Errorf("%w: cocoon %q: %w", ErrConcurrentModification, c.ID, err)
		case errors.Is(err, storage.ErrNotFound):
			metrics.Transitions.WithLabelValues(string(entry.Kind), "not_found").Inc()
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		default:
			entry.Reason = "persistence failure: " + err.Error()
			e.appendFailure(ctx, entry)
			metrics.Transitions.WithLabelValues(string(entry.Kind), "persistence").Inc()
			e.logger.Error("persist stage change",
				zap.String("cocoon_id", c.ID),
				zap.String("to", string(entry.ToStage)),
				zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
	}

	metrics.Transitions.WithLabelValues(string(entry.Kind), "ok").Inc()
	e.logger.Info("stage changed",
		zap.String("cocoon_id", updated.ID),
		zap.String("from", string(entry.FromStage)),
		zap.String("to", string(updated.Stage)),
		zap.String("kind", string(entry.Kind)),
		zap.String("actor", entry.Actor),
		zap.Int64("seq", logged.Seq))

	out := &Outcome{Cocoon: updated, LogEntry: logged}
	e.publish(Event{
		Type:      EventStageEntered,
		CocoonID:  updated.ID,
		DreamID:   updated.DreamID,
		Recipient: updated.Creator,
		Stage:     updated.Stage,
		Message:   fmt.Sprintf("Cocoon %q moved from %s to %s.", updated.Title, entry.FromStage, updated.Stage),
	})
	e.applyMilestones(ctx, out)
	return out, nil
}

// reject logs a failed attempt and returns rej with the stored entry attached.
func (e *Engine) reject(ctx context.Context, entry models.StageChangeLogEntry, rej *RejectionError) error {
	entry.Success = false
	entry.Reason = rej.Message
	rej.Entry = e.appendFailure(ctx, entry)
	metrics.Transitions.WithLabelValues(string(entry.Kind), string(rej.Reason)).Inc()
	e.logger.Info("stage change rejected",
		zap.String("cocoon_id", entry.CocoonID),
		zap.String("from", string(entry.FromStage)),
		zap.String("to", string(entry.ToStage)),
		zap.String("reason", string(rej.Reason)),
		zap.String("actor", entry.Actor))
	return rej
}

// appendFailure writes a failed entry. A write failure here is logged; the
// caller's error already describes the attempt.
func (e *Engine) appendFailure(ctx context.Context, entry models.StageChangeLogEntry) *models.StageChangeLogEntry {
	logged, err := e.repo.AppendStageLog(ctx, entry)
	if err != nil {
		e.logger.Error("append stage log",
			zap.String("cocoon_id", entry.CocoonID),
			zap.String("reason", entry.Reason),
			zap.Error(err))
		return nil
	}
	return logged
}

// mint routes mint-purpose tokens on a cocoon through the single-artifact
// path; everything else is idempotent per (cocoon, milestone, holder, purpose).
func (e *Engine) mint(ctx context.Context, tok models.DreamToken) (*models.DreamToken, bool, error) {
	if tok.Purpose == models.PurposeMint && tok.CocoonID != "" {
		return e.repo.MintArtifact(ctx, tok)
	}
	return e.repo.CreateTokenIfAbsent(ctx, tok)
}

// applyMilestones mints the rewards for the stage out.Cocoon just entered.
// Tokens are idempotent per (cocoon, milestone, holder, purpose), so a
// repeated entry into the same stage grants nothing new.
func (e *Engine) applyMilestones(ctx context.Context, out *Outcome) {
	c := out.Cocoon
	for _, g := range milestone.Grants(c.Stage, c) {
		tok, created, err := e.mint(ctx, models.DreamToken{
			DreamID:      c.DreamID,
			CocoonID:     c.ID,
			HolderWallet: g.Wallet,
			Purpose:      g.Rule.Purpose,
			Milestone:    string(c.Stage),
			Metadata: map[string]any{
				"title": c.Title,
				"stage": string(c.Stage),
				"score": c.DreamScore,
			},
			MintedAt: e.stamp(),
		})
		if errors.Is(err, storage.ErrAlreadyMinted) {
			e.logger.Debug("artifact already minted", zap.String("cocoon_id", c.ID))
			continue
		}
		if err != nil {
			e.effectFailed(out, "mint "+string(g.Rule.Purpose)+" for "+g.Wallet, err)
			continue
		}
		if tok.Purpose == models.PurposeMint {
			c.Minted = true
		}

		if !created {
			continue
		}
		metrics.TokensMinted.WithLabelValues(string(tok.Purpose)).Inc()
		out.Minted = append(out.Minted, *tok)
		e.logger.Info("token minted",
			zap.String("cocoon_id", c.ID),
			zap.String("milestone", tok.Milestone),
			zap.String("purpose", string(tok.Purpose)),
			zap.String("holder", tok.HolderWallet))
		e.publish(Event{
			Type:      EventTokenMinted,
			CocoonID:  c.ID,
			DreamID:   c.DreamID,
			Recipient: tok.HolderWallet,
			Stage:     c.Stage,
			Message:   g.Rule.Message(c.Title, c.Stage),
			Token:     tok,
		})
	}
}

func (e *Engine) effectFailed(out *Outcome, what string, err error) {
	metrics.MilestoneErrors.Inc()
	out.EffectErrors = append(out.EffectErrors, what+": "+err.Error())
	e.logger.Warn("milestone effect failed",
		zap.String("cocoon_id", out.Cocoon.ID),
		zap.String("effect", what),
		zap.Error(err))
}

func (e *Engine) publish(ev Event) {
	if ev.Recipient == "" {
		return
	}
	if ev.At.IsZero() {
		ev.At = e.now()
	}
	e.events.Publish(ev)
}

func outcomeLabel(err error) string {
	if errors.Is(err, storage.ErrNotFound) {
		return "not_found"
	}
	return "persistence"
}

// GetCocoon loads a cocoon with its contributors and notes.
func (e *Engine) GetCocoon(ctx context.Context, id string) (*models.Cocoon, error) {
	c, err := e.repo.GetCocoon(ctx, id)
	return c, mapStoreErr(err)
}

// StageLog returns every recorded attempt for a cocoon in order.
func (e *Engine) StageLog(ctx context.Context, cocoonID string) ([]models.StageChangeLogEntry, error) {
	if _, err := e.repo.GetCocoon(ctx, cocoonID); err != nil {
		return nil, mapStoreErr(err)
	}
	entries, err := e.repo.StageLog(ctx, cocoonID)
	return entries, mapStoreErr(err)
}

// Tokens lists tokens matching f.
func (e *Engine) Tokens(ctx context.Context, f models.TokenFilter) ([]models.DreamToken, error) {
	if f.Purpose != "" && !f.Purpose.Valid() {
		return nil, fmt.Errorf("%w: unknown purpose %q", ErrInvalidInput, f.Purpose)
	}
	toks, err := e.repo.ListTokens(ctx, f)
	return toks, mapStoreErr(err)
}

// Rescore re-evaluates a cocoon's content and stores the new dream score.
// The stage is not changed.
func (e *Engine) Rescore(ctx context.Context, cocoonID string) (*models.Cocoon, scoring.Result, error) {
	c, err := e.repo.GetCocoon(ctx, cocoonID)
	if err != nil {
		return nil, scoring.Result{}, mapStoreErr(err)
	}
	var tags []string
	if d, err := e.repo.GetDream(ctx, c.DreamID); err == nil {
		tags = d.Tags
	}
	res := e.scorer.Evaluate(scoring.Content{Title: c.Title, Description: c.Description, Tags: tags})
	metrics.Scores.Observe(float64(res.Score))

	updated, err := e.repo.UpdateCocoonScore(ctx, c.ID, res.Score)
	if err != nil {
		return nil, res, mapStoreErr(err)
	}
	e.logger.Info("cocoon rescored",
		zap.String("cocoon_id", c.ID),
		zap.Int("previous", c.DreamScore),
		zap.Int("score", res.Score))
	return updated, res, nil
}

// AddContributor adds a wallet to a cocoon. Later milestone grants for
// all-contributors include it.
func (e *Engine) AddContributor(ctx context.Context, cocoonID, wallet, role string) (*models.Cocoon, error) {
	if wallet == "" {
		return nil, fmt.Errorf("%w: wallet is required", ErrInvalidInput)
	}
	if role == "" {
		role = "contributor"
	}
	c, err := e.repo.AddContributor(ctx, cocoonID, wallet, role)
	return c, mapStoreErr(err)
}

// AddEvolutionNote appends a note to a cocoon.
func (e *Engine) AddEvolutionNote(ctx context.Context, cocoonID, author, content string) (*models.EvolutionNote, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	n, err := e.repo.AddEvolutionNote(ctx, cocoonID, author, content)
	return n, mapStoreErr(err)
}

// MintRequest describes a token minted outside the milestone table.
type MintRequest struct {
	DreamID   string
	CocoonID  string
	Wallet    string
	Purpose   models.Purpose
	Milestone string
	Metadata  map[string]any
}

// MintToken mints a token directly. The call is idempotent on
// (cocoon, milestone, holder, purpose): created is false when the token
// already existed. A cocoon carries at most one mint-purpose artifact.
func (e *Engine) MintToken(ctx context.Context, req MintRequest) (tok *models.DreamToken, created bool, err error) {
	if req.Wallet == "" {
		return nil, false, fmt.Errorf("%w: wallet is required", ErrInvalidInput)
	}
	if !req.Purpose.Valid() {
		return nil, false, fmt.Errorf("%w: unknown purpose %q", ErrInvalidInput, req.Purpose)
	}
	if req.Milestone != "" {
		if _, err := models.ParseStage(req.Milestone); err != nil {
			return nil, false, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}

	var c *models.Cocoon
	if req.CocoonID != "" {
		c, err = e.repo.GetCocoon(ctx, req.CocoonID)
		if err != nil {
			return nil, false, mapStoreErr(err)
		}
		if req.DreamID == "" {
			req.DreamID = c.DreamID
		}
		if req.DreamID != c.DreamID {
			return nil, false, fmt.Errorf("%w: cocoon %q does not belong to dream %q", ErrInvalidInput, c.ID, req.DreamID)
		}
	}
	if req.DreamID == "" {
		return nil, false, fmt.Errorf("%w: dream_id or cocoon_id is required", ErrInvalidInput)
	}
	if _, err := e.repo.GetDream(ctx, req.DreamID); err != nil {
		return nil, false, mapStoreErr(err)
	}

	candidate := models.DreamToken{
		DreamID:      req.DreamID,
		CocoonID:     req.CocoonID,
		HolderWallet: req.Wallet,
		Purpose:      req.Purpose,
		Milestone:    req.Milestone,
		Metadata:     req.Metadata,
		MintedAt:     e.stamp(),
	}

	tok, created, err = e.mint(ctx, candidate)
	if err != nil {
		return nil, false, mapStoreErr(err)
	}
	if created {
		metrics.TokensMinted.WithLabelValues(string(tok.Purpose)).Inc()
		e.publish(Event{
			Type:      EventTokenMinted,
			CocoonID:  tok.CocoonID,
			DreamID:   tok.DreamID,
			Recipient: tok.HolderWallet,
			Message:   fmt.Sprintf("You received a %s token.", tok.Purpose),
			Token:     tok,
		})
	}
	return tok, created, nil
}
