package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/lifecycle"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/milestone"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/models"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/scoring"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/session"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/storage"
)

// CocoonTools holds references needed by the lifecycle, token and
// notification handlers.
type CocoonTools struct {
	Engine  *lifecycle.Engine
	Store   *storage.Store
	Session *session.Session
}

// --- Input types ---

type GetCocoonInput struct {
	CocoonID string `json:"cocoon_id,omitempty" jsonschema:"Cocoon id"`
	DreamID  string `json:"dream_id,omitempty" jsonschema:"Look the cocoon up by the dream it was forked from"`
}

type ListCocoonsInput struct {
	Stage string `json:"stage,omitempty" jsonschema:"Filter by stage: incubating, active, metamorphosis, emergence, complete, archived"`
}

type CocoonIDInput struct {
	CocoonID string `json:"cocoon_id" jsonschema:"Cocoon id"`
}

type AddContributorInput struct {
	CocoonID string `json:"cocoon_id" jsonschema:"Cocoon id"`
	Wallet   string `json:"wallet" jsonschema:"Contributor wallet"`
	Role     string `json:"role,omitempty" jsonschema:"Contributor role (default contributor)"`
}

type AddEvolutionNoteInput struct {
	CocoonID string `json:"cocoon_id" jsonschema:"Cocoon id"`
	Content  string `json:"content" jsonschema:"Note text"`
	Author   string `json:"author,omitempty" jsonschema:"Note author (defaults to the session actor)"`
}

type RequestTransitionInput struct {
	CocoonID    string `json:"cocoon_id" jsonschema:"Cocoon id"`
	TargetStage string `json:"target_stage" jsonschema:"Stage to move to; must be the next stage in the lifecycle"`
	Actor       string `json:"actor,omitempty" jsonschema:"Acting wallet (defaults to the session actor)"`
	Score       *int   `json:"score,omitempty" jsonschema:"Fresh dream score 0-100 to gate and store with the transition"`
}

type ForceStageInput struct {
	CocoonID    string `json:"cocoon_id" jsonschema:"Cocoon id"`
	TargetStage string `json:"target_stage" jsonschema:"Any lifecycle stage"`
	Actor       string `json:"actor,omitempty" jsonschema:"Acting wallet (defaults to the session actor)"`
}

type GetTokensInput struct {
	Wallet   string `json:"wallet,omitempty" jsonschema:"Filter by holder wallet"`
	DreamID  string `json:"dream_id,omitempty" jsonschema:"Filter by dream"`
	CocoonID string `json:"cocoon_id,omitempty" jsonschema:"Filter by cocoon"`
	Purpose  string `json:"purpose,omitempty" jsonschema:"Filter by purpose: badge, mint, vote"`
}

type MintTokenInput struct {
	DreamID   string         `json:"dream_id,omitempty" jsonschema:"Dream the token references (derived from cocoon_id when omitted)"`
	CocoonID  string         `json:"cocoon_id,omitempty" jsonschema:"Cocoon the token references"`
	Wallet    string         `json:"wallet" jsonschema:"Holder wallet"`
	Purpose   string         `json:"purpose" jsonschema:"Token purpose: badge, mint, vote"`
	Milestone string         `json:"milestone,omitempty" jsonschema:"Stage the token commemorates"`
	Metadata  map[string]any `json:"metadata,omitempty" jsonschema:"Free-form token metadata"`
}

type ListNotificationsInput struct {
	Recipient string `json:"recipient,omitempty" jsonschema:"Recipient wallet (defaults to the session actor)"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum number of notifications, newest first (0 = all)"`
}

// MilestoneEntry describes the rewards for entering one stage.
type MilestoneEntry struct {
	Stage models.Stage     `json:"stage"`
	Rules []milestone.Rule `json:"rules"`
}

// --- Handlers ---

func (t *CocoonTools) GetCocoon(ctx context.Context, _ *mcp.CallToolRequest, input GetCocoonInput) (*mcp.CallToolResult, any, error) {
	var (
		c   *models.Cocoon
		err error
	)
	switch {
	case input.CocoonID != "":
		c, err = t.Engine.GetCocoon(ctx, input.CocoonID)
	case input.DreamID != "":
		c, err = t.Store.GetCocoonByDream(ctx, input.DreamID)
	default:
		return toolError("cocoon_id or dream_id is required"), nil, nil
	}
	if err != nil {
		return toolFailure("get cocoon", err), nil, nil
	}
	return toolJSON(c)
}

func (t *CocoonTools) ListCocoons(ctx context.Context, _ *mcp.CallToolRequest, input ListCocoonsInput) (*mcp.CallToolResult, any, error) {
	var stage models.Stage
	if input.Stage != "" {
		st, err := models.ParseStage(input.Stage)
		if err != nil {
			return toolError("%v", err), nil, nil
		}
		stage = st
	}
	cocoons, err := t.Store.ListCocoons(ctx, stage)
	if err != nil {
		return toolError("Failed to list cocoons: %v", err), nil, nil
	}
	if cocoons == nil {
		cocoons = []models.Cocoon{}
	}
	return toolJSON(cocoons)
}

func (t *CocoonTools) RescoreCocoon(ctx context.Context, _ *mcp.CallToolRequest, input CocoonIDInput) (*mcp.CallToolResult, any, error) {
	if input.CocoonID == "" {
		return toolError("cocoon_id is required"), nil, nil
	}
	c, res, err := t.Engine.Rescore(ctx, input.CocoonID)
	if err != nil {
		return toolFailure("rescore cocoon", err), nil, nil
	}
	return toolJSON(struct {
		Cocoon *models.Cocoon `json:"cocoon"`
		Result scoring.Result `json:"result"`
	}{c, res})
}

func (t *CocoonTools) AddContributor(ctx context.Context, _ *mcp.CallToolRequest, input AddContributorInput) (*mcp.CallToolResult, any, error) {
	if input.CocoonID == "" {
		return toolError("cocoon_id is required"), nil, nil
	}
	c, err := t.Engine.AddContributor(ctx, input.CocoonID, input.Wallet, input.Role)
	if err != nil {
		return toolFailure("add contributor", err), nil, nil
	}
	return toolJSON(c)
}

func (t *CocoonTools) AddEvolutionNote(ctx context.Context, _ *mcp.CallToolRequest, input AddEvolutionNoteInput) (*mcp.CallToolResult, any, error) {
	if input.CocoonID == "" {
		return toolError("cocoon_id is required"), nil, nil
	}
	author, err := t.Session.Resolve(input.Author)
	if err != nil {
		return toolError("Failed to add note: %v", err), nil, nil
	}
	n, err := t.Engine.AddEvolutionNote(ctx, input.CocoonID, author, input.Content)
	if err != nil {
		return toolFailure("add evolution note", err), nil, nil
	}
	return toolJSON(n)
}

func (t *CocoonTools) RequestTransition(ctx context.Context, _ *mcp.CallToolRequest, input RequestTransitionInput) (*mcp.CallToolResult, any, error) {
	if input.CocoonID == "" || input.TargetStage == "" {
		return toolError("cocoon_id and target_stage are required"), nil, nil
	}
	actor, err := t.Session.Resolve(input.Actor)
	if err != nil {
		return toolError("Failed to request transition: %v", err), nil, nil
	}

	var opts []lifecycle.TransitionOption
	if input.Score != nil {
		opts = append(opts, lifecycle.WithScore(*input.Score))
	}
	out, err := t.Engine.RequestTransition(ctx, input.CocoonID, models.Stage(input.TargetStage), actor, opts...)
	if err != nil {
		return toolFailure("request transition", err), nil, nil
	}
	return toolJSON(out)
}

func (t *CocoonTools) ForceStage(ctx context.Context, _ *mcp.CallToolRequest, input ForceStageInput) (*mcp.CallToolResult, any, error) {
	if input.CocoonID == "" || input.TargetStage == "" {
		return toolError("cocoon_id and target_stage are required"), nil, nil
	}
	actor, err := t.Session.Resolve(input.Actor)
	if err != nil {
		return toolError("Failed to force stage: %v", err), nil, nil
	}
	out, err := t.Engine.ForceStage(ctx, input.CocoonID, models.Stage(input.TargetStage), actor)
	if err != nil {
		return toolFailure("force stage", err), nil, nil
	}
	return toolJSON(out)
}

func (t *CocoonTools) GetStageLog(ctx context.Context, _ *mcp.CallToolRequest, input CocoonIDInput) (*mcp.CallToolResult, any, error) {
	if input.CocoonID == "" {
		return toolError("cocoon_id is required"), nil, nil
	}
	entries, err := t.Engine.StageLog(ctx, input.CocoonID)
	if err != nil {
		return toolFailure("get stage log", err), nil, nil
	}
	if entries == nil {
		entries = []models.StageChangeLogEntry{}
	}
	return toolJSON(entries)
}

func (t *CocoonTools) GetTokens(ctx context.Context, _ *mcp.CallToolRequest, input GetTokensInput) (*mcp.CallToolResult, any, error) {
	toks, err := t.Engine.Tokens(ctx, models.TokenFilter{
		Wallet:   input.Wallet,
		DreamID:  input.DreamID,
		CocoonID: input.CocoonID,
		Purpose:  models.Purpose(input.Purpose),
	})
	if err != nil {
		return toolFailure("get tokens", err), nil, nil
	}
	if toks == nil {
		toks = []models.DreamToken{}
	}
	return toolJSON(toks)
}

func (t *CocoonTools) MintToken(ctx context.Context, _ *mcp.CallToolRequest, input MintTokenInput) (*mcp.CallToolResult, any, error) {
	tok, created, err := t.Engine.MintToken(ctx, lifecycle.MintRequest{
		DreamID:   input.DreamID,
		CocoonID:  input.CocoonID,
		Wallet:    input.Wallet,
		Purpose:   models.Purpose(input.Purpose),
		Milestone: input.Milestone,
		Metadata:  input.Metadata,
	})
	if err != nil {
		return toolFailure("mint token", err), nil, nil
	}
	return toolJSON(struct {
		Token   *models.DreamToken `json:"token"`
		Created bool               `json:"created"`
	}{tok, created})
}

func (t *CocoonTools) ListNotifications(ctx context.Context, _ *mcp.CallToolRequest, input ListNotificationsInput) (*mcp.CallToolResult, any, error) {
	recipient, err := t.Session.Resolve(input.Recipient)
	if err != nil {
		return toolError("Failed to list notifications: %v", err), nil, nil
	}
	notes, err := t.Store.ListNotifications(ctx, recipient, input.Limit)
	if err != nil {
		return toolError("Failed to list notifications: %v", err), nil, nil
	}
	if notes == nil {
		notes = []models.Notification{}
	}
	return toolJSON(notes)
}

func (t *CocoonTools) ListMilestones(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	var entries []MilestoneEntry
	for _, st := range models.Stages {
		if milestone.IsMilestone(st) {
			entries = append(entries, MilestoneEntry{Stage: st, Rules: milestone.Rules(st)})
		}
	}
	return toolJSON(entries)
}
