package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/lifecycle"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/models"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/scoring"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/session"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/storage"
)

// DreamTools holds references needed by dream submission and review handlers.
type DreamTools struct {
	Engine  *lifecycle.Engine
	Store   *storage.Store
	Session *session.Session
}

// --- Input types ---

type SetActorInput struct {
	Actor string `json:"actor" jsonschema:"Wallet or user id recorded as the actor of later calls"`
}

type EvaluateContentInput struct {
	Title       string   `json:"title" jsonschema:"Title to score"`
	Description string   `json:"description,omitempty" jsonschema:"Description to score"`
	Tags        []string `json:"tags,omitempty" jsonschema:"Tags to score"`
}

type SubmitDreamInput struct {
	Title       string   `json:"title" jsonschema:"Dream title"`
	Description string   `json:"description,omitempty" jsonschema:"Dream description"`
	Tags        []string `json:"tags,omitempty" jsonschema:"Free-form tags"`
	Creator     string   `json:"creator,omitempty" jsonschema:"Creator wallet (defaults to the session actor)"`
}

type DreamIDInput struct {
	DreamID string `json:"dream_id" jsonschema:"Dream id"`
}

type ListDreamsInput struct {
	Status          string `json:"status,omitempty" jsonschema:"Filter by status: pending, approved, rejected, evolved"`
	Creator         string `json:"creator,omitempty" jsonschema:"Filter by creator wallet"`
	IncludeArchived bool   `json:"include_archived,omitempty" jsonschema:"Include archived dreams"`
}

type SearchDreamsInput struct {
	Query string `json:"query" jsonschema:"Search query (supports FTS5 syntax: AND, OR, NOT, prefix*)"`
}

type SetDreamStatusInput struct {
	DreamID string `json:"dream_id" jsonschema:"Dream id"`
	Status  string `json:"status" jsonschema:"New status: pending, approved or rejected"`
}

type PromoteDreamInput struct {
	DreamID string `json:"dream_id" jsonschema:"Dream id to fork into a cocoon"`
	Actor   string `json:"actor,omitempty" jsonschema:"Acting wallet (defaults to the session actor)"`
}

// --- Handlers ---

func (t *DreamTools) SetActor(_ context.Context, _ *mcp.CallToolRequest, input SetActorInput) (*mcp.CallToolResult, any, error) {
	if err := t.Session.SetActor(input.Actor); err != nil {
		return toolError("Failed to set actor: %v", err), nil, nil
	}
	return toolText(fmt.Sprintf("Actor set to %s", input.Actor)), nil, nil
}

func (t *DreamTools) EvaluateContent(_ context.Context, _ *mcp.CallToolRequest, input EvaluateContentInput) (*mcp.CallToolResult, any, error) {
	res := t.Engine.Evaluate(scoring.Content{
		Title:       input.Title,
		Description: input.Description,
		Tags:        input.Tags,
	})
	return toolJSON(res)
}

func (t *DreamTools) SubmitDream(ctx context.Context, _ *mcp.CallToolRequest, input SubmitDreamInput) (*mcp.CallToolResult, any, error) {
	creator, err := t.Session.Resolve(input.Creator)
	if err != nil {
		return toolError("Failed to submit dream: %v", err), nil, nil
	}
	d, err := t.Engine.SubmitDream(ctx, lifecycle.DreamInput{
		Title:       input.Title,
		Description: input.Description,
		Tags:        input.Tags,
		Creator:     creator,
	})
	if err != nil {
		return toolFailure("submit dream", err), nil, nil
	}
	return toolJSON(d)
}

func (t *DreamTools) GetDream(ctx context.Context, _ *mcp.CallToolRequest, input DreamIDInput) (*mcp.CallToolResult, any, error) {
	if input.DreamID == "" {
		return toolError("dream_id is required"), nil, nil
	}
	d, err := t.Store.GetDream(ctx, input.DreamID)
	if err != nil {
		return toolFailure("get dream", err), nil, nil
	}
	return toolJSON(d)
}

func (t *DreamTools) ListDreams(ctx context.Context, _ *mcp.CallToolRequest, input ListDreamsInput) (*mcp.CallToolResult, any, error) {
	status := models.DreamStatus(input.Status)
	if status != "" && !status.Valid() {
		return toolError("Unknown status %q", input.Status), nil, nil
	}
	dreams, err := t.Store.ListDreams(ctx, storage.DreamFilter{
		Status:          status,
		Creator:         input.Creator,
		IncludeArchived: input.IncludeArchived,
	})
	if err != nil {
		return toolError("Failed to list dreams: %v", err), nil, nil
	}
	if dreams == nil {
		dreams = []models.Dream{}
	}
	return toolJSON(dreams)
}

func (t *DreamTools) SearchDreams(ctx context.Context, _ *mcp.CallToolRequest, input SearchDreamsInput) (*mcp.CallToolResult, any, error) {
	if input.Query == "" {
		return toolError("Search query is required"), nil, nil
	}
	dreams, err := t.Store.SearchDreams(ctx, input.Query)
	if err != nil {
		return toolError("Search failed: %v", err), nil, nil
	}
	if dreams == nil {
		dreams = []models.Dream{}
	}
	return toolJSON(dreams)
}

func (t *DreamTools) ScoreDream(ctx context.Context, _ *mcp.CallToolRequest, input DreamIDInput) (*mcp.CallToolResult, any, error) {
	if input.DreamID == "" {
		return toolError("dream_id is required"), nil, nil
	}
	d, chain, res, err := t.Engine.ScoreDream(ctx, input.DreamID)
	if err != nil {
		return toolFailure("score dream", err), nil, nil
	}
	return toolJSON(struct {
		Dream  *models.Dream          `json:"dream"`
		Chain  *models.EvolutionChain `json:"evolution_chain"`
		Result scoring.Result         `json:"result"`
	}{d, chain, res})
}

func (t *DreamTools) SetDreamStatus(ctx context.Context, _ *mcp.CallToolRequest, input SetDreamStatusInput) (*mcp.CallToolResult, any, error) {
	if input.DreamID == "" {
		return toolError("dream_id is required"), nil, nil
	}
	d, err := t.Engine.SetDreamStatus(ctx, input.DreamID, models.DreamStatus(input.Status))
	if err != nil {
		return toolFailure("set dream status", err), nil, nil
	}
	return toolJSON(d)
}

func (t *DreamTools) ArchiveDream(ctx context.Context, _ *mcp.CallToolRequest, input DreamIDInput) (*mcp.CallToolResult, any, error) {
	if input.DreamID == "" {
		return toolError("dream_id is required"), nil, nil
	}
	d, err := t.Engine.ArchiveDream(ctx, input.DreamID)
	if err != nil {
		return toolFailure("archive dream", err), nil, nil
	}
	return toolJSON(d)
}

func (t *DreamTools) GetEvolutionChain(ctx context.Context, _ *mcp.CallToolRequest, input DreamIDInput) (*mcp.CallToolResult, any, error) {
	if input.DreamID == "" {
		return toolError("dream_id is required"), nil, nil
	}
	chain, err := t.Store.GetChain(ctx, input.DreamID)
	if err != nil {
		return toolFailure("get evolution chain", err), nil, nil
	}
	return toolJSON(chain)
}

func (t *DreamTools) PromoteDream(ctx context.Context, _ *mcp.CallToolRequest, input PromoteDreamInput) (*mcp.CallToolResult, any, error) {
	if input.DreamID == "" {
		return toolError("dream_id is required"), nil, nil
	}
	actor, err := t.Session.Resolve(input.Actor)
	if err != nil {
		return toolError("Failed to promote dream: %v", err), nil, nil
	}
	c, err := t.Engine.PromoteDream(ctx, input.DreamID, actor)
	if err != nil {
		return toolFailure("promote dream", err), nil, nil
	}
	return toolJSON(c)
}
