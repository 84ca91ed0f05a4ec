package server

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/lifecycle"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/session"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/storage"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/tools"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// New creates a fully configured MCP server with all tools registered.
func New(engine *lifecycle.Engine, store *storage.Store) *mcp.Server {
	sess := session.New()

	dt := &tools.DreamTools{Engine: engine, Store: store, Session: sess}
	ct := &tools.CocoonTools{Engine: engine, Store: store, Session: sess}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "cocoon-mcp",
		Version: Version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "set_actor",
		Description: "Bind the wallet recorded as actor for later calls in this session",
	}, dt.SetActor)

	// Dream tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "evaluate_content",
		Description: "Score a title, description and tags without storing anything",
	}, dt.EvaluateContent)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "submit_dream",
		Description: "Submit a new dream in pending status",
	}, dt.SubmitDream)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_dream",
		Description: "Get a dream by id",
	}, dt.GetDream)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_dreams",
		Description: "List dreams with optional status and creator filters",
	}, dt.ListDreams)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_dreams",
		Description: "Search dream titles, descriptions and tags using FTS5 full-text search",
	}, dt.SearchDreams)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "score_dream",
		Description: "Score a dream and record the result on its evolution chain",
	}, dt.ScoreDream)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "set_dream_status",
		Description: "Approve, reject or reopen a dream",
	}, dt.SetDreamStatus)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "archive_dream",
		Description: "Archive a dream (preserves data, hides it from listings and search)",
	}, dt.ArchiveDream)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_evolution_chain",
		Description: "Get the evolution chain linking a scored dream to its cocoon",
	}, dt.GetEvolutionChain)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "promote_dream",
		Description: "Re-score a dream and fork it into a cocoon in the incubating stage",
	}, dt.PromoteDream)

	// Cocoon lifecycle tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_cocoon",
		Description: "Get a cocoon with its contributors and evolution notes, by cocoon id or dream id",
	}, ct.GetCocoon)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_cocoons",
		Description: "List cocoons with an optional stage filter",
	}, ct.ListCocoons)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "rescore_cocoon",
		Description: "Re-evaluate a cocoon's content and store the new dream score",
	}, ct.RescoreCocoon)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "add_contributor",
		Description: "Add a contributor wallet to a cocoon",
	}, ct.AddContributor)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "add_evolution_note",
		Description: "Append an evolution note to a cocoon",
	}, ct.AddEvolutionNote)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "request_transition",
		Description: "Advance a cocoon to the next lifecycle stage (active requires a dream score of at least 60)",
	}, ct.RequestTransition)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "force_stage",
		Description: "Set a cocoon to any stage, bypassing ordering and the score gate (logged as a force)",
	}, ct.ForceStage)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_stage_log",
		Description: "List every recorded stage change attempt for a cocoon in order",
	}, ct.GetStageLog)

	// Tokens and notifications
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_tokens",
		Description: "List tokens filtered by wallet, dream, cocoon or purpose",
	}, ct.GetTokens)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "mint_token",
		Description: "Mint a token directly (idempotent per cocoon, milestone, holder and purpose)",
	}, ct.MintToken)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_milestones",
		Description: "List the rewards granted when a cocoon enters each stage",
	}, ct.ListMilestones)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_notifications",
		Description: "List notifications for a wallet, newest first",
	}, ct.ListNotifications)

	return srv
}
