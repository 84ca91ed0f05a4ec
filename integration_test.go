package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/lifecycle"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/models"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/notify"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/scoring"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/server"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/storage"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/tools"
)

type integration struct {
	session    *mcp.ClientSession
	dispatcher *notify.Dispatcher
}

// setupIntegration creates a real MCP server with in-memory transport and returns a connected client session.
func setupIntegration(t *testing.T) (*integration, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "cocoon-mcp-integration-*")
	if err != nil {
		t.Fatal(err)
	}

	store, err := storage.Open(dir)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatal(err)
	}

	dispatcher := notify.NewDispatcher(store, 64, nil)
	engine := lifecycle.New(store, lifecycle.WithPublisher(dispatcher))
	srv := server.New(engine, store)

	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	_, err = srv.Connect(ctx, serverTransport, nil)
	if err != nil {
		dispatcher.Close(ctx)
		store.Close()
		os.RemoveAll(dir)
		t.Fatalf("server connect: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		dispatcher.Close(ctx)
		store.Close()
		os.RemoveAll(dir)
		t.Fatalf("client connect: %v", err)
	}

	cleanup := func() {
		session.Close()
		dispatcher.Close(context.Background())
		store.Close()
		os.RemoveAll(dir)
	}
	return &integration{session: session, dispatcher: dispatcher}, cleanup
}

// callTool is a helper that calls a tool and returns the text content.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	if result.IsError {
		t.Fatalf("CallTool(%s) returned error: %s", name, tc.Text)
	}
	return tc.Text
}

// callToolExpectError calls a tool and expects an error response (IsError=true).
func callToolExpectError(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): protocol error: %v", name, err)
	}
	tc := result.Content[0].(*mcp.TextContent)
	if !result.IsError {
		t.Fatalf("CallTool(%s): expected error but got success: %s", name, tc.Text)
	}
	return tc.Text
}

func decode[T any](t *testing.T, text string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	return v
}

// submitAndPromote submits a dream as the session actor and promotes it.
func submitAndPromote(t *testing.T, session *mcp.ClientSession, title, description string, tags []any) models.Cocoon {
	t.Helper()
	dream := decode[models.Dream](t, callTool(t, session, "submit_dream", map[string]any{
		"title":       title,
		"description": description,
		"tags":        tags,
	}))
	return decode[models.Cocoon](t, callTool(t, session, "promote_dream", map[string]any{
		"dream_id": dream.ID,
	}))
}

func TestIntegration_ListTools(t *testing.T) {
	env, cleanup := setupIntegration(t)
	defer cleanup()

	result, err := env.session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	expectedTools := []string{
		"set_actor", "evaluate_content",
		"submit_dream", "get_dream", "list_dreams", "search_dreams", "score_dream",
		"set_dream_status", "archive_dream", "get_evolution_chain", "promote_dream",
		"get_cocoon", "list_cocoons", "rescore_cocoon", "add_contributor", "add_evolution_note",
		"request_transition", "force_stage", "get_stage_log",
		"get_tokens", "mint_token", "list_milestones", "list_notifications",
	}

	toolNames := make(map[string]bool)
	for _, tool := range result.Tools {
		toolNames[tool.Name] = true
	}

	for _, name := range expectedTools {
		if !toolNames[name] {
			t.Errorf("Missing tool: %s", name)
		}
	}

	if len(result.Tools) != len(expectedTools) {
		t.Errorf("Expected %d tools, got %d", len(expectedTools), len(result.Tools))
	}
}

func TestIntegration_EvaluateContent(t *testing.T) {
	env, cleanup := setupIntegration(t)
	defer cleanup()

	text := callTool(t, env.session, "evaluate_content", map[string]any{
		"title":       "AI Music Generator",
		"description": "A revolutionary neural network system that creates music",
		"tags":        []any{"ai", "music", "technology"},
	})
	res := decode[scoring.Result](t, text)
	if res.Score != 61 {
		t.Errorf("score = %d, want 61", res.Score)
	}
	if res.CategoryScores["technology"] != 20 {
		t.Errorf("technology = %d, want 20", res.CategoryScores["technology"])
	}
	if len(res.Rationale) == 0 {
		t.Error("expected a rationale")
	}
}

func TestIntegration_FullWorkflow(t *testing.T) {
	env, cleanup := setupIntegration(t)
	defer cleanup()
	session := env.session

	// Step 1: calls that need an actor fail until one is bound
	callToolExpectError(t, session, "submit_dream", map[string]any{"title": "Orphan"})
	callTool(t, session, "set_actor", map[string]any{"actor": "0xCreator"})

	// Step 2: submit and score
	dream := decode[models.Dream](t, callTool(t, session, "submit_dream", map[string]any{
		"title":       "AI Music Generator",
		"description": "A revolutionary neural network system that creates music",
		"tags":        []any{"AI", "music", "technology", "music"},
	}))
	if dream.Creator != "0xCreator" || dream.Status != models.DreamPending {
		t.Errorf("dream = %+v", dream)
	}
	if len(dream.Tags) != 3 {
		t.Errorf("tags = %v, want 3 normalized tags", dream.Tags)
	}

	text := callTool(t, session, "score_dream", map[string]any{"dream_id": dream.ID})
	scored := decode[struct {
		Dream models.Dream          `json:"dream"`
		Chain models.EvolutionChain `json:"evolution_chain"`
	}](t, text)
	if scored.Dream.Score != 61 {
		t.Errorf("score = %d, want 61", scored.Dream.Score)
	}
	if scored.Chain.StageLabel != models.ChainEvaluated {
		t.Errorf("chain label = %q", scored.Chain.StageLabel)
	}

	// Step 3: search finds it
	found := decode[[]models.Dream](t, callTool(t, session, "search_dreams", map[string]any{"query": "neural"}))
	if len(found) != 1 || found[0].ID != dream.ID {
		t.Errorf("search_dreams = %v", found)
	}

	// Step 4: promote
	cocoon := decode[models.Cocoon](t, callTool(t, session, "promote_dream", map[string]any{"dream_id": dream.ID}))
	if cocoon.Stage != models.StageIncubating || cocoon.DreamScore != 61 {
		t.Errorf("cocoon = %+v", cocoon)
	}
	text = callToolExpectError(t, session, "promote_dream", map[string]any{"dream_id": dream.ID})
	if !strings.Contains(text, "already_promoted") {
		t.Errorf("second promote = %s", text)
	}

	chain := decode[models.EvolutionChain](t, callTool(t, session, "get_evolution_chain", map[string]any{"dream_id": dream.ID}))
	if chain.CocoonID != cocoon.ID || chain.StageLabel != models.ChainCocooned {
		t.Errorf("chain = %+v", chain)
	}

	// Step 5: add a contributor and activate
	callTool(t, session, "add_contributor", map[string]any{
		"cocoon_id": cocoon.ID,
		"wallet":    "0xArtist",
		"role":      "artist",
	})
	callTool(t, session, "add_evolution_note", map[string]any{
		"cocoon_id": cocoon.ID,
		"content":   "First demo recorded",
	})

	out := decode[lifecycle.Outcome](t, callTool(t, session, "request_transition", map[string]any{
		"cocoon_id":    cocoon.ID,
		"target_stage": "active",
	}))
	if out.Cocoon.Stage != models.StageActive {
		t.Errorf("stage = %q, want active", out.Cocoon.Stage)
	}
	if !out.LogEntry.Success || out.LogEntry.Actor != "0xCreator" {
		t.Errorf("log entry = %+v", out.LogEntry)
	}
	if len(out.Minted) != 1 || out.Minted[0].HolderWallet != "0xCreator" {
		t.Errorf("minted = %+v, want one creator badge", out.Minted)
	}

	// Step 6: metamorphosis rewards every contributor
	out = decode[lifecycle.Outcome](t, callTool(t, session, "request_transition", map[string]any{
		"cocoon_id":    cocoon.ID,
		"target_stage": "metamorphosis",
	}))
	if len(out.Minted) != 3 {
		t.Errorf("minted %d tokens on metamorphosis, want 3", len(out.Minted))
	}

	toks := decode[[]models.DreamToken](t, callTool(t, session, "get_tokens", map[string]any{"wallet": "0xArtist"}))
	if len(toks) != 1 || toks[0].Purpose != models.PurposeBadge {
		t.Errorf("artist tokens = %+v", toks)
	}

	// Step 7: the stage log and the cocoon view agree
	log := decode[[]models.StageChangeLogEntry](t, callTool(t, session, "get_stage_log", map[string]any{"cocoon_id": cocoon.ID}))
	if len(log) != 2 {
		t.Fatalf("stage log has %d entries, want 2", len(log))
	}
	got := decode[models.Cocoon](t, callTool(t, session, "get_cocoon", map[string]any{"dream_id": dream.ID}))
	if got.Stage != models.StageMetamorphosis || len(got.Contributors) != 2 || len(got.EvolutionNotes) != 1 {
		t.Errorf("cocoon = %+v", got)
	}

	// Step 8: notifications arrive once the queue drains
	if err := env.dispatcher.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	notes := decode[[]models.Notification](t, callTool(t, session, "list_notifications", nil))
	if len(notes) == 0 {
		t.Fatal("expected notifications for the creator")
	}
	artistNotes := decode[[]models.Notification](t, callTool(t, session, "list_notifications", map[string]any{"recipient": "0xArtist"}))
	if len(artistNotes) != 1 || artistNotes[0].Type != string(lifecycle.EventTokenMinted) {
		t.Errorf("artist notifications = %+v", artistNotes)
	}
}

func TestIntegration_TransitionRejections(t *testing.T) {
	env, cleanup := setupIntegration(t)
	defer cleanup()
	session := env.session

	callTool(t, session, "set_actor", map[string]any{"actor": "0xCreator"})
	cocoon := submitAndPromote(t, session, "Simple thing", "just a basic thing", nil)

	// Insufficient score
	text := callToolExpectError(t, session, "request_transition", map[string]any{
		"cocoon_id":    cocoon.ID,
		"target_stage": "active",
	})
	body := decode[tools.ErrorBody](t, text)
	if body.Reason != "insufficient_score" {
		t.Errorf("reason = %q, want insufficient_score", body.Reason)
	}
	if body.RequiredScore == nil || *body.RequiredScore != 60 {
		t.Errorf("required_score = %v, want 60", body.RequiredScore)
	}
	if body.CurrentScore == nil || *body.CurrentScore >= 60 {
		t.Errorf("current_score = %v, want below 60", body.CurrentScore)
	}

	// Skipping a stage
	text = callToolExpectError(t, session, "request_transition", map[string]any{
		"cocoon_id":    cocoon.ID,
		"target_stage": "emergence",
	})
	body = decode[tools.ErrorBody](t, text)
	if body.Reason != "invalid_transition" || body.ExpectedStage != models.StageActive {
		t.Errorf("body = %+v", body)
	}

	// A fresh score clears the gate
	out := decode[lifecycle.Outcome](t, callTool(t, session, "request_transition", map[string]any{
		"cocoon_id":    cocoon.ID,
		"target_stage": "active",
		"score":        75,
	}))
	if out.Cocoon.Stage != models.StageActive || out.Cocoon.DreamScore != 75 {
		t.Errorf("cocoon = %+v", out.Cocoon)
	}

	// Unknown cocoon
	text = callToolExpectError(t, session, "request_transition", map[string]any{
		"cocoon_id":    "missing",
		"target_stage": "active",
	})
	if decode[tools.ErrorBody](t, text).Reason != "not_found" {
		t.Errorf("unknown cocoon = %s", text)
	}

	log := decode[[]models.StageChangeLogEntry](t, callTool(t, session, "get_stage_log", map[string]any{"cocoon_id": cocoon.ID}))
	if len(log) != 3 {
		t.Errorf("stage log has %d entries, want 3", len(log))
	}
}

func TestIntegration_ForceStageIsIdempotentForTokens(t *testing.T) {
	env, cleanup := setupIntegration(t)
	defer cleanup()
	session := env.session

	callTool(t, session, "set_actor", map[string]any{"actor": "0xAdmin"})
	cocoon := submitAndPromote(t, session, "Orbit", "Satellite tracking", nil)

	for range 3 {
		out := decode[lifecycle.Outcome](t, callTool(t, session, "force_stage", map[string]any{
			"cocoon_id":    cocoon.ID,
			"target_stage": "complete",
		}))
		if out.LogEntry.Kind != models.ChangeForce {
			t.Errorf("kind = %q, want force", out.LogEntry.Kind)
		}
	}

	mints := decode[[]models.DreamToken](t, callTool(t, session, "get_tokens", map[string]any{
		"cocoon_id": cocoon.ID,
		"purpose":   "mint",
	}))
	if len(mints) != 1 {
		t.Errorf("mint tokens = %d, want 1", len(mints))
	}
	got := decode[models.Cocoon](t, callTool(t, session, "get_cocoon", map[string]any{"cocoon_id": cocoon.ID}))
	if !got.Minted {
		t.Error("expected cocoon to be minted")
	}
}

func TestIntegration_ListMilestones(t *testing.T) {
	env, cleanup := setupIntegration(t)
	defer cleanup()

	entries := decode[[]tools.MilestoneEntry](t, callTool(t, env.session, "list_milestones", nil))
	if len(entries) != 4 {
		t.Fatalf("milestones = %d, want 4", len(entries))
	}
	if entries[0].Stage != models.StageActive || entries[3].Stage != models.StageComplete {
		t.Errorf("milestone order = %v", entries)
	}
}

func TestScoreCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"score",
		"--config", "",
		"--title", "AI Music Generator",
		"--description", "A revolutionary neural network system that creates music",
		"--tag", "ai", "--tag", "music", "--tag", "technology",
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("score: %v", err)
	}
	res := decode[scoring.Result](t, out.String())
	if res.Score != 61 {
		t.Errorf("score = %d, want 61", res.Score)
	}
}
