package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/models"
)

func TestCreateTokenIfAbsent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	tok := models.DreamToken{
		DreamID:      "dream-1",
		CocoonID:     "cocoon-1",
		HolderWallet: "0xA",
		Purpose:      models.PurposeBadge,
		Milestone:    "active",
		Metadata:     map[string]any{"title": "AI Music Generator"},
	}

	first, created, err := s.CreateTokenIfAbsent(ctx, tok)
	if err != nil {
		t.Fatalf("CreateTokenIfAbsent: %v", err)
	}
	if !created || first.ID == "" || first.MintedAt == "" {
		t.Fatalf("first mint = %+v, created=%v", first, created)
	}
	if first.Metadata["title"] != "AI Music Generator" {
		t.Errorf("Metadata = %v", first.Metadata)
	}

	second, created, err := s.CreateTokenIfAbsent(ctx, tok)
	if err != nil {
		t.Fatalf("CreateTokenIfAbsent again: %v", err)
	}
	if created {
		t.Error("second mint of the same tuple must not create a token")
	}
	if second.ID != first.ID {
		t.Errorf("second mint returned %q, want existing %q", second.ID, first.ID)
	}

	// Any change in the tuple is a different token.
	vote := tok
	vote.Purpose = models.PurposeVote
	if _, created, _ := s.CreateTokenIfAbsent(ctx, vote); !created {
		t.Error("different purpose should mint")
	}
	other := tok
	other.HolderWallet = "0xB"
	if _, created, _ := s.CreateTokenIfAbsent(ctx, other); !created {
		t.Error("different holder should mint")
	}

	all, _ := s.ListTokens(ctx, models.TokenFilter{})
	if len(all) != 3 {
		t.Errorf("Expected 3 tokens, got %d", len(all))
	}
}

func TestCreateTokenWithoutCocoon(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	tok := models.DreamToken{DreamID: "dream-1", HolderWallet: "0xA", Purpose: models.PurposeVote}
	if _, created, _ := s.CreateTokenIfAbsent(ctx, tok); !created {
		t.Fatal("first administrative token should mint")
	}
	if _, created, _ := s.CreateTokenIfAbsent(ctx, tok); created {
		t.Error("administrative tokens are unique per tuple too")
	}
}

func TestListTokensFilter(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	s.CreateTokenIfAbsent(ctx, models.DreamToken{DreamID: "d1", CocoonID: "c1", HolderWallet: "0xA", Purpose: models.PurposeBadge, Milestone: "active"})
	s.CreateTokenIfAbsent(ctx, models.DreamToken{DreamID: "d1", CocoonID: "c1", HolderWallet: "0xB", Purpose: models.PurposeVote, Milestone: "metamorphosis"})
	s.CreateTokenIfAbsent(ctx, models.DreamToken{DreamID: "d2", CocoonID: "c2", HolderWallet: "0xA", Purpose: models.PurposeMint, Milestone: "complete"})

	tests := []struct {
		name   string
		filter models.TokenFilter
		want   int
	}{
		{"all", models.TokenFilter{}, 3},
		{"wallet", models.TokenFilter{Wallet: "0xA"}, 2},
		{"dream", models.TokenFilter{DreamID: "d1"}, 2},
		{"cocoon", models.TokenFilter{CocoonID: "c2"}, 1},
		{"purpose", models.TokenFilter{Purpose: models.PurposeVote}, 1},
		{"combined", models.TokenFilter{Wallet: "0xA", DreamID: "d1"}, 1},
		{"none", models.TokenFilter{Wallet: "0xZ"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListTokens(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListTokens: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d tokens, want %d", len(got), tt.want)
			}
		})
	}
}

func TestTokensAreImmutable(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	tok, _, _ := s.CreateTokenIfAbsent(ctx, models.DreamToken{DreamID: "d1", HolderWallet: "0xA", Purpose: models.PurposeBadge})

	if _, err := s.db.ExecContext(ctx, `UPDATE dream_tokens SET holder_wallet = '0xB' WHERE id = ?`, tok.ID); err == nil {
		t.Error("update of a token should be rejected")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM dream_tokens WHERE id = ?`, tok.ID); err == nil {
		t.Error("delete of a token should be rejected")
	}
}

func TestMintArtifact(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	c := promoted(t, s, 80)

	art := models.DreamToken{DreamID: c.DreamID, CocoonID: c.ID, HolderWallet: "0xCreator", Milestone: "complete"}
	first, created, err := s.MintArtifact(ctx, art)
	if err != nil || !created {
		t.Fatalf("first MintArtifact = %v, %v", created, err)
	}
	if first.Purpose != models.PurposeMint {
		t.Errorf("Purpose = %q, want mint", first.Purpose)
	}
	loaded, _ := s.GetCocoon(ctx, c.ID)
	if !loaded.Minted {
		t.Error("cocoon should be flagged minted")
	}

	again, created, err := s.MintArtifact(ctx, art)
	if err != nil || created || again.ID != first.ID {
		t.Errorf("repeat MintArtifact = %+v, %v, %v; want existing token", again, created, err)
	}

	other := art
	other.HolderWallet = "0xOther"
	if _, _, err := s.MintArtifact(ctx, other); !errors.Is(err, ErrAlreadyMinted) {
		t.Errorf("second holder: err = %v, want ErrAlreadyMinted", err)
	}

	// The index holds even when the transactional path is bypassed.
	direct := other
	direct.Purpose = models.PurposeMint
	if _, _, err := s.CreateTokenIfAbsent(ctx, direct); err == nil {
		t.Error("a second mint token on one cocoon should violate the unique index")
	}

	missing := art
	missing.CocoonID = "missing"
	if _, _, err := s.MintArtifact(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing cocoon: err = %v, want ErrNotFound", err)
	}
}

func TestMintArtifactConcurrent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	c := promoted(t, s, 80)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := s.MintArtifact(ctx, models.DreamToken{
				DreamID:      c.DreamID,
				CocoonID:     c.ID,
				HolderWallet: fmt.Sprintf("0xWallet%d", i),
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var won int
	for err := range results {
		switch {
		case err == nil:
			won++
		case !errors.Is(err, ErrAlreadyMinted):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("%d callers minted, want exactly 1", won)
	}
	mints, _ := s.ListTokens(ctx, models.TokenFilter{CocoonID: c.ID, Purpose: models.PurposeMint})
	if len(mints) != 1 {
		t.Errorf("cocoon carries %d mint tokens, want 1", len(mints))
	}
}
