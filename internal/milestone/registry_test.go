package milestone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/models"
)

func TestMilestoneStages(t *testing.T) {
	want := map[models.Stage]bool{
		models.StageIncubating:    false,
		models.StageActive:        true,
		models.StageMetamorphosis: true,
		models.StageEmergence:     true,
		models.StageComplete:      true,
		models.StageArchived:      false,
	}
	for _, st := range models.Stages {
		assert.Equal(t, want[st], IsMilestone(st), "stage %s", st)
	}
	assert.Nil(t, Rules(models.StageArchived))
}

func TestRulesReturnsCopy(t *testing.T) {
	rules := Rules(models.StageActive)
	require.NotEmpty(t, rules)
	rules[0].Purpose = models.PurposeVote
	assert.Equal(t, models.PurposeBadge, Rules(models.StageActive)[0].Purpose)
}

func TestRecipients(t *testing.T) {
	c := &models.Cocoon{
		Creator: "0xCreator",
		Contributors: []models.Contributor{
			{Wallet: "0xCreator", Role: models.RoleCreator},
			{Wallet: "0xArtist", Role: "artist"},
		},
	}
	assert.Equal(t, []string{"0xCreator"}, Recipients(Creator, c))
	assert.Equal(t, []string{"0xCreator", "0xArtist"}, Recipients(AllContributors, c))
	assert.Nil(t, Recipients(Selector("everyone"), c))
	assert.Nil(t, Recipients(Creator, &models.Cocoon{}))
}

func TestGrants(t *testing.T) {
	c := &models.Cocoon{
		Creator: "0xCreator",
		Contributors: []models.Contributor{
			{Wallet: "0xCreator", Role: models.RoleCreator},
			{Wallet: "0xArtist", Role: "artist"},
		},
	}

	grants := Grants(models.StageMetamorphosis, c)
	require.Len(t, grants, 3)
	assert.Equal(t, models.PurposeBadge, grants[0].Rule.Purpose)
	assert.Equal(t, "0xCreator", grants[0].Wallet)
	assert.Equal(t, "0xArtist", grants[1].Wallet)
	assert.Equal(t, models.PurposeVote, grants[2].Rule.Purpose)
	assert.Equal(t, "0xCreator", grants[2].Wallet)

	assert.Empty(t, Grants(models.StageIncubating, c))
}

func TestRuleMessage(t *testing.T) {
	r := Rules(models.StageActive)[0]
	assert.Equal(t, `Your cocoon "Song" is now active. A badge has been minted for you.`, r.Message("Song", models.StageActive))
}
