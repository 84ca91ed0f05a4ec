// Package milestone holds the static table of rewards granted when a cocoon
// enters a lifecycle stage.
package milestone

import (
	"fmt"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/models"
)

// Selector resolves which wallets receive a reward.
type Selector string

const (
	Creator         Selector = "creator"
	AllContributors Selector = "all-contributors"
)

// Rule is one reward granted on entry into a stage.
type Rule struct {
	Purpose   models.Purpose `json:"purpose"`
	Recipient Selector       `json:"recipient"`
	// Template is a fmt format taking the cocoon title and the stage.
	Template string `json:"template"`
}

// Message renders the notification text for a cocoon entering stage.
func (r Rule) Message(title string, stage models.Stage) string {
	return fmt.Sprintf(r.Template, title, stage)
}

var table = map[models.Stage][]Rule{
	models.StageActive: {
		{Purpose: models.PurposeBadge, Recipient: Creator, Template: "Your cocoon %q is now %s. A badge has been minted for you."},
	},
	models.StageMetamorphosis: {
		{Purpose: models.PurposeBadge, Recipient: AllContributors, Template: "Cocoon %q entered %s. You earned a contributor badge."},
		{Purpose: models.PurposeVote, Recipient: Creator, Template: "Cocoon %q entered %s. You received a vote token."},
	},
	models.StageEmergence: {
		{Purpose: models.PurposeBadge, Recipient: AllContributors, Template: "Cocoon %q reached %s. You earned an emergence badge."},
		{Purpose: models.PurposeVote, Recipient: AllContributors, Template: "Cocoon %q reached %s. You received a vote token."},
	},
	models.StageComplete: {
		{Purpose: models.PurposeMint, Recipient: Creator, Template: "Cocoon %q is %s. Its artifact has been minted to you."},
		{Purpose: models.PurposeBadge, Recipient: AllContributors, Template: "Cocoon %q is %s. You earned a completion badge."},
	},
}

// Rules returns the rewards for entering stage. Stages without milestones
// return nil.
func Rules(stage models.Stage) []Rule {
	rules := table[stage]
	if len(rules) == 0 {
		return nil
	}
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// IsMilestone reports whether entering stage grants rewards.
func IsMilestone(stage models.Stage) bool {
	return len(table[stage]) > 0
}

// Recipients resolves a selector against a cocoon. Results are distinct and
// never contain an empty wallet.
func Recipients(sel Selector, c *models.Cocoon) []string {
	switch sel {
	case Creator:
		if c.Creator == "" {
			return nil
		}
		return []string{c.Creator}
	case AllContributors:
		return c.Wallets()
	}
	return nil
}

// Grant is a single token to mint for a stage entry.
type Grant struct {
	Rule   Rule
	Wallet string
}

// Grants expands the rules for stage into one grant per (rule, recipient).
func Grants(stage models.Stage, c *models.Cocoon) []Grant {
	var grants []Grant
	for _, r := range table[stage] {
		for _, w := range Recipients(r.Recipient, c) {
			grants = append(grants, Grant{Rule: r, Wallet: w})
		}
	}
	return grants
}
