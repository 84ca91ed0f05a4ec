package models

// DreamStatus is the review state of a submitted dream.
type DreamStatus string

const (
	DreamPending  DreamStatus = "pending"
	DreamApproved DreamStatus = "approved"
	DreamRejected DreamStatus = "rejected"
	DreamEvolved  DreamStatus = "evolved"
)

// Valid reports whether s is one of the known dream statuses.
func (s DreamStatus) Valid() bool {
	switch s {
	case DreamPending, DreamApproved, DreamRejected, DreamEvolved:
		return true
	}
	return false
}

// Dream represents a submitted proposal prior to promotion.
type Dream struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Tags           []string       `json:"tags"`
	Creator        string         `json:"creator"`
	Status         DreamStatus    `json:"status"`
	Score          int            `json:"score"`
	CategoryScores map[string]int `json:"category_scores,omitempty"`
	Rationale      []string       `json:"rationale,omitempty"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
	ArchivedAt     string         `json:"archived_at,omitempty"`
}

// EvolutionChain is the back-reference from a scored dream to its cocoon.
type EvolutionChain struct {
	DreamID    string         `json:"dream_id"`
	StageLabel string         `json:"stage_label"`
	CocoonID   string         `json:"cocoon_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  string         `json:"created_at"`
	UpdatedAt  string         `json:"updated_at"`
}

// Chain stage labels.
const (
	ChainEvaluated = "evaluated"
	ChainCocooned  = "cocooned"
)

// Cocoon is a promoted dream progressing through the lifecycle stages.
type Cocoon struct {
	ID             string          `json:"id"`
	DreamID        string          `json:"dream_id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Creator        string          `json:"creator"`
	Stage          Stage           `json:"stage"`
	DreamScore     int             `json:"dream_score"`
	EvolutionNotes []EvolutionNote `json:"evolution_notes,omitempty"`
	Contributors   []Contributor   `json:"contributors,omitempty"`
	Minted         bool            `json:"minted"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

// Wallets returns the distinct contributor wallets in join order.
func (c *Cocoon) Wallets() []string {
	seen := make(map[string]bool, len(c.Contributors))
	var wallets []string
	for _, ct := range c.Contributors {
		if ct.Wallet == "" || seen[ct.Wallet] {
			continue
		}
		seen[ct.Wallet] = true
		wallets = append(wallets, ct.Wallet)
	}
	return wallets
}

// Contributor is a wallet participating in a cocoon.
type Contributor struct {
	Wallet   string `json:"wallet"`
	Role     string `json:"role"`
	JoinedAt string `json:"joined_at"`
}

// RoleCreator is the contributor role given to a cocoon's creator on promotion.
const RoleCreator = "creator"

// EvolutionNote is a free-text note appended to a cocoon.
type EvolutionNote struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// ChangeKind distinguishes ordered transitions from administrative overrides.
type ChangeKind string

const (
	ChangeTransition ChangeKind = "transition"
	ChangeForce      ChangeKind = "force"
)

// StageChangeLogEntry records one transition attempt. Rows are never updated.
type StageChangeLogEntry struct {
	ID        string     `json:"id"`
	Seq       int64      `json:"seq"`
	CocoonID  string     `json:"cocoon_id"`
	FromStage Stage      `json:"from_stage"`
	ToStage   Stage      `json:"to_stage"`
	Actor     string     `json:"actor"`
	Kind      ChangeKind `json:"kind"`
	Success   bool       `json:"success"`
	Reason    string     `json:"reason"`
	CreatedAt string     `json:"created_at"`
}

// Purpose is what a token grants its holder.
type Purpose string

const (
	PurposeBadge Purpose = "badge"
	PurposeMint  Purpose = "mint"
	PurposeVote  Purpose = "vote"
)

// Valid reports whether p is a known token purpose.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeBadge, PurposeMint, PurposeVote:
		return true
	}
	return false
}

// DreamToken is an immutable reward record.
type DreamToken struct {
	ID           string         `json:"id"`
	DreamID      string         `json:"dream_id"`
	CocoonID     string         `json:"cocoon_id,omitempty"`
	HolderWallet string         `json:"holder_wallet"`
	Purpose      Purpose        `json:"purpose"`
	Milestone    string         `json:"milestone,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	MintedAt     string         `json:"minted_at"`
}

// TokenFilter selects tokens. Empty fields match everything.
type TokenFilter struct {
	Wallet   string  `json:"wallet,omitempty"`
	DreamID  string  `json:"dream_id,omitempty"`
	CocoonID string  `json:"cocoon_id,omitempty"`
	Purpose  Purpose `json:"purpose,omitempty"`
}

// Notification is a recorded message for a recipient.
type Notification struct {
	ID        string `json:"id"`
	Recipient string `json:"recipient"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}
