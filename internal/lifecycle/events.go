package lifecycle

import (
	"time"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/models"
)

// EventType names a domain event emitted by the engine.
type EventType string

const (
	EventStageEntered      EventType = "stage_entered"
	EventInsufficientScore EventType = "insufficient_score"
	EventTokenMinted       EventType = "token_minted"
)

// Event is emitted after the fact it describes has been persisted.
type Event struct {
	Type      EventType          `json:"type"`
	CocoonID  string             `json:"cocoon_id,omitempty"`
	DreamID   string             `json:"dream_id,omitempty"`
	Recipient string             `json:"recipient"`
	Stage     models.Stage       `json:"stage,omitempty"`
	Message   string             `json:"message"`
	Token     *models.DreamToken `json:"token,omitempty"`
	At        time.Time          `json:"at"`
}

// Publisher receives engine events. Publish must not block the caller.
type Publisher interface {
	Publish(ev Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ev Event)

// Publish implements Publisher.
func (f PublisherFunc) Publish(ev Event) { f(ev) }

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}
