package lifecycle

import (
	"errors"
	"fmt"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/models"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/storage"
)

var (
	// ErrNotFound: the dream or cocoon id is unknown.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition: the target is not the immediate successor of the current stage.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInsufficientScore: the activation gate was not met.
	ErrInsufficientScore = errors.New("insufficient score")
	// ErrConcurrentModification: another caller changed the record since it was read.
	// Re-read and retry.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrPersistence: the repository failed. Retryable.
	ErrPersistence = errors.New("persistence failure")
	// ErrInvalidInput: a request field is missing or out of range.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyPromoted: the dream already has a cocoon.
	ErrAlreadyPromoted = errors.New("dream already promoted")
	// ErrNotPromotable: the dream is archived or rejected.
	ErrNotPromotable = errors.New("dream cannot be promoted")
	// ErrAlreadyMinted: the cocoon already carries its mint artifact.
	ErrAlreadyMinted = errors.New("cocoon artifact already minted")
	// ErrDuplicate: a contributor or other unique record already exists.
	ErrDuplicate = errors.New("already exists")
)

// Reason names an expected rejection.
type Reason string

const (
	ReasonInvalidTransition Reason = "invalid_transition"
	ReasonInsufficientScore Reason = "insufficient_score"
)

// RejectionError is returned for expected, reportable rejections of a stage
// change. The attempt has already been written to the stage log as Entry.
type RejectionError struct {
	Reason   Reason                      `json:"reason"`
	CocoonID string                      `json:"cocoon_id"`
	From     models.Stage                `json:"from_stage"`
	Target   models.Stage                `json:"target_stage"`
	Expected models.Stage                `json:"expected_stage,omitempty"`
	Required int                         `json:"required_score,omitempty"`
	Current  int                         `json:"current_score,omitempty"`
	Message  string                      `json:"message"`
	Entry    *models.StageChangeLogEntry `json:"log_entry,omitempty"`
}

func (e *RejectionError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match the sentinel for the reason.
func (e *RejectionError) Unwrap() error {
	switch e.Reason {
	case ReasonInsufficientScore:
		return ErrInsufficientScore
	default:
		return ErrInvalidTransition
	}
}

// mapStoreErr translates repository errors into engine errors, keeping the
// original in the chain.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, storage.ErrConflict):
		return fmt.Errorf("%w: %w", ErrConcurrentModification, err)
	case errors.Is(err, storage.ErrDuplicate):
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	case errors.Is(err, storage.ErrNotPromotable):
		return fmt.Errorf("%w: %w", ErrNotPromotable, err)
	case errors.Is(err, storage.ErrAlreadyMinted):
		return fmt.Errorf("%w: %w", ErrAlreadyMinted, err)
	default:
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
}
