package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/lifecycle"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/models"
	"github.com/wagnerlima/memory-cloud/cocoon-mcp/internal/storage"
)

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// ErrorBody is the JSON payload of a failed tool call.
type ErrorBody struct {
	Reason        string                      `json:"reason"`
	RequiredScore *int                        `json:"required_score,omitempty"`
	CurrentScore  *int                        `json:"current_score,omitempty"`
	ExpectedStage models.Stage                `json:"expected_stage,omitempty"`
	Message       string                      `json:"message"`
	LogEntry      *models.StageChangeLogEntry `json:"log_entry,omitempty"`
}

// errorReason names the failure class of err for callers.
func errorReason(err error) string {
	switch {
	case errors.Is(err, lifecycle.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return "not_found"
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, lifecycle.ErrInsufficientScore):
		return "insufficient_score"
	case errors.Is(err, lifecycle.ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, lifecycle.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, lifecycle.ErrAlreadyPromoted):
		return "already_promoted"
	case errors.Is(err, lifecycle.ErrNotPromotable):
		return "not_promotable"
	case errors.Is(err, lifecycle.ErrAlreadyMinted):
		return "already_minted"
	case errors.Is(err, lifecycle.ErrDuplicate), errors.Is(err, storage.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, lifecycle.ErrPersistence):
		return "persistence_failure"
	}
	return "error"
}

// toolFailure renders err as an IsError result carrying an ErrorBody.
func toolFailure(action string, err error) *mcp.CallToolResult {
	body := ErrorBody{
		Reason:  errorReason(err),
		Message: fmt.Sprintf("%s: %v", action, err),
	}

	var rej *lifecycle.RejectionError
	if errors.As(err, &rej) {
		body.Reason = string(rej.Reason)
		body.Message = rej.Message
		body.ExpectedStage = rej.Expected
		body.LogEntry = rej.Entry
		if rej.Reason == lifecycle.ReasonInsufficientScore {
			body.RequiredScore = &rej.Required
			body.CurrentScore = &rej.Current
		}
	}

	data, mErr := json.MarshalIndent(body, "", "  ")
	if mErr != nil {
		return toolError("%s: %v", action, err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		IsError: true,
	}
}
