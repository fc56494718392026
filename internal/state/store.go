// Package state implements the State Store (§4.G): the conversation-resume
// abstraction behind previous_response_id, with interchangeable in-process
// and remote-collaborator backends.
package state

import (
	"context"
	"time"

	"github.com/NeapolitanIcecream/openbridge/internal/chatapi"
	"github.com/NeapolitanIcecream/openbridge/internal/responsesapi"
	"github.com/NeapolitanIcecream/openbridge/internal/tools"
)

// StoredResponse is everything needed to resume a conversation from a prior
// response_id: the response returned to the client, the flat transcript it
// grew out of, the tool name map in effect for that turn, and the model used.
type StoredResponse struct {
	Response        responsesapi.CreateResponse `json:"response"`
	Messages        []chatapi.Message           `json:"messages"`
	FunctionToExternal map[string]string        `json:"function_to_external"`
	Model           string                      `json:"model"`
}

// ToolVirtualization reconstructs the Virtualization half needed to re-type a
// resumed conversation's tool calls, the state store only persists the
// function-to-external direction since that is all translation needs back.
func (s StoredResponse) ToolVirtualization() tools.Virtualization {
	return tools.Virtualization{FunctionToExternal: s.FunctionToExternal}
}

// Store is the narrow persistence contract the orchestrator depends on.
// Implementations lazily expire entries rather than running a background
// sweep, matching the original's get-time expiry check.
type Store interface {
	Get(ctx context.Context, responseID string) (*StoredResponse, error)
	Set(ctx context.Context, responseID string, record StoredResponse, ttl time.Duration) error
	Delete(ctx context.Context, responseID string) error
	Close(ctx context.Context) error
}
