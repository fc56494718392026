package responsesapi_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NeapolitanIcecream/openbridge/internal/responsesapi"
)

func TestStoreOrDefaultDefaultsTrue(t *testing.T) {
	var req responsesapi.CreateRequest
	assert.True(t, req.StoreOrDefault())

	f := false
	req.Store = &f
	assert.False(t, req.StoreOrDefault())
}

func TestInputAsStringRecognizesBareString(t *testing.T) {
	req := responsesapi.CreateRequest{Input: json.RawMessage(`"hello"`)}
	s, ok := req.InputAsString()
	require.True(t, ok)
	assert.Equal(t, "hello", s)
}

func TestInputAsStringRejectsItemList(t *testing.T) {
	req := responsesapi.CreateRequest{Input: json.RawMessage(`[{"type":"message"}]`)}
	_, ok := req.InputAsString()
	assert.False(t, ok)
}

func TestInputAsItemsParsesOrderedList(t *testing.T) {
	req := responsesapi.CreateRequest{Input: json.RawMessage(`[{"type":"message","role":"user"}]`)}
	items, err := req.InputAsItems()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "user", items[0].Role)
}

func TestNewCreateResponseDefaultsNilOutputToEmptySlice(t *testing.T) {
	r := responsesapi.NewCreateResponse("resp_1", 1000, "openai/gpt-4o", nil)
	assert.Equal(t, "response", r.Object)
	assert.NotNil(t, r.Output)
	assert.Empty(t, r.Output)
}

func TestNewErrorResponseShape(t *testing.T) {
	err := responsesapi.NewErrorResponse("bad request", "invalid_request_error")
	assert.Equal(t, "bad request", err.Error.Message)
	assert.Equal(t, "invalid_request_error", err.Error.Type)
	assert.Nil(t, err.Error.Param)
}
