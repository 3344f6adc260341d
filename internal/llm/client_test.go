package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftcove/driftcove/internal/schema"
)

func TestChat(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "hello back"}},
			},
		})
	}))
	defer ts.Close()

	c := NewClient("sk-test", ts.URL+"/v1/", "gpt-4o-mini")
	out, err := c.Chat(context.Background(), []schema.ChatMessage{
		{Role: "user", Content: "hello"},
	}, schema.ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello back", out)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotBody["model"], "default model fills in")
	assert.Equal(t, float64(4096), gotBody["max_tokens"])
}

func TestChatModelOverride(t *testing.T) {
	var gotModel string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		gotModel, _ = body["model"].(string)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "ok"}}},
		})
	}))
	defer ts.Close()

	c := NewClient("", ts.URL, "gpt-4o-mini")
	_, err := c.Chat(context.Background(), nil, schema.ChatOptions{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", gotModel)
}

func TestChatErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := NewClient("", ts.URL, "gpt-4o-mini")
	_, err := c.Chat(context.Background(), nil, schema.ChatOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestChatEmptyChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer ts.Close()

	c := NewClient("", ts.URL, "gpt-4o-mini")
	_, err := c.Chat(context.Background(), nil, schema.ChatOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
