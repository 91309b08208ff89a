package sambanova

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionBody(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "Meta-Llama-3.1-8B-Instruct",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
		"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19},
	}
}

func TestChatCompletion_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Meta-Llama-3.1-8B-Instruct", body["model"])
		assert.InDelta(t, 0.7, body["temperature"], 0.001)
		assert.InDelta(t, 0.9, body["top_p"], 0.001)

		msgs, ok := body["messages"].([]any)
		require.True(t, ok)
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
		assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
		assert.Equal(t, "Bitcoin", msgs[1].(map[string]any)["content"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionBody(`{"tweet_text": "hi"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	temp, topP := 0.7, 0.9
	c := NewClient("test-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	resp, err := c.ChatCompletion(context.Background(), ChatRequest{
		System:      "You are a writer.",
		User:        "Bitcoin",
		Temperature: &temp,
		TopP:        &topP,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"tweet_text": "hi"}`, resp.Content)
	assert.Equal(t, "chatcmpl-1", resp.ID)
	assert.Equal(t, int64(12), resp.Usage.PromptTokens)
	assert.Equal(t, int64(7), resp.Usage.CompletionTokens)
}

func TestChatCompletion_ModelOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Meta-Llama-3.3-70B-Instruct", body["model"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionBody("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL), WithModel("Meta-Llama-3.3-70B-Instruct"))
	_, err := c.ChatCompletion(context.Background(), ChatRequest{User: "x"})
	require.NoError(t, err)
}

func TestChatCompletion_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		body := completionBody("")
		body["choices"] = []any{}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.ChatCompletion(context.Background(), ChatRequest{User: "x"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestChatCompletion_APIErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.ChatCompletion(context.Background(), ChatRequest{User: "x"})
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestStatusCode_NonAPIError(t *testing.T) {
	assert.Equal(t, 0, StatusCode(assert.AnError))
	assert.Equal(t, 0, StatusCode(nil))
}
