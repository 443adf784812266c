package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, handler func(req openai.ChatCompletionRequest) (int, any)) (*httptest.Server, *int32) {
	t.Helper()
	var hit int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hit, 1)
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		status, body := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hit
}

func completion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": content}}},
		"usage":   map[string]int{"total_tokens": 12},
	}
}

func TestOpenAIBackendComplete(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv, hit := chatServer(t, func(req openai.ChatCompletionRequest) (int, any) {
		got = req
		return http.StatusOK, completion("def test_ok():\n    assert True")
	})

	b := NewOpenAIBackend("sk-test", srv.URL, "gpt-4", nil)
	out, err := b.Complete(context.Background(), Prompt{System: "sys", User: "user", Temperature: 0.2, MaxTokens: 500})
	require.NoError(t, err)
	assert.Equal(t, "def test_ok():\n    assert True", out)
	assert.EqualValues(t, 1, atomic.LoadInt32(hit))

	assert.Equal(t, "gpt-4", got.Model)
	assert.Equal(t, 500, got.MaxTokens)
	assert.InDelta(t, 0.2, got.Temperature, 1e-6)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, "sys", got.Messages[0].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, got.Messages[1].Role)
	assert.Equal(t, "user", got.Messages[1].Content)
}

func TestOpenAIBackendNoChoices(t *testing.T) {
	srv, _ := chatServer(t, func(openai.ChatCompletionRequest) (int, any) {
		return http.StatusOK, map[string]any{"choices": []any{}}
	})
	b := NewOpenAIBackend("sk-test", srv.URL, "gpt-4", nil)
	_, err := b.Complete(context.Background(), Prompt{User: "u"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIBackendAPIError(t *testing.T) {
	srv, _ := chatServer(t, func(openai.ChatCompletionRequest) (int, any) {
		return http.StatusUnauthorized, map[string]any{"error": map[string]any{"message": "invalid api key", "type": "invalid_request_error"}}
	})
	b := NewOpenAIBackend("sk-bad", srv.URL, "gpt-4", nil)
	_, err := b.Complete(context.Background(), Prompt{User: "u"})
	require.Error(t, err)
	var apiErr *openai.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatusCode)
	assert.Contains(t, err.Error(), "invalid api key")
}

type stubChat struct {
	resp openai.ChatCompletionResponse
	err  error
}

func (s stubChat) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return s.resp, s.err
}

func TestOpenAIBackendClientError(t *testing.T) {
	b := &OpenAIBackend{Model: "gpt-4", client: stubChat{err: errors.New("dial tcp: connection refused")}}
	_, err := b.Complete(context.Background(), Prompt{User: "u"})
	assert.EqualError(t, err, "dial tcp: connection refused")
}
