package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/config"
)

func completionServer(t *testing.T, status int, content string, seen *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{Enabled: true, APIKey: "test-key", BaseURL: baseURL + "/", Timeout: 5 * time.Second}
}

func TestRephrase(t *testing.T) {
	var seen openai.ChatCompletionRequest
	srv := completionServer(t, http.StatusOK, "  \"How is Samsung's HBM business doing?\"\nExtra line", &seen)

	rp, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	got, err := rp.Rephrase(context.Background(), "Tell me about Samsung and HBM", "Samsung HBM")
	require.NoError(t, err)
	assert.Equal(t, "How is Samsung's HBM business doing?", got)

	assert.Equal(t, DefaultModel, seen.Model)
	require.Len(t, seen.Messages, 1)
	assert.Contains(t, seen.Messages[0].Content, "Search query: Samsung HBM")
	assert.Contains(t, seen.Messages[0].Content, "Question: Tell me about Samsung and HBM")
}

func TestRephraseErrors(t *testing.T) {
	srv := completionServer(t, http.StatusInternalServerError, "", nil)
	rp, err := New(testConfig(srv.URL))
	require.NoError(t, err)
	_, err = rp.Rephrase(context.Background(), "q", "query")
	require.Error(t, err)

	blank := completionServer(t, http.StatusOK, "   ", nil)
	rp, err = New(testConfig(blank.URL))
	require.NoError(t, err)
	_, err = rp.Rephrase(context.Background(), "q", "query")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(config.LLMConfig{Enabled: true})
	assert.Error(t, err)
}

func TestClean(t *testing.T) {
	tests := map[string]string{
		"plain?":         "plain?",
		"\"quoted?\"":    "quoted?",
		"“curly?”":       "curly?",
		"first?\nsecond": "first?",
		"  spaced  ":     "spaced",
	}
	for in, want := range tests {
		assert.Equal(t, want, clean(in), in)
	}
}
