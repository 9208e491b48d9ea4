package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/callrouter/internal/model"
	"github.com/sells-group/callrouter/internal/resilience"
)

func openAITestServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)

		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(chatResponse{
				Choices: []struct {
					Message chatMessage `json:"message"`
				}{{Message: chatMessage{Role: "assistant", Content: content}}},
			})
		}
	}))
}

func TestOpenAIJudge_ParsesAssign(t *testing.T) {
	srv := openAITestServer(t, http.StatusOK,
		`{"decision": "assign", "project_id": "p1", "confidence": 0.88, "reasoning": "alias match",
		  "anchors": [{"match_type": "alias", "term": "the Smith job", "candidate_project_id": "p1"}],
		  "strong_anchor": true}`)
	defer srv.Close()

	j := NewOpenAIJudge("test-key", WithOpenAIBaseURL(srv.URL), WithOpenAIModel("gpt-4o-mini"))
	res := j.Judge(context.Background(), Request{CallID: "c1"})

	assert.True(t, res.OK)
	assert.Equal(t, "openai", res.Provider)
	assert.Equal(t, "gpt-4o-mini", res.Model)
	assert.Equal(t, model.DecisionAssign, res.Decision)
	assert.Equal(t, "p1", res.ProjectID)
	assert.True(t, res.StrongAnchor)
}

func TestOpenAIJudge_HTTPErrorBecomesFailedResult(t *testing.T) {
	srv := openAITestServer(t, http.StatusUnprocessableEntity, "")
	defer srv.Close()

	j := NewOpenAIJudge("test-key", WithOpenAIBaseURL(srv.URL))
	res := j.Judge(context.Background(), Request{CallID: "c2"})

	assert.False(t, res.OK)
	assert.Equal(t, "http_422", res.ErrorCode)
	assert.True(t, res.Failed())
}

func TestOpenAIJudge_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(chatResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Role: "assistant", Content: `{"decision": "none", "confidence": 0.1}`}}},
		})
	}))
	defer srv.Close()

	j := NewOpenAIJudge("test-key",
		WithOpenAIBaseURL(srv.URL),
		WithOpenAIRetry(resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
		}))
	res := j.Judge(context.Background(), Request{CallID: "c2b"})

	assert.True(t, res.OK)
	assert.Equal(t, model.DecisionNone, res.Decision)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIJudge_MalformedBodyBecomesFailedResult(t *testing.T) {
	srv := openAITestServer(t, http.StatusOK, "not json at all")
	defer srv.Close()

	j := NewOpenAIJudge("test-key", WithOpenAIBaseURL(srv.URL))
	res := j.Judge(context.Background(), Request{CallID: "c3"})

	assert.False(t, res.OK)
	assert.Equal(t, "malformed_response", res.ErrorCode)
}

func TestOpenAIJudge_UnreachableHostBecomesFailedResult(t *testing.T) {
	j := NewOpenAIJudge("test-key",
		WithOpenAIBaseURL("http://127.0.0.1:1"),
		WithOpenAIRetry(resilience.RetryConfig{MaxAttempts: 1}))
	res := j.Judge(context.Background(), Request{CallID: "c4"})

	assert.False(t, res.OK)
	assert.Equal(t, "provider_request_failed", res.ErrorCode)
}
