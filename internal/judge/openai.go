package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/callrouter/internal/model"
	"github.com/sells-group/callrouter/internal/resilience"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o"
)

// OpenAIJudge runs span judgments against an OpenAI-compatible chat
// completions endpoint.
type OpenAIJudge struct {
	apiKey    string
	baseURL   string
	modelName string
	http      *http.Client
	retry     resilience.RetryConfig
}

// OpenAIOption configures the judge.
type OpenAIOption func(*OpenAIJudge)

// WithOpenAIBaseURL overrides the default API base URL.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(j *OpenAIJudge) { j.baseURL = url }
}

// WithOpenAIModel overrides the default model.
func WithOpenAIModel(m string) OpenAIOption {
	return func(j *OpenAIJudge) { j.modelName = m }
}

// WithOpenAIHTTPClient overrides the HTTP client (tests).
func WithOpenAIHTTPClient(c *http.Client) OpenAIOption {
	return func(j *OpenAIJudge) { j.http = c }
}

// WithOpenAIRetry overrides the retry policy for transient failures.
func WithOpenAIRetry(cfg resilience.RetryConfig) OpenAIOption {
	return func(j *OpenAIJudge) { j.retry = cfg }
}

// NewOpenAIJudge creates a judge for an OpenAI-compatible API.
func NewOpenAIJudge(apiKey string, opts ...OpenAIOption) *OpenAIJudge {
	retry := resilience.DefaultRetryConfig()
	retry.MaxBackoff = 10 * time.Second

	j := &OpenAIJudge{
		apiKey:    apiKey,
		baseURL:   defaultOpenAIBaseURL,
		modelName: defaultOpenAIModel,
		http:      &http.Client{Timeout: 60 * time.Second},
		retry:     retry,
	}
	for _, opt := range opts {
		opt(j)
	}
	j.retry.OnRetry = resilience.RetryLogger(j.Provider(), "chat_completion")
	return j
}

// Provider implements Judge.
func (j *OpenAIJudge) Provider() string { return "openai" }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// httpStatusError carries the non-OK status through the retry loop so the
// terminal result can report it.
type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}

var errMalformedResponse = errors.New("malformed response")

// Judge implements Judge. Transient failures are retried with backoff;
// everything still failing becomes an OK=false result.
func (j *OpenAIJudge) Judge(ctx context.Context, req Request) model.ProviderResult {
	body, err := json.Marshal(chatRequest{
		Model: j.modelName,
		Messages: []chatMessage{
			{Role: "system", Content: judgeSystemPrompt},
			{Role: "user", Content: buildPrompt(req)},
		},
	})
	if err != nil {
		return failedResult(j.Provider(), j.modelName, "encode_request_failed", err)
	}

	content, err := resilience.DoVal(ctx, j.retry, func(ctx context.Context) (string, error) {
		return j.complete(ctx, body)
	})
	if err != nil {
		zap.L().Warn("judge: openai call failed",
			zap.String("call_id", req.CallID),
			zap.Int("span_index", req.Span.SpanIndex),
			zap.Error(err),
		)
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) {
			return failedResult(j.Provider(), j.modelName,
				fmt.Sprintf("http_%d", statusErr.status), err)
		}
		if errors.Is(err, errMalformedResponse) {
			return failedResult(j.Provider(), j.modelName, "malformed_response", err)
		}
		return failedResult(j.Provider(), j.modelName, "provider_request_failed", err)
	}

	parsed, err := parseJudgment(content)
	if err != nil {
		return failedResult(j.Provider(), j.modelName, "malformed_response", err)
	}

	return parsed.toResult(j.Provider(), j.modelName)
}

// complete performs one chat completion round trip and extracts the
// assistant message.
func (j *OpenAIJudge) complete(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		j.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "openai: build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+j.apiKey)

	resp, err := j.http.Do(httpReq)
	if err != nil {
		return "", eris.Wrap(err, "openai: do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := &httpStatusError{status: resp.StatusCode}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return "", resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return "", statusErr
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", eris.Wrap(err, "openai: read response")
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", errMalformedResponse)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices: %w", errMalformedResponse)
	}
	return chat.Choices[0].Message.Content, nil
}
