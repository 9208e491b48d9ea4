package judge

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/sells-group/callrouter/internal/model"
)

const judgeSystemPrompt = "You attribute construction call transcript spans to project records. " +
	"Answer with the requested JSON only."

// AnthropicJudge runs span judgments against the Anthropic Messages API.
type AnthropicJudge struct {
	client    sdk.Client
	modelName string
}

// NewAnthropicJudge creates a judge using the given API key and model.
func NewAnthropicJudge(apiKey, modelName string) *AnthropicJudge {
	return &AnthropicJudge{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		modelName: modelName,
	}
}

// Provider implements Judge.
func (a *AnthropicJudge) Provider() string { return "anthropic" }

// Judge implements Judge. Failures become OK=false results.
func (a *AnthropicJudge) Judge(ctx context.Context, req Request) model.ProviderResult {
	msg, err := a.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(a.modelName),
		MaxTokens: 1024,
		System:    []sdk.TextBlockParam{{Text: judgeSystemPrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(buildPrompt(req))),
		},
	})
	if err != nil {
		zap.L().Warn("judge: anthropic call failed",
			zap.String("call_id", req.CallID),
			zap.Int("span_index", req.Span.SpanIndex),
			zap.Error(err),
		)
		return failedResult(a.Provider(), a.modelName, "provider_request_failed", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	j, err := parseJudgment(text)
	if err != nil {
		zap.L().Warn("judge: anthropic response unparseable",
			zap.String("call_id", req.CallID),
			zap.Int("span_index", req.Span.SpanIndex),
			zap.Error(err),
		)
		return failedResult(a.Provider(), a.modelName, "malformed_response", err)
	}

	return j.toResult(a.Provider(), a.modelName)
}
