package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelzoo/backend/internal/models"
	"github.com/modelzoo/backend/internal/services/conversation"
	"github.com/modelzoo/backend/internal/utils/clientcache"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicOption "github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 2048

// AnthropicInvoker executes invocations against the Anthropic Messages API
type AnthropicInvoker struct {
	providerCfg models.ProviderConfig
	clientCache *clientcache.Cache[*anthropic.Client]
}

// NewAnthropicInvoker creates an invoker for Anthropic-backed deployments
func NewAnthropicInvoker(cfg models.ProviderConfig) *AnthropicInvoker {
	return &AnthropicInvoker{
		providerCfg: cfg,
		clientCache: clientcache.NewCache[*anthropic.Client](),
	}
}

func (ai *AnthropicInvoker) client() (*anthropic.Client, error) {
	return ai.clientCache.GetOrCreate("default", func() (*anthropic.Client, error) {
		if ai.providerCfg.APIKey == "" {
			return nil, models.NewInternalError("anthropic api key not configured", nil)
		}

		opts := []anthropicOption.RequestOption{
			anthropicOption.WithAPIKey(ai.providerCfg.APIKey),
		}
		if ai.providerCfg.BaseURL != "" {
			opts = append(opts, anthropicOption.WithBaseURL(ai.providerCfg.BaseURL))
		}
		for key, value := range ai.providerCfg.Headers {
			opts = append(opts, anthropicOption.WithHeader(key, value))
		}
		if ai.providerCfg.TimeoutMs > 0 {
			timeout := time.Duration(ai.providerCfg.TimeoutMs) * time.Millisecond
			opts = append(opts, anthropicOption.WithHTTPClient(&http.Client{Timeout: timeout}))
		}

		client := anthropic.NewClient(opts...)
		return &client, nil
	})
}

// Invoke executes a message request against the deployment
func (ai *AnthropicInvoker) Invoke(ctx context.Context, model models.ModelConfig, inv Invocation) (Result, error) {
	client, err := ai.client()
	if err != nil {
		return Result{}, err
	}

	messages := make([]anthropic.MessageParam, 0, len(inv.Turns))
	for _, turn := range inv.Turns {
		switch turn.Role {
		case conversation.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		}
	}

	maxTokens := inv.Generation.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	if model.MaxTokens > 0 && maxTokens > model.MaxTokens {
		maxTokens = model.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model.DeploymentName),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if inv.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: inv.System}}
	}
	if inv.Generation.Temperature > 0 {
		params.Temperature = anthropic.Float(inv.Generation.Temperature)
	}

	message, err := client.Messages.New(ctx, params)
	if err != nil {
		return Result{}, ai.classify(model.ID, err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		sb.WriteString(block.Text)
	}

	return Result{
		Content:    sb.String(),
		TokensUsed: int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}, nil
}

func (ai *AnthropicInvoker) classify(modelID string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(modelID, apiErr.StatusCode, fmt.Errorf("anthropic: %s", apiErr.Error()))
	}
	return classifyTransport(modelID, err)
}
