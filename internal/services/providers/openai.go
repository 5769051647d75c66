package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelzoo/backend/internal/models"
	"github.com/modelzoo/backend/internal/services/conversation"
	"github.com/modelzoo/backend/internal/utils/clientcache"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/azure"
	openaiOption "github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

// OpenAIInvoker serves both plain OpenAI-compatible endpoints and Azure
// OpenAI deployments (the original system's backend).
type OpenAIInvoker struct {
	providerCfg models.ProviderConfig
	isAzure     bool
	clientCache *clientcache.Cache[*openai.Client]
}

// NewOpenAIInvoker creates an invoker for an OpenAI-compatible backend
func NewOpenAIInvoker(cfg models.ProviderConfig, isAzure bool) *OpenAIInvoker {
	return &OpenAIInvoker{
		providerCfg: cfg,
		isAzure:     isAzure,
		clientCache: clientcache.NewCache[*openai.Client](),
	}
}

func (oi *OpenAIInvoker) client() (*openai.Client, error) {
	return oi.clientCache.GetOrCreate("default", func() (*openai.Client, error) {
		if oi.providerCfg.APIKey == "" {
			return nil, models.NewInternalError("openai api key not configured", nil)
		}

		var opts []openaiOption.RequestOption
		if oi.isAzure {
			if oi.providerCfg.BaseURL == "" {
				return nil, models.NewInternalError("azure endpoint not configured", nil)
			}
			apiVersion := oi.providerCfg.APIVersion
			if apiVersion == "" {
				apiVersion = "2024-02-15-preview"
			}
			opts = append(opts,
				azure.WithEndpoint(oi.providerCfg.BaseURL, apiVersion),
				azure.WithAPIKey(oi.providerCfg.APIKey),
			)
		} else {
			opts = append(opts, openaiOption.WithAPIKey(oi.providerCfg.APIKey))
			if oi.providerCfg.BaseURL != "" {
				opts = append(opts, openaiOption.WithBaseURL(oi.providerCfg.BaseURL))
			}
		}

		for key, value := range oi.providerCfg.Headers {
			opts = append(opts, openaiOption.WithHeader(key, value))
		}

		if oi.providerCfg.TimeoutMs > 0 {
			timeout := time.Duration(oi.providerCfg.TimeoutMs) * time.Millisecond
			opts = append(opts, openaiOption.WithHTTPClient(&http.Client{Timeout: timeout}))
		}

		client := openai.NewClient(opts...)
		return &client, nil
	})
}

// Invoke executes a chat completion against the deployment
func (oi *OpenAIInvoker) Invoke(ctx context.Context, model models.ModelConfig, inv Invocation) (Result, error) {
	client, err := oi.client()
	if err != nil {
		return Result{}, err
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(inv.Turns)+1)
	if inv.System != "" {
		messages = append(messages, openai.SystemMessage(inv.System))
	}
	for _, turn := range inv.Turns {
		switch turn.Role {
		case conversation.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model.DeploymentName),
		Messages: messages,
	}
	if inv.Generation.MaxTokens > 0 {
		maxTokens := inv.Generation.MaxTokens
		if model.MaxTokens > 0 && maxTokens > model.MaxTokens {
			maxTokens = model.MaxTokens
		}
		params.MaxTokens = openai.Int(int64(maxTokens))
	}
	if inv.Generation.Temperature > 0 {
		params.Temperature = openai.Float(inv.Generation.Temperature)
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Result{}, oi.classify(model.ID, err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, models.NewTransientError(model.ID, "empty completion response", nil)
	}

	fiberlog.Debugf("openai completion from %s finished (%s)", model.ID, resp.Choices[0].FinishReason)
	return Result{
		Content:    resp.Choices[0].Message.Content,
		TokensUsed: int(resp.Usage.TotalTokens),
	}, nil
}

func (oi *OpenAIInvoker) classify(modelID string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(modelID, apiErr.StatusCode, fmt.Errorf("openai: %s", apiErr.Error()))
	}
	return classifyTransport(modelID, err)
}
