package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelzoo/backend/internal/models"
	"github.com/modelzoo/backend/internal/services/conversation"
	"github.com/modelzoo/backend/internal/utils/clientcache"

	"google.golang.org/genai"
)

// GeminiInvoker executes invocations against the Gemini API
type GeminiInvoker struct {
	providerCfg models.ProviderConfig
	clientCache *clientcache.Cache[*genai.Client]
}

// NewGeminiInvoker creates an invoker for Gemini-backed deployments
func NewGeminiInvoker(cfg models.ProviderConfig) *GeminiInvoker {
	return &GeminiInvoker{
		providerCfg: cfg,
		clientCache: clientcache.NewCache[*genai.Client](),
	}
}

func (gi *GeminiInvoker) client(ctx context.Context) (*genai.Client, error) {
	return gi.clientCache.GetOrCreate("default", func() (*genai.Client, error) {
		if gi.providerCfg.APIKey == "" {
			return nil, models.NewInternalError("gemini api key not configured", nil)
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  gi.providerCfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return client, nil
	})
}

// Invoke executes a generate-content request against the deployment
func (gi *GeminiInvoker) Invoke(ctx context.Context, model models.ModelConfig, inv Invocation) (Result, error) {
	client, err := gi.client(ctx)
	if err != nil {
		return Result{}, err
	}

	contents := make([]*genai.Content, 0, len(inv.Turns))
	for _, turn := range inv.Turns {
		role := genai.Role(genai.RoleUser)
		if turn.Role == conversation.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}

	genConfig := &genai.GenerateContentConfig{}
	if inv.System != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(inv.System, genai.RoleUser)
	}
	if inv.Generation.MaxTokens > 0 {
		maxTokens := inv.Generation.MaxTokens
		if model.MaxTokens > 0 && maxTokens > model.MaxTokens {
			maxTokens = model.MaxTokens
		}
		genConfig.MaxOutputTokens = int32(maxTokens)
	}
	if inv.Generation.Temperature > 0 {
		genConfig.Temperature = genai.Ptr(float32(inv.Generation.Temperature))
	}

	resp, err := client.Models.GenerateContent(ctx, model.DeploymentName, contents, genConfig)
	if err != nil {
		return Result{}, gi.classify(model.ID, err)
	}

	result := Result{Content: resp.Text()}
	if resp.UsageMetadata != nil {
		result.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	return result, nil
}

func (gi *GeminiInvoker) classify(modelID string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(modelID, apiErr.Code, fmt.Errorf("gemini: %s", apiErr.Message))
	}
	return classifyTransport(modelID, err)
}
