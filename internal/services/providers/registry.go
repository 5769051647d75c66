package providers

import (
	"github.com/modelzoo/backend/internal/config"
	"github.com/modelzoo/backend/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Registry maps a provider name to its invoker. Invokers are built once at
// startup from the configured provider credentials; models without a
// configured provider fail at dispatch time, not at startup, so a partially
// configured deployment can still serve its working models.
type Registry struct {
	invokers map[models.Provider]Invoker
}

// NewRegistry builds invokers for every provider present in the config
func NewRegistry(cfg *config.Config) *Registry {
	invokers := make(map[models.Provider]Invoker)

	for provider, providerCfg := range cfg.Providers {
		switch provider {
		case models.ProviderOpenAI:
			invokers[provider] = NewOpenAIInvoker(providerCfg, false)
		case models.ProviderAzure:
			invokers[provider] = NewOpenAIInvoker(providerCfg, true)
		case models.ProviderAnthropic:
			invokers[provider] = NewAnthropicInvoker(providerCfg)
		case models.ProviderGemini:
			invokers[provider] = NewGeminiInvoker(providerCfg)
		default:
			fiberlog.Warnf("unknown provider %q in config, skipping", provider)
		}
	}

	fiberlog.Infof("provider registry initialized with %d provider(s)", len(invokers))
	return &Registry{invokers: invokers}
}

// ForModel returns the invoker responsible for the model's provider
func (r *Registry) ForModel(model models.ModelConfig) (Invoker, error) {
	invoker, ok := r.invokers[model.Provider]
	if !ok {
		return nil, models.NewUnavailableError(model.ID, nil)
	}
	return invoker, nil
}
