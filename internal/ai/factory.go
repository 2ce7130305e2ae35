// factory.go - Gateway factory for the configured provider

package ai

import (
	"context"
	"fmt"

	"github.com/bosocmputer/ocr_translate/configs"
	"github.com/bosocmputer/ocr_translate/internal/common"
)

// NewFactory returns a Factory that builds gateways for cfg.OCRProvider
func NewFactory(cfg *configs.Config) Factory {
	return func(apiKey string) (Gateway, error) {
		switch cfg.OCRProvider {
		case configs.ProviderMistral:
			common.Logger().Debug("🔷 Creating Mistral gateway")
			return NewMistralGateway(apiKey, cfg)

		case configs.ProviderGemini:
			common.Logger().Debug("🔵 Creating Gemini gateway")
			return NewGeminiGateway(context.Background(), apiKey, cfg)

		default:
			return nil, fmt.Errorf("unsupported OCR provider: %s (supported: %s, %s)",
				cfg.OCRProvider, configs.ProviderMistral, configs.ProviderGemini)
		}
	}
}
