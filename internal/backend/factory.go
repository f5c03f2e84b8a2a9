package backend

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// Provider configuration
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	// Default models
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultOpenAIModel = "local-model"

	// DefaultOpenAIEndpoint targets a local LM Studio server
	DefaultOpenAIEndpoint = "http://127.0.0.1:1234/v1/chat/completions"

	DefaultTimeout = 120 * time.Second

	// Environment variables
	EnvProvider     = "CODENOTATE_PROVIDER"
	EnvModel        = "CODENOTATE_MODEL"
	EnvEndpoint     = "CODENOTATE_ENDPOINT"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvGoogleAPIKey = "GOOGLE_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Config holds backend configuration
type Config struct {
	Provider string
	Model    string
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// New creates a backend with explicit configuration
func New(ctx context.Context, cfg Config) (Backend, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = DetectProvider()
	}

	switch provider {
	case ProviderGemini:
		key := cfg.APIKey
		if key == "" {
			key = geminiKeyFromEnv()
		}
		return NewGemini(ctx, key, cfg.Model, cfg.Timeout)
	case ProviderOpenAI, "lmstudio":
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv(EnvOpenAIAPIKey)
		}
		return NewOpenAI(cfg.Endpoint, key, cfg.Model, cfg.Timeout)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

// NewFromEnv creates a backend based on environment variables
// Priority:
// 1. CODENOTATE_PROVIDER (gemini, openai)
// 2. Check for API keys: GEMINI_API_KEY / GOOGLE_API_KEY
// 3. Default to the local OpenAI-compatible endpoint
func NewFromEnv(ctx context.Context) (Backend, error) {
	return New(ctx, Config{
		Provider: os.Getenv(EnvProvider),
		Model:    os.Getenv(EnvModel),
		Endpoint: os.Getenv(EnvEndpoint),
	})
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	if p := os.Getenv(EnvProvider); p != "" {
		return strings.ToLower(p)
	}
	if geminiKeyFromEnv() != "" {
		return ProviderGemini
	}
	return ProviderOpenAI
}

func geminiKeyFromEnv() string {
	if k := os.Getenv(EnvGeminiAPIKey); k != "" {
		return k
	}
	return os.Getenv(EnvGoogleAPIKey)
}
