// Package models creates the language-understanding chat model from config.
package models

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	einoclaude "github.com/cloudwego/eino-ext/components/model/claude"
	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/yoonhw/jibsa/internal/config"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultMaxTokens = 2048

	defaultOllamaBaseURL = "http://localhost:11434"
)

// CreateModel creates a model.ToolCallingChatModel from the model config.
// Supported drivers: "openai", "claude", "ollama", "gemini".
func CreateModel(ctx context.Context, cfg config.ModelConfig) (model.ToolCallingChatModel, error) {
	switch strings.ToLower(cfg.Driver) {
	case "openai":
		return newOpenAI(ctx, cfg)
	case "claude", "anthropic":
		return newClaude(ctx, cfg)
	case "ollama":
		return newOllama(ctx, cfg)
	case "gemini":
		return newGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown model driver %q (supported: openai, claude, ollama, gemini)", cfg.Driver)
	}
}

func newOpenAI(ctx context.Context, cfg config.ModelConfig) (model.ToolCallingChatModel, error) {
	apiKey := resolveAPIKey(cfg, "OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("openai model: API key not configured (set auth.api_key or OPENAI_API_KEY)")
	}
	mc := &einoopenai.ChatModelConfig{
		APIKey:  apiKey,
		Model:   cfg.Model,
		Timeout: timeoutOf(cfg),
	}
	if cfg.BaseURL != "" {
		mc.BaseURL = cfg.BaseURL
	}
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		mc.MaxCompletionTokens = &maxTokens
	}
	return einoopenai.NewChatModel(ctx, mc)
}

func newClaude(ctx context.Context, cfg config.ModelConfig) (model.ToolCallingChatModel, error) {
	apiKey := resolveAPIKey(cfg, "ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("claude model: API key not configured (set auth.api_key or ANTHROPIC_API_KEY)")
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	mc := &einoclaude.Config{
		APIKey:    apiKey,
		Model:     cfg.Model,
		MaxTokens: maxTokens,
	}
	if cfg.BaseURL != "" {
		baseURL := cfg.BaseURL
		mc.BaseURL = &baseURL
	}
	return einoclaude.NewChatModel(ctx, mc)
}

func newOllama(ctx context.Context, cfg config.ModelConfig) (model.ToolCallingChatModel, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{
		BaseURL: baseURL,
		Model:   cfg.Model,
		Timeout: timeoutOf(cfg),
	})
}

func newGemini(ctx context.Context, cfg config.ModelConfig) (model.ToolCallingChatModel, error) {
	apiKey := resolveAPIKey(cfg, "GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("gemini model: API key not configured (set auth.api_key or GEMINI_API_KEY)")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return einogemini.NewChatModel(ctx, &einogemini.Config{
		Client: client,
		Model:  cfg.Model,
	})
}

func timeoutOf(cfg config.ModelConfig) time.Duration {
	if cfg.Timeout.Duration() > 0 {
		return cfg.Timeout.Duration()
	}
	return defaultTimeout
}

// resolveAPIKey resolves the key from config, supporting ${VAR} indirection,
// then falls back to the driver's conventional env var.
func resolveAPIKey(cfg config.ModelConfig, envVar string) string {
	key := strings.TrimSpace(cfg.Auth.APIKey)
	if key != "" {
		if strings.HasPrefix(key, "${") && strings.HasSuffix(key, "}") {
			return os.Getenv(key[2 : len(key)-1])
		}
		return key
	}
	return os.Getenv(envVar)
}
