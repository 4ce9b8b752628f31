// Package config loads the service configuration from a JSONC file.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Model     ModelConfig     `json:"model"`
	Embedding EmbeddingConfig `json:"embedding"`
	Listings  ListingsConfig  `json:"listings"`
	SavedList SavedListConfig `json:"saved_list"`
	Events    EventsConfig    `json:"events"`
	Cache     CacheConfig     `json:"cache"`
}

// GatewayConfig holds the HTTP/WebSocket listener settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ModelConfig configures the language-understanding chat model.
type ModelConfig struct {
	Driver    string     `json:"driver"` // openai | claude | ollama | gemini
	Model     string     `json:"model"`
	BaseURL   string     `json:"base_url,omitempty"`
	Auth      AuthConfig `json:"auth"`
	MaxTokens int        `json:"max_tokens,omitempty"`
	Timeout   Duration   `json:"timeout,omitempty"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Driver  string     `json:"driver"` // openai | ollama
	Model   string     `json:"model"`
	BaseURL string     `json:"base_url,omitempty"`
	Auth    AuthConfig `json:"auth"`
	Dims    int        `json:"dims,omitempty"`
}

// AuthConfig configures API key resolution.
type AuthConfig struct {
	APIKey string `json:"api_key,omitempty"` // Direct API key or ${{ .Env.VAR }} template
}

// ListingsConfig locates the listing corpus and vector data.
type ListingsConfig struct {
	File    string `json:"file"`     // YAML seed corpus
	DataDir string `json:"data_dir"` // vector store directory
}

// SavedListConfig locates the saved-list database.
type SavedListConfig struct {
	Path string `json:"path"`
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int `json:"buffer_size"`
}

// CacheConfig holds the embedding cache settings.
type CacheConfig struct {
	TTL       Duration `json:"ttl,omitempty"`
	SweepCron string   `json:"sweep_cron,omitempty"` // 5-field cron expression
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
