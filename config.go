package wharf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Provider identifies an AI provider.
type Provider string

// Supported AI providers.
const (
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
	ProviderGoogle     Provider = "google"
	ProviderPerplexity Provider = "perplexity"
)

// ValidProvider reports whether p is a supported provider.
func ValidProvider(p Provider) bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderPerplexity:
		return true
	}
	return false
}

// Credential is the stored provider identifier and secret used to authorize
// AI-analysis requests. At most one credential is active at a time.
type Credential struct {
	Provider Provider
	Secret   string
}

// ConfigDir returns the config directory path.
// Resolution order: $WHARF_CONFIG_DIR > $XDG_CONFIG_HOME/wharf > ~/.config/wharf
func ConfigDir() string {
	if dir := os.Getenv("WHARF_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "wharf")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "wharf-config")
	}
	return filepath.Join(home, ".config", "wharf")
}

// ConfigPath returns the full path to the backend config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// CredentialPath returns the full path to the credential file.
func CredentialPath() string {
	return filepath.Join(ConfigDir(), "credentials.json")
}

// ManifestPath returns the full path to the session manifest.
func ManifestPath() string {
	return filepath.Join(ConfigDir(), "sessions.toml")
}

// credentialFile is the on-disk shape of the credential store.
type credentialFile struct {
	APIKey   string `json:"aiApiKey"`
	Provider string `json:"aiProvider"`
}

// CredentialStore persists the active credential as a small key-value file.
// Save fully replaces the stored credential; there is no merging.
type CredentialStore struct {
	mu   sync.RWMutex
	path string
	cred *Credential
}

// NewCredentialStore opens the store at path, loading any persisted
// credential. A missing file is not an error; the store starts empty.
func NewCredentialStore(path string) (*CredentialStore, error) {
	s := &CredentialStore{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	var f credentialFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.APIKey != "" {
		s.cred = &Credential{Provider: Provider(f.Provider), Secret: f.APIKey}
	}
	return s, nil
}

// Get returns the active credential, if one is set.
func (s *CredentialStore) Get() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return Credential{}, false
	}
	return *s.cred, true
}

// Set replaces the active credential and persists it.
// The secret is not validated against the provider; a bad key surfaces as
// an error on the first analysis request that uses it.
func (s *CredentialStore) Set(provider Provider, secret string) error {
	if !ValidProvider(provider) {
		return fmt.Errorf("unknown provider %q", provider)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(credentialFile{APIKey: secret, Provider: string(provider)})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return err
	}
	s.cred = &Credential{Provider: provider, Secret: secret}
	return nil
}

// Config holds backend settings.
type Config struct {
	Embedding EmbeddingConfig `json:"embedding"`
	Exec      ExecConfig      `json:"exec"`
}

// EmbeddingConfig holds settings for the command-history embedding API.
// An empty api_key disables the similarity index.
type EmbeddingConfig struct {
	BaseURL     string `json:"base_url"`
	APIKey      string `json:"api_key"`
	Model       string `json:"model"`
	MaxCommands int    `json:"max_commands,omitempty"`
	TTLMinutes  int    `json:"ttl_minutes,omitempty"`
}

// ExecConfig holds command execution settings.
type ExecConfig struct {
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// DefaultConfig returns the default backend configuration.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "text-embedding-3-small",
			MaxCommands: 200,
			TTLMinutes:  60,
		},
		Exec: ExecConfig{TimeoutSeconds: 60},
	}
}

// LoadConfig loads the backend config from disk or returns defaults if not found.
func LoadConfig() (*Config, error) {
	path := ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// Apply defaults for missing fields
	defaults := DefaultConfig()
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = defaults.Embedding.BaseURL
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = defaults.Embedding.Model
	}
	if cfg.Embedding.MaxCommands == 0 {
		cfg.Embedding.MaxCommands = defaults.Embedding.MaxCommands
	}
	if cfg.Embedding.TTLMinutes == 0 {
		cfg.Embedding.TTLMinutes = defaults.Embedding.TTLMinutes
	}
	if cfg.Exec.TimeoutSeconds == 0 {
		cfg.Exec.TimeoutSeconds = defaults.Exec.TimeoutSeconds
	}

	return &cfg, nil
}

// ResolveEmbeddingBaseURL returns the embedding API base URL.
// Priority: $WHARF_EMBEDDING_API_BASE_URL env > config value.
func ResolveEmbeddingBaseURL(cfg *Config) string {
	if url := os.Getenv("WHARF_EMBEDDING_API_BASE_URL"); url != "" {
		return url
	}
	if cfg != nil {
		return cfg.Embedding.BaseURL
	}
	return ""
}

// ResolveEmbeddingAPIKey returns the embedding API key.
// Priority: $WHARF_EMBEDDING_API_KEY env > config value.
func ResolveEmbeddingAPIKey(cfg *Config) string {
	if key := os.Getenv("WHARF_EMBEDDING_API_KEY"); key != "" {
		return key
	}
	if cfg != nil {
		return cfg.Embedding.APIKey
	}
	return ""
}

// ResolveEmbeddingModel returns the embedding model name.
// Priority: $WHARF_EMBEDDING_MODEL env > config value.
func ResolveEmbeddingModel(cfg *Config) string {
	if model := os.Getenv("WHARF_EMBEDDING_MODEL"); model != "" {
		return model
	}
	if cfg != nil {
		return cfg.Embedding.Model
	}
	return ""
}

// EmbeddingEnabled returns true when both base_url and api_key are configured
// for the command similarity index.
func EmbeddingEnabled(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return ResolveEmbeddingBaseURL(cfg) != "" && ResolveEmbeddingAPIKey(cfg) != ""
}
