package wharf

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigDirFromEnv(t *testing.T) {
	t.Setenv("WHARF_CONFIG_DIR", "/custom/wharf")
	if got := ConfigDir(); got != "/custom/wharf" {
		t.Errorf("expected /custom/wharf, got %s", got)
	}
}

func TestConfigDirFromXDG(t *testing.T) {
	t.Setenv("WHARF_CONFIG_DIR", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := ConfigDir(); got != "/xdg/wharf" {
		t.Errorf("expected /xdg/wharf, got %s", got)
	}
}

func TestCredentialStoreStartsEmpty(t *testing.T) {
	store, err := NewCredentialStore(filepath.Join(t.TempDir(), "credentials.json"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Get(); ok {
		t.Error("expected empty store")
	}
}

func TestCredentialStoreSetPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store, err := NewCredentialStore(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Set(ProviderAnthropic, "sk-ant-test"); err != nil {
		t.Fatal(err)
	}

	cred, ok := store.Get()
	if !ok {
		t.Fatal("expected credential after Set")
	}
	if cred.Provider != ProviderAnthropic || cred.Secret != "sk-ant-test" {
		t.Errorf("unexpected credential %+v", cred)
	}

	// A fresh store reads the same credential back.
	reopened, err := NewCredentialStore(path)
	if err != nil {
		t.Fatal(err)
	}
	cred, ok = reopened.Get()
	if !ok || cred.Secret != "sk-ant-test" {
		t.Errorf("expected persisted credential, got (%+v, %v)", cred, ok)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
	}
}

func TestCredentialStoreReplacesWholeCredential(t *testing.T) {
	store, err := NewCredentialStore(filepath.Join(t.TempDir(), "credentials.json"))
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Set(ProviderOpenAI, "first"); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ProviderGoogle, "second"); err != nil {
		t.Fatal(err)
	}

	cred, _ := store.Get()
	if cred.Provider != ProviderGoogle || cred.Secret != "second" {
		t.Errorf("expected full replacement, got %+v", cred)
	}
}

func TestCredentialStoreRejectsUnknownProvider(t *testing.T) {
	store, err := NewCredentialStore(filepath.Join(t.TempDir(), "credentials.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Set("mystery", "secret"); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, ok := store.Get(); ok {
		t.Error("expected store to stay empty after rejected Set")
	}
}

func TestLoadConfigMissingFileGivesDefaults(t *testing.T) {
	t.Setenv("WHARF_CONFIG_DIR", t.TempDir())
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	want := DefaultConfig()
	if cfg.Embedding.BaseURL != want.Embedding.BaseURL {
		t.Errorf("expected default base_url, got %q", cfg.Embedding.BaseURL)
	}
	if cfg.Exec.TimeoutSeconds != want.Exec.TimeoutSeconds {
		t.Errorf("expected default timeout, got %d", cfg.Exec.TimeoutSeconds)
	}
}

func TestLoadConfigMergesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WHARF_CONFIG_DIR", dir)
	content := `{"embedding": {"api_key": "sk-embed"}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedding.APIKey != "sk-embed" {
		t.Errorf("expected api_key from file, got %q", cfg.Embedding.APIKey)
	}
	if cfg.Embedding.Model == "" {
		t.Error("expected default model to fill missing field")
	}
	if cfg.Embedding.MaxCommands == 0 {
		t.Error("expected default max_commands to fill missing field")
	}
}

func TestResolveEmbeddingEnvOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.APIKey = "from-config"

	t.Setenv("WHARF_EMBEDDING_API_KEY", "from-env")
	if got := ResolveEmbeddingAPIKey(cfg); got != "from-env" {
		t.Errorf("expected env to win, got %q", got)
	}

	t.Setenv("WHARF_EMBEDDING_API_KEY", "")
	if got := ResolveEmbeddingAPIKey(cfg); got != "from-config" {
		t.Errorf("expected config value, got %q", got)
	}
}

func TestEmbeddingEnabledNeedsKey(t *testing.T) {
	t.Setenv("WHARF_EMBEDDING_API_BASE_URL", "")
	t.Setenv("WHARF_EMBEDDING_API_KEY", "")

	cfg := DefaultConfig()
	if EmbeddingEnabled(cfg) {
		t.Error("expected disabled without api_key")
	}
	cfg.Embedding.APIKey = "sk"
	if !EmbeddingEnabled(cfg) {
		t.Error("expected enabled with base_url and api_key")
	}
}
