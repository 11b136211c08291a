package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Server    ServerConfig
	Anthropic AnthropicConfig
	Search    SearchConfig
	Storage   StorageConfig
	Log       LogConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Port int
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

type SearchConfig struct {
	APIKey   string
	Engine   string // "serper" or "google"
	GoogleCX string // custom search engine id, google engine only
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type AuthConfig struct {
	Token string // optional bearer token for the HTTP API
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-20250514",
		},
		Search: SearchConfig{
			Engine: "serper",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.flowsage.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/flowsage/config.json
// and secrets fall back to a secrets file under $XDG_DATA_HOME.
//
// Environment variables (FLOWSAGE_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret-store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try the platform secret store for keys still empty. The search key is
	// optional; the search bridge degrades to a placeholder without it.
	if cfg.Anthropic.APIKey == "" {
		if key, err := kc.Get("flowsage", "anthropic_api_key"); err == nil && key != "" {
			cfg.Anthropic.APIKey = key
		}
	}
	if cfg.Search.APIKey == "" {
		if key, err := kc.Get("flowsage", "search_api_key"); err == nil && key != "" {
			cfg.Search.APIKey = key
		}
	}

	if cfg.Anthropic.APIKey == "" {
		msg := "missing required config: Anthropic API key. " +
			"Set it via environment variable FLOWSAGE_ANTHROPIC_API_KEY" +
			apiKeyHint()
		return Config{}, fmt.Errorf("%s", msg)
	}

	if cfg.Search.Engine != "serper" && cfg.Search.Engine != "google" {
		return Config{}, fmt.Errorf("invalid search engine %q: must be serper or google", cfg.Search.Engine)
	}

	return cfg, nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
