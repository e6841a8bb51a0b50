// Package config provides YAML-based configuration for pifchat.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. PIFCHAT_CONFIG environment variable
//  3. ~/.pifchat/config.yaml
//  4. ./pifchat.yaml
//
// If no file is found the system runs entirely from env vars and built-in
// defaults, including the compiled-in annual-report catalogue.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Embedding configures the Ollama embedding backend.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Qdrant configures the Qdrant vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Proxy configures the OpenAI-compatible LLM proxy.
	Proxy ProxyConfig `yaml:"proxy"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// History configures conversation history persistence.
	History HistoryConfig `yaml:"history"`

	// Reports is the annual-report catalogue: per language, a mapping from
	// report year to the source document base name. A document's Qdrant
	// collection is named "{base name}_collection".
	Reports ReportsConfig `yaml:"reports"`
}

// EmbeddingConfig holds Ollama embedding settings.
type EmbeddingConfig struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string `yaml:"host"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions is the embedding vector size produced by Model.
	Dimensions int `yaml:"dimensions"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// ProxyConfig holds LLM proxy settings.
type ProxyConfig struct {
	// URL is the proxy base URL (e.g. "http://localhost:4000").
	URL string `yaml:"url"`
	// Model is the logical model name routed by the proxy.
	Model string `yaml:"model"`
	// ConfigPath is the LiteLLM config file used when pifchat owns the
	// proxy process (pifchat serve --start-proxy).
	ConfigPath string `yaml:"config_path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var PIFCHAT_API_KEY.
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// HistoryConfig holds conversation history settings.
type HistoryConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// ReportsConfig maps report years to source document base names, per language.
// These mappings decide which Qdrant collections exist and which are searched
// for a question in each language.
type ReportsConfig struct {
	// Arabic maps year → Arabic report base name.
	Arabic map[string]string `yaml:"arabic"`
	// English maps year → English report base name.
	English map[string]string `yaml:"english"`
}

// Mapping returns the year→base-name mapping for the requested language.
func (r ReportsConfig) Mapping(arabic bool) map[string]string {
	if arabic {
		return r.Arabic
	}
	return r.English
}

// DefaultReports returns the compiled-in annual-report catalogue, used when
// the YAML file omits the reports section entirely.
func DefaultReports() ReportsConfig {
	return ReportsConfig{
		Arabic: map[string]string{
			"2021": "PIF Annual Report 2021-ar",
			"2022": "PIF Annual Report 2022-ar",
			"2023": "PIF-2023-Annual-Report-AR",
		},
		English: map[string]string{
			"2021": "PIF Annual Report 2021",
			"2022": "PIF Annual Report 2022",
			"2023": "PIF-2023-Annual-Report-EN",
		},
	}
}

// CollectionName derives the Qdrant collection name for a document base name.
func CollectionName(baseName string) string {
	return baseName + "_collection"
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"OLLAMA_HOST", func(c *Config) string { return c.Embedding.Host }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"LLM_PROXY_URL", func(c *Config) string { return c.Proxy.URL }},
	{"LLM_PROXY_MODEL", func(c *Config) string { return c.Proxy.Model }},
	{"LLM_PROXY_CONFIG", func(c *Config) string { return c.Proxy.ConfigPath }},
	{"PIFCHAT_HOST", func(c *Config) string { return c.Server.Host }},
	{"PIFCHAT_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"PIFCHAT_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"PIFCHAT_LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"PIFCHAT_LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"PIFCHAT_HISTORY_DB", func(c *Config) string { return c.History.DBPath }},
}

// Load reads a YAML config file, applies non-empty scalar values as
// environment variables (existing env vars are never overwritten — env always
// wins), and returns the parsed Config with the reports catalogue filled in
// from defaults where the file is silent. When no file is found a Config
// holding only the default catalogue is returned with an empty path.
func Load(explicitPath string, log *slog.Logger) (*Config, string, error) {
	cfg := &Config{Reports: DefaultReports()}

	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		applyEnv(cfg)
		return cfg, "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	if len(cfg.Reports.Arabic) == 0 {
		cfg.Reports.Arabic = DefaultReports().Arabic
	}
	if len(cfg.Reports.English) == 0 {
		cfg.Reports.English = DefaultReports().English
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	applyEnv(cfg)

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return cfg, path, nil
}

// applyEnv overlays environment variables onto cfg so that a value exported in
// the environment always beats the YAML file, and values set only in the
// environment reach the struct the service constructors consume.
func applyEnv(cfg *Config) {
	envStr("OLLAMA_HOST", &cfg.Embedding.Host)
	envStr("EMBEDDING_MODEL", &cfg.Embedding.Model)
	envInt("EMBEDDING_DIMENSIONS", &cfg.Embedding.Dimensions)
	envStr("QDRANT_HOST", &cfg.Qdrant.Host)
	envInt("QDRANT_PORT", &cfg.Qdrant.Port)
	envStr("QDRANT_API_KEY", &cfg.Qdrant.APIKey)
	envBool("QDRANT_TLS", &cfg.Qdrant.TLS)
	envStr("LLM_PROXY_URL", &cfg.Proxy.URL)
	envStr("LLM_PROXY_MODEL", &cfg.Proxy.Model)
	envStr("LLM_PROXY_CONFIG", &cfg.Proxy.ConfigPath)
	envStr("PIFCHAT_HOST", &cfg.Server.Host)
	envInt("PIFCHAT_PORT", &cfg.Server.Port)
	envStr("PIFCHAT_API_KEY", &cfg.Server.APIKey)
	envStr("PIFCHAT_LOG_LEVEL", &cfg.Logging.Level)
	envStr("PIFCHAT_LOG_FORMAT", &cfg.Logging.Format)
	envStr("PIFCHAT_HISTORY_DB", &cfg.History.DBPath)
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("PIFCHAT_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".pifchat", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("pifchat.yaml"); err == nil {
		return "pifchat.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
