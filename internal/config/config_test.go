package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	cfg, path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
	if cfg == nil {
		t.Fatal("expected a config with defaults, got nil")
	}
	if len(cfg.Reports.Arabic) == 0 || len(cfg.Reports.English) == 0 {
		t.Errorf("expected default report catalogue, got %+v", cfg.Reports)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
embedding:
  host: http://ollama.internal:11434
  model: qwen3-embedding
  dimensions: 1024
qdrant:
  host: qdrant.internal
  port: 6334
proxy:
  url: http://localhost:4000
  model: rag-llm
logging:
  level: debug
  format: text
reports:
  arabic:
    "2023": "PIF-2023-Annual-Report-AR"
  english:
    "2023": "PIF-2023-Annual-Report-EN"
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"OLLAMA_HOST", "EMBEDDING_MODEL", "EMBEDDING_DIMENSIONS",
		"QDRANT_HOST", "QDRANT_PORT",
		"LLM_PROXY_URL", "LLM_PROXY_MODEL",
		"PIFCHAT_LOG_LEVEL", "PIFCHAT_LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	cfg, loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"OLLAMA_HOST":          "http://ollama.internal:11434",
		"EMBEDDING_MODEL":      "qwen3-embedding",
		"EMBEDDING_DIMENSIONS": "1024",
		"QDRANT_HOST":          "qdrant.internal",
		"QDRANT_PORT":          "6334",
		"LLM_PROXY_URL":        "http://localhost:4000",
		"LLM_PROXY_MODEL":      "rag-llm",
		"PIFCHAT_LOG_LEVEL":    "debug",
		"PIFCHAT_LOG_FORMAT":   "text",
	}
	for key, want := range checks {
		if got := os.Getenv(key); got != want {
			t.Errorf("%s: got %q, want %q", key, got, want)
		}
	}

	if got := cfg.Reports.Arabic["2023"]; got != "PIF-2023-Annual-Report-AR" {
		t.Errorf("arabic 2023: got %q", got)
	}
	if got := cfg.Reports.English["2023"]; got != "PIF-2023-Annual-Report-EN" {
		t.Errorf("english 2023: got %q", got)
	}
}

func TestLoad_EnvWins(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
qdrant:
  host: from-yaml
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("QDRANT_HOST", "from-env")

	cfg, _, err := Load(cfgPath, slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("QDRANT_HOST"); got != "from-env" {
		t.Errorf("env var should win: got %q, want %q", got, "from-env")
	}
	if cfg.Qdrant.Host != "from-env" {
		t.Errorf("struct should carry env value: got %q", cfg.Qdrant.Host)
	}
}

func TestLoad_EnvOnlyReachesStruct(t *testing.T) {
	t.Setenv("QDRANT_HOST", "env-only-host")
	t.Setenv("QDRANT_PORT", "7001")
	t.Setenv("QDRANT_TLS", "true")

	cfg, path, err := Load("/nonexistent/path/config.yaml", slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}

	if cfg.Qdrant.Host != "env-only-host" {
		t.Errorf("host: got %q, want env-only-host", cfg.Qdrant.Host)
	}
	if cfg.Qdrant.Port != 7001 {
		t.Errorf("port: got %d, want 7001", cfg.Qdrant.Port)
	}
	if !cfg.Qdrant.TLS {
		t.Error("tls: expected true from env")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("qdrant: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := Load(cfgPath, slog.Default()); err == nil {
		t.Error("expected parse error for malformed YAML")
	}
}

func TestReportsConfig_Mapping(t *testing.T) {
	t.Parallel()

	r := DefaultReports()

	ar := r.Mapping(true)
	if _, ok := ar["2021"]; !ok {
		t.Errorf("arabic mapping missing 2021: %+v", ar)
	}
	en := r.Mapping(false)
	if en["2023"] != "PIF-2023-Annual-Report-EN" {
		t.Errorf("english 2023: got %q", en["2023"])
	}
}

func TestCollectionName(t *testing.T) {
	t.Parallel()

	got := CollectionName("PIF Annual Report 2021")
	want := "PIF Annual Report 2021_collection"
	if got != want {
		t.Errorf("CollectionName: got %q, want %q", got, want)
	}
}
