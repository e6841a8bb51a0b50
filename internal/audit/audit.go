// Package audit provides a structured audit logger for CLI command invocations.
// It logs command name, resolved configuration, and sanitised environment state
// so operators can trace what happened without exposing secret values.
//
// Secrets are logged as presence/absence only — never their values.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// LogCommandStart emits a structured audit log entry when a CLI command begins.
// It records the command name, config file source, and sanitised environment.
func LogCommandStart(log *slog.Logger, command string, configPath string) {
	attrs := []slog.Attr{
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	}

	// Log key operational env vars with sanitisation.
	for _, entry := range auditKeys {
		val := os.Getenv(entry.key)
		if entry.secret {
			attrs = append(attrs, slog.String(entry.key, presence(val)))
		} else {
			attrs = append(attrs, slog.String(entry.key, valOrUnset(val)))
		}
	}

	log.LogAttrs(context.TODO(), slog.LevelInfo, "audit: command start", attrs...)
}

// auditEntry defines an env var to include in the audit log.
type auditEntry struct {
	// key is the environment variable name.
	key string
	// secret indicates the value should be redacted to presence/absence.
	secret bool
}

// auditKeys is the ordered list of env vars included in every audit log entry.
var auditKeys = []auditEntry{
	{key: "OLLAMA_HOST"},
	{key: "EMBEDDING_MODEL"},
	{key: "EMBEDDING_DIMENSIONS"},
	{key: "QDRANT_HOST"},
	{key: "QDRANT_PORT"},
	{key: "QDRANT_API_KEY", secret: true},
	{key: "LLM_PROXY_URL"},
	{key: "LLM_PROXY_MODEL"},
	{key: "GROQ_API_KEY", secret: true},
	{key: "PIFCHAT_API_KEY", secret: true},
	{key: "PIFCHAT_HISTORY_DB"},
	{key: "PIFCHAT_LOG_LEVEL"},
	{key: "PIFCHAT_LOG_FORMAT"},
}

// secretEnvKeys lists environment variable names whose values must never be
// logged. Only presence ("set") or absence ("unset") is recorded.
var secretEnvKeys = map[string]bool{
	"QDRANT_API_KEY":  true,
	"GROQ_API_KEY":    true,
	"PIFCHAT_API_KEY": true,
}

// SanitiseKey returns a log-safe representation of an env var value: secrets
// collapse to presence/absence, everything else passes through (or "unset").
func SanitiseKey(key, val string) string {
	if secretEnvKeys[key] {
		return presence(val)
	}
	return valOrUnset(val)
}

// presence returns "set" when the value is non-empty and "unset" otherwise.
// Used for secret values that must never appear in logs.
func presence(val string) string {
	if val == "" {
		return "unset"
	}
	return "set"
}

// valOrUnset returns the value, or "unset" when empty.
func valOrUnset(val string) string {
	if val == "" {
		return "unset"
	}
	return val
}

// sanitiseConfigPath replaces the user's home directory prefix with "~" so
// audit logs do not leak local usernames, and labels the env-only case.
func sanitiseConfigPath(path string) string {
	if path == "" {
		return "none (env vars only)"
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" && strings.HasPrefix(path, home) {
		return "~" + strings.TrimPrefix(path, home)
	}
	return path
}
