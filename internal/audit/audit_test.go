package audit

import (
	"os"
	"strings"
	"testing"
)

func TestSanitiseKey_Secret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("GROQ_API_KEY", "gsk-abc123"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := SanitiseKey("GROQ_API_KEY", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseKey_NonSecret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("QDRANT_HOST", "qdrant.internal"); got != "qdrant.internal" {
		t.Errorf("expected 'qdrant.internal', got %q", got)
	}
	if got := SanitiseKey("QDRANT_HOST", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestPresence(t *testing.T) {
	t.Parallel()
	if got := presence("something"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := presence(""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); !strings.HasPrefix(got, "none") {
		t.Errorf("expected 'none...', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		p := home + "/.pifchat/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.pifchat/config.yaml" {
			t.Errorf("expected '~/.pifchat/config.yaml', got %q", got)
		}
	}
}
