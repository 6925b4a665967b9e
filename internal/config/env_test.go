package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvSetsSecrets(t *testing.T) {
	unsetEnv(t, "GMO_API_KEY")
	unsetEnv(t, "GMO_API_SECRET")
	unsetEnv(t, "MM_TELEGRAM_CHAT_ID")
	unsetEnv(t, "MM_TIMESCALE_DSN")
	path := filepath.Join(t.TempDir(), ".env")
	content := "" +
		"# venue credentials\n" +
		"GMO_API_KEY=key\n" +
		"GMO_API_SECRET=\"secret\"\n" +
		"MM_TELEGRAM_CHAT_ID='42'\n" +
		"MM_TIMESCALE_DSN=\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	if err := LoadEnv(path); err != nil {
		t.Fatalf("load env: %v", err)
	}
	want := map[string]string{
		"GMO_API_KEY":         "key",
		"GMO_API_SECRET":      "secret",
		"MM_TELEGRAM_CHAT_ID": "42",
		"MM_TIMESCALE_DSN":    "",
	}
	for key, val := range want {
		if got := os.Getenv(key); got != val {
			t.Fatalf("%s expected %q, got %q", key, val, got)
		}
	}
}

func TestLoadEnvDoesNotOverrideExisting(t *testing.T) {
	t.Setenv("GMO_API_KEY", "from-shell")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("GMO_API_KEY=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	if err := LoadEnv(path); err != nil {
		t.Fatalf("load env: %v", err)
	}
	if got := os.Getenv("GMO_API_KEY"); got != "from-shell" {
		t.Fatalf("expected shell value to win, got %q", got)
	}
}

func TestLoadEnvMissingFile(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing .env should be ignored, got %v", err)
	}
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	if old, ok := os.LookupEnv(key); ok {
		t.Cleanup(func() { _ = os.Setenv(key, old) })
	} else {
		t.Cleanup(func() { _ = os.Unsetenv(key) })
	}
	_ = os.Unsetenv(key)
}
