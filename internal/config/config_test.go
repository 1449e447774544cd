package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
log:
  level: debug
server:
  verify_token: vt
  app_secret: shh
messenger:
  access_token: at
  timeout: 3s
nlp:
  token: nt
token:
  secret: 0123456789abcdef
store:
  path: /tmp/test.db
scheduler:
  workers: 2
  retry_max: 50
`

func TestLoadValidYAML(t *testing.T) {
	t.Parallel()
	mgr := NewManager(writeConfig(t, "config.yaml", validYAML))

	cfg, err := mgr.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Fatalf("log level = %q", cfg.Log.Level)
	}
	if cfg.Messenger.Timeout.Std() != 3*time.Second {
		t.Fatalf("timeout = %v", cfg.Messenger.Timeout)
	}
	if cfg.Scheduler.Workers != 2 || cfg.Scheduler.RetryMax != 50 {
		t.Fatalf("scheduler = %+v", cfg.Scheduler)
	}

	// Defaults fill the gaps.
	if cfg.Server.Listen != ":8080" {
		t.Fatalf("listen default = %q", cfg.Server.Listen)
	}
	if cfg.NLP.Version != "20170901" {
		t.Fatalf("nlp version default = %q", cfg.NLP.Version)
	}
	if cfg.Scheduler.Tick.Std() != time.Second {
		t.Fatalf("tick default = %v", cfg.Scheduler.Tick)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	mgr := NewManager(writeConfig(t, "config.yaml", validYAML+"\nbogus_section:\n  x: 1\n"))

	if _, err := mgr.Load(); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	t.Parallel()
	const missingToken = `
server:
  verify_token: vt
messenger:
  access_token: at
nlp:
  token: nt
`
	mgr := NewManager(writeConfig(t, "config.yaml", missingToken))
	if _, err := mgr.Load(); err == nil {
		t.Fatal("expected error for missing token secret")
	}
}

func TestEnvOverridesSecret(t *testing.T) {
	const noSecrets = `
server:
  verify_token: vt
messenger:
  access_token: at
nlp:
  token: nt
`
	t.Setenv("RMNDR_TOKEN_SECRET", "env-secret-16byte")

	mgr := NewManager(writeConfig(t, "config.yaml", noSecrets))
	cfg, err := mgr.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Token.Secret != "env-secret-16byte" {
		t.Fatalf("secret = %q", cfg.Token.Secret)
	}
}

func TestLoadRejectsNegativeDuration(t *testing.T) {
	t.Parallel()
	mgr := NewManager(writeConfig(t, "config.yaml", validYAML+"\n")) // sanity: valid first
	if _, err := mgr.Load(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	bad := writeConfig(t, "bad.yaml", `
server:
  verify_token: vt
messenger:
  access_token: at
  timeout: -3s
nlp:
  token: nt
token:
  secret: 0123456789abcdef
`)
	if _, err := NewManager(bad).Load(); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestDurationUnmarshal(t *testing.T) {
	t.Parallel()
	var d Duration
	if err := d.UnmarshalJSON([]byte(`"90s"`)); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if d.Std() != 90*time.Second {
		t.Fatalf("d = %v", d)
	}
	if err := d.UnmarshalJSON([]byte(`1000000000`)); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if d.Std() != time.Second {
		t.Fatalf("d = %v", d)
	}
	if err := d.UnmarshalJSON([]byte(`"nonsense"`)); err == nil {
		t.Fatal("expected error")
	}
}
