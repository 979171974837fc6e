package infra

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("SESSION_JWT_SECRET", "test-secret")
}

func TestLoadConfigPollingDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("POLL_INITIAL_DELAY_SECONDS", "")
	t.Setenv("POLL_INTERVAL_SECONDS", "")
	t.Setenv("POLL_MAX_ATTEMPTS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Platform.InitialDelay != 30*time.Second {
		t.Fatalf("InitialDelay mismatch: got %s", cfg.Platform.InitialDelay)
	}
	if cfg.Platform.PollInterval != 30*time.Second {
		t.Fatalf("PollInterval mismatch: got %s", cfg.Platform.PollInterval)
	}
	if cfg.Platform.MaxAttempts != 15 {
		t.Fatalf("MaxAttempts mismatch: got %d", cfg.Platform.MaxAttempts)
	}
	if cfg.Platform.BaseURL != "https://xgodo.com/api/v2" {
		t.Fatalf("BaseURL mismatch: got %q", cfg.Platform.BaseURL)
	}
	if cfg.Generation.Sync {
		t.Fatalf("expected asynchronous generation by default")
	}
}

func TestLoadConfigRequiresSessionSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("SESSION_JWT_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when SESSION_JWT_SECRET is missing")
	}
}

func TestLoadConfigStorageBackend(t *testing.T) {
	cases := []struct {
		name     string
		backend  string
		endpoint string
		wantErr  bool
	}{
		{name: "default", backend: "", wantErr: false},
		{name: "filesystem", backend: "filesystem", wantErr: false},
		{name: "minio without endpoint", backend: "minio", wantErr: true},
		{name: "minio", backend: "minio", endpoint: "localhost:9000", wantErr: false},
		{name: "unknown", backend: "s3", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv("STORAGE_BACKEND", tc.backend)
			t.Setenv("MINIO_ENDPOINT", tc.endpoint)
			_, err := LoadConfig()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for backend %q", tc.backend)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadConfigLeaseMustOutlastPolling(t *testing.T) {
	setRequired(t)
	t.Setenv("POLL_INITIAL_DELAY_SECONDS", "30")
	t.Setenv("POLL_INTERVAL_SECONDS", "60")
	t.Setenv("POLL_MAX_ATTEMPTS", "20")
	t.Setenv("LEASE_SECONDS", "900")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when the lease is shorter than polling")
	}

	t.Setenv("LEASE_SECONDS", "1800")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Platform.MaxPollWait() != 1230*time.Second {
		t.Fatalf("MaxPollWait mismatch: got %s", cfg.Platform.MaxPollWait())
	}
}

func TestConfigIsAdmin(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_EMAILS", "ops@example.com, Root@Example.com ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if !cfg.IsAdmin("root@example.com") {
		t.Fatalf("expected case-insensitive admin match")
	}
	if cfg.IsAdmin("user@example.com") {
		t.Fatalf("unexpected admin match")
	}
	if cfg.IsAdmin("") {
		t.Fatalf("empty email must not be admin")
	}
}
