package credentials

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"

	"highbid/internal/infra"
	"highbid/internal/infra/sqltest"
)

func rowExecutor(token, props string) *sqltest.Executor {
	return &sqltest.Executor{
		OnQueryRow: func(query string, args []any) pgx.Row {
			if args[0] != ProviderJobPlatform {
				return sqltest.NoRows()
			}
			return sqltest.Row(token, props)
		},
	}
}

func TestPlatform(t *testing.T) {
	store := NewStore(rowExecutor(" tok-123 ", `{"image_job_id":"img","speech_job_id":"tts"}`))
	p, err := store.Platform(context.Background())
	if err != nil {
		t.Fatalf("Platform error: %v", err)
	}
	if p.Token != "tok-123" || p.ImageJobID != "img" || p.SpeechJobID != "tts" {
		t.Fatalf("unexpected credentials %+v", p)
	}
}

func TestPlatformNoRows(t *testing.T) {
	store := NewStore(&sqltest.Executor{})
	p, err := store.Platform(context.Background())
	if err != nil {
		t.Fatalf("Platform error: %v", err)
	}
	if p.Token != "" {
		t.Fatalf("expected empty token, got %q", p.Token)
	}
}

func TestPlatformBadProperties(t *testing.T) {
	store := NewStore(rowExecutor("tok", "{not json"))
	if _, err := store.Platform(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestSetPlatform(t *testing.T) {
	exec := &sqltest.Executor{}
	store := NewStore(exec)
	if err := store.SetPlatform(context.Background(), Platform{Token: " secret ", ImageJobID: "img"}); err != nil {
		t.Fatalf("SetPlatform error: %v", err)
	}
	args := exec.Calls()[0].Args
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(args))
	}
	if v, ok := args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected trimmed secret argument, got %T %v", args[1], args[1])
	}
	if props, _ := args[2].(string); !strings.Contains(props, `"image_job_id":"img"`) || strings.Contains(props, "speech_job_id") {
		t.Fatalf("unexpected properties %q", props)
	}
}

func TestSetPlatformEmpty(t *testing.T) {
	store := NewStore(&sqltest.Executor{})
	if err := store.SetPlatform(context.Background(), Platform{Token: " "}); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestResolveEnvironmentWins(t *testing.T) {
	store := NewStore(rowExecutor("stored", `{"image_job_id":"stored-img","speech_job_id":"stored-tts"}`))
	cfg := infra.PlatformConfig{APIToken: "env", SpeechJobID: "env-tts"}
	if err := store.Resolve(context.Background(), &cfg); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if cfg.APIToken != "env" || cfg.ImageJobID != "stored-img" || cfg.SpeechJobID != "env-tts" {
		t.Fatalf("unexpected resolved config %+v", cfg)
	}
}

func TestResolveMissingToken(t *testing.T) {
	store := NewStore(&sqltest.Executor{
		OnQueryRow: func(string, []any) pgx.Row { return sqltest.ErrRow(pgx.ErrNoRows) },
	})
	cfg := infra.PlatformConfig{}
	err := store.Resolve(context.Background(), &cfg)
	if err == nil || errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}
