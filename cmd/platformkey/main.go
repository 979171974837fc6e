package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"highbid/internal/infra"
	"highbid/internal/infra/credentials"
)

func main() {
	var (
		tokenFlag  string
		imageFlag  string
		speechFlag string
	)
	flag.StringVar(&tokenFlag, "token", "", "job platform API token (fallbacks to JOB_PLATFORM_API_TOKEN)")
	flag.StringVar(&imageFlag, "image-job", "", "job id that renders images")
	flag.StringVar(&speechFlag, "speech-job", "", "job id that renders speech")
	flag.Parse()

	_ = godotenv.Load()

	token := strings.TrimSpace(tokenFlag)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("JOB_PLATFORM_API_TOKEN"))
	}
	if token == "" {
		fmt.Fprintln(os.Stderr, "job platform token is required via -token or JOB_PLATFORM_API_TOKEN")
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "platformkey").Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	if err := store.SetPlatform(ctx, credentials.Platform{Token: token, ImageJobID: imageFlag, SpeechJobID: speechFlag}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist job platform token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("job platform credentials stored")
}
