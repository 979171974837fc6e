package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"highbid/internal/adapter/repo"
	"highbid/internal/domain"
	"highbid/internal/infra"
	"highbid/internal/ledger"
)

func main() {
	var (
		idFlag     string
		amountFlag string
		opFlag     string
		descFlag   string
	)
	flag.StringVar(&idFlag, "id", "", "user ID to adjust (UUID)")
	flag.StringVar(&amountFlag, "amount", "", "positive amount in dollars, e.g. 10.00")
	flag.StringVar(&opFlag, "op", "add", "add or subtract")
	flag.StringVar(&descFlag, "description", "", "ledger description (defaults to a manual adjustment note)")
	flag.Parse()

	_ = godotenv.Load()

	userID, err := uuid.Parse(strings.TrimSpace(idFlag))
	if err != nil {
		exitWithError(errors.New("-id must be a user UUID"))
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(amountFlag))
	if err != nil {
		exitWithError(fmt.Errorf("-amount: %w", err))
	}
	op := domain.AdjustOp(strings.ToLower(strings.TrimSpace(opFlag)))
	description := strings.TrimSpace(descFlag)
	if description == "" {
		description = "Manual adjustment"
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "balance").Logger()
	runner := infra.NewSQLRunner(pool, logger)
	svc := ledger.NewService(repo.NewLedgerRepository(runner), &logger, nil)

	balance, err := svc.Adjust(ctx, userID, amount, op, description, "")
	if err != nil {
		exitWithError(fmt.Errorf("failed to adjust balance: %w", err))
	}
	fmt.Printf("User %s balance is now $%s\n", userID, balance.StringFixed(2))
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
