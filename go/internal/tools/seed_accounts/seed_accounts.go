package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/bingo/go/internal/dbconfig"
	"github.com/mcdev12/bingo/go/internal/schema"
	"github.com/shopspring/decimal"
)

// Account is one entry of the seed file.
type Account struct {
	AccountID string          `json:"account_id"`
	Deposit   decimal.Decimal `json:"deposit"`
}

func main() {
	file := flag.String("file", "go/internal/assets/accounts.json", "JSON list of accounts to seed")
	migrate := flag.Bool("migrate", false, "apply the schema before seeding")
	flag.Parse()

	// 1) Load the JSON snapshot
	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var accounts []Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	ctx := context.Background()
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if *migrate {
		if err := schema.Apply(ctx, pool); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}

	// 3) Insert new wallets with an opening deposit
	var (
		total    = len(accounts)
		inserted int
		skipped  int
		errs     int
	)
	for _, a := range accounts {
		if a.AccountID == "" || !a.Deposit.IsPositive() {
			fmt.Fprintf(os.Stderr, "skipping invalid entry %+v\n", a)
			errs++
			continue
		}
		created, err := seedAccount(ctx, pool, a)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error seeding account %s: %v\n", a.AccountID, err)
			errs++
			continue
		}
		if created {
			inserted++
		} else {
			skipped++
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Accounts seed complete: %d total, %d inserted, %d skipped, %d errors\n",
		total, inserted, skipped, errs,
	)
}

// seedAccount leaves existing wallets untouched.
func seedAccount(ctx context.Context, pool *pgxpool.Pool, a Account) (bool, error) {
	created := false
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            INSERT INTO wallets (account_id, deposit_balance)
            VALUES ($1, $2)
            ON CONFLICT (account_id) DO NOTHING
        `, a.AccountID, a.Deposit)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		created = true
		_, err = tx.Exec(ctx, `
            INSERT INTO transactions (
              id, account_id, type, amount, balance_before, balance_after, description
            ) VALUES ($1, $2, 'deposit', $3, 0, $3, 'seed deposit')
        `, uuid.New(), a.AccountID, a.Deposit)
		return err
	})
	return created, err
}
