// Package schema holds the Postgres DDL for the wallet ledger and round
// archive.
package schema

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed bingo.sql
var SQL string

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Apply runs the DDL. Every statement is idempotent.
func Apply(ctx context.Context, db execer) error {
	if _, err := db.Exec(ctx, SQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
