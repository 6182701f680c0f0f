// Package postgres provides a checkpoint.Store implementation backed
// by a PostgreSQL table, so that subscriptions can resume across
// process restarts.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/subvisor/subvisor/checkpoint"
)

var _ checkpoint.Store = Checkpointer{}

// Checkpointer is a checkpoint.Store implementation using PostgreSQL
// as a storage backend.
//
// The implementation uses the "subscription_checkpoints" table: run
// RunMigrations in your application entrypoint to create it.
type Checkpointer struct {
	Conn *pgxpool.Pool
}

// Read returns the last persisted checkpoint value for the named
// subscription, reporting false when none has been persisted yet.
func (c Checkpointer) Read(ctx context.Context, name string) (uint64, bool, error) {
	row := c.Conn.QueryRow(
		ctx,
		"SELECT value FROM subscription_checkpoints WHERE subscription_name = $1",
		name,
	)

	var value int64
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}

		return 0, false, fmt.Errorf("postgres.Checkpointer: failed to read checkpoint: %w", err)
	}

	return uint64(value), true, nil
}

// Write persists the checkpoint value for the named subscription.
func (c Checkpointer) Write(ctx context.Context, name string, value uint64) error {
	_, err := c.Conn.Exec(
		ctx,
		`INSERT INTO subscription_checkpoints (subscription_name, value)
		VALUES ($1, $2)
		ON CONFLICT (subscription_name) DO UPDATE
		SET value = excluded.value, updated_at = now()`,
		name,
		int64(value),
	)
	if err != nil {
		return fmt.Errorf("postgres.Checkpointer: failed to write checkpoint: %w", err)
	}

	return nil
}
