package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool connects to the database behind the connection-string env var and
// verifies the connection before the server starts serving.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
