package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// Postgres is a PostgreSQL-backed Store over the chapter_completions table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a PostgreSQL-backed completion store.
func NewPostgres(pool *pgxpool.Pool) (*Postgres, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) FetchUnits(ctx context.Context, userID string) (map[int]struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT unit_id FROM chapter_completions WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	units := map[int]struct{}{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		units[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completions: %w", err)
	}
	return units, nil
}

func (s *Postgres) UpsertCompletion(ctx context.Context, userID string, unitID int, completed bool) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if completed {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO chapter_completions (user_id, unit_id)
			 VALUES ($1, $2)
			 ON CONFLICT (user_id, unit_id) DO NOTHING`,
			userID, unitID,
		)
		if err != nil {
			return fmt.Errorf("insert completion: %w", err)
		}
		return nil
	}

	_, err := s.pool.Exec(ctx,
		`DELETE FROM chapter_completions WHERE user_id = $1 AND unit_id = $2`,
		userID, unitID,
	)
	if err != nil {
		return fmt.Errorf("delete completion: %w", err)
	}
	return nil
}
