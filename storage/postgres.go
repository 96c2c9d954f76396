package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cvakodobro/catch-me-if-you-can-backend/game"
)

var ErrUnexpectedDatabase = errors.New("unexpected-database-error")

// MatchResult is one finished game's audit record.
type MatchResult struct {
	Id          string    `json:"id"`
	SessionName string    `json:"sessionName"`
	WinnerName  string    `json:"winnerName"`
	WinnerColor string    `json:"winnerColor"`
	FinishedAt  time.Time `json:"finishedAt"`
}

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(ctx context.Context, connString string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &PostgresRepo{pool: pool}, nil
}

// RecordMatchResult implements game.ResultRecorder.
func (repo *PostgresRepo) RecordMatchResult(ctx context.Context, sessionName string, winner game.Player) error {
	row := repo.pool.QueryRow(ctx,
		"INSERT INTO match_results(session_name, winner_name, winner_color) VALUES($1, $2, $3) RETURNING id",
		sessionName, winner.Name, winner.Color,
	)

	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	return nil
}

// RecentMatchResults returns the newest finished games first.
func (repo *PostgresRepo) RecentMatchResults(ctx context.Context, limit int) ([]MatchResult, error) {
	rows, err := repo.pool.Query(ctx,
		"SELECT id, session_name, winner_name, winner_color, finished_at FROM match_results ORDER BY finished_at DESC LIMIT $1",
		limit,
	)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	defer rows.Close()

	results := make([]MatchResult, 0, limit)
	for rows.Next() {
		var result MatchResult
		if err := rows.Scan(&result.Id, &result.SessionName, &result.WinnerName, &result.WinnerColor, &result.FinishedAt); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
	}
	return results, nil
}
