// Package pgx stores best scores in PostgreSQL through a native pgx pool.
package pgx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"partyboard/adapters/migrations"
	"partyboard/core"
	"partyboard/engine"
)

// Config holds pool configuration.
type Config struct {
	DSN             string        `json:"dsn" env:"PARTYBOARD_PG_DSN"`
	MaxConns        int32         `json:"max_conns" env:"PARTYBOARD_PG_MAX_CONNS"`
	MinConns        int32         `json:"min_conns" env:"PARTYBOARD_PG_MIN_CONNS"`
	MaxConnLifetime time.Duration `json:"max_conn_lifetime" env:"PARTYBOARD_PG_MAX_CONN_LIFETIME"`
	AutoMigrate     bool          `json:"auto_migrate" env:"PARTYBOARD_PG_AUTO_MIGRATE"`
}

// DefaultConfig returns local development defaults.
func DefaultConfig() Config {
	return Config{
		DSN:             "postgres://localhost:5432/partyboard?sslmode=disable",
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		AutoMigrate:     true,
	}
}

// querier is the subset of *pgxpool.Pool the store needs.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// The three data-modifying CTEs share one snapshot, so an existing row is
// either improved by upd or left alone; prev reports what was stored.
const upsertSQL = `
WITH prev AS (
	SELECT score FROM leaderboard WHERE pseudo = $1 FOR UPDATE
), ins AS (
	INSERT INTO leaderboard (pseudo, score, date) VALUES ($1, $2, $3)
	ON CONFLICT (pseudo) DO NOTHING
	RETURNING score
), upd AS (
	UPDATE leaderboard SET score = $2, date = $3
	WHERE pseudo = $1 AND score < $2
	RETURNING score
)
SELECT (SELECT COUNT(*) FROM ins), (SELECT COUNT(*) FROM upd), (SELECT score FROM prev)`

const topSQL = `SELECT pseudo, score, date FROM leaderboard ORDER BY score DESC, date ASC, pseudo ASC LIMIT $1`

const rankSQL = `SELECT l.pseudo, l.score, (SELECT COUNT(*) FROM leaderboard o WHERE o.score > l.score) + 1
	FROM leaderboard l WHERE l.pseudo = $1`

// upsertAttempts bounds retries when a concurrent insert of the same pseudo
// commits between our snapshot and the conflict check.
const upsertAttempts = 3

// Store implements engine.Storage.
type Store struct {
	pool *pgxpool.Pool
	q    querier
	now  func() time.Time
}

// New connects a pool and applies migrations when enabled.
func New(ctx context.Context, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &Store{pool: pool, q: pool, now: time.Now}
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// Migrate applies the embedded schema through a database/sql view of the pool.
func (s *Store) Migrate(ctx context.Context) error {
	if s.pool == nil {
		return errors.New("migrate requires a pool")
	}
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()
	return migrations.Up(ctx, db, migrations.Postgres)
}

// Ping verifies the pool can reach the server.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) UpsertBest(ctx context.Context, pseudo core.Pseudo, score int64) (core.UpsertResult, error) {
	for attempt := 0; attempt < upsertAttempts; attempt++ {
		var inserted, updated int64
		var previous *int64
		err := s.q.QueryRow(ctx, upsertSQL, string(pseudo), score, s.now().UTC()).
			Scan(&inserted, &updated, &previous)
		if err != nil {
			return core.UpsertResult{}, core.WrapStorage("upsert", err)
		}
		switch {
		case inserted == 1:
			return core.Created(score), nil
		case updated == 1 && previous != nil:
			return core.Updated(score, *previous), nil
		case previous != nil:
			return core.Rejected(score, *previous), nil
		}
	}
	return core.UpsertResult{}, core.WrapStorage("upsert", fmt.Errorf("contention on %q after %d attempts", pseudo, upsertAttempts))
}

func (s *Store) ListTop(ctx context.Context, limit int) ([]core.PlayerScore, error) {
	rows, err := s.q.Query(ctx, topSQL, limit)
	if err != nil {
		return nil, core.WrapStorage("list", err)
	}
	defer rows.Close()

	out := make([]core.PlayerScore, 0, limit)
	for rows.Next() {
		var (
			p    string
			v    int64
			date time.Time
		)
		if err := rows.Scan(&p, &v, &date); err != nil {
			return nil, core.WrapStorage("list", err)
		}
		out = append(out, core.PlayerScore{Pseudo: core.Pseudo(p), BestScore: v, LastUpdated: date.UTC()})
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapStorage("list", err)
	}
	return out, nil
}

func (s *Store) GetRank(ctx context.Context, pseudo core.Pseudo) (core.RankInfo, error) {
	var info core.RankInfo
	var p string
	err := s.q.QueryRow(ctx, rankSQL, string(pseudo)).Scan(&p, &info.Score, &info.Rank)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.RankInfo{}, core.ErrNotFound
	}
	if err != nil {
		return core.RankInfo{}, core.WrapStorage("rank", err)
	}
	info.Pseudo = core.Pseudo(p)
	return info, nil
}

var _ engine.Storage = (*Store)(nil)
