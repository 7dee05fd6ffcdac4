package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"partyboard/adapters/migrations"
	"partyboard/core"
	"partyboard/engine"
)

// Driver selects the SQL dialect and database/sql driver.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

// Config holds SQL connection configuration.
type Config struct {
	Driver          Driver        `json:"driver" env:"PARTYBOARD_SQL_DRIVER"`
	DSN             string        `json:"dsn" env:"PARTYBOARD_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns" env:"PARTYBOARD_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"PARTYBOARD_SQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" env:"PARTYBOARD_SQL_CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `json:"auto_migrate" env:"PARTYBOARD_SQL_AUTO_MIGRATE"`
}

// DefaultConfig returns defaults for driver.
func DefaultConfig(driver Driver) Config {
	cfg := Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:     true,
	}
	switch driver {
	case DriverPostgres:
		cfg.DSN = "postgres://localhost:5432/partyboard?sslmode=disable"
	case DriverMySQL:
		cfg.DSN = "root@tcp(localhost:3306)/partyboard?parseTime=true"
	case DriverSQLite:
		cfg.DSN = "file:partyboard.db?_pragma=busy_timeout(5000)"
		// sqlite allows a single writer
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
	}
	return cfg
}

// Validate checks the driver and DSN.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported sql driver: %q", c.Driver)
	}
	if c.DSN == "" {
		return errors.New("dsn cannot be empty")
	}
	return nil
}

type queries struct {
	insert     string
	selectBest string
	update     string
	top        string
	rank       string
}

func queriesFor(driver Driver) queries {
	q := queries{
		insert:     `INSERT INTO leaderboard (pseudo, score, date) VALUES (?, ?, ?) ON CONFLICT (pseudo) DO NOTHING`,
		selectBest: `SELECT score FROM leaderboard WHERE pseudo = ? FOR UPDATE`,
		update:     `UPDATE leaderboard SET score = ?, date = ? WHERE pseudo = ? AND score < ?`,
		top:        `SELECT pseudo, score, date FROM leaderboard ORDER BY score DESC, date ASC, pseudo ASC LIMIT ?`,
		rank: `SELECT l.pseudo, l.score, (SELECT COUNT(*) FROM leaderboard o WHERE o.score > l.score) + 1 AS player_rank
			FROM leaderboard l WHERE l.pseudo = ?`,
	}
	switch driver {
	case DriverMySQL:
		q.insert = `INSERT IGNORE INTO leaderboard (pseudo, score, date) VALUES (?, ?, ?)`
	case DriverSQLite:
		// sqlite serializes writers on the database lock
		q.selectBest = `SELECT score FROM leaderboard WHERE pseudo = ?`
	}
	return q
}

// Store implements engine.Storage on database/sql through sqlx.
// The upsert runs in one transaction: insert-if-absent, then a conditional
// update guarded by "score < new", so the best score can only grow.
type Store struct {
	db     *sqlx.DB
	driver Driver
	q      queries
}

// New opens a connection pool, verifies it and applies migrations when enabled.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := NewWithDB(db, cfg.Driver)
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing pool (useful for testing).
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver, q: queriesFor(driver)}
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	return migrations.Up(ctx, s.db.DB, migrations.Dialect(s.driver))
}

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) UpsertBest(ctx context.Context, pseudo core.Pseudo, score int64) (res core.UpsertResult, err error) {
	now := time.Now().UTC()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.UpsertResult{}, core.WrapStorage("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	inserted, err := tx.ExecContext(ctx, s.db.Rebind(s.q.insert), string(pseudo), score, now)
	if err != nil {
		return core.UpsertResult{}, core.WrapStorage("insert", err)
	}
	if n, _ := inserted.RowsAffected(); n == 1 {
		if err = tx.Commit(); err != nil {
			return core.UpsertResult{}, core.WrapStorage("commit", err)
		}
		return core.Created(score), nil
	}

	var previous int64
	if err = tx.GetContext(ctx, &previous, s.db.Rebind(s.q.selectBest), string(pseudo)); err != nil {
		return core.UpsertResult{}, core.WrapStorage("select", err)
	}
	updated, err := tx.ExecContext(ctx, s.db.Rebind(s.q.update), score, now, string(pseudo), score)
	if err != nil {
		return core.UpsertResult{}, core.WrapStorage("update", err)
	}
	n, err := updated.RowsAffected()
	if err != nil {
		return core.UpsertResult{}, core.WrapStorage("update", err)
	}
	if err = tx.Commit(); err != nil {
		return core.UpsertResult{}, core.WrapStorage("commit", err)
	}
	if n == 1 {
		return core.Updated(score, previous), nil
	}
	return core.Rejected(score, previous), nil
}

type scoreRow struct {
	Pseudo string    `db:"pseudo"`
	Score  int64     `db:"score"`
	Date   time.Time `db:"date"`
}

func (s *Store) ListTop(ctx context.Context, limit int) ([]core.PlayerScore, error) {
	var rows []scoreRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(s.q.top), limit); err != nil {
		return nil, core.WrapStorage("list", err)
	}
	out := make([]core.PlayerScore, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.PlayerScore{Pseudo: core.Pseudo(r.Pseudo), BestScore: r.Score, LastUpdated: r.Date.UTC()})
	}
	return out, nil
}

type rankRow struct {
	Pseudo string `db:"pseudo"`
	Score  int64  `db:"score"`
	Rank   int64  `db:"player_rank"`
}

func (s *Store) GetRank(ctx context.Context, pseudo core.Pseudo) (core.RankInfo, error) {
	var r rankRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind(s.q.rank), string(pseudo))
	if errors.Is(err, sql.ErrNoRows) {
		return core.RankInfo{}, core.ErrNotFound
	}
	if err != nil {
		return core.RankInfo{}, core.WrapStorage("rank", err)
	}
	return core.RankInfo{Rank: r.Rank, Pseudo: core.Pseudo(r.Pseudo), Score: r.Score}, nil
}

var _ engine.Storage = (*Store)(nil)
