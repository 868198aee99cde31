package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/oddsline/collector/internal/collector"
)

const (
	createMatchesTable = `
CREATE TABLE IF NOT EXISTS matches (
	match_id   TEXT NOT NULL,
	collection TEXT NOT NULL,
	sport      TEXT NOT NULL,
	country    TEXT NOT NULL,
	league     TEXT NOT NULL,
	team1      TEXT NOT NULL,
	team2      TEXT NOT NULL,
	first_seen TIMESTAMPTZ NOT NULL,
	last_seen  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (match_id, collection)
)`

	createOddsChangesTable = `
CREATE TABLE IF NOT EXISTS odds_changes (
	id         BIGSERIAL PRIMARY KEY,
	match_id   TEXT NOT NULL,
	collection TEXT NOT NULL,
	field      TEXT NOT NULL,
	old_value  TEXT NOT NULL,
	new_value  TEXT NOT NULL,
	changed_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

	upsertMatch = `
INSERT INTO matches (match_id, collection, sport, country, league, team1, team2, first_seen, last_seen)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (match_id, collection)
DO UPDATE SET last_seen = EXCLUDED.last_seen`

	insertChange = `
INSERT INTO odds_changes (match_id, collection, field, old_value, new_value)
VALUES ($1, $2, $3, $4, $5)`
)

// execer is the slice of pgxpool.Pool the mirror needs; pgxmock
// satisfies it in tests.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres mirrors cycle output into two tables.
type Postgres struct {
	db     execer
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres connects to dsn and ensures the schema.
func NewPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p := &Postgres{db: pool, pool: pool, logger: logger}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	for _, ddl := range []string{createMatchesTable, createOddsChangesTable} {
		if _, err := p.db.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// RecordArrivals upserts newly created entities.
func (p *Postgres) RecordArrivals(ctx context.Context, collection string, entities []collector.Entity) error {
	for _, e := range entities {
		_, err := p.db.Exec(ctx, upsertMatch,
			e.ID, collection,
			e.Identity.Sport, e.Identity.Country, e.Identity.League,
			e.Identity.Team1, e.Identity.Team2,
			e.FirstSeen, e.LastSeen,
		)
		if err != nil {
			return fmt.Errorf("upsert match %s: %w", e.ID, err)
		}
	}
	return nil
}

// RecordChanges appends field-level changes.
func (p *Postgres) RecordChanges(ctx context.Context, collection string, changes []collector.FieldChange) error {
	for _, c := range changes {
		_, err := p.db.Exec(ctx, insertChange,
			c.EntityID, collection, c.Field, c.Old, c.New,
		)
		if err != nil {
			return fmt.Errorf("insert change %s/%s: %w", c.EntityID, c.Field, err)
		}
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}
