package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// ConnectAttempts bounds the startup pings. Postgres in compose often
	// accepts connections a few seconds after the API container starts.
	ConnectAttempts int
	RetryDelay      time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectAttempts: 5,
		RetryDelay:      2 * time.Second,
	}
}

// Pool is the shared *sql.DB behind every postgres store.
type Pool struct {
	db *sql.DB
}

// New opens a pgx-backed pool and pings it until it answers or the attempts
// run out. Returns nil, nil when the URL is empty, which selects the
// in-memory stores.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	attempts := max(cfg.ConnectAttempts, 1)
	for attempt := 1; ; attempt++ {
		err = ping(ctx, db)
		if err == nil {
			break
		}
		if attempt == attempts || ctx.Err() != nil {
			db.Close() //nolint:errcheck // best-effort cleanup on init failure
			return nil, fmt.Errorf("ping database after %d attempts: %w", attempt, err)
		}
		logger.WarnContext(ctx, "database not ready, retrying", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
		case <-time.After(cfg.RetryDelay):
		}
	}
	return &Pool{db: db}, nil
}

func ping(ctx context.Context, db *sql.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(pingCtx)
}

func (p *Pool) DB() *sql.DB {
	return p.db
}

// Collector exposes sql.DBStats (open, in-use, wait count) to Prometheus.
func (p *Pool) Collector() prometheus.Collector {
	return collectors.NewDBStatsCollector(p.db, "miriesgo")
}

func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return errors.New("database not configured")
	}
	return p.db.PingContext(ctx)
}

func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
