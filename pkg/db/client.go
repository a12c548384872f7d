package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/aquaflow-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
)

const defaultConflictBackoff = 25 * time.Millisecond

// Client wraps the shared GORM connection.
type Client struct {
	conn            *gorm.DB
	postgres        bool
	lockTimeout     time.Duration
	conflictRetries int
	conflictBackoff time.Duration
}

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New opens the pool for cfg.Driver and applies the pool limits.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}

	dialector := postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true})
	if cfg.IsSQLite() {
		dialector = sqlite.Open(cfg.DSN)
	}
	conn, err := gorm.Open(dialector, gormConfig(logg, cfg.SlowQueryThreshold))
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}
	pool, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if logg != nil {
		logg.Info(logg.WithField(ctx, "driver", cfg.Driver), "db.connected")
	}
	return NewWithConn(conn, cfg), nil
}

// NewWithConn wraps an already opened connection. Tests use it with sqlite.
func NewWithConn(conn *gorm.DB, cfg config.DBConfig) *Client {
	c := &Client{
		conn:            conn,
		postgres:        !cfg.IsSQLite() && conn.Dialector.Name() == "postgres",
		lockTimeout:     cfg.LockTimeout,
		conflictRetries: cfg.ConflictRetries,
		conflictBackoff: cfg.ConflictBackoff,
	}
	if c.conflictBackoff <= 0 {
		c.conflictBackoff = defaultConflictBackoff
	}
	return c
}

// gormConfig reports only slow statements and driver errors, through logg.
// A nil logg silences gorm entirely.
func gormConfig(logg *logger.Logger, slow time.Duration) *gorm.Config {
	cfg := &gorm.Config{SkipDefaultTransaction: true}
	if logg == nil {
		cfg.Logger = gormlogger.Discard
		return cfg
	}
	cfg.Logger = gormlogger.New(gormWriter{logg}, gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
	return cfg
}

type gormWriter struct{ logg *logger.Logger }

func (w gormWriter) Printf(format string, args ...any) {
	ctx := w.logg.WithField(context.Background(), "sql", fmt.Sprintf(format, args...))
	w.logg.Warn(ctx, "db.statement")
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) Ping(ctx context.Context) error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

func (c *Client) Close() error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

// WithTx executes fn inside a READ COMMITTED transaction, rolling back on
// error/panic. Lock and serialization conflicts rerun fn from scratch up to the
// configured retry budget; fn must therefore keep all of its state inside tx.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if c.conflictRetries <= 0 {
		return c.classify(c.runTx(ctx, fn))
	}

	backoff := retry.WithMaxRetries(uint64(c.conflictRetries), retry.NewExponential(c.conflictBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.runTx(ctx, fn)
		if IsConflict(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	return c.classify(err)
}

func (c *Client) runTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var opts []*sql.TxOptions
	if c.postgres {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	}
	tx := c.conn.WithContext(ctx).Begin(opts...)
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if c.postgres && c.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", c.lockTimeout.Milliseconds())
		if err := tx.Exec(stmt).Error; err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// classify converts driver conflicts, including ones wrapped as persistence
// failures, into CONCURRENCY_CONFLICT once the retry budget is spent.
func (c *Client) classify(err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeConcurrency) {
		return err
	}
	if IsConflict(err) {
		return pkgerrors.Wrap(pkgerrors.CodeConcurrency, err, "transaction conflicted with a concurrent update")
	}
	return err
}
