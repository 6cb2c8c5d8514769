/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tomoncle/crudkit/types"
	"github.com/uptrace/bun"
	"golang.org/x/sync/semaphore"
)

// ErrProviderClosed is returned by Acquire after Close.
var ErrProviderClosed = errors.New("connection provider is closed")

// Provider is the ConnectionProvider backed by bun. It owns the pool, gates
// acquisition with a semaphore of the pool's size and, when allowed, falls
// back to an in-memory store if the primary store is unreachable.
type Provider struct {
	config   *Config
	store    store
	db       *bun.DB
	sqlDB    *sql.DB
	sem      *semaphore.Weighted
	size     int
	models   []interface{}
	logger   Logger
	metrics  *Metrics
	degraded bool

	sessionsOnce sync.Once
	sessions     *SessionManager

	mu           sync.RWMutex
	closed       bool
	healthStatus *HealthStatus
}

var _ ConnectionProvider = (*Provider)(nil)

// Option customizes a Provider.
type Option func(*Provider)

func WithLogger(logger Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// WithMetrics records pool and session metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(p *Provider) { p.metrics = m }
}

// WithRegisterer records pool and session metrics registered on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Provider) { p.metrics = NewMetrics(reg) }
}

// WithModels sets the models whose tables are created on the fallback store
// or when auto_create_tables is set. It defaults to the registered models.
func WithModels(models ...interface{}) Option {
	return func(p *Provider) { p.models = models }
}

// NewProvider validates cfg, opens the configured store and checks that it
// answers within the connect timeout. If it does not, and cfg allows it
// outside deployed environments, the provider opens an in-memory store
// instead and reports itself degraded.
func NewProvider(ctx context.Context, cfg *Config, opts ...Option) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Provider{
		config:       cfg,
		logger:       GetLogger(),
		healthStatus: &HealthStatus{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.models == nil {
		p.models = RegisteredModels()
	}

	cc := &cfg.ConnectionConfig
	primary, err := storeFor(cc)
	if err != nil {
		return nil, err
	}

	if err := p.connect(ctx, primary); err != nil {
		if !cc.AllowMemoryFallback {
			return nil, fmt.Errorf("failed to connect to %s database: %w", primary.name(), err)
		}
		if IsDeployedEnvironment(cfg.Environment) {
			return nil, fmt.Errorf("in-memory fallback refused in %q environment: %w", cfg.Environment, err)
		}
		p.logger.Warn("Primary database unreachable, serving from in-memory store; data will not be persisted",
			"type", primary.name(), "error", err)
		if err := p.connect(ctx, memoryStore{}); err != nil {
			return nil, fmt.Errorf("failed to open in-memory fallback store: %w", err)
		}
		p.degraded = true
	}
	p.metrics.degraded(p.degraded)

	if p.degraded || p.store.name() == "memory" || cc.AutoCreateTables {
		if err := CreateTables(ctx, p.db, p.logger, p.models...); err != nil {
			_ = p.Close()
			return nil, err
		}
	}

	p.logger.Info("Database connected successfully:",
		"store", p.store.name(), "host", cc.Host, "pool_size", p.size, "degraded", p.degraded)
	return p, nil
}

func (p *Provider) connect(ctx context.Context, st store) error {
	cc := &p.config.ConnectionConfig
	sqlDB, db, err := st.open(cc)
	if err != nil {
		return err
	}

	size := st.poolSize(cc)
	sqlDB.SetMaxOpenConns(size)
	if isSQLiteStore(st) {
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
	} else {
		sqlDB.SetMaxIdleConns(min(cc.MaxIdleConns, size))
		sqlDB.SetConnMaxLifetime(cc.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(cc.ConnMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cc.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return fmt.Errorf("database connection test failed: %w", err)
	}

	for _, hook := range queryHooks(cc, p.logger) {
		db.AddQueryHook(hook)
	}
	if len(p.models) > 0 {
		db.RegisterModel(p.models...)
	}

	p.store = st
	p.sqlDB = sqlDB
	p.db = db
	p.size = size
	p.sem = semaphore.NewWeighted(int64(size))
	return nil
}

// Conn is a pooled connection held by one session. Release must be called
// exactly once; further calls are no-ops.
type Conn struct {
	bun.Conn
	once    sync.Once
	release func() error
	err     error
}

// Release returns the connection to the pool.
func (c *Conn) Release() error {
	c.once.Do(func() { c.err = c.release() })
	return c.err
}

func (p *Provider) Acquire(ctx context.Context) (*Conn, error) {
	return p.acquire(ctx, ModeAsync)
}

func (p *Provider) AcquireBlocking() (*Conn, error) {
	return p.acquire(context.Background(), ModeBlocking)
}

func (p *Provider) acquire(ctx context.Context, mode string) (*Conn, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrProviderClosed
	}

	wait := p.config.ConnectionConfig.AcquireTimeout
	actx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	if err := p.sem.Acquire(actx, 1); err != nil {
		return nil, p.acquireFailed(ctx, mode, wait)
	}
	conn, err := p.db.Conn(actx)
	if err != nil {
		p.sem.Release(1)
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, p.acquireFailed(ctx, mode, wait)
		}
		p.metrics.acquired(mode, resultError)
		return nil, &types.TransactionError{Op: "acquire", Err: err}
	}
	p.metrics.acquired(mode, resultOK)

	return &Conn{
		Conn: conn,
		release: func() error {
			err := conn.Close()
			p.sem.Release(1)
			p.metrics.released()
			return err
		},
	}, nil
}

func (p *Provider) acquireFailed(ctx context.Context, mode string, wait time.Duration) error {
	if err := ctx.Err(); err != nil {
		p.metrics.acquired(mode, resultCanceled)
		return err
	}
	p.metrics.acquired(mode, resultExhausted)
	p.logger.Warn("Connection pool exhausted", "mode", mode, "pool_size", p.size, "wait", wait)
	return &types.PoolExhaustedError{Size: p.size, Wait: wait}
}

// HealthCheck reports whether the store answers a ping.
func (p *Provider) HealthCheck(ctx context.Context) bool {
	return p.Health(ctx).Healthy
}

// Health pings the store and reports the pool state. When sessions hold
// every connection the store is not pinged: the status is Busy and keeps the
// health of the previous check.
func (p *Provider) Health(ctx context.Context) *HealthStatus {
	p.mu.RLock()
	closed := p.closed
	last := p.healthStatus
	p.mu.RUnlock()

	start := time.Now()
	status := &HealthStatus{
		LastCheckTime: start,
		Store:         p.store.name(),
		Degraded:      p.degraded,
	}

	switch {
	case closed:
		status.LastError = ErrProviderClosed.Error()
	case !p.sem.TryAcquire(1):
		status.Busy = true
		status.Connected = true
		status.Healthy = last.Healthy || last.LastCheckTime.IsZero()
		status.LastError = last.LastError
	default:
		err := p.ping(ctx)
		p.sem.Release(1)
		status.ResponseTime = time.Since(start)
		if err != nil {
			status.LastError = err.Error()
		} else {
			status.Healthy = true
			status.Connected = true
		}
	}

	if !closed {
		stats := p.sqlDB.Stats()
		status.ActiveConns = stats.InUse
		status.IdleConns = stats.Idle
		status.MaxOpenConns = stats.MaxOpenConnections
	}

	p.mu.Lock()
	p.healthStatus = status
	p.mu.Unlock()
	return status
}

func (p *Provider) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.db.PingContext(ctx)
}

// LastHealth returns the result of the most recent health check.
func (p *Provider) LastHealth() *HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthStatus
}

func (p *Provider) Stats() *DBStats {
	stats := p.sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

func (p *Provider) DB() *bun.DB { return p.db }

// Degraded reports whether the provider serves from the in-memory fallback.
func (p *Provider) Degraded() bool { return p.degraded }

// Store names the backend in use: mysql, postgres, sqlite or memory.
func (p *Provider) Store() string { return p.store.name() }

func (p *Provider) PoolSize() int { return p.size }

func (p *Provider) Config() *Config { return p.config }

func (p *Provider) Logger() Logger { return p.logger }

func (p *Provider) Metrics() *Metrics { return p.metrics }

// Sessions returns the provider's shared session manager. Repositories
// built on the same provider use it, so their sessions nest.
func (p *Provider) Sessions() *SessionManager {
	p.sessionsOnce.Do(func() { p.sessions = NewSessionManager(p) })
	return p.sessions
}

// Close closes the pool. Connections held by running sessions are closed
// when they are released.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.metrics.degraded(false)

	err := p.db.Close()
	if err != nil {
		p.logger.Error("Failed to close database connection", "error", err)
	} else {
		p.logger.Info("Database connection closed", "store", p.store.name())
	}
	return err
}
