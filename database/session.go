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
	"time"

	"github.com/tomoncle/crudkit/types"
	"github.com/uptrace/bun"
)

// Session is a unit of work: one pooled connection and the transaction
// running on it.
type Session struct {
	bun.Tx
	mode    string
	started time.Time
}

// Mode returns ModeBlocking or ModeAsync.
func (s *Session) Mode() string { return s.mode }

// SessionFunc is the body of a session. Returning an error rolls the
// session back.
type SessionFunc func(ctx context.Context, s *Session) error

type sessionKey struct{ m *SessionManager }

// SessionManager opens sessions on a ConnectionProvider. A session opened
// while another one of the same manager is active on the context joins it:
// only the outermost scope commits or rolls back.
type SessionManager struct {
	provider  ConnectionProvider
	logger    Logger
	metrics   *Metrics
	txOptions *sql.TxOptions
}

type SessionOption func(*SessionManager)

func WithSessionLogger(logger Logger) SessionOption {
	return func(m *SessionManager) { m.logger = logger }
}

func WithSessionMetrics(metrics *Metrics) SessionOption {
	return func(m *SessionManager) { m.metrics = metrics }
}

// WithTxOptions sets the options transactions are started with.
func WithTxOptions(opts *sql.TxOptions) SessionOption {
	return func(m *SessionManager) { m.txOptions = opts }
}

// NewSessionManager returns a manager for provider. Logger and metrics
// default to the provider's when it is a *Provider.
func NewSessionManager(provider ConnectionProvider, opts ...SessionOption) *SessionManager {
	m := &SessionManager{provider: provider, logger: GetLogger()}
	if p, ok := provider.(*Provider); ok {
		m.logger = p.Logger()
		m.metrics = p.Metrics()
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *SessionManager) Provider() ConnectionProvider { return m.provider }

// Current returns the session of m active on ctx, if any.
func (m *SessionManager) Current(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{m}).(*Session)
	return s, ok
}

// WithSession runs fn in a session. It commits when fn returns nil and rolls
// back when fn fails or panics; the connection is released in every case.
// Errors returned by fn are classified into the error taxonomy.
func (m *SessionManager) WithSession(ctx context.Context, fn SessionFunc) error {
	if s, ok := m.Current(ctx); ok {
		return fn(ctx, s)
	}
	return m.run(ctx, ModeAsync, fn)
}

// WithBlockingSession runs fn in a session that ignores cancellation. It is
// bounded only by the pool acquisition timeout and the store itself.
func (m *SessionManager) WithBlockingSession(fn SessionFunc) error {
	return m.run(context.Background(), ModeBlocking, fn)
}

// JoinBlockingSession runs fn in the session of m active on ctx, or in a new
// blocking session when there is none. Cancellation of ctx is ignored; its
// values are kept.
func (m *SessionManager) JoinBlockingSession(ctx context.Context, fn SessionFunc) error {
	ctx = context.WithoutCancel(ctx)
	if s, ok := m.Current(ctx); ok {
		return fn(ctx, s)
	}
	return m.run(ctx, ModeBlocking, fn)
}

// Within runs fn in a session of m and returns its result.
func Within[T any](ctx context.Context, m *SessionManager, fn func(ctx context.Context, s *Session) (T, error)) (T, error) {
	var out T
	err := m.WithSession(ctx, func(ctx context.Context, s *Session) error {
		v, err := fn(ctx, s)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// WithinBlocking is Within for blocking sessions.
func WithinBlocking[T any](m *SessionManager, fn func(ctx context.Context, s *Session) (T, error)) (T, error) {
	return JoinBlocking(context.Background(), m, fn)
}

// JoinBlocking is WithinBlocking joining the session of m active on ctx.
func JoinBlocking[T any](ctx context.Context, m *SessionManager, fn func(ctx context.Context, s *Session) (T, error)) (T, error) {
	var out T
	err := m.JoinBlockingSession(ctx, func(ctx context.Context, s *Session) error {
		v, err := fn(ctx, s)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (m *SessionManager) run(ctx context.Context, mode string, fn SessionFunc) (err error) {
	var conn *Conn
	if mode == ModeBlocking {
		conn, err = m.provider.AcquireBlocking()
	} else {
		conn, err = m.provider.Acquire(ctx)
	}
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := conn.Release(); releaseErr != nil && m.logger != nil {
			m.logger.Warn("Failed to release connection", "error", releaseErr)
		}
	}()

	tx, err := conn.BeginTx(ctx, m.txOptions)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &types.TransactionError{Op: "begin", Err: err}
	}

	s := &Session{Tx: tx, mode: mode, started: time.Now()}
	sctx := context.WithValue(ctx, sessionKey{m}, s)

	defer func() {
		if r := recover(); r != nil {
			m.rollback(s, fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	if fnErr := fn(sctx, s); fnErr != nil {
		m.rollback(s, fnErr)
		return ClassifyError("", fnErr)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		m.metrics.session(sessionFailed)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if m.logger != nil {
			m.logger.Error("Failed to commit session", "mode", mode, "error", commitErr)
		}
		return &types.TransactionError{Op: "commit", Err: commitErr}
	}
	m.metrics.session(sessionCommitted)
	return nil
}

func (m *SessionManager) rollback(s *Session, cause error) {
	m.metrics.session(sessionRolledBack)
	if err := s.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) && m.logger != nil {
		m.logger.Error("Failed to rollback session", "mode", s.mode, "error", err)
	}
	if m.logger != nil {
		m.logger.Debug("Session rolled back", "mode", s.mode, "elapsed", time.Since(s.started), "cause", cause)
	}
}
