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

package repository

import (
	"time"

	"github.com/tomoncle/crudkit/database"
	"github.com/tomoncle/crudkit/types"
	"go.opentelemetry.io/otel/trace"
)

// Clock returns the time stamped into deleted_at and updated_at.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

// Option configures a repository.
type Option func(*options)

type options struct {
	sessions     *database.SessionManager
	defaultLimit int
	maxLimit     int
	clock        Clock
	schemaOpts   []types.SchemaOption
	logger       database.Logger
	tracer       trace.Tracer
}

// WithSessionManager runs operations in sessions of m. Repositories sharing
// a manager join each other's sessions.
func WithSessionManager(m *database.SessionManager) Option {
	return func(o *options) { o.sessions = m }
}

// WithPageLimits sets the default and maximum page size of GetList.
func WithPageLimits(defaultLimit, maxLimit int) Option {
	return func(o *options) {
		o.defaultLimit = defaultLimit
		o.maxLimit = maxLimit
	}
}

func WithClock(clock Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithSchemaOptions customizes the schema derived from T.
func WithSchemaOptions(opts ...types.SchemaOption) Option {
	return func(o *options) { o.schemaOpts = append(o.schemaOpts, opts...) }
}

func WithLogger(logger database.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}
