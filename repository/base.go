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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/tomoncle/crudkit/database"
	"github.com/tomoncle/crudkit/query"
	"github.com/tomoncle/crudkit/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "crudkit/repository"

type baseRepositoryImpl[T any] struct {
	db       *bun.DB
	schema   *types.Schema
	sessions *database.SessionManager
	opts     options
}

var _ Repository[struct{}] = (*baseRepositoryImpl[struct{}])(nil)

// NewRepository returns a repository for the Bun model T on provider. The
// schema is derived from T's bun tags; soft delete is enabled when T has a
// boolean is_deleted column.
func NewRepository[T any](provider database.ConnectionProvider, opts ...Option) (Repository[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("repository model must be a struct, got %s", typ)
	}

	o := options{
		defaultLimit: types.DefaultPageLimit,
		maxLimit:     types.MaxPageLimit,
		clock:        utcNow,
		logger:       database.GetLogger(),
	}
	if p, ok := provider.(*database.Provider); ok {
		o.sessions = p.Sessions()
		o.logger = p.Logger()
		o.defaultLimit = p.Config().PageConfig.DefaultLimit
		o.maxLimit = p.Config().PageConfig.MaxLimit
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sessions == nil {
		o.sessions = database.NewSessionManager(provider)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	db := provider.DB()
	s, err := types.DescribeTable(db.Table(typ), o.schemaOpts...)
	if err != nil {
		return nil, err
	}
	return &baseRepositoryImpl[T]{db: db, schema: s, sessions: o.sessions, opts: o}, nil
}

func (r *baseRepositoryImpl[T]) Schema() *types.Schema { return r.schema }

func (r *baseRepositoryImpl[T]) Blocking() BlockingRepository[T] {
	return &blockingRepository[T]{core: r, ctx: context.Background()}
}

func (r *baseRepositoryImpl[T]) BlockingIn(ctx context.Context) BlockingRepository[T] {
	return &blockingRepository[T]{core: r, ctx: ctx}
}

func (r *baseRepositoryImpl[T]) Create(ctx context.Context, record *T) (*T, error) {
	return r.create(ctx, database.ModeAsync, record)
}

func (r *baseRepositoryImpl[T]) GetByPK(ctx context.Context, pk any) (*T, error) {
	return r.getByPK(ctx, database.ModeAsync, pk)
}

func (r *baseRepositoryImpl[T]) GetOne(ctx context.Context, filter types.FilterSpec, opts ...ReadOption) (*T, error) {
	return r.getOne(ctx, database.ModeAsync, filter, opts)
}

func (r *baseRepositoryImpl[T]) GetList(ctx context.Context, filter types.FilterSpec, page *types.PageRequest, opts ...ReadOption) (*types.Pagination[T], error) {
	return r.getList(ctx, database.ModeAsync, filter, page, opts)
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context, filter types.FilterSpec, opts ...ReadOption) (int, error) {
	return r.count(ctx, database.ModeAsync, filter, opts)
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, pk any, changes map[string]any) (*T, error) {
	return r.update(ctx, database.ModeAsync, pk, changes)
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, pk any) (bool, error) {
	return r.delete(ctx, database.ModeAsync, pk)
}

func (r *baseRepositoryImpl[T]) SoftDelete(ctx context.Context, pk any) (*T, error) {
	return r.softDelete(ctx, database.ModeAsync, pk)
}

func (r *baseRepositoryImpl[T]) Purge(ctx context.Context, pk any) (bool, error) {
	return r.purge(ctx, database.ModeAsync, pk)
}

// inSession runs fn in a session of the given mode. Both modes join the
// session active on ctx; blocking sessions ignore its cancellation.
func inSession[T, R any](r *baseRepositoryImpl[T], ctx context.Context, mode string, fn func(ctx context.Context, s *database.Session) (R, error)) (R, error) {
	if mode == database.ModeBlocking {
		return database.JoinBlocking(ctx, r.sessions, fn)
	}
	return database.Within(ctx, r.sessions, fn)
}

func (r *baseRepositoryImpl[T]) startSpan(ctx context.Context, op, mode string) (context.Context, trace.Span) {
	return r.opts.tracer.Start(ctx, r.schema.Model+"."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.sql.table", r.schema.Model),
			attribute.String("db.operation", op),
			attribute.String("crudkit.mode", mode),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// classify maps a store error onto the error taxonomy for this model.
func (r *baseRepositoryImpl[T]) classify(err error) error {
	return database.ClassifyError(r.schema.Model, err)
}

func (r *baseRepositoryImpl[T]) pkValue(pk any) (any, error) {
	_, v, err := query.Coerce(r.schema, r.schema.PK, pk)
	return v, err
}

func (r *baseRepositoryImpl[T]) wherePK(key any) (string, []any) {
	return "? = ?", []any{bun.Ident(r.schema.PK), key}
}

// locking reports whether the store supports SELECT ... FOR UPDATE. sqlite
// serializes writers through its single connection instead.
func (r *baseRepositoryImpl[T]) locking() bool {
	return r.db.Dialect().Name() != dialect.SQLite
}

// fetch reads the record with primary key key, nil when there is none.
func (r *baseRepositoryImpl[T]) fetch(ctx context.Context, s *database.Session, key any, forUpdate bool) (*T, error) {
	record := new(T)
	expr, args := r.wherePK(key)
	q := s.NewSelect().Model(record).Where(expr, args...).Limit(1)
	if forUpdate && r.locking() {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, r.classify(err)
	}
	return record, nil
}

func (r *baseRepositoryImpl[T]) notFound(op string, pk any) error {
	r.opts.logger.Warn("Record not found", "model", r.schema.Model, "operation", op, "pk", pk)
	return &types.NotFoundError{Model: r.schema.Model, Key: pk}
}

func (r *baseRepositoryImpl[T]) create(ctx context.Context, mode string, record *T) (out *T, err error) {
	ctx, span := r.startSpan(ctx, "create", mode)
	defer func() { endSpan(span, err) }()

	if record == nil {
		return nil, fmt.Errorf("%s: cannot create a nil record", r.schema.Model)
	}
	return inSession(r, ctx, mode, func(ctx context.Context, s *database.Session) (*T, error) {
		if _, err := s.NewInsert().Model(record).Exec(ctx); err != nil {
			return nil, r.classify(err)
		}
		key, err := structField(r.schema, record, r.schema.PK)
		if err != nil {
			return nil, err
		}
		stored, err := r.fetch(ctx, s, key.Interface(), false)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return record, nil
		}
		return stored, nil
	})
}

func (r *baseRepositoryImpl[T]) getByPK(ctx context.Context, mode string, pk any) (out *T, err error) {
	ctx, span := r.startSpan(ctx, "get_by_pk", mode)
	defer func() { endSpan(span, err) }()

	key, err := r.pkValue(pk)
	if err != nil {
		return nil, err
	}
	return inSession(r, ctx, mode, func(ctx context.Context, s *database.Session) (*T, error) {
		return r.fetch(ctx, s, key, false)
	})
}

// compileRead compiles filter and applies the soft-delete default.
func (r *baseRepositoryImpl[T]) compileRead(filter types.FilterSpec, opts []ReadOption) (*query.Predicate, error) {
	pred, err := query.Compile(r.schema, filter)
	if err != nil {
		return nil, err
	}
	return ApplyDefaultFilter(r.schema, pred, applyReadOptions(opts).includeDeleted), nil
}

func (r *baseRepositoryImpl[T]) getOne(ctx context.Context, mode string, filter types.FilterSpec, opts []ReadOption) (out *T, err error) {
	ctx, span := r.startSpan(ctx, "get_one", mode)
	defer func() { endSpan(span, err) }()

	pred, err := r.compileRead(filter, opts)
	if err != nil {
		return nil, err
	}
	return inSession(r, ctx, mode, func(ctx context.Context, s *database.Session) (*T, error) {
		var rows []*T
		q := query.Apply(s.NewSelect().Model(&rows), pred).Limit(2)
		if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, r.classify(err)
		}
		switch len(rows) {
		case 0:
			return nil, nil
		case 1:
			return rows[0], nil
		default:
			return nil, &types.MultipleResultsError{Model: r.schema.Model}
		}
	})
}

type listPlan struct {
	pred      *query.Predicate
	orderBy   string
	direction types.Direction
	offset    int
	limit     int
	withTotal bool
}

func (r *baseRepositoryImpl[T]) planList(filter types.FilterSpec, page *types.PageRequest, opts []ReadOption) (*listPlan, error) {
	pred, err := r.compileRead(filter, opts)
	if err != nil {
		return nil, err
	}
	if page == nil {
		page = types.NewDefaultPageRequest()
	}

	orderBy := r.schema.PK
	if name := page.GetOrderBy(); name != "" {
		f, ok := r.schema.Lookup(name)
		if !ok {
			return nil, types.NewUnknownFieldError(r.schema.Model, name)
		}
		orderBy = f.Column
	}
	direction, ok := types.ParseDirection(page.GetDirection())
	if !ok {
		return nil, types.NewInvalidValueError(r.schema.Model, "order_direction", page.GetDirection(), "expected asc or desc")
	}

	return &listPlan{
		pred:      pred,
		orderBy:   orderBy,
		direction: direction,
		offset:    page.GetOffset(),
		limit:     page.GetLimit(r.opts.defaultLimit, r.opts.maxLimit),
		withTotal: page.IncludeTotal(),
	}, nil
}

func (r *baseRepositoryImpl[T]) getList(ctx context.Context, mode string, filter types.FilterSpec, page *types.PageRequest, opts []ReadOption) (out *types.Pagination[T], err error) {
	ctx, span := r.startSpan(ctx, "get_list", mode)
	defer func() { endSpan(span, err) }()

	plan, err := r.planList(filter, page, opts)
	if err != nil {
		return nil, err
	}
	return inSession(r, ctx, mode, func(ctx context.Context, s *database.Session) (*types.Pagination[T], error) {
		pagination := types.NewDefaultPagination[T](plan.offset, plan.limit)

		var rows []*T
		q := query.Apply(s.NewSelect().Model(&rows), plan.pred).
			OrderExpr("? "+plan.direction.SQL(), bun.Ident(plan.orderBy))
		if plan.orderBy != r.schema.PK {
			q = q.OrderExpr("? "+plan.direction.SQL(), bun.Ident(r.schema.PK))
		}
		err := q.Offset(plan.offset).Limit(plan.limit).Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, r.classify(err)
		}
		if rows != nil {
			pagination.Items = rows
		}

		if plan.withTotal {
			total, err := query.Apply(s.NewSelect().Model((*T)(nil)), plan.pred).Count(ctx)
			if err != nil {
				return nil, r.classify(err)
			}
			pagination.Total = total
			pagination.HasTotal = true
		}
		return pagination, nil
	})
}

func (r *baseRepositoryImpl[T]) count(ctx context.Context, mode string, filter types.FilterSpec, opts []ReadOption) (n int, err error) {
	ctx, span := r.startSpan(ctx, "count", mode)
	defer func() { endSpan(span, err) }()

	pred, err := r.compileRead(filter, opts)
	if err != nil {
		return 0, err
	}
	return inSession(r, ctx, mode, func(ctx context.Context, s *database.Session) (int, error) {
		n, err := query.Apply(s.NewSelect().Model((*T)(nil)), pred).Count(ctx)
		if err != nil {
			return 0, r.classify(err)
		}
		return n, nil
	})
}

type assignment struct {
	column string
	value  any
}

func assigns(sets []assignment, column string) bool {
	for _, a := range sets {
		if a.column == column {
			return true
		}
	}
	return false
}

// planUpdate coerces changes in key order. The primary key cannot change.
func (r *baseRepositoryImpl[T]) planUpdate(changes map[string]any) ([]assignment, error) {
	sets := make([]assignment, 0, len(changes)+1)
	seen := make(map[string]struct{}, len(changes))
	for _, name := range slices.Sorted(maps.Keys(changes)) {
		raw := changes[name]
		f, v, err := query.Coerce(r.schema, name, raw)
		if err != nil {
			return nil, err
		}
		if f.PrimaryKey {
			return nil, types.NewInvalidValueError(r.schema.Model, name, raw, "primary key cannot be changed")
		}
		if _, dup := seen[f.Column]; dup {
			return nil, types.NewInvalidValueError(r.schema.Model, name, raw, "column is set more than once")
		}
		seen[f.Column] = struct{}{}
		sets = append(sets, assignment{column: f.Column, value: v})
	}
	return sets, nil
}

func (r *baseRepositoryImpl[T]) update(ctx context.Context, mode string, pk any, changes map[string]any) (out *T, err error) {
	ctx, span := r.startSpan(ctx, "update", mode)
	defer func() { endSpan(span, err) }()

	key, err := r.pkValue(pk)
	if err != nil {
		return nil, err
	}
	sets, err := r.planUpdate(changes)
	if err != nil {
		return nil, err
	}
	return inSession(r, ctx, mode, func(ctx context.Context, s *database.Session) (*T, error) {
		current, err := r.fetch(ctx, s, key, true)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, r.notFound("update", pk)
		}
		if len(sets) == 0 {
			return current, nil
		}

		q := s.NewUpdate().Model((*T)(nil))
		for _, a := range sets {
			q = q.Set("? = ?", bun.Ident(a.column), a.value)
		}
		if col := r.schema.UpdatedAt; col != "" && !assigns(sets, col) {
			q = q.Set("? = ?", bun.Ident(col), r.opts.clock())
		}
		expr, args := r.wherePK(key)
		if _, err := q.Where(expr, args...).Exec(ctx); err != nil {
			return nil, r.classify(err)
		}
		return r.fetch(ctx, s, key, false)
	})
}

func (r *baseRepositoryImpl[T]) delete(ctx context.Context, mode string, pk any) (ok bool, err error) {
	if r.schema.SupportsSoftDelete() {
		if _, err := r.softDelete(ctx, mode, pk); err != nil {
			return false, err
		}
		return true, nil
	}
	ctx, span := r.startSpan(ctx, "delete", mode)
	defer func() { endSpan(span, err) }()
	return r.remove(ctx, mode, "delete", pk)
}

func (r *baseRepositoryImpl[T]) purge(ctx context.Context, mode string, pk any) (ok bool, err error) {
	ctx, span := r.startSpan(ctx, "purge", mode)
	defer func() { endSpan(span, err) }()
	return r.remove(ctx, mode, "purge", pk)
}

// remove physically deletes the row with primary key pk.
func (r *baseRepositoryImpl[T]) remove(ctx context.Context, mode, op string, pk any) (bool, error) {
	key, err := r.pkValue(pk)
	if err != nil {
		return false, err
	}
	return inSession(r, ctx, mode, func(ctx context.Context, s *database.Session) (bool, error) {
		expr, args := r.wherePK(key)
		res, err := s.NewDelete().Model((*T)(nil)).Where(expr, args...).Exec(ctx)
		if err != nil {
			return false, r.classify(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, r.classify(err)
		}
		if n == 0 {
			return false, r.notFound(op, pk)
		}
		return true, nil
	})
}

func (r *baseRepositoryImpl[T]) softDelete(ctx context.Context, mode string, pk any) (out *T, err error) {
	ctx, span := r.startSpan(ctx, "soft_delete", mode)
	defer func() { endSpan(span, err) }()

	if !r.schema.SupportsSoftDelete() {
		return nil, &types.UnsupportedError{Model: r.schema.Model, Operation: "soft_delete"}
	}
	key, err := r.pkValue(pk)
	if err != nil {
		return nil, err
	}
	return inSession(r, ctx, mode, func(ctx context.Context, s *database.Session) (*T, error) {
		current, err := r.fetch(ctx, s, key, true)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, r.notFound("soft_delete", pk)
		}
		if IsMarkedDeleted(r.schema, current) {
			return current, nil
		}

		if err := MarkDeleted(r.schema, current, r.opts.clock()); err != nil {
			return nil, err
		}
		columns := []string{r.schema.SoftDeleteFlag}
		if r.schema.DeletedAt != "" {
			columns = append(columns, r.schema.DeletedAt)
		}
		if _, err := s.NewUpdate().Model(current).Column(columns...).WherePK().Exec(ctx); err != nil {
			return nil, r.classify(err)
		}
		return r.fetch(ctx, s, key, false)
	})
}
