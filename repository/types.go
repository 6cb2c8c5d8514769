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

	"github.com/tomoncle/crudkit/types"
)

// CrudRepository defines the context-aware operations on records of type T.
// The context bounds pool acquisition and every store round trip.
type CrudRepository[T any] interface {
	// Create inserts record and returns the stored row, key and server
	// defaults included.
	Create(ctx context.Context, record *T) (*T, error)

	// GetByPK returns the record with primary key pk, soft-deleted or not,
	// and nil without error when there is none.
	GetByPK(ctx context.Context, pk any) (*T, error)

	// GetOne returns the only record matching filter, nil when none matches
	// and a types.ErrMultipleResults error when several do.
	GetOne(ctx context.Context, filter types.FilterSpec, opts ...ReadOption) (*T, error)

	GetList(ctx context.Context, filter types.FilterSpec, page *types.PageRequest, opts ...ReadOption) (*types.Pagination[T], error)

	Count(ctx context.Context, filter types.FilterSpec, opts ...ReadOption) (int, error)

	// Update applies changes, keyed by column or Go field name, to the
	// record with primary key pk and returns the updated record.
	Update(ctx context.Context, pk any, changes map[string]any) (*T, error)

	// Delete soft-deletes the record when T supports it and removes it
	// otherwise.
	Delete(ctx context.Context, pk any) (bool, error)

	SoftDelete(ctx context.Context, pk any) (*T, error)

	// Purge removes the record whether or not T supports soft delete.
	Purge(ctx context.Context, pk any) (bool, error)
}

// BlockingRepository mirrors CrudRepository for callers without a context.
// Calls occupy the calling goroutine until the store answers and cannot be
// canceled; waiting for a connection is bounded by the acquisition timeout.
type BlockingRepository[T any] interface {
	Create(record *T) (*T, error)
	GetByPK(pk any) (*T, error)
	GetOne(filter types.FilterSpec, opts ...ReadOption) (*T, error)
	GetList(filter types.FilterSpec, page *types.PageRequest, opts ...ReadOption) (*types.Pagination[T], error)
	Count(filter types.FilterSpec, opts ...ReadOption) (int, error)
	Update(pk any, changes map[string]any) (*T, error)
	Delete(pk any) (bool, error)
	SoftDelete(pk any) (*T, error)
	Purge(pk any) (bool, error)
}

// Repository combines the context-aware operations with access to the
// blocking variant and the schema the repository was built from.
type Repository[T any] interface {
	CrudRepository[T]
	Blocking() BlockingRepository[T]
	// BlockingIn returns the blocking variant bound to ctx: calls join the
	// session ctx carries, if any, and ignore its cancellation.
	BlockingIn(ctx context.Context) BlockingRepository[T]
	Schema() *types.Schema
}

// ReadOption adjusts a read.
type ReadOption func(*readOptions)

type readOptions struct {
	includeDeleted bool
}

// IncludeDeleted makes a read return soft-deleted records too.
func IncludeDeleted() ReadOption {
	return func(o *readOptions) { o.includeDeleted = true }
}

func applyReadOptions(opts []ReadOption) readOptions {
	var o readOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
