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

	"github.com/tomoncle/crudkit/database"
	"github.com/tomoncle/crudkit/types"
)

// blockingRepository runs the same operations as its core in blocking
// sessions. A session of the core's manager carried by ctx is joined.
type blockingRepository[T any] struct {
	core *baseRepositoryImpl[T]
	ctx  context.Context
}

var _ BlockingRepository[struct{}] = (*blockingRepository[struct{}])(nil)

func (b *blockingRepository[T]) Create(record *T) (*T, error) {
	return b.core.create(b.ctx, database.ModeBlocking, record)
}

func (b *blockingRepository[T]) GetByPK(pk any) (*T, error) {
	return b.core.getByPK(b.ctx, database.ModeBlocking, pk)
}

func (b *blockingRepository[T]) GetOne(filter types.FilterSpec, opts ...ReadOption) (*T, error) {
	return b.core.getOne(b.ctx, database.ModeBlocking, filter, opts)
}

func (b *blockingRepository[T]) GetList(filter types.FilterSpec, page *types.PageRequest, opts ...ReadOption) (*types.Pagination[T], error) {
	return b.core.getList(b.ctx, database.ModeBlocking, filter, page, opts)
}

func (b *blockingRepository[T]) Count(filter types.FilterSpec, opts ...ReadOption) (int, error) {
	return b.core.count(b.ctx, database.ModeBlocking, filter, opts)
}

func (b *blockingRepository[T]) Update(pk any, changes map[string]any) (*T, error) {
	return b.core.update(b.ctx, database.ModeBlocking, pk, changes)
}

func (b *blockingRepository[T]) Delete(pk any) (bool, error) {
	return b.core.delete(b.ctx, database.ModeBlocking, pk)
}

func (b *blockingRepository[T]) SoftDelete(pk any) (*T, error) {
	return b.core.softDelete(b.ctx, database.ModeBlocking, pk)
}

func (b *blockingRepository[T]) Purge(pk any) (bool, error) {
	return b.core.purge(b.ctx, database.ModeBlocking, pk)
}
