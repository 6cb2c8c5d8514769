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

package crudkit

import (
	"context"
	"errors"
	"sync"

	"github.com/tomoncle/crudkit/database"
	"github.com/tomoncle/crudkit/repository"
	"github.com/tomoncle/crudkit/types"
)

// ErrNotInitialized is returned by services used before database.InitDB.
var ErrNotInitialized = errors.New("database not initialized")

type Service[T any] interface {
	// Get returns the entity with the given primary key, or nil.
	Get(ctx context.Context, id any) (*T, error)

	// One returns the only entity matching filter, or nil.
	One(ctx context.Context, filter types.FilterSpec, opts ...repository.ReadOption) (*T, error)

	// List returns one page of entities matching filter.
	List(ctx context.Context, filter types.FilterSpec, page *types.PageRequest, opts ...repository.ReadOption) (*types.Pagination[T], error)

	// Count returns the number of entities matching filter.
	Count(ctx context.Context, filter types.FilterSpec, opts ...repository.ReadOption) (int, error)

	// Save inserts a new entity and returns it as stored.
	Save(ctx context.Context, model *T) (*T, error)

	// Update applies changes to an existing entity.
	Update(ctx context.Context, id any, changes map[string]any) (*T, error)

	// Delete removes an entity, softly when the entity supports it.
	Delete(ctx context.Context, id any) (bool, error)

	SoftDelete(ctx context.Context, id any) (*T, error)

	// Purge removes an entity physically.
	Purge(ctx context.Context, id any) (bool, error)

	// Transaction runs fn in one session; service calls made with the ctx
	// passed to fn join it.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Repository exposes the underlying repository, blocking variant
	// included.
	Repository() (repository.Repository[T], error)
}

type baseServiceImpl[T any] struct {
	opts []repository.Option
	repo repository.Repository[T]
	err  error
	once sync.Once
}

// NewService returns a default Service implementation using the generic
// repository backed by the global database provider.
func NewService[T any](opts ...repository.Option) Service[T] {
	return newBaseServiceImpl[T](opts...)
}

func newBaseServiceImpl[T any](opts ...repository.Option) *baseServiceImpl[T] {
	return &baseServiceImpl[T]{opts: opts}
}

func (s *baseServiceImpl[T]) baseRepo() (repository.Repository[T], error) {
	s.once.Do(func() {
		provider := database.GetProvider()
		if provider == nil {
			s.err = ErrNotInitialized
			return
		}
		s.repo, s.err = repository.NewRepository[T](provider, s.opts...)
	})
	return s.repo, s.err
}

func (s *baseServiceImpl[T]) Repository() (repository.Repository[T], error) {
	return s.baseRepo()
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id any) (*T, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.GetByPK(ctx, id)
}

func (s *baseServiceImpl[T]) One(ctx context.Context, filter types.FilterSpec, opts ...repository.ReadOption) (*T, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.GetOne(ctx, filter, opts...)
}

func (s *baseServiceImpl[T]) List(ctx context.Context, filter types.FilterSpec, page *types.PageRequest, opts ...repository.ReadOption) (*types.Pagination[T], error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.GetList(ctx, filter, page, opts...)
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, filter types.FilterSpec, opts ...repository.ReadOption) (int, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return 0, err
	}
	return repo.Count(ctx, filter, opts...)
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, model *T) (*T, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.Create(ctx, model)
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, id any, changes map[string]any) (*T, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.Update(ctx, id, changes)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id any) (bool, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return false, err
	}
	return repo.Delete(ctx, id)
}

func (s *baseServiceImpl[T]) SoftDelete(ctx context.Context, id any) (*T, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return nil, err
	}
	return repo.SoftDelete(ctx, id)
}

func (s *baseServiceImpl[T]) Purge(ctx context.Context, id any) (bool, error) {
	repo, err := s.baseRepo()
	if err != nil {
		return false, err
	}
	return repo.Purge(ctx, id)
}

func (s *baseServiceImpl[T]) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sessions := database.GetSessionManager()
	if sessions == nil {
		return ErrNotInitialized
	}
	return sessions.WithSession(ctx, func(ctx context.Context, _ *database.Session) error {
		return fn(ctx)
	})
}
