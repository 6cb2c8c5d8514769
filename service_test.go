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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/crudkit/database"
	"github.com/tomoncle/crudkit/repository"
	"github.com/tomoncle/crudkit/types"
	"github.com/uptrace/bun"
)

type SystemConfig struct {
	bun.BaseModel `bun:"table:system_config,alias:sc"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	ConfigKey   string    `bun:"config_key,notnull,unique" json:"config_key"`
	ConfigValue string    `bun:"config_value" json:"config_value"`
	IsDeleted   bool      `bun:"is_deleted,notnull" json:"is_deleted"`
	DeletedAt   time.Time `bun:"deleted_at,nullzero" json:"deleted_at"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}

func initTestDB(t *testing.T) {
	t.Helper()
	database.ResetRegisteredModels()
	database.RegisterModel((*SystemConfig)(nil), 0)

	cfg := database.DefaultConfig()
	cfg.ConnectionConfig.Type = "memory"
	cfg.ConnectionConfig.SlowQueryTime = 0
	_, err := database.InitDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = database.CloseDB()
		database.ResetRegisteredModels()
	})
}

func TestServiceNotInitialized(t *testing.T) {
	svc := NewService[SystemConfig]()
	_, err := svc.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, svc.Transaction(context.Background(), func(context.Context) error { return nil }), ErrNotInitialized)
}

func TestService(t *testing.T) {
	initTestDB(t)
	svc := NewService[SystemConfig]()
	ctx := context.Background()

	saved, err := svc.Save(ctx, &SystemConfig{ConfigKey: "site.name", ConfigValue: "crudkit"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.ID)

	got, err := svc.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	one, err := svc.One(ctx, types.FilterFromMap(map[string]any{"config_key": "site.name"}))
	require.NoError(t, err)
	assert.Equal(t, saved, one)

	updated, err := svc.Update(ctx, saved.ID, map[string]any{"config_value": "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.ConfigValue)
	assert.False(t, updated.UpdatedAt.IsZero())

	ok, err := svc.Delete(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	page, err := svc.List(ctx, nil, types.NewDefaultPageRequest().WithTotal())
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.Total)

	n, err := svc.Count(ctx, nil, repository.IncludeDeleted())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	deleted, err := svc.SoftDelete(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)

	ok, err = svc.Purge(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	repo, err := svc.Repository()
	require.NoError(t, err)
	missing, err := repo.Blocking().GetByPK(saved.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestServiceTransaction(t *testing.T) {
	initTestDB(t)
	svc := NewService[SystemConfig]()
	ctx := context.Background()
	boom := errors.New("boom")

	err := svc.Transaction(ctx, func(ctx context.Context) error {
		if _, err := svc.Save(ctx, &SystemConfig{ConfigKey: "a"}); err != nil {
			return err
		}
		if _, err := svc.Save(ctx, &SystemConfig{ConfigKey: "b"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := svc.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, svc.Transaction(ctx, func(ctx context.Context) error {
		_, err := svc.Save(ctx, &SystemConfig{ConfigKey: "a"})
		return err
	}))
	n, err = svc.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
