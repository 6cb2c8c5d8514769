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
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type gadget struct {
	bun.BaseModel `bun:"table:gadgets"`

	ID       int64 `bun:"id,pk,autoincrement"`
	WidgetID int64 `bun:"widget_id"`
}

func TestModelRegistryOrder(t *testing.T) {
	r := NewModelRegistry()
	assert.True(t, r.Add((*gadget)(nil), 10))
	assert.True(t, r.Add((*widget)(nil), 0))
	assert.False(t, r.Add(&widget{}, 5))

	models := r.Models()
	require.Len(t, models, 2)
	assert.IsType(t, (*widget)(nil), models[0])
	assert.IsType(t, (*gadget)(nil), models[1])
	assert.Equal(t, 2, r.Len())
}

func TestProviderCreatesRegisteredTables(t *testing.T) {
	ResetRegisteredModels()
	t.Cleanup(ResetRegisteredModels)
	RegisterModel((*gadget)(nil), 1)
	RegisterModels((*widget)(nil))

	p, err := NewProvider(context.Background(), memoryConfig(), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	ctx := context.Background()
	_, err = p.DB().NewInsert().Model(&gadget{WidgetID: 1}).Exec(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, countWidgets(t, p))
}

func TestCreateTablesWithoutDatabase(t *testing.T) {
	assert.ErrorIs(t, CreateTables(context.Background(), nil, nil, (*widget)(nil)), errNoDatabase)
}
