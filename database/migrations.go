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
	"errors"
	"fmt"
	"os"

	"github.com/uptrace/bun"
)

var errNoDatabase = errors.New("database not initialized")

// CreateTables creates the missing tables of models in one transaction;
// either all of them exist afterwards or none was created. Queries are not
// logged unless BUNDEBUG_MIGRATION is set.
func CreateTables(ctx context.Context, db *bun.DB, logger Logger, models ...interface{}) error {
	if db == nil {
		return errNoDatabase
	}
	if len(models) == 0 {
		return nil
	}

	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); !ok {
		EnableBunSqlSilent(true)
		defer EnableBunSqlSilent(false)
	}

	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range models {
			if _, err := tx.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to create table %s: %w", modelName(model), err)
			}
			if logger != nil {
				logger.Debug("Table ready", "model", modelName(model))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if logger != nil {
		logger.Info("Tables created", "count", len(models))
	}
	return nil
}
