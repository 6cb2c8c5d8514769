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
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// store opens one kind of backend. It is chosen once, when the provider is
// built.
type store interface {
	name() string
	open(cfg *ConnectionConfig) (*sql.DB, *bun.DB, error)
	// poolSize returns the number of connections the store may hold.
	poolSize(cfg *ConnectionConfig) int
}

func storeFor(cfg *ConnectionConfig) (store, error) {
	switch strings.ToLower(cfg.Type) {
	case "mysql":
		return mysqlStore{}, nil
	case "postgres", "postgresql":
		return postgresStore{}, nil
	case "sqlite", "sqlite3":
		return sqliteStore{}, nil
	case "memory":
		return memoryStore{}, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s, supported types: %v", cfg.Type, supportedTypes)
	}
}

type mysqlStore struct{}

func (mysqlStore) name() string { return "mysql" }

func (mysqlStore) poolSize(cfg *ConnectionConfig) int { return cfg.PoolSize }

func (mysqlStore) open(cfg *ConnectionConfig) (*sql.DB, *bun.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		charset := cfg.Charset
		if charset == "" {
			charset = "utf8mb4"
		}
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local&timeout=%s&readTimeout=%s&writeTimeout=%s",
			cfg.Username,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			charset,
			cfg.ConnectTimeout,
			cfg.ReadTimeout,
			cfg.WriteTimeout,
		)
	}

	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, mysqldialect.New()), nil
}

// postgresStore uses pgx through database/sql unless Driver is "pq".
type postgresStore struct{}

func (postgresStore) name() string { return "postgres" }

func (postgresStore) poolSize(cfg *ConnectionConfig) int { return cfg.PoolSize }

func (postgresStore) open(cfg *ConnectionConfig) (*sql.DB, *bun.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
			cfg.Username,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			sslMode,
			int(cfg.ConnectTimeout.Seconds()),
		)
	}

	driverName := "pgx"
	if strings.EqualFold(cfg.Driver, "pq") {
		driverName = "postgres"
	}
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, pgdialect.New()), nil
}

// sqliteStore serializes all access through a single connection.
type sqliteStore struct{}

func (sqliteStore) name() string { return "sqlite" }

func (sqliteStore) poolSize(*ConnectionConfig) int { return 1 }

func (sqliteStore) open(cfg *ConnectionConfig) (*sql.DB, *bun.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = fmt.Sprintf("file:%s.db?_busy_timeout=5000", cfg.DBName)
	}

	sqlDB, err := sql.Open(sqliteShimName, dsn)
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, sqlitedialect.New()), nil
}

// memoryStore is an ephemeral sqlite database private to the provider. It
// lives as long as its single connection stays open.
type memoryStore struct{}

func (memoryStore) name() string { return "memory" }

func (memoryStore) poolSize(*ConnectionConfig) int { return 1 }

func (memoryStore) open(*ConnectionConfig) (*sql.DB, *bun.DB, error) {
	dsn := fmt.Sprintf("file:crudkit-%s?mode=memory&cache=shared", uuid.NewString())
	sqlDB, err := sql.Open(sqliteShimName, dsn)
	if err != nil {
		return nil, nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)
	return sqlDB, bun.NewDB(sqlDB, sqlitedialect.New()), nil
}

const sqliteShimName = sqliteshim.ShimName

func isSQLiteStore(s store) bool {
	switch s.(type) {
	case sqliteStore, memoryStore:
		return true
	}
	return false
}
