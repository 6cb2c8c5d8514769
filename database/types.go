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
	"time"

	"github.com/tomoncle/crudkit/types"
	"github.com/uptrace/bun"
)

// ConnectionProvider hands out pooled connections in the two execution
// modes and reports whether the store is reachable.
type ConnectionProvider interface {
	// Acquire waits for a free connection, giving up when ctx is done or the
	// acquisition timeout passes.
	Acquire(ctx context.Context) (*Conn, error)
	// AcquireBlocking waits for a free connection, bounded only by the
	// acquisition timeout.
	AcquireBlocking() (*Conn, error)
	HealthCheck(ctx context.Context) bool
	DB() *bun.DB
	Degraded() bool
}

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	Store         string        `json:"store"`
	Degraded      bool          `json:"degraded"`
	Busy          bool          `json:"busy"`
	ResponseTime  time.Duration `json:"response_time"`
	ActiveConns   int           `json:"active_conns"`
	IdleConns     int           `json:"idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// DBStats mirrors database/sql stats returned by the provider.
type DBStats struct {
	MaxOpenConns      int           `json:"max_open_conns"`
	OpenConns         int           `json:"open_conns"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

// ConnectionConfig describes how to connect to a database and tune its pool.
type ConnectionConfig struct {
	Type                string        `json:"type" yaml:"type"`     // mysql, postgres, sqlite, memory
	Driver              string        `json:"driver" yaml:"driver"` // postgres only: pgx (default) or pq
	DSN                 string        `json:"dsn" yaml:"dsn"`
	Host                string        `json:"host" yaml:"host"`
	Port                int           `json:"port" yaml:"port"`
	Username            string        `json:"username" yaml:"username"`
	Password            string        `json:"password" yaml:"password"`
	DBName              string        `json:"dbname" yaml:"dbname"`
	SSLMode             string        `json:"sslmode" yaml:"sslmode"`
	PoolSize            int           `json:"pool_size" yaml:"pool_size"`
	MaxIdleConns        int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime     time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime     time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	ConnectTimeout      time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	AcquireTimeout      time.Duration `json:"acquire_timeout" yaml:"acquire_timeout"`
	ReadTimeout         time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout        time.Duration `json:"write_timeout" yaml:"write_timeout"`
	AllowMemoryFallback bool          `json:"allow_memory_fallback" yaml:"allow_memory_fallback"`
	AutoCreateTables    bool          `json:"auto_create_tables" yaml:"auto_create_tables"`
	EnableQueryLog      bool          `json:"enable_query_log" yaml:"enable_query_log"`
	QueryLogStyle       string        `json:"query_log_style" yaml:"query_log_style"` // bundebug or color
	SlowQueryTime       time.Duration `json:"slow_query_time" yaml:"slow_query_time"`
	Charset             string        `json:"charset" yaml:"charset"` // MySQL:utf8mb4
}

// PageConfig bounds list queries.
type PageConfig struct {
	DefaultLimit int `json:"default_limit" yaml:"default_limit"`
	MaxLimit     int `json:"max_limit" yaml:"max_limit"`
}

// Config aggregates the deployment environment, connection and paging
// settings.
type Config struct {
	Environment      string           `json:"environment" yaml:"environment"`
	ConnectionConfig ConnectionConfig `json:"connection_config" yaml:"connection_config"`
	PageConfig       PageConfig       `json:"page_config" yaml:"page_config"`
}

// DefaultConnectionConfig returns a connection config with sensible defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Type:            "sqlite",
		DBName:          "crudkit",
		PoolSize:        10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute * 30,
		ConnectTimeout:  defaultConnectTimeout,
		AcquireTimeout:  time.Second * 30,
		ReadTimeout:     time.Second * 30,
		WriteTimeout:    time.Second * 30,
		QueryLogStyle:   "bundebug",
		SlowQueryTime:   time.Second * 2,
		Charset:         "utf8mb4",
	}
}

// DefaultConfig returns a development config backed by a local sqlite file.
func DefaultConfig() *Config {
	return &Config{
		Environment:      "development",
		ConnectionConfig: *DefaultConnectionConfig(),
		PageConfig: PageConfig{
			DefaultLimit: types.DefaultPageLimit,
			MaxLimit:     types.MaxPageLimit,
		},
	}
}
