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
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
)

var supportedTypes = []string{"mysql", "postgres", "sqlite", "memory"}

const defaultConnectTimeout = 10 * time.Second

// deployedEnvironments never fall back to the in-memory store.
var deployedEnvironments = map[string]struct{}{
	"prod":       {},
	"production": {},
}

// IsDeployedEnvironment reports whether env names a production deployment.
func IsDeployedEnvironment(env string) bool {
	_, ok := deployedEnvironments[strings.ToLower(strings.TrimSpace(env))]
	return ok
}

// LoadConfig builds a config from the defaults, the optional YAML file at
// path and then the environment, which wins over the file. Variables from
// envFiles are loaded first without overriding the process environment.
func LoadConfig(path string, envFiles ...string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		fileCfg, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML config on top of DefaultConfig.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// LoadConfigFromEnv returns DefaultConfig overridden by the environment.
func LoadConfigFromEnv(envFiles ...string) (*Config, error) {
	return LoadConfig("", envFiles...)
}

func loadEnvFiles(files ...string) error {
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := gotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

// envBindings maps config keys, named by their yaml tags, to the
// environment variables that override them.
var envBindings = map[string]string{
	"environment": "APP_ENV",

	"connection_config.type":     "DB_TYPE",
	"connection_config.driver":   "DB_DRIVER",
	"connection_config.dsn":      "DB_DSN",
	"connection_config.host":     "DB_HOST",
	"connection_config.port":     "DB_PORT",
	"connection_config.username": "DB_USERNAME",
	"connection_config.password": "DB_PASSWORD",
	"connection_config.dbname":   "DB_NAME",
	"connection_config.sslmode":  "DB_SSLMODE",

	"connection_config.pool_size":         "DB_POOL_SIZE",
	"connection_config.max_idle_conns":    "DB_MAX_IDLE_CONNS",
	"connection_config.conn_max_lifetime": "DB_CONN_MAX_LIFETIME",
	"connection_config.connect_timeout":   "DB_CONNECT_TIMEOUT",
	"connection_config.acquire_timeout":   "DB_ACQUIRE_TIMEOUT",

	"connection_config.allow_memory_fallback": "DB_ALLOW_MEMORY_FALLBACK",
	"connection_config.auto_create_tables":    "DB_AUTO_CREATE_TABLES",

	"connection_config.enable_query_log": "DB_ENABLE_QUERY_LOG",
	"connection_config.query_log_style":  "DB_QUERY_LOG_STYLE",
	"connection_config.slow_query_time":  "DB_SLOW_QUERY_TIME",

	"page_config.default_limit": "DB_PAGE_LIMIT_DEFAULT",
	"page_config.max_limit":     "DB_PAGE_LIMIT_MAX",
}

// ApplyEnv overrides cfg with APP_ENV and the DB_* environment variables.
// Durations accept Go syntax ("5s") or a plain number of seconds. Unset and
// empty variables leave cfg unchanged; malformed values are an error.
func ApplyEnv(cfg *Config) error {
	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}

	err := v.Unmarshal(cfg,
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			secondsHook,
			mapstructure.StringToTimeDurationHookFunc(),
		)),
		func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" },
	)
	if err != nil {
		return fmt.Errorf("invalid database environment: %w", err)
	}
	return nil
}

// secondsHook reads a bare integer as a number of seconds.
func secondsHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(data.(string)))
	if err != nil {
		return data, nil
	}
	return time.Duration(n) * time.Second, nil
}

// Validate checks that the config describes a usable provider.
func (c *Config) Validate() error {
	cc := &c.ConnectionConfig
	cc.Type = strings.ToLower(strings.TrimSpace(cc.Type))
	if cc.Type == "postgresql" {
		cc.Type = "postgres"
	}
	if cc.Type == "sqlite3" {
		cc.Type = "sqlite"
	}
	supported := false
	for _, t := range supportedTypes {
		if cc.Type == t {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported database type: %s, supported types: %v", cc.Type, supportedTypes)
	}
	switch strings.ToLower(cc.Driver) {
	case "", "pgx", "pq":
	default:
		return fmt.Errorf("unsupported postgres driver: %s", cc.Driver)
	}
	if cc.PoolSize < 1 {
		return fmt.Errorf("pool_size must be at least 1, got %d", cc.PoolSize)
	}
	if cc.AcquireTimeout <= 0 {
		return fmt.Errorf("acquire_timeout must be positive")
	}
	if cc.ConnectTimeout <= 0 {
		cc.ConnectTimeout = defaultConnectTimeout
	}
	if c.PageConfig.DefaultLimit < 1 || c.PageConfig.MaxLimit < c.PageConfig.DefaultLimit {
		return fmt.Errorf("invalid page limits: default %d, max %d", c.PageConfig.DefaultLimit, c.PageConfig.MaxLimit)
	}
	return nil
}
