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
	"fmt"
	"sync"

	"github.com/uptrace/bun"
)

var (
	globalMu       sync.RWMutex
	globalProvider *Provider
	globalSessions *SessionManager
	globalConfig   *Config
)

// GetDB returns the global Bun database instance.
func GetDB() *bun.DB {
	if p := GetProvider(); p != nil {
		return p.DB()
	}
	return nil
}

// GetProvider returns the global provider, or nil before InitDB.
func GetProvider() *Provider {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalProvider
}

// GetSessionManager returns the session manager of the global provider.
func GetSessionManager() *SessionManager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalSessions
}

// GetConfig returns the configuration passed to InitDB.
func GetConfig() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// InitDB builds the global provider from cfg, replacing and closing any
// previous one.
func InitDB(cfg *Config, opts ...Option) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	provider, err := NewProvider(context.Background(), cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	globalMu.Lock()
	previous := globalProvider
	globalProvider = provider
	globalSessions = provider.Sessions()
	globalConfig = cfg
	globalMu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}
	return provider, nil
}

// CloseDB closes the global provider.
func CloseDB() error {
	globalMu.Lock()
	provider := globalProvider
	globalProvider = nil
	globalSessions = nil
	globalMu.Unlock()

	if provider != nil {
		return provider.Close()
	}
	return nil
}

// GetHealthStatus returns the current database health status.
func GetHealthStatus(ctx context.Context) *HealthStatus {
	if p := GetProvider(); p != nil {
		return p.Health(ctx)
	}
	return &HealthStatus{
		Healthy:   false,
		Connected: false,
		LastError: "Database not initialized",
	}
}

// GetDatabaseStats returns global database statistics.
func GetDatabaseStats() *DBStats {
	if p := GetProvider(); p != nil {
		return p.Stats()
	}
	return &DBStats{}
}
