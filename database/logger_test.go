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
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := WrapZap(zap.New(core))

	logger.Info("Database connected successfully:", "store", "memory")
	logger.Warn("Connection pool exhausted", "pool_size", 1)

	require.Equal(t, 2, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Database connected successfully:", entry.Message)
	assert.Equal(t, "memory", entry.ContextMap()["store"])
}

func TestNewZapLoggerLevels(t *testing.T) {
	logger, err := NewZapLogger("production")
	require.NoError(t, err)
	logger.SetLevel(LogLevelError)
	logger.Info("dropped")
	_ = logger.Sync()

	dev, err := NewZapLogger("development")
	require.NoError(t, err)
	dev.SetLevel(LogLevelDebug)
	dev.Debug("kept", "key", "value")
}

func TestMetricsReuseRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewMetrics(reg)
	b := NewMetrics(reg)
	assert.Same(t, a.Acquires, b.Acquires)
	assert.Equal(t, a.InUse, b.InUse)

	var none *Metrics
	assert.NotPanics(t, func() {
		none.acquired(ModeAsync, resultOK)
		none.released()
		none.session(sessionCommitted)
		none.degraded(true)
	})
}
