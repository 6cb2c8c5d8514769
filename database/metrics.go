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
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Acquisition modes and outcomes used as metric labels.
const (
	ModeBlocking = "blocking"
	ModeAsync    = "async"

	resultOK        = "ok"
	resultExhausted = "exhausted"
	resultCanceled  = "canceled"
	resultError     = "error"

	sessionCommitted  = "committed"
	sessionRolledBack = "rolled_back"
	sessionFailed     = "commit_failed"
)

// Metrics holds the prometheus collectors for the pool and sessions. A nil
// *Metrics records nothing.
type Metrics struct {
	Acquires *prometheus.CounterVec
	InUse    prometheus.Gauge
	Sessions *prometheus.CounterVec
	Degraded prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg. Collectors
// already registered on reg are reused. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Acquires: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crudkit",
			Name:      "pool_acquire_total",
			Help:      "Connection acquisitions by execution mode and result.",
		}, []string{"mode", "result"})),
		InUse: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crudkit",
			Name:      "pool_in_use",
			Help:      "Connections currently held by sessions.",
		})),
		Sessions: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crudkit",
			Name:      "session_total",
			Help:      "Finished sessions by outcome.",
		}, []string{"result"})),
		Degraded: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crudkit",
			Name:      "store_degraded",
			Help:      "1 while the provider serves from the in-memory fallback store.",
		})),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) acquired(mode, result string) {
	if m == nil {
		return
	}
	m.Acquires.WithLabelValues(mode, result).Inc()
	if result == resultOK {
		m.InUse.Inc()
	}
}

func (m *Metrics) released() {
	if m == nil {
		return
	}
	m.InUse.Dec()
}

func (m *Metrics) session(result string) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(result).Inc()
}

func (m *Metrics) degraded(on bool) {
	if m == nil {
		return
	}
	if on {
		m.Degraded.Set(1)
	} else {
		m.Degraded.Set(0)
	}
}
