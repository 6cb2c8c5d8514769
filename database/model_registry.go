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
	"reflect"
	"sort"
	"sync"
)

// ModelRegistry holds the models a Provider registers with Bun and, on the
// in-memory store, creates tables for. Each model type is held once.
type ModelRegistry struct {
	mu      sync.RWMutex
	entries []registryEntry
	types   map[reflect.Type]struct{}
}

type registryEntry struct {
	model    interface{}
	priority int
}

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{types: make(map[reflect.Type]struct{})}
}

// Add registers model, a struct pointer such as (*User)(nil). Tables are
// created in ascending priority. Add reports false if the type is already
// registered.
func (r *ModelRegistry) Add(model interface{}, priority int) bool {
	t := modelType(model)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[t]; ok {
		return false
	}
	r.types[t] = struct{}{}
	r.entries = append(r.entries, registryEntry{model: model, priority: priority})
	return true
}

// Models returns the registered models by ascending priority, ties in
// registration order.
func (r *ModelRegistry) Models() []interface{} {
	r.mu.RLock()
	entries := make([]registryEntry, len(r.entries))
	copy(entries, r.entries)
	r.mu.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	models := make([]interface{}, len(entries))
	for i, e := range entries {
		models[i] = e.model
	}
	return models
}

func (r *ModelRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

var (
	registryMu sync.RWMutex
	registry   = NewModelRegistry()
)

func defaultRegistry() *ModelRegistry {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry
}

// RegisterModel adds model to the package registry with the given priority.
func RegisterModel(model interface{}, priority int) {
	defaultRegistry().Add(model, priority)
}

// RegisterModels adds models to the package registry with priority 0.
func RegisterModels(models ...interface{}) {
	r := defaultRegistry()
	for _, m := range models {
		r.Add(m, 0)
	}
}

// RegisteredModels returns the models of the package registry. A Provider
// built without WithModels uses them.
func RegisteredModels() []interface{} {
	return defaultRegistry().Models()
}

func ResetRegisteredModels() {
	registryMu.Lock()
	registry = NewModelRegistry()
	registryMu.Unlock()
}

func modelType(model interface{}) reflect.Type {
	t := reflect.TypeOf(model)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func modelName(model interface{}) string {
	if t := modelType(model); t != nil {
		return t.Name()
	}
	return "<nil>"
}
