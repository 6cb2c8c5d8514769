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

package repository

import (
	"database/sql"
	"fmt"
	"reflect"
	"time"

	"github.com/tomoncle/crudkit/query"
	"github.com/tomoncle/crudkit/types"
	"github.com/uptrace/bun/schema"
)

// ApplyDefaultFilter returns p restricted to records that are not soft
// deleted. p is returned as is when s has no soft-delete flag, when
// includeDeleted is set or when p already tests the flag.
func ApplyDefaultFilter(s *types.Schema, p *query.Predicate, includeDeleted bool) *query.Predicate {
	if !s.SupportsSoftDelete() || includeDeleted || p.Constrains(s.SoftDeleteFlag) {
		return p
	}
	return p.And(query.Clause{Column: s.SoftDeleteFlag, Operator: types.OpEq, Value: false})
}

// MarkDeleted sets the soft-delete flag of record and stamps deleted_at with
// now. record must be a pointer to the struct s was derived from.
func MarkDeleted(s *types.Schema, record any, now time.Time) error {
	if !s.SupportsSoftDelete() {
		return &types.UnsupportedError{Model: s.Model, Operation: "soft_delete"}
	}
	flag, err := structField(s, record, s.SoftDeleteFlag)
	if err != nil {
		return err
	}
	if err := setBool(flag, true); err != nil {
		return fmt.Errorf("%s.%s: %w", s.Model, s.SoftDeleteFlag, err)
	}
	if s.DeletedAt == "" {
		return nil
	}
	deletedAt, err := structField(s, record, s.DeletedAt)
	if err != nil {
		return err
	}
	if err := setTime(deletedAt, now); err != nil {
		return fmt.Errorf("%s.%s: %w", s.Model, s.DeletedAt, err)
	}
	return nil
}

// IsMarkedDeleted reports whether the soft-delete flag of record is set.
func IsMarkedDeleted(s *types.Schema, record any) bool {
	if !s.SupportsSoftDelete() {
		return false
	}
	v, err := structField(s, record, s.SoftDeleteFlag)
	if err != nil {
		return false
	}
	switch x := v.Interface().(type) {
	case bool:
		return x
	case *bool:
		return x != nil && *x
	case sql.NullBool:
		return x.Valid && x.Bool
	}
	return false
}

func structField(s *types.Schema, record any, column string) (reflect.Value, error) {
	f, ok := s.Lookup(column)
	if !ok || f.Index == nil {
		return reflect.Value{}, fmt.Errorf("%s: column %q is not mapped to a struct field", s.Model, column)
	}
	rv := reflect.ValueOf(record)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%s: expected a non-nil struct pointer, got %T", s.Model, record)
	}
	return rv.Elem().FieldByIndex(f.Index), nil
}

func setBool(v reflect.Value, b bool) error {
	switch {
	case v.Kind() == reflect.Bool:
		v.SetBool(b)
	case v.Kind() == reflect.Ptr && v.Type().Elem().Kind() == reflect.Bool:
		ptr := reflect.New(v.Type().Elem())
		ptr.Elem().SetBool(b)
		v.Set(ptr)
	case v.Type() == reflect.TypeOf(sql.NullBool{}):
		v.Set(reflect.ValueOf(sql.NullBool{Bool: b, Valid: true}))
	default:
		return fmt.Errorf("cannot store a boolean in %s", v.Type())
	}
	return nil
}

func setTime(v reflect.Value, t time.Time) error {
	switch v.Type() {
	case reflect.TypeOf(time.Time{}):
		v.Set(reflect.ValueOf(t))
	case reflect.TypeOf(&time.Time{}):
		v.Set(reflect.ValueOf(&t))
	case reflect.TypeOf(sql.NullTime{}):
		v.Set(reflect.ValueOf(sql.NullTime{Time: t, Valid: true}))
	case reflect.TypeOf(schema.NullTime{}):
		v.Set(reflect.ValueOf(schema.NullTime{Time: t}))
	default:
		return fmt.Errorf("cannot store a timestamp in %s", v.Type())
	}
	return nil
}
