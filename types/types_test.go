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

package types

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type account struct {
	bun.BaseModel `bun:"table:accounts"`

	ID        int64           `bun:"id,pk,autoincrement"`
	Name      string          `bun:"name,notnull"`
	Balance   decimal.Decimal `bun:"balance"`
	Token     uuid.UUID       `bun:"token"`
	Score     *float64        `bun:"score"`
	Active    bool            `bun:"active"`
	IsDeleted bool            `bun:"is_deleted"`
	DeletedAt *time.Time      `bun:"deleted_at"`
	UpdatedAt time.Time       `bun:"updated_at"`
}

type plain struct {
	bun.BaseModel `bun:"table:plains"`

	Code  string        `bun:"code,pk"`
	Count sql.NullInt64 `bun:"count"`
}

func tableOf(t *testing.T, model any) *Schema {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqldb.Close() })
	db := bun.NewDB(sqldb, sqlitedialect.New())
	s, err := DescribeTable(db.Table(reflect.TypeOf(model).Elem()))
	require.NoError(t, err)
	return s
}

func TestDescribeTable(t *testing.T) {
	s := tableOf(t, (*account)(nil))

	assert.Equal(t, "accounts", s.Model)
	assert.Equal(t, "id", s.PK)
	assert.True(t, s.SupportsSoftDelete())
	assert.Equal(t, "is_deleted", s.SoftDeleteFlag)
	assert.Equal(t, "deleted_at", s.DeletedAt)
	assert.Equal(t, "updated_at", s.UpdatedAt)

	tests := []struct {
		name     string
		typ      FieldType
		nullable bool
	}{
		{"id", FieldInteger, false},
		{"name", FieldString, false},
		{"balance", FieldDecimal, false},
		{"token", FieldUUID, false},
		{"score", FieldFloat, true},
		{"active", FieldBoolean, false},
		{"deleted_at", FieldTimestamp, true},
		{"updated_at", FieldTimestamp, false},
	}
	for _, tt := range tests {
		f, ok := s.Lookup(tt.name)
		require.True(t, ok, tt.name)
		assert.Equal(t, tt.typ, f.Type, tt.name)
		assert.Equal(t, tt.nullable, f.Nullable, tt.name)
	}

	byGo, ok := s.Lookup("DeletedAt")
	require.True(t, ok)
	assert.Equal(t, "deleted_at", byGo.Column)

	_, ok = s.Lookup("missing")
	assert.False(t, ok)
}

func TestDescribeTableWithoutSoftDelete(t *testing.T) {
	s := tableOf(t, (*plain)(nil))
	assert.False(t, s.SupportsSoftDelete())
	assert.Empty(t, s.UpdatedAt)
	f, ok := s.Lookup("count")
	require.True(t, ok)
	assert.Equal(t, FieldInteger, f.Type)
	assert.True(t, f.Nullable)
	assert.Equal(t, FieldString, s.PrimaryKey().Type)
}

func TestNewSchema(t *testing.T) {
	_, err := NewSchema("things", []Field{{Column: "a"}})
	assert.Error(t, err)

	_, err = NewSchema("things", []Field{
		{Column: "a", PrimaryKey: true},
		{Column: "b", PrimaryKey: true},
	})
	assert.Error(t, err)

	s, err := NewSchema("things", []Field{
		{Column: "id", Type: FieldInteger, PrimaryKey: true},
		{Column: "removed", Type: FieldBoolean},
		{Column: "is_deleted", Type: FieldString},
	}, WithSoftDeleteColumns("removed", "removed_at"))
	require.NoError(t, err)
	assert.Equal(t, "removed", s.SoftDeleteFlag)
	assert.Empty(t, s.DeletedAt)

	s, err = NewSchema("things", []Field{
		{Column: "id", Type: FieldInteger, PrimaryKey: true},
		{Column: "is_deleted", Type: FieldString},
	})
	require.NoError(t, err)
	assert.False(t, s.SupportsSoftDelete(), "a non-boolean flag column is not a soft-delete flag")
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		err    error
		target error
	}{
		{NewUnknownFieldError("m", "f"), ErrUnknownFilterField},
		{NewInvalidValueError("m", "f", "x", "bad"), ErrInvalidFilterValue},
		{&MultipleResultsError{Model: "m"}, ErrMultipleResults},
		{&NotFoundError{Model: "m", Key: 1}, ErrNotFound},
		{&ConstraintError{Model: "m", Kind: "duplicate key", Err: errors.New("boom")}, ErrConstraintViolation},
		{&UnsupportedError{Model: "m", Operation: "soft_delete"}, ErrUnsupportedOperation},
		{&PoolExhaustedError{Size: 1, Wait: time.Second}, ErrPoolExhausted},
		{&TransactionError{Op: "commit", Err: errors.New("boom")}, ErrTransactionFailed},
	}
	for _, tt := range tests {
		wrapped := fmt.Errorf("wrapped: %w", tt.err)
		assert.ErrorIs(t, wrapped, tt.target)
		assert.True(t, IsTaxonomyError(wrapped))
		assert.NotEmpty(t, tt.err.Error())
	}

	assert.NotErrorIs(t, NewUnknownFieldError("m", "f"), ErrInvalidFilterValue)
	assert.True(t, IsFilterError(NewInvalidValueError("m", "f", 1, "")))
	assert.False(t, IsTaxonomyError(errors.New("plain")))

	var fe *FilterError
	require.ErrorAs(t, NewInvalidValueError("m", "age", "x", "not a number"), &fe)
	assert.Equal(t, "age", fe.Field)
	assert.Equal(t, InvalidValue, fe.Kind)

	cause := errors.New("driver")
	assert.ErrorIs(t, &ConstraintError{Err: cause}, cause)
}

func TestFilterFromMap(t *testing.T) {
	spec := FilterFromMap(map[string]any{
		"name":      "a",
		"age__gte":  "18",
		"id__in":    "1,2",
		"odd__name": 1,
	})
	require.Len(t, spec, 4)
	assert.Equal(t, Condition{Field: "age", Operator: OpGte, Value: "18"}, spec[0])
	assert.Equal(t, Condition{Field: "id", Operator: OpIn, Value: "1,2"}, spec[1])
	assert.Equal(t, Condition{Field: "name", Operator: OpEq, Value: "a"}, spec[2])
	assert.Equal(t, Condition{Field: "odd__name", Operator: OpEq, Value: 1}, spec[3])
	assert.True(t, spec.Has("age"))
	assert.False(t, spec.Has("age__gte"))
}

func TestFilterSpecAndIsImmutable(t *testing.T) {
	base := Where(Eq("name", "a"))
	extended := base.And(Gte("age", 1))
	assert.Len(t, base, 1)
	assert.Len(t, extended, 2)
	assert.Equal(t, Condition{Field: "id", Operator: OpIn, Value: []int{1, 2}}, In("id", []int{1, 2}))
	assert.Equal(t, Condition{Field: "id", Operator: OpIn, Value: []any{1, 2}}, In("id", 1, 2))
}

func TestEnums(t *testing.T) {
	op, ok := ParseOperator("GTE")
	assert.True(t, ok)
	assert.Equal(t, OpGte, op)
	op, ok = ParseOperator("")
	assert.True(t, ok)
	assert.Equal(t, OpEq, op)
	_, ok = ParseOperator("like")
	assert.False(t, ok)
	assert.Equal(t, IllegalValue, Operator(42).Number())
	assert.Equal(t, IllegalName, Operator(42).Name())

	d, ok := ParseDirection("")
	assert.True(t, ok)
	assert.Equal(t, Desc, d)
	d, ok = ParseDirection("ASC")
	assert.True(t, ok)
	assert.Equal(t, "ASC", d.SQL())
	_, ok = ParseDirection("sideways")
	assert.False(t, ok)

	assert.Equal(t, "decimal", FieldDecimal.String())
	assert.False(t, FieldType(99).IsValid())
}

func TestPageRequest(t *testing.T) {
	p := NewPageRequest(-5, 0)
	assert.Equal(t, 0, p.GetOffset())
	assert.Equal(t, 100, p.GetLimit(100, 1000))

	p = NewPageRequest(10, 5000).OrderBy("name", "asc").WithTotal()
	assert.Equal(t, 1000, p.GetLimit(100, 1000))
	assert.Equal(t, "name", p.GetOrderBy())
	assert.Equal(t, "asc", p.GetDirection())
	assert.True(t, p.IncludeTotal())

	p = NewPageRequestFromPage(3, 20)
	assert.Equal(t, 40, p.GetOffset())
	assert.Equal(t, 20, p.GetLimit(0, 0))
}
