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

package query

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/crudkit/types"
	"github.com/uptrace/bun"
)

func testSchema(t *testing.T) *types.Schema {
	t.Helper()
	s, err := types.NewSchema("users", []types.Field{
		{Column: "id", GoName: "ID", Type: types.FieldInteger, PrimaryKey: true},
		{Column: "name", GoName: "Name", Type: types.FieldString},
		{Column: "age", GoName: "Age", Type: types.FieldInteger, Nullable: true},
		{Column: "score", Type: types.FieldFloat},
		{Column: "active", Type: types.FieldBoolean},
		{Column: "born_at", Type: types.FieldTimestamp, Nullable: true},
		{Column: "balance", Type: types.FieldDecimal},
		{Column: "token", Type: types.FieldUUID},
		{Column: "is_deleted", Type: types.FieldBoolean},
	})
	require.NoError(t, err)
	return s
}

func TestCompileCoercesValues(t *testing.T) {
	s := testSchema(t)
	token := uuid.New()

	tests := []struct {
		name string
		cond types.Condition
		want any
	}{
		{"integer string", types.Eq("id", "123"), int64(123)},
		{"integer from integral float", types.Eq("id", 7.0), int64(7)},
		{"integer from int", types.Eq("id", 5), int64(5)},
		{"integer from uint64", types.Eq("id", uint64(math.MaxInt64)), int64(math.MaxInt64)},
		{"float string", types.Eq("score", "1.5"), 1.5},
		{"bool yes", types.Eq("active", "yes"), true},
		{"bool t", types.Eq("active", "T"), true},
		{"bool n", types.Eq("active", "n"), false},
		{"bool zero", types.Eq("active", 0), false},
		{"string stays string", types.Eq("name", "null"), "null"},
		{"number as string", types.Eq("name", 42), "42"},
		{"date", types.Eq("born_at", "2024-01-02"), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"datetime", types.Eq("born_at", "2024-01-02 03:04:05"), time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"decimal", types.Eq("balance", "10.25"), decimal.RequireFromString("10.25")},
		{"uuid", types.Eq("token", token.String()), token},
		{"null literal", types.Eq("age", "None"), nil},
		{"nil", types.Eq("born_at", nil), nil},
		{"go field name", types.Eq("Age", "30"), int64(30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(s, types.Where(tt.cond))
			require.NoError(t, err)
			clauses := p.Clauses()
			require.Len(t, clauses, 1)
			if d, ok := tt.want.(decimal.Decimal); ok {
				assert.True(t, d.Equal(clauses[0].Value.(decimal.Decimal)))
				return
			}
			assert.Equal(t, tt.want, clauses[0].Value)
		})
	}
}

func TestCompileRejects(t *testing.T) {
	s := testSchema(t)

	tests := []struct {
		name   string
		cond   types.Condition
		target error
	}{
		{"unknown field", types.Eq("nope", 1), types.ErrUnknownFilterField},
		{"not an integer", types.Eq("id", "abc"), types.ErrInvalidFilterValue},
		{"fractional integer", types.Eq("id", 1.5), types.ErrInvalidFilterValue},
		{"hex string", types.Eq("id", "0x10"), types.ErrInvalidFilterValue},
		{"bool as integer", types.Eq("id", true), types.ErrInvalidFilterValue},
		{"uint64 overflow", types.Eq("id", uint64(math.MaxUint64)), types.ErrInvalidFilterValue},
		{"uint overflow", types.Eq("id", uint(math.MaxInt64)+1), types.ErrInvalidFilterValue},
		{"float overflow", types.Eq("id", 1e30), types.ErrInvalidFilterValue},
		{"bad bool", types.Eq("active", "maybe"), types.ErrInvalidFilterValue},
		{"bool out of range", types.Eq("active", 2), types.ErrInvalidFilterValue},
		{"bad date", types.Eq("born_at", "yesterday"), types.ErrInvalidFilterValue},
		{"bad uuid", types.Eq("token", "xyz"), types.ErrInvalidFilterValue},
		{"null on non-nullable", types.Eq("id", nil), types.ErrInvalidFilterValue},
		{"empty in", types.In("id"), types.ErrInvalidFilterValue},
		{"empty in slice", types.In("id", []int{}), types.ErrInvalidFilterValue},
		{"empty in string", types.In("id", ""), types.ErrInvalidFilterValue},
		{"bad in member", types.In("id", "1,x"), types.ErrInvalidFilterValue},
		{"null in list", types.In("age", []any{1, nil}), types.ErrInvalidFilterValue},
		{"range on bool", types.Gte("active", true), types.ErrInvalidFilterValue},
		{"range without value", types.Lte("age", nil), types.ErrInvalidFilterValue},
		{"unknown operator", types.Condition{Field: "id", Operator: types.Operator(9), Value: 1}, types.ErrInvalidFilterValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(s, types.Where(tt.cond))
			assert.Nil(t, p)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestCompileInAndRanges(t *testing.T) {
	s := testSchema(t)

	p, err := Compile(s, types.Where(
		types.In("id", "1, 2,3"),
		types.Gte("age", "18"),
		types.Lte("score", 9),
	))
	require.NoError(t, err)
	clauses := p.Clauses()
	require.Len(t, clauses, 3)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, clauses[0].Value)
	assert.Equal(t, types.OpGte, clauses[1].Operator)
	assert.Equal(t, int64(18), clauses[1].Value)
	assert.Equal(t, float64(9), clauses[2].Value)

	p, err = Compile(s, types.Where(types.In("id", []string{"4", "5"})))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(4), int64(5)}, p.Clauses()[0].Value)
}

func TestCompileStopsAtFirstError(t *testing.T) {
	s := testSchema(t)
	_, err := Compile(s, types.Where(types.Eq("id", 1), types.Eq("ghost", 1), types.Eq("id", "x")))
	var fe *types.FilterError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "ghost", fe.Field)
	assert.Equal(t, "users", fe.Model)
}

func TestEmptySpec(t *testing.T) {
	p, err := Compile(testSchema(t), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, "TRUE", p.String())
}

func TestPredicateAndIsImmutable(t *testing.T) {
	p, err := Compile(testSchema(t), types.Where(types.Eq("name", "a")))
	require.NoError(t, err)

	q := p.And(Clause{Column: "is_deleted", Operator: types.OpEq, Value: false})
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, 2, q.Len())
	assert.False(t, p.Constrains("is_deleted"))
	assert.True(t, q.Constrains("is_deleted"))

	var empty *Predicate
	assert.Equal(t, 1, empty.And(Clause{Column: "id", Value: 1}).Len())
}

func TestClauseExpr(t *testing.T) {
	tests := []struct {
		clause Clause
		expr   string
		args   int
	}{
		{Clause{Column: "a", Operator: types.OpEq, Value: 1}, "? = ?", 2},
		{Clause{Column: "a", Operator: types.OpEq, Value: nil}, "? IS NULL", 1},
		{Clause{Column: "a", Operator: types.OpIn, Value: []any{1}}, "? IN (?)", 2},
		{Clause{Column: "a", Operator: types.OpGte, Value: 1}, "? >= ?", 2},
		{Clause{Column: "a", Operator: types.OpLte, Value: 1}, "? <= ?", 2},
	}
	for _, tt := range tests {
		expr, args := tt.clause.Expr()
		assert.Equal(t, tt.expr, expr)
		require.Len(t, args, tt.args)
		assert.Equal(t, bun.Ident("a"), args[0])
	}
}

type recordingQuery struct {
	wheres []string
}

func (q *recordingQuery) Where(expr string, args ...any) *recordingQuery {
	q.wheres = append(q.wheres, expr)
	return q
}

func TestApply(t *testing.T) {
	p, err := Compile(testSchema(t), types.Where(types.Eq("name", "a"), types.Eq("age", nil)))
	require.NoError(t, err)

	q := Apply(&recordingQuery{}, p)
	assert.Equal(t, []string{"? = ?", "? IS NULL"}, q.wheres)

	q = Apply(&recordingQuery{}, nil)
	assert.Empty(t, q.wheres)
}
