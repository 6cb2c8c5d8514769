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
	"fmt"
	"reflect"
	"strings"

	"github.com/tomoncle/crudkit/types"
	"github.com/uptrace/bun"
)

// Clause is one compiled condition. Value is already coerced; it is a
// []any for OpIn and nil for an IS NULL test.
type Clause struct {
	Column   string
	Operator types.Operator
	Value    any
}

// Expr renders the clause as a bun WHERE expression with its arguments.
func (c Clause) Expr() (string, []any) {
	col := bun.Ident(c.Column)
	switch c.Operator {
	case types.OpIn:
		return "? IN (?)", []any{col, bun.In(c.Value)}
	case types.OpGte:
		return "? >= ?", []any{col, c.Value}
	case types.OpLte:
		return "? <= ?", []any{col, c.Value}
	default:
		if c.Value == nil {
			return "? IS NULL", []any{col}
		}
		return "? = ?", []any{col, c.Value}
	}
}

// Predicate is an immutable conjunction of clauses.
type Predicate struct {
	clauses []Clause
}

// Clauses returns a copy of the compiled clauses.
func (p *Predicate) Clauses() []Clause {
	if p == nil {
		return nil
	}
	out := make([]Clause, len(p.clauses))
	copy(out, p.clauses)
	return out
}

func (p *Predicate) Len() int {
	if p == nil {
		return 0
	}
	return len(p.clauses)
}

// And returns a new predicate with clauses appended; p is left unchanged.
func (p *Predicate) And(clauses ...Clause) *Predicate {
	out := &Predicate{clauses: make([]Clause, 0, p.Len()+len(clauses))}
	if p != nil {
		out.clauses = append(out.clauses, p.clauses...)
	}
	out.clauses = append(out.clauses, clauses...)
	return out
}

// Constrains reports whether some clause tests column.
func (p *Predicate) Constrains(column string) bool {
	if p == nil {
		return false
	}
	for _, c := range p.clauses {
		if c.Column == column {
			return true
		}
	}
	return false
}

func (p *Predicate) String() string {
	if p.Len() == 0 {
		return "TRUE"
	}
	parts := make([]string, 0, len(p.clauses))
	for _, c := range p.clauses {
		parts = append(parts, fmt.Sprintf("%s %s %v", c.Column, c.Operator, c.Value))
	}
	return strings.Join(parts, " AND ")
}

// Apply adds the predicate to any bun query that has a Where method.
func Apply[Q interface{ Where(string, ...any) Q }](q Q, p *Predicate) Q {
	if p == nil {
		return q
	}
	for _, c := range p.clauses {
		expr, args := c.Expr()
		q = q.Where(expr, args...)
	}
	return q
}

// Compile validates spec against s and returns the predicate it describes.
// It fails with types.ErrUnknownFilterField for a field s does not define
// and with types.ErrInvalidFilterValue for a value that cannot be coerced.
// An empty spec compiles to an empty predicate.
func Compile(s *types.Schema, spec types.FilterSpec) (*Predicate, error) {
	p := &Predicate{clauses: make([]Clause, 0, len(spec))}
	for _, cond := range spec {
		c, err := compileCondition(s, cond)
		if err != nil {
			return nil, err
		}
		p.clauses = append(p.clauses, c)
	}
	return p, nil
}

func compileCondition(s *types.Schema, cond types.Condition) (Clause, error) {
	f, ok := s.Lookup(cond.Field)
	if !ok {
		return Clause{}, types.NewUnknownFieldError(s.Model, cond.Field)
	}
	invalid := func(reason string) error {
		return types.NewInvalidValueError(s.Model, cond.Field, cond.Value, reason)
	}

	switch cond.Operator {
	case types.OpEq:
		v, err := Value(f, cond.Value)
		if err != nil {
			return Clause{}, invalid(err.Error())
		}
		return Clause{Column: f.Column, Operator: types.OpEq, Value: v}, nil

	case types.OpIn:
		items, err := listItems(cond.Value)
		if err != nil {
			return Clause{}, invalid(err.Error())
		}
		values := make([]any, 0, len(items))
		for _, item := range items {
			if isNull(f, item) {
				return Clause{}, invalid("null is not allowed in a list")
			}
			v, err := Value(f, item)
			if err != nil {
				return Clause{}, invalid(err.Error())
			}
			values = append(values, v)
		}
		return Clause{Column: f.Column, Operator: types.OpIn, Value: values}, nil

	case types.OpGte, types.OpLte:
		if f.Type == types.FieldBoolean || f.Type == types.FieldUUID {
			return Clause{}, invalid(fmt.Sprintf("operator %s does not apply to %s fields", cond.Operator, f.Type))
		}
		if isNull(f, cond.Value) {
			return Clause{}, invalid(fmt.Sprintf("operator %s needs a value", cond.Operator))
		}
		v, err := Value(f, cond.Value)
		if err != nil {
			return Clause{}, invalid(err.Error())
		}
		return Clause{Column: f.Column, Operator: cond.Operator, Value: v}, nil
	}
	return Clause{}, invalid(fmt.Sprintf("unsupported operator %d", cond.Operator))
}

// listItems flattens the operand of OpIn. Strings are split on commas.
func listItems(raw any) ([]any, error) {
	if s, ok := raw.(string); ok {
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("empty list")
		}
		parts := strings.Split(s, ",")
		items := make([]any, len(parts))
		for i, part := range parts {
			items[i] = strings.TrimSpace(part)
		}
		return items, nil
	}
	if raw == nil {
		return nil, fmt.Errorf("empty list")
	}
	if _, ok := raw.([]byte); ok {
		return []any{raw}, nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice {
		return []any{raw}, nil
	}
	if rv.Len() == 0 {
		return nil, fmt.Errorf("empty list")
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}
