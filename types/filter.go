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
	"sort"
	"strings"
)

// Operator is a comparison applied by a filter condition.
type Operator int

const (
	OpEq Operator = iota
	OpIn
	OpGte
	OpLte
)

var _ BaseEnum = OpEq

var operatorNames = map[Operator]string{
	OpEq:  "eq",
	OpIn:  "in",
	OpGte: "gte",
	OpLte: "lte",
}

func (o Operator) IsValid() bool {
	_, ok := operatorNames[o]
	return ok
}

func (o Operator) Number() int {
	if !o.IsValid() {
		return IllegalValue
	}
	return int(o)
}

func (o Operator) String() string { return o.Name() }

func (o Operator) Name() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return IllegalName
}

func (o Operator) Desc() string {
	switch o {
	case OpEq:
		return "equal to"
	case OpIn:
		return "member of"
	case OpGte:
		return "greater than or equal to"
	case OpLte:
		return "less than or equal to"
	default:
		return IllegalDesc
	}
}

// ParseOperator maps an operator name to an Operator. The empty name is OpEq.
func ParseOperator(s string) (Operator, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return OpEq, true
	}
	for op, name := range operatorNames {
		if name == s {
			return op, true
		}
	}
	return Operator(IllegalValue), false
}

// Condition constrains one field. Value holds the raw, uncoerced input.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// FilterSpec is a conjunction of conditions.
type FilterSpec []Condition

// Eq matches records whose field equals value. A nil value matches NULL.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Operator: OpEq, Value: value}
}

// In matches records whose field is one of values. A single slice or
// comma-separated string argument is used as the list itself.
func In(field string, values ...any) Condition {
	if len(values) == 1 {
		return Condition{Field: field, Operator: OpIn, Value: values[0]}
	}
	return Condition{Field: field, Operator: OpIn, Value: values}
}

func Gte(field string, value any) Condition {
	return Condition{Field: field, Operator: OpGte, Value: value}
}

func Lte(field string, value any) Condition {
	return Condition{Field: field, Operator: OpLte, Value: value}
}

// Where builds a FilterSpec from conditions.
func Where(conds ...Condition) FilterSpec {
	return append(FilterSpec(nil), conds...)
}

// And returns a new spec holding the conditions of f followed by conds.
func (f FilterSpec) And(conds ...Condition) FilterSpec {
	out := make(FilterSpec, 0, len(f)+len(conds))
	out = append(out, f...)
	return append(out, conds...)
}

// Has reports whether some condition targets field.
func (f FilterSpec) Has(field string) bool {
	for _, c := range f {
		if c.Field == field {
			return true
		}
	}
	return false
}

// OperatorSeparator splits a map key into a field and an operator,
// e.g. "age__gte".
const OperatorSeparator = "__"

// FilterFromMap builds a FilterSpec from a field/value map, the form in which
// filters usually arrive from query strings. Keys may carry an operator
// suffix ("age__gte"); a key without one compares for equality. Conditions
// are ordered by key so the compiled SQL is stable.
func FilterFromMap(m map[string]any) FilterSpec {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	spec := make(FilterSpec, 0, len(keys))
	for _, k := range keys {
		field, op := k, OpEq
		if i := strings.LastIndex(k, OperatorSeparator); i > 0 {
			if parsed, ok := ParseOperator(k[i+len(OperatorSeparator):]); ok {
				field, op = k[:i], parsed
			}
		}
		spec = append(spec, Condition{Field: field, Operator: op, Value: m[k]})
	}
	return spec
}
