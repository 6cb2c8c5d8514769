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
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun/schema"
)

// FieldType is the semantic type a raw filter value is coerced to.
type FieldType int

const (
	FieldUnknown FieldType = iota
	FieldInteger
	FieldFloat
	FieldBoolean
	FieldString
	FieldTimestamp
	FieldDecimal
	FieldUUID
)

var _ BaseEnum = FieldInteger

var fieldTypeNames = map[FieldType]string{
	FieldUnknown:   "unknown",
	FieldInteger:   "integer",
	FieldFloat:     "float",
	FieldBoolean:   "boolean",
	FieldString:    "string",
	FieldTimestamp: "timestamp",
	FieldDecimal:   "decimal",
	FieldUUID:      "uuid",
}

func (t FieldType) IsValid() bool {
	_, ok := fieldTypeNames[t]
	return ok
}

func (t FieldType) Number() int {
	if !t.IsValid() {
		return IllegalValue
	}
	return int(t)
}

func (t FieldType) String() string { return t.Name() }

func (t FieldType) Name() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return IllegalName
}

func (t FieldType) Desc() string {
	if t == FieldUnknown {
		return "opaque value compared as-is"
	}
	return t.Name() + " column"
}

// Default soft-delete and audit column names.
const (
	DefaultSoftDeleteFlag = "is_deleted"
	DefaultDeletedAt      = "deleted_at"
	DefaultUpdatedAt      = "updated_at"
)

// Field describes one column of a record type.
type Field struct {
	Column        string
	GoName        string
	Type          FieldType
	Nullable      bool
	PrimaryKey    bool
	AutoIncrement bool
	// Index is the reflect index of the struct field, nil for schemas that
	// were not derived from a struct.
	Index []int
}

// Schema describes the columns of a record type: its fields, its single
// primary key and the optional soft-delete and updated_at columns.
type Schema struct {
	Model          string
	Fields         []Field
	PK             string
	SoftDeleteFlag string
	DeletedAt      string
	UpdatedAt      string

	byColumn map[string]int
	byGoName map[string]int
}

// SchemaOption customizes the soft-delete and audit columns of a schema.
type SchemaOption func(*schemaOptions)

type schemaOptions struct {
	flag      string
	deletedAt string
	updatedAt string
}

// WithSoftDeleteColumns overrides the soft-delete column names. Pass empty
// names to disable soft delete for a type that happens to have the columns.
func WithSoftDeleteColumns(flag, deletedAt string) SchemaOption {
	return func(o *schemaOptions) {
		o.flag = flag
		o.deletedAt = deletedAt
	}
}

// WithUpdatedAtColumn overrides the column refreshed on every update.
func WithUpdatedAtColumn(column string) SchemaOption {
	return func(o *schemaOptions) {
		o.updatedAt = column
	}
}

// NewSchema builds a schema from explicit field descriptions. Exactly one
// field must be the primary key.
func NewSchema(model string, fields []Field, opts ...SchemaOption) (*Schema, error) {
	o := &schemaOptions{
		flag:      DefaultSoftDeleteFlag,
		deletedAt: DefaultDeletedAt,
		updatedAt: DefaultUpdatedAt,
	}
	for _, opt := range opts {
		opt(o)
	}

	s := &Schema{
		Model:    model,
		Fields:   make([]Field, len(fields)),
		byColumn: make(map[string]int, len(fields)),
		byGoName: make(map[string]int, len(fields)),
	}
	copy(s.Fields, fields)

	for i, f := range s.Fields {
		if f.Column == "" {
			return nil, fmt.Errorf("%s: field %d has no column name", model, i)
		}
		if _, dup := s.byColumn[f.Column]; dup {
			return nil, fmt.Errorf("%s: duplicate column %q", model, f.Column)
		}
		s.byColumn[f.Column] = i
		if f.GoName != "" {
			s.byGoName[f.GoName] = i
		}
		if f.PrimaryKey {
			if s.PK != "" {
				return nil, fmt.Errorf("%s: composite primary keys are not supported", model)
			}
			s.PK = f.Column
		}
	}
	if s.PK == "" {
		return nil, fmt.Errorf("%s: no primary key column", model)
	}

	if f, ok := s.Lookup(o.flag); ok && f.Type == FieldBoolean {
		s.SoftDeleteFlag = f.Column
		if d, ok := s.Lookup(o.deletedAt); ok && d.Type == FieldTimestamp {
			s.DeletedAt = d.Column
		}
	}
	if f, ok := s.Lookup(o.updatedAt); ok && f.Type == FieldTimestamp {
		s.UpdatedAt = f.Column
	}
	return s, nil
}

// DescribeTable derives a schema from bun's table metadata.
func DescribeTable(table *schema.Table, opts ...SchemaOption) (*Schema, error) {
	if table == nil {
		return nil, fmt.Errorf("table metadata is nil")
	}
	if len(table.PKs) != 1 {
		return nil, fmt.Errorf("%s: expected exactly one primary key, got %d", table.Name, len(table.PKs))
	}
	fields := make([]Field, 0, len(table.Fields))
	for _, f := range table.Fields {
		typ, nullable := classify(f.IndirectType)
		fields = append(fields, Field{
			Column:        f.Name,
			GoName:        f.GoName,
			Type:          typ,
			Nullable:      f.IsPtr || nullable,
			PrimaryKey:    f.IsPK,
			AutoIncrement: f.AutoIncrement,
			Index:         f.Index,
		})
	}
	return NewSchema(table.Name, fields, opts...)
}

var (
	timeType        = reflect.TypeOf(time.Time{})
	decimalType     = reflect.TypeOf(decimal.Decimal{})
	nullDecimalType = reflect.TypeOf(decimal.NullDecimal{})
	uuidType        = reflect.TypeOf(uuid.UUID{})
	nullUUIDType    = reflect.TypeOf(uuid.NullUUID{})
	nullStringType  = reflect.TypeOf(sql.NullString{})
	nullInt64Type   = reflect.TypeOf(sql.NullInt64{})
	nullInt32Type   = reflect.TypeOf(sql.NullInt32{})
	nullInt16Type   = reflect.TypeOf(sql.NullInt16{})
	nullFloatType   = reflect.TypeOf(sql.NullFloat64{})
	nullBoolType    = reflect.TypeOf(sql.NullBool{})
	nullTimeType    = reflect.TypeOf(sql.NullTime{})
	bunNullTimeType = reflect.TypeOf(schema.NullTime{})
)

func classify(t reflect.Type) (FieldType, bool) {
	switch t {
	case timeType:
		return FieldTimestamp, false
	case nullTimeType, bunNullTimeType:
		return FieldTimestamp, true
	case decimalType:
		return FieldDecimal, false
	case nullDecimalType:
		return FieldDecimal, true
	case uuidType:
		return FieldUUID, false
	case nullUUIDType:
		return FieldUUID, true
	case nullStringType:
		return FieldString, true
	case nullInt64Type, nullInt32Type, nullInt16Type:
		return FieldInteger, true
	case nullFloatType:
		return FieldFloat, true
	case nullBoolType:
		return FieldBoolean, true
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return FieldInteger, false
	case reflect.Float32, reflect.Float64:
		return FieldFloat, false
	case reflect.Bool:
		return FieldBoolean, false
	case reflect.String:
		return FieldString, false
	}
	return FieldUnknown, false
}

// Lookup resolves a name to a field, by column name first and then by Go
// struct field name.
func (s *Schema) Lookup(name string) (*Field, bool) {
	if i, ok := s.byColumn[name]; ok {
		return &s.Fields[i], true
	}
	if i, ok := s.byGoName[name]; ok {
		return &s.Fields[i], true
	}
	return nil, false
}

// PrimaryKey returns the primary key field.
func (s *Schema) PrimaryKey() *Field {
	f, _ := s.Lookup(s.PK)
	return f
}

// SupportsSoftDelete reports whether the type carries a soft-delete flag.
func (s *Schema) SupportsSoftDelete() bool {
	return s.SoftDeleteFlag != ""
}
