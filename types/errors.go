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
	"errors"
	"fmt"
	"time"
)

// Sentinel errors. Match them with errors.Is; use errors.As with the typed
// errors below to read the details.
var (
	ErrUnknownFilterField   = errors.New("unknown filter field")
	ErrInvalidFilterValue   = errors.New("invalid filter value")
	ErrMultipleResults      = errors.New("multiple results")
	ErrNotFound             = errors.New("record not found")
	ErrConstraintViolation  = errors.New("constraint violation")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrPoolExhausted        = errors.New("connection pool exhausted")
	ErrTransactionFailed    = errors.New("transaction failed")
)

// FilterErrorKind tells apart the two ways a filter can be rejected.
type FilterErrorKind int

const (
	UnknownField FilterErrorKind = iota
	InvalidValue
)

// FilterError reports a filter, order or change set that cannot be compiled
// against a schema.
type FilterError struct {
	Kind   FilterErrorKind
	Model  string
	Field  string
	Value  any
	Reason string
}

func (e *FilterError) Error() string {
	if e.Kind == UnknownField {
		return fmt.Sprintf("%s: unknown field %q", e.Model, e.Field)
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: invalid value %v for field %q: %s", e.Model, e.Value, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: invalid value %v for field %q", e.Model, e.Value, e.Field)
}

func (e *FilterError) Is(target error) bool {
	if e.Kind == UnknownField {
		return target == ErrUnknownFilterField
	}
	return target == ErrInvalidFilterValue
}

// NewUnknownFieldError reports a field that the schema does not define.
func NewUnknownFieldError(model, field string) error {
	return &FilterError{Kind: UnknownField, Model: model, Field: field}
}

// NewInvalidValueError reports a value that cannot be used for field.
func NewInvalidValueError(model, field string, value any, reason string) error {
	return &FilterError{Kind: InvalidValue, Model: model, Field: field, Value: value, Reason: reason}
}

// MultipleResultsError is returned by single-record lookups that matched more
// than one row.
type MultipleResultsError struct {
	Model string
}

func (e *MultipleResultsError) Error() string {
	return fmt.Sprintf("%s: filter matched more than one record", e.Model)
}

func (e *MultipleResultsError) Is(target error) bool {
	return target == ErrMultipleResults
}

// NotFoundError is returned by writes addressed to a missing primary key.
type NotFoundError struct {
	Model string
	Key   any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with key %v not found", e.Model, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConstraintError wraps a store-level integrity failure such as a duplicate
// key or a foreign key violation.
type ConstraintError struct {
	Model string
	Kind  string
	Err   error
}

func (e *ConstraintError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("constraint violation (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: constraint violation (%s): %v", e.Model, e.Kind, e.Err)
}

func (e *ConstraintError) Is(target error) bool {
	return target == ErrConstraintViolation
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// UnsupportedError is returned when an operation does not apply to a model,
// e.g. soft delete on a table without soft-delete columns.
type UnsupportedError struct {
	Model     string
	Operation string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: operation %s is not supported", e.Model, e.Operation)
}

func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupportedOperation
}

// PoolExhaustedError is returned when no connection became available within
// the acquisition timeout.
type PoolExhaustedError struct {
	Size int
	Wait time.Duration
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("no connection available from pool of %d after %s", e.Size, e.Wait)
}

func (e *PoolExhaustedError) Is(target error) bool {
	return target == ErrPoolExhausted
}

// TransactionError wraps a failure to begin, commit or run a session.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Op, e.Err)
}

func (e *TransactionError) Is(target error) bool {
	return target == ErrTransactionFailed
}

func (e *TransactionError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsFilterError reports whether err rejected a filter, either for an unknown
// field or for an invalid value.
func IsFilterError(err error) bool {
	return errors.Is(err, ErrUnknownFilterField) || errors.Is(err, ErrInvalidFilterValue)
}

// IsTaxonomyError reports whether err already belongs to the error kinds above.
func IsTaxonomyError(err error) bool {
	for _, target := range []error{
		ErrUnknownFilterField,
		ErrInvalidFilterValue,
		ErrMultipleResults,
		ErrNotFound,
		ErrConstraintViolation,
		ErrUnsupportedOperation,
		ErrPoolExhausted,
		ErrTransactionFailed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
