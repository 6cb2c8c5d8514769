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
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/tomoncle/crudkit/types"
)

// Accepted timestamp layouts, tried in order. Values without a zone are
// read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

var (
	errNotNullable = errors.New("field is not nullable")
	errBadBool     = errors.New("not a boolean")
)

// Coerce resolves name against s and converts raw to the field's semantic
// type. The result is nil for NULL.
func Coerce(s *types.Schema, name string, raw any) (*types.Field, any, error) {
	f, ok := s.Lookup(name)
	if !ok {
		return nil, nil, types.NewUnknownFieldError(s.Model, name)
	}
	v, err := Value(f, raw)
	if err != nil {
		return f, nil, types.NewInvalidValueError(s.Model, name, raw, err.Error())
	}
	return f, v, nil
}

// Value converts raw to the semantic type of f. For non-string fields the
// strings "null" and "none" mean NULL.
func Value(f *types.Field, raw any) (any, error) {
	if isNull(f, raw) {
		if !f.Nullable {
			return nil, errNotNullable
		}
		return nil, nil
	}
	raw = deref(raw)

	switch f.Type {
	case types.FieldInteger:
		return toInteger(raw)
	case types.FieldFloat:
		return toFloat(raw)
	case types.FieldBoolean:
		return toBoolean(raw)
	case types.FieldString:
		return cast.ToStringE(raw)
	case types.FieldTimestamp:
		return toTimestamp(raw)
	case types.FieldDecimal:
		return toDecimal(raw)
	case types.FieldUUID:
		return toUUID(raw)
	default:
		return raw, nil
	}
}

func isNull(f *types.Field, raw any) bool {
	if raw == nil {
		return true
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return true
	}
	if s, ok := raw.(string); ok && f.Type != types.FieldString {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "null", "none":
			return true
		}
	}
	return false
}

func deref(raw any) any {
	rv := reflect.ValueOf(raw)
	for rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}
	return rv.Interface()
}

func toInteger(raw any) (int64, error) {
	switch v := raw.(type) {
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case bool:
		return 0, fmt.Errorf("cannot use boolean %v as integer", v)
	case float32:
		return integral(float64(v))
	case float64:
		return integral(v)
	case uint:
		return unsigned(uint64(v))
	case uint64:
		return unsigned(v)
	case uintptr:
		return unsigned(uint64(v))
	}
	return cast.ToInt64E(raw)
}

func unsigned(u uint64) (int64, error) {
	if u > math.MaxInt64 {
		return 0, fmt.Errorf("%d overflows a 64-bit integer", u)
	}
	return int64(u), nil
}

func integral(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%v overflows a 64-bit integer", f)
	}
	return int64(f), nil
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	case bool:
		return 0, fmt.Errorf("cannot use boolean %v as float", v)
	}
	return cast.ToFloat64E(raw)
}

func toBoolean(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "y", "t":
			return true, nil
		case "false", "0", "no", "n", "f":
			return false, nil
		}
		return false, errBadBool
	}
	n, err := cast.ToInt64E(raw)
	if err != nil {
		return false, errBadBool
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, errBadBool
}

func toTimestamp(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized time format %q", v)
	case bool:
		return time.Time{}, fmt.Errorf("cannot use boolean %v as timestamp", v)
	}
	return cast.ToTimeInDefaultLocationE(raw, time.UTC)
}

func toDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case float32:
		return decimal.NewFromFloat32(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case bool:
		return decimal.Decimal{}, fmt.Errorf("cannot use boolean %v as decimal", v)
	}
	n, err := cast.ToInt64E(raw)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromInt(n), nil
}

func toUUID(raw any) (uuid.UUID, error) {
	switch v := raw.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		return uuid.Parse(strings.TrimSpace(v))
	case []byte:
		return uuid.FromBytes(v)
	}
	return uuid.Nil, fmt.Errorf("cannot use %T as uuid", raw)
}
