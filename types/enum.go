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

import "strings"

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract used by domain types.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// Direction is the sort direction of a page request.
type Direction int

const (
	Desc Direction = iota
	Asc
)

var _ BaseEnum = Desc

var directionNames = map[Direction]string{
	Desc: "desc",
	Asc:  "asc",
}

func (d Direction) IsValid() bool {
	_, ok := directionNames[d]
	return ok
}

func (d Direction) Number() int {
	if !d.IsValid() {
		return IllegalValue
	}
	return int(d)
}

func (d Direction) String() string { return d.Name() }

func (d Direction) Name() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return IllegalName
}

func (d Direction) Desc() string {
	switch d {
	case Asc:
		return "ascending"
	case Desc:
		return "descending"
	default:
		return IllegalDesc
	}
}

// SQL returns the keyword used in an ORDER BY clause.
func (d Direction) SQL() string {
	if d == Asc {
		return "ASC"
	}
	return "DESC"
}

// ParseDirection parses "asc" or "desc" in any case. An empty string means
// descending.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc":
		return Desc, true
	case "asc":
		return Asc, true
	default:
		return Direction(IllegalValue), false
	}
}
