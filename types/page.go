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

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

// PageRequest describes offset, limit, ordering and whether a total count
// is wanted. An empty order field means the primary key.
type PageRequest struct {
	offset    int
	limit     int
	orderBy   string
	direction string
	withTotal bool
}

// NewPageRequest constructs a PageRequest ordered by primary key descending.
func NewPageRequest(offset int, limit int) *PageRequest {
	return &PageRequest{offset: offset, limit: limit}
}

// NewPageRequestFromPage converts a 1-based page number and page size into
// an offset based request.
func NewPageRequestFromPage(page int, pageSize int) *PageRequest {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageLimit
	}
	return NewPageRequest((page-1)*pageSize, pageSize)
}

// NewDefaultPageRequest returns the first page with the default limit.
func NewDefaultPageRequest() *PageRequest {
	return NewPageRequest(0, DefaultPageLimit)
}

// OrderBy sets the order field and direction ("asc" or "desc").
func (p *PageRequest) OrderBy(field string, direction string) *PageRequest {
	p.orderBy = field
	p.direction = direction
	return p
}

// WithTotal asks for the number of matching records besides the page items.
func (p *PageRequest) WithTotal() *PageRequest {
	p.withTotal = true
	return p
}

func (p *PageRequest) GetOffset() int {
	if p.offset < 0 {
		return 0
	}
	return p.offset
}

// GetLimit returns the limit clamped to [1, maxLimit]; a non-positive limit
// becomes defaultLimit.
func (p *PageRequest) GetLimit(defaultLimit, maxLimit int) int {
	if defaultLimit < 1 {
		defaultLimit = DefaultPageLimit
	}
	if maxLimit < 1 {
		maxLimit = MaxPageLimit
	}
	limit := p.limit
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

func (p *PageRequest) GetOrderBy() string {
	return p.orderBy
}

func (p *PageRequest) GetDirection() string {
	return p.direction
}

func (p *PageRequest) IncludeTotal() bool {
	return p.withTotal
}

// Pagination holds one page of items. Total is only meaningful when
// HasTotal is set.
type Pagination[T any] struct {
	Offset   int
	Limit    int
	Total    int
	HasTotal bool
	Items    []*T
}

// NewDefaultPagination constructs an empty pagination container.
func NewDefaultPagination[T any](offset int, limit int) *Pagination[T] {
	return &Pagination[T]{Offset: offset, Limit: limit, Items: make([]*T, 0)}
}
