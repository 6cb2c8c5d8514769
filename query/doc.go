// Package query compiles filter specifications into bun WHERE clauses,
// coercing raw values to the semantic type of each column.
package query
