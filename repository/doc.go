// Package repository provides a generic repository over Bun models: create,
// lookup by key, filtered single and list reads with pagination, partial
// updates, deletes and soft deletes. Every operation runs in a scoped session
// and exists in a context-aware and a blocking variant.
package repository
