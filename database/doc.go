// Package database provides the connection provider, scoped sessions,
// configuration, store error classification, query hooks, metrics and
// logging on top of Bun.
package database
