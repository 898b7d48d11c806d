// Package database provides the PostgreSQL connection pool for the tick
// recorder's local store.
package database
