// Package postgres contains PostgreSQL implementations of the store
// interfaces defined in internal/store, using database/sql with the pgx
// stdlib driver. All database errors are translated to store sentinel
// errors via MapError so callers never depend on driver error types.
package postgres
