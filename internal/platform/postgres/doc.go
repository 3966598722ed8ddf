// Package postgres provides PostgreSQL implementations of the task, conversation
// and response stores used by the worker. It opens connections through the pgx
// database/sql driver, applies the embedded goose migrations and maps driver
// errors onto the store package's error values.
package postgres
