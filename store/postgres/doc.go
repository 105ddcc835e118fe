// Package postgres implements the store using pgx/v5 with raw SQL.
// Status updates lock the row with SELECT ... FOR UPDATE inside a
// transaction; schema changes are embedded SQL migrations tracked in
// vmjobs_migrations.
package postgres
