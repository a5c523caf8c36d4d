package repository

import "github.com/google/uuid"

// isUUID reports whether id can match a uuid primary key. Postgres rejects
// malformed uuid literals outright, so lookups short-circuit to sql.ErrNoRows.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
