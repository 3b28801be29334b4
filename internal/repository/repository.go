package repository

import (
	"errors"

	"github.com/lib/pq"
)

// UniqueConstraint returns the violated constraint name when err is a
// PostgreSQL unique violation. The database is the authoritative guard for
// uniqueness; services translate constraint names into field-level conflicts.
func UniqueConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr.Constraint, true
	}
	return "", false
}
