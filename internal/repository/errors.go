// Package repository implements durable storage for patrols and their
// attendance entries on top of database/sql.  The sentinel values below
// are shared across repositories so that higher layers such as the
// orchestrator and the HTTP handlers can distinguish failure scenarios
// with errors.Is instead of inspecting driver errors.  The database is
// the single source of truth for the uniqueness invariants: duplicate
// key violations are translated here, never swallowed.
package repository

import (
	"errors"
	"strings"
)

// ErrPatrolNotFound is returned when no patrol exists for the requested
// identifier.  Handlers should translate this into an HTTP 404 response.
var ErrPatrolNotFound = errors.New("patrol not found")

// ErrPatrolEntryNotFound is returned when an entry does not exist or
// does not belong to the patrol it was addressed through.  Handlers
// should translate this into an HTTP 404 response.
var ErrPatrolEntryNotFound = errors.New("patrol entry not found")

// ErrPatrolAlreadyExists is returned when a patrol for the same
// (date, building, entrance) slot already exists.  The unique key on
// the patrols table is authoritative: concurrent creators race on the
// insert and every loser receives this error.  Handlers should
// translate it into an HTTP 409 response.
var ErrPatrolAlreadyExists = errors.New("patrol already exists for this date, building and entrance")

// ErrPatrolAlreadyCompleted is returned when completing a patrol that
// has already been completed.  The transition is one-way.
var ErrPatrolAlreadyCompleted = errors.New("patrol already completed")

// ErrPatrolNotInProgress is returned when an entry mutation is
// attempted on a patrol that is no longer in progress.  Entries are
// immutable once the patrol is completed.
var ErrPatrolNotInProgress = errors.New("patrol is not in progress")

// ErrDuplicateEntry is returned when an entry batch would place the
// same resident twice in one patrol.  The (patrol_id, user_id) unique
// key guards this at the storage layer.
var ErrDuplicateEntry = errors.New("resident already has an entry in this patrol")

// Unique key names from the schema.  MySQL includes the violated key
// name in the 1062 error text, which lets us map the violation to the
// right sentinel.
const (
	patrolSlotKey = "uq_patrols_date_building_entrance"
	entryUserKey  = "uq_patrol_entries_patrol_user"
)

// mapDuplicateError converts a MySQL duplicate-key error (1062) into
// the matching sentinel.  Any other error is returned unchanged.
func mapDuplicateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if !strings.Contains(msg, "1062") {
		return err
	}
	if strings.Contains(msg, patrolSlotKey) {
		return ErrPatrolAlreadyExists
	}
	if strings.Contains(msg, entryUserKey) {
		return ErrDuplicateEntry
	}
	return err
}
