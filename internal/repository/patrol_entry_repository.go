package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/dormguard/patrol-service/internal/model"
)

// PatrolEntryRepo provides read and update access to individual
// attendance entries.  Entries are only ever created in a batch by
// PatrolRepo.CreateWithEntries and only ever removed by the cascade on
// patrol deletion; this repository mutates fields on existing rows.
type PatrolEntryRepo struct {
	db *sql.DB
}

// NewPatrolEntryRepo returns a new PatrolEntryRepo bound to the given database.
func NewPatrolEntryRepo(db *sql.DB) *PatrolEntryRepo { return &PatrolEntryRepo{db: db} }

const entryColumns = `patrol_entry_id, patrol_id, user_id, room, is_present, absence_reason, checked_at, created_at, updated_at`

func scanEntry(row interface{ Scan(...any) error }) (*model.PatrolEntry, error) {
	var e model.PatrolEntry
	var isPresent sql.NullBool
	var reason sql.NullString
	var checked sql.NullTime
	if err := row.Scan(
		&e.PatrolEntryID, &e.PatrolID, &e.UserID, &e.Room,
		&isPresent, &reason, &checked, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if isPresent.Valid {
		v := isPresent.Bool
		e.IsPresent = &v
	}
	if reason.Valid {
		s := reason.String
		e.AbsenceReason = &s
	}
	if checked.Valid {
		t := checked.Time
		e.CheckedAt = &t
	}
	return &e, nil
}

// GetByPatrolAndID returns the entry with the given id scoped to the
// given patrol.  An entry that exists under a different patrol is
// treated as not found, so an id can never be read through the wrong
// session.
func (r *PatrolEntryRepo) GetByPatrolAndID(ctx context.Context, patrolID, entryID string) (*model.PatrolEntry, error) {
	const q = `SELECT ` + entryColumns + ` FROM patrol_entries WHERE patrol_entry_id = ? AND patrol_id = ?`
	e, err := scanEntry(r.db.QueryRowContext(ctx, q, entryID, patrolID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPatrolEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

// Update applies a partial update to an entry and stamps checked_at.
// Nil fields are left unchanged.  The UPDATE joins the owning patrol
// and requires status = in_progress in the same statement, so a
// completion racing with this write can never let the write land on a
// completed patrol.  When nothing was updated the cause is
// disambiguated into ErrPatrolNotFound, ErrPatrolNotInProgress or
// ErrPatrolEntryNotFound.
func (r *PatrolEntryRepo) Update(ctx context.Context, patrolID, entryID string, isPresent *bool, absenceReason *string, checkedAt time.Time) (*model.PatrolEntry, error) {
	sets := []string{"pe.checked_at = ?"}
	args := []any{checkedAt}
	if isPresent != nil {
		sets = append(sets, "pe.is_present = ?")
		args = append(args, *isPresent)
	}
	if absenceReason != nil {
		sets = append(sets, "pe.absence_reason = ?")
		args = append(args, *absenceReason)
	}
	q := `UPDATE patrol_entries pe
	      JOIN patrols p ON p.patrol_id = pe.patrol_id
	      SET ` + strings.Join(sets, ", ") + `
	      WHERE pe.patrol_entry_id = ? AND pe.patrol_id = ? AND p.status = ?`
	args = append(args, entryID, patrolID, model.StatusInProgress)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, r.explainMiss(ctx, patrolID, entryID)
	}
	return r.GetByPatrolAndID(ctx, patrolID, entryID)
}

// explainMiss figures out why the gated UPDATE touched no rows.
func (r *PatrolEntryRepo) explainMiss(ctx context.Context, patrolID, entryID string) error {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM patrols WHERE patrol_id = ?`, patrolID).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrPatrolNotFound
	}
	if err != nil {
		return err
	}
	if status != model.StatusInProgress {
		return ErrPatrolNotInProgress
	}
	return ErrPatrolEntryNotFound
}
