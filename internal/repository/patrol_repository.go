package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/dormguard/patrol-service/internal/model"
)

// PatrolRepo provides CRUD operations for patrols and owns the
// transaction that makes patrol creation all-or-nothing.  A patrol and
// its seeded entries become durably visible together or not at all.
// All timestamp fields are stored in UTC.
type PatrolRepo struct {
	db *sql.DB
}

// NewPatrolRepo returns a new PatrolRepo bound to the given database.
func NewPatrolRepo(db *sql.DB) *PatrolRepo { return &PatrolRepo{db: db} }

const patrolColumns = `patrol_id, date, building, entrance, status, started_at, submitted_at, created_at, updated_at`

// scanPatrol reads one patrols row.  The date column arrives as a
// time.Time (parseTime=true) and is normalised to YYYY-MM-DD.
func scanPatrol(row interface{ Scan(...any) error }) (*model.Patrol, error) {
	var p model.Patrol
	var day time.Time
	var submitted sql.NullTime
	if err := row.Scan(
		&p.PatrolID, &day, &p.Building, &p.Entrance, &p.Status,
		&p.StartedAt, &submitted, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Date = day.Format("2006-01-02")
	if submitted.Valid {
		t := submitted.Time
		p.SubmittedAt = &t
	}
	return &p, nil
}

// CreateWithEntries inserts a patrol and its entry batch in a single
// transaction.  The caller supplies fully built records, ids included.
// A duplicate (date, building, entrance) slot surfaces as
// ErrPatrolAlreadyExists even when a concurrent creator committed
// between the orchestrator's pre-check and this insert; the unique key
// is the guarantee, not the pre-check.  On success the generated
// timestamps are populated back onto the provided records.
func (r *PatrolRepo) CreateWithEntries(ctx context.Context, p *model.Patrol, entries []model.PatrolEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const ins = `INSERT INTO patrols (patrol_id, date, building, entrance, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, ins, p.PatrolID, p.Date, p.Building, p.Entrance, p.Status, p.StartedAt); err != nil {
		return mapDuplicateError(err)
	}

	if len(entries) > 0 {
		query := `INSERT INTO patrol_entries (patrol_entry_id, patrol_id, user_id, room, is_present, absence_reason) VALUES `
		args := make([]any, 0, len(entries)*6)
		for i, e := range entries {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, ?)"
			args = append(args, e.PatrolEntryID, e.PatrolID, e.UserID, e.Room, e.IsPresent, e.AbsenceReason)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return mapDuplicateError(err)
		}
	}

	// Query back the patrol row to pick up created_at/updated_at defaults.
	const sel = `SELECT ` + patrolColumns + ` FROM patrols WHERE patrol_id = ?`
	fresh, err := scanPatrol(tx.QueryRowContext(ctx, sel, p.PatrolID))
	if err != nil {
		return err
	}
	*p = *fresh

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID returns a patrol without its entries.  ErrPatrolNotFound is
// returned when no row exists.
func (r *PatrolRepo) GetByID(ctx context.Context, patrolID string) (*model.Patrol, error) {
	const q = `SELECT ` + patrolColumns + ` FROM patrols WHERE patrol_id = ?`
	p, err := scanPatrol(r.db.QueryRowContext(ctx, q, patrolID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPatrolNotFound
		}
		return nil, err
	}
	return p, nil
}

// GetByIDWithEntries returns a patrol together with all of its entries,
// ordered by room then user id for deterministic output.
func (r *PatrolRepo) GetByIDWithEntries(ctx context.Context, patrolID string) (*model.Patrol, error) {
	p, err := r.GetByID(ctx, patrolID)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + entryColumns + ` FROM patrol_entries WHERE patrol_id = ? ORDER BY room, user_id`
	rows, err := r.db.QueryContext(ctx, q, patrolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	p.Entries = make([]model.PatrolEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		p.Entries = append(p.Entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// GetBySlot returns the patrol covering (date, building, entrance), or
// ErrPatrolNotFound when the slot is free.  Used by the orchestrator as
// a fast pre-check before creation; the unique key remains the
// authoritative guard.
func (r *PatrolRepo) GetBySlot(ctx context.Context, date, building string, entrance int) (*model.Patrol, error) {
	const q = `SELECT ` + patrolColumns + ` FROM patrols WHERE date = ? AND building = ? AND entrance = ?`
	p, err := scanPatrol(r.db.QueryRowContext(ctx, q, date, building, entrance))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPatrolNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListFilter restricts List output.  Zero values mean "no filter".
type ListFilter struct {
	Date     string
	Building string
	Entrance int
	Status   string
}

// List returns a page of patrols matching the filter, newest first,
// along with the total number of matches across all pages.
func (r *PatrolRepo) List(ctx context.Context, f ListFilter, page, size int) ([]model.Patrol, int, error) {
	conds := make([]string, 0, 4)
	args := make([]any, 0, 4)
	if f.Date != "" {
		conds = append(conds, "date = ?")
		args = append(args, f.Date)
	}
	if f.Building != "" {
		conds = append(conds, "building = ?")
		args = append(args, f.Building)
	}
	if f.Entrance != 0 {
		conds = append(conds, "entrance = ?")
		args = append(args, f.Entrance)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM patrols"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + patrolColumns + ` FROM patrols` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, size, (page-1)*size)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]model.Patrol, 0, size)
	for rows.Next() {
		p, err := scanPatrol(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Complete marks a patrol completed and stamps submitted_at.  The
// status check and the write are one statement, so a concurrent
// completion cannot slip through: the first caller wins and every
// subsequent call sees ErrPatrolAlreadyCompleted.
func (r *PatrolRepo) Complete(ctx context.Context, patrolID string, submittedAt time.Time) error {
	const q = `UPDATE patrols SET status = ?, submitted_at = ? WHERE patrol_id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, model.StatusCompleted, submittedAt, patrolID, model.StatusInProgress)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// No row transitioned: the patrol is either absent or already done.
	if _, err := r.GetByID(ctx, patrolID); err != nil {
		return err
	}
	return ErrPatrolAlreadyCompleted
}

// Delete removes a patrol.  Its entries go with it through the
// ON DELETE CASCADE foreign key.
func (r *PatrolRepo) Delete(ctx context.Context, patrolID string) error {
	const q = `DELETE FROM patrols WHERE patrol_id = ?`
	res, err := r.db.ExecContext(ctx, q, patrolID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPatrolNotFound
	}
	return nil
}
