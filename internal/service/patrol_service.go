// Package service contains the patrol orchestrator: the one place that
// joins the identity roster and the leave ledger into attendance
// entries and drives the two-state patrol lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dormguard/patrol-service/internal/client"
	"github.com/dormguard/patrol-service/internal/model"
	"github.com/dormguard/patrol-service/internal/queue"
	"github.com/dormguard/patrol-service/internal/repository"
)

// ErrValidation is returned when request data fails business
// validation (bad building, entrance or date).  Handlers translate it
// into an HTTP 400 response.
var ErrValidation = errors.New("validation failed")

// leaveReasonPrefix prefixes absence reasons derived from an approved
// leave so an inspector can tell a seeded default from a manual note.
const leaveReasonPrefix = "Application leave: "

// PatrolStore is the persistence contract for patrols.  The store owns
// the uniqueness and atomicity guarantees: CreateWithEntries is one
// transaction and the slot unique key decides races between concurrent
// creators.
type PatrolStore interface {
	CreateWithEntries(ctx context.Context, p *model.Patrol, entries []model.PatrolEntry) error
	GetByID(ctx context.Context, patrolID string) (*model.Patrol, error)
	GetByIDWithEntries(ctx context.Context, patrolID string) (*model.Patrol, error)
	GetBySlot(ctx context.Context, date, building string, entrance int) (*model.Patrol, error)
	List(ctx context.Context, f repository.ListFilter, page, size int) ([]model.Patrol, int, error)
	Complete(ctx context.Context, patrolID string, submittedAt time.Time) error
	Delete(ctx context.Context, patrolID string) error
}

// PatrolEntryStore is the persistence contract for individual entries.
// Update must be atomic with the owning patrol's status check.
type PatrolEntryStore interface {
	GetByPatrolAndID(ctx context.Context, patrolID, entryID string) (*model.PatrolEntry, error)
	Update(ctx context.Context, patrolID, entryID string, isPresent *bool, absenceReason *string, checkedAt time.Time) (*model.PatrolEntry, error)
}

// IdentityRoster lists the minor residents of an entrance.  Implemented
// by client.IdentityClient and client.IdentityStub.
type IdentityRoster interface {
	GetMinorsByEntrance(ctx context.Context, building string, entrance int) ([]client.Resident, error)
}

// LeaveLedger lists approved leaves overlapping a date.  Implemented by
// client.LeaveClient and client.LeaveStub.
type LeaveLedger interface {
	GetApprovedLeaves(ctx context.Context, date, building string, entrance int) ([]client.LeaveRecord, error)
}

// EventPublisher emits patrol lifecycle events.  Publishing failures
// never fail the request that triggered them.
type EventPublisher interface {
	PublishPatrolCompleted(ctx context.Context, event queue.PatrolCompletedEvent) error
}

// PatrolService orchestrates patrol creation, the lifecycle state
// machine and all entry mutations.  Every dependency is injected; the
// service itself holds no mutable state, so one instance serves all
// requests.
type PatrolService struct {
	patrols    PatrolStore
	entries    PatrolEntryStore
	roster     IdentityRoster
	leaves     LeaveLedger
	events     EventPublisher
	extTimeout time.Duration
	logger     *zap.Logger
}

// NewPatrolService constructs the orchestrator.  events may be nil when
// no broker is configured; extTimeout bounds each external call and is
// deliberately separate from any store timeout.
func NewPatrolService(
	patrols PatrolStore,
	entries PatrolEntryStore,
	roster IdentityRoster,
	leaves LeaveLedger,
	events EventPublisher,
	extTimeout time.Duration,
	logger *zap.Logger,
) *PatrolService {
	if patrols == nil || entries == nil || roster == nil || leaves == nil {
		panic("nil dependency passed to NewPatrolService")
	}
	if extTimeout <= 0 {
		extTimeout = 5 * time.Second
	}
	return &PatrolService{
		patrols:    patrols,
		entries:    entries,
		roster:     roster,
		leaves:     leaves,
		events:     events,
		extTimeout: extTimeout,
		logger:     logger,
	}
}

// Create starts a patrol for (date, building, entrance) and seeds one
// attendance entry per minor resident of that entrance.  Residents
// holding an approved leave for the date are seeded absent with the
// leave reason; everyone else starts unchecked.  The external lookups
// happen before the store transaction opens, so a slow peer can never
// hold the transaction, and either the patrol with all its entries
// becomes visible or nothing does.
func (s *PatrolService) Create(ctx context.Context, date, building string, entrance int) (*model.Patrol, error) {
	if !model.ValidBuilding(building) {
		return nil, fmt.Errorf("%w: building must be 8 or 9, got %q", ErrValidation, building)
	}
	if !model.ValidEntrance(entrance) {
		return nil, fmt.Errorf("%w: entrance must be between 1 and 4, got %d", ErrValidation, entrance)
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("%w: date must be formatted YYYY-MM-DD, got %q", ErrValidation, date)
	}

	// Fast path: reject an occupied slot before talking to the external
	// services.  The unique key in the store still decides races.
	if _, err := s.patrols.GetBySlot(ctx, date, building, entrance); err == nil {
		return nil, fmt.Errorf("slot %s/%s/%d: %w", date, building, entrance, repository.ErrPatrolAlreadyExists)
	} else if !errors.Is(err, repository.ErrPatrolNotFound) {
		return nil, err
	}

	rosterCtx, cancel := context.WithTimeout(ctx, s.extTimeout)
	minors, err := s.roster.GetMinorsByEntrance(rosterCtx, building, entrance)
	cancel()
	if err != nil {
		return nil, err
	}

	leaveCtx, cancel := context.WithTimeout(ctx, s.extTimeout)
	leaves, err := s.leaves.GetApprovedLeaves(leaveCtx, date, building, entrance)
	cancel()
	if err != nil {
		return nil, err
	}
	leaveByUser := make(map[string]client.LeaveRecord, len(leaves))
	for _, l := range leaves {
		leaveByUser[l.UserID] = l
	}

	patrol := &model.Patrol{
		PatrolID:  uuid.NewString(),
		Date:      date,
		Building:  building,
		Entrance:  entrance,
		Status:    model.StatusInProgress,
		StartedAt: time.Now().UTC(),
	}
	entries := make([]model.PatrolEntry, 0, len(minors))
	seen := make(map[string]bool, len(minors))
	for _, m := range minors {
		// A roster glitch repeating a resident must not fail the whole
		// batch on the (patrol_id, user_id) key; first occurrence wins.
		if seen[m.UserID] {
			continue
		}
		seen[m.UserID] = true
		e := model.PatrolEntry{
			PatrolEntryID: uuid.NewString(),
			PatrolID:      patrol.PatrolID,
			UserID:        m.UserID,
			Room:          m.Room,
		}
		if leave, ok := leaveByUser[m.UserID]; ok {
			// A leave-derived absence is a seeded default, not a manual
			// check-in: is_present=false but checked_at stays unset.
			absent := false
			reason := leaveReasonPrefix + leave.Reason
			e.IsPresent = &absent
			e.AbsenceReason = &reason
		}
		entries = append(entries, e)
	}

	if err := s.patrols.CreateWithEntries(ctx, patrol, entries); err != nil {
		if errors.Is(err, repository.ErrPatrolAlreadyExists) {
			return nil, fmt.Errorf("slot %s/%s/%d: %w", date, building, entrance, repository.ErrPatrolAlreadyExists)
		}
		return nil, err
	}

	s.logger.Info("patrol created",
		zap.String("patrol_id", patrol.PatrolID),
		zap.String("date", date),
		zap.String("building", building),
		zap.Int("entrance", entrance),
		zap.Int("entries", len(entries)),
		zap.Int("on_leave", len(leaveByUser)),
	)
	return s.patrols.GetByIDWithEntries(ctx, patrol.PatrolID)
}

// Get returns a patrol with all of its entries.
func (s *PatrolService) Get(ctx context.Context, patrolID string) (*model.Patrol, error) {
	p, err := s.patrols.GetByIDWithEntries(ctx, patrolID)
	if err != nil {
		if errors.Is(err, repository.ErrPatrolNotFound) {
			return nil, fmt.Errorf("patrol %s: %w", patrolID, repository.ErrPatrolNotFound)
		}
		return nil, err
	}
	return p, nil
}

// List returns a page of patrols matching the filter, newest first,
// plus the total match count.  Pagination parameters are clamped, not
// rejected: page floors at 1, size defaults to 20 and caps at 100.
func (s *PatrolService) List(ctx context.Context, f repository.ListFilter, page, size int) ([]model.Patrol, int, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return s.patrols.List(ctx, f, page, size)
}

// Complete transitions a patrol from in_progress to completed and
// stamps submitted_at once.  The transition is one-way; a second call
// reports ErrPatrolAlreadyCompleted.  Entries are unaffected.  On
// success a PatrolCompletedEvent is published best-effort.
func (s *PatrolService) Complete(ctx context.Context, patrolID string) (*model.Patrol, error) {
	submittedAt := time.Now().UTC()
	if err := s.patrols.Complete(ctx, patrolID, submittedAt); err != nil {
		switch {
		case errors.Is(err, repository.ErrPatrolNotFound):
			return nil, fmt.Errorf("patrol %s: %w", patrolID, repository.ErrPatrolNotFound)
		case errors.Is(err, repository.ErrPatrolAlreadyCompleted):
			return nil, fmt.Errorf("patrol %s: %w", patrolID, repository.ErrPatrolAlreadyCompleted)
		default:
			return nil, err
		}
	}

	p, err := s.patrols.GetByIDWithEntries(ctx, patrolID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("patrol completed",
		zap.String("patrol_id", patrolID),
		zap.Int("entries", len(p.Entries)),
	)
	s.publishCompleted(ctx, p, submittedAt)
	return p, nil
}

// publishCompleted emits the completion event.  Broker trouble is
// logged and dropped; the completion itself already committed.
func (s *PatrolService) publishCompleted(ctx context.Context, p *model.Patrol, submittedAt time.Time) {
	if s.events == nil {
		return
	}
	var present, absent, unchecked int
	for _, e := range p.Entries {
		switch {
		case e.IsPresent == nil:
			unchecked++
		case *e.IsPresent:
			present++
		default:
			absent++
		}
	}
	ev := queue.PatrolCompletedEvent{
		PatrolID:     p.PatrolID,
		Date:         p.Date,
		Building:     p.Building,
		Entrance:     p.Entrance,
		TotalEntries: len(p.Entries),
		Present:      present,
		Absent:       absent,
		Unchecked:    unchecked,
		SubmittedAt:  submittedAt.Format(time.RFC3339),
	}
	if err := s.events.PublishPatrolCompleted(ctx, ev); err != nil {
		s.logger.Warn("patrol completed event not published",
			zap.String("patrol_id", p.PatrolID),
			zap.Error(err),
		)
	}
}

// Delete removes a patrol and, through the store's cascade, every one
// of its entries.
func (s *PatrolService) Delete(ctx context.Context, patrolID string) error {
	if err := s.patrols.Delete(ctx, patrolID); err != nil {
		if errors.Is(err, repository.ErrPatrolNotFound) {
			return fmt.Errorf("patrol %s: %w", patrolID, repository.ErrPatrolNotFound)
		}
		return err
	}
	s.logger.Info("patrol deleted", zap.String("patrol_id", patrolID))
	return nil
}

// GetEntry returns one entry scoped to its patrol.
func (s *PatrolService) GetEntry(ctx context.Context, patrolID, entryID string) (*model.PatrolEntry, error) {
	e, err := s.entries.GetByPatrolAndID(ctx, patrolID, entryID)
	if err != nil {
		if errors.Is(err, repository.ErrPatrolEntryNotFound) {
			return nil, fmt.Errorf("entry %s in patrol %s: %w", entryID, patrolID, repository.ErrPatrolEntryNotFound)
		}
		return nil, err
	}
	return e, nil
}

// UpdateEntry applies a partial update to one entry while the owning
// patrol is still in progress.  Omitted (nil) fields stay unchanged;
// checked_at is stamped on every successful update regardless of which
// field changed.  The status gate and the write are atomic in the
// store, so a racing completion cannot be overtaken.
func (s *PatrolService) UpdateEntry(ctx context.Context, patrolID, entryID string, isPresent *bool, absenceReason *string) (*model.PatrolEntry, error) {
	// Patrol-level failures take precedence even when the entry id is
	// also bogus.
	p, err := s.patrols.GetByID(ctx, patrolID)
	if err != nil {
		if errors.Is(err, repository.ErrPatrolNotFound) {
			return nil, fmt.Errorf("patrol %s: %w", patrolID, repository.ErrPatrolNotFound)
		}
		return nil, err
	}
	if p.Status != model.StatusInProgress {
		return nil, fmt.Errorf("patrol %s: %w", patrolID, repository.ErrPatrolNotInProgress)
	}

	e, err := s.entries.Update(ctx, patrolID, entryID, isPresent, absenceReason, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPatrolNotFound):
			return nil, fmt.Errorf("patrol %s: %w", patrolID, repository.ErrPatrolNotFound)
		case errors.Is(err, repository.ErrPatrolNotInProgress):
			return nil, fmt.Errorf("patrol %s: %w", patrolID, repository.ErrPatrolNotInProgress)
		case errors.Is(err, repository.ErrPatrolEntryNotFound):
			return nil, fmt.Errorf("entry %s in patrol %s: %w", entryID, patrolID, repository.ErrPatrolEntryNotFound)
		default:
			return nil, err
		}
	}
	return e, nil
}
