package model

import "time"

// Patrol statuses.  A patrol is created in progress and can only move
// to completed, never back.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Buildings covered by patrol inspections.  The campus has exactly two
// dormitory buildings with minor residents.
const (
	BuildingEight = "8"
	BuildingNine  = "9"
)

// Entrance bounds.  Every building has entrances numbered 1 through 4.
const (
	MinEntrance = 1
	MaxEntrance = 4
)

// Patrol is one inspection session scoped to a date, building and
// entrance.  The (Date, Building, Entrance) triple is unique across all
// patrols; the database enforces this with a composite unique key.
//
// Fields:
//  PatrolID    – primary key (UUID).
//  Date        – calendar date the patrol covers (YYYY-MM-DD).
//  Building    – dormitory building ("8" or "9").
//  Entrance    – entrance number (1..4).
//  Status      – lifecycle state (in_progress, completed).
//  StartedAt   – when the inspector opened the patrol.
//  SubmittedAt – when the patrol was completed (nil while in progress).
//  Entries     – attendance records seeded at creation, one per minor.
type Patrol struct {
	PatrolID    string        `json:"patrol_id"`    // patrols.patrol_id
	Date        string        `json:"date"`         // patrols.date
	Building    string        `json:"building"`     // patrols.building
	Entrance    int           `json:"entrance"`     // patrols.entrance
	Status      string        `json:"status"`       // patrols.status
	StartedAt   time.Time     `json:"started_at"`   // patrols.started_at
	SubmittedAt *time.Time    `json:"submitted_at"` // patrols.submitted_at (nullable)
	CreatedAt   time.Time     `json:"created_at"`   // patrols.created_at
	UpdatedAt   time.Time     `json:"updated_at"`   // patrols.updated_at
	Entries     []PatrolEntry `json:"entries,omitempty"`
}

// PatrolEntry is one resident's attendance record within a patrol.  A
// resident appears at most once per patrol ((PatrolID, UserID) unique).
// Entries are created only in a single batch when the patrol is created
// and are removed only by cascade when the patrol is deleted.
//
// Fields:
//  PatrolEntryID – primary key (UUID).
//  PatrolID      – owning patrol.
//  UserID        – resident identity; owned by the identity service.
//  Room          – resident's room at the time of seeding.
//  IsPresent     – tri-state: nil = not yet checked, true/false =
//                  determined.  Entries seeded from an approved leave
//                  start at false; everyone else starts at nil.
//  AbsenceReason – free text, set only when IsPresent is false.
//  CheckedAt     – time of the last determination, nil until first set.
type PatrolEntry struct {
	PatrolEntryID string     `json:"patrol_entry_id"` // patrol_entries.patrol_entry_id
	PatrolID      string     `json:"patrol_id"`       // patrol_entries.patrol_id
	UserID        string     `json:"user_id"`         // patrol_entries.user_id
	Room          string     `json:"room"`            // patrol_entries.room
	IsPresent     *bool      `json:"is_present"`      // patrol_entries.is_present (nullable)
	AbsenceReason *string    `json:"absence_reason"`  // patrol_entries.absence_reason (nullable)
	CheckedAt     *time.Time `json:"checked_at"`      // patrol_entries.checked_at (nullable)
	CreatedAt     time.Time  `json:"created_at"`      // patrol_entries.created_at
	UpdatedAt     time.Time  `json:"updated_at"`      // patrol_entries.updated_at
}

// ValidBuilding reports whether b names a patrolled building.
func ValidBuilding(b string) bool {
	return b == BuildingEight || b == BuildingNine
}

// ValidEntrance reports whether n is within the entrance range.
func ValidEntrance(n int) bool {
	return n >= MinEntrance && n <= MaxEntrance
}
