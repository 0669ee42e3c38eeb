package database

import (
	"context"
	"database/sql"
)

// Schema for the patrol store.  The two unique keys are load-bearing:
// uq_patrols_date_building_entrance decides the winner between
// concurrent creators of the same slot, and
// uq_patrol_entries_patrol_user keeps a resident from appearing twice
// in one patrol.  Entry rows live and die with their patrol through the
// cascade.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS patrols (
		patrol_id    CHAR(36)    NOT NULL,
		date         DATE        NOT NULL,
		building     VARCHAR(1)  NOT NULL,
		entrance     TINYINT     NOT NULL,
		status       VARCHAR(20) NOT NULL DEFAULT 'in_progress',
		started_at   DATETIME    NOT NULL,
		submitted_at DATETIME    NULL,
		created_at   DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at   DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (patrol_id),
		UNIQUE KEY uq_patrols_date_building_entrance (date, building, entrance),
		KEY idx_patrols_date (date),
		KEY idx_patrols_status (status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS patrol_entries (
		patrol_entry_id CHAR(36)    NOT NULL,
		patrol_id       CHAR(36)    NOT NULL,
		user_id         CHAR(36)    NOT NULL,
		room            VARCHAR(10) NOT NULL,
		is_present      TINYINT(1)  NULL,
		absence_reason  TEXT        NULL,
		checked_at      DATETIME    NULL,
		created_at      DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (patrol_entry_id),
		UNIQUE KEY uq_patrol_entries_patrol_user (patrol_id, user_id),
		KEY idx_patrol_entries_user (user_id),
		CONSTRAINT fk_patrol_entries_patrol FOREIGN KEY (patrol_id)
			REFERENCES patrols (patrol_id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates the patrol tables when they do not exist yet.
// Statements are idempotent so this is safe to run on every startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
