// Package queue defines message payloads exchanged over the message broker.
package queue

// PatrolCompletedEvent is published when an inspector submits a patrol.
// It carries enough information for downstream consumers to log, notify
// or feed analytics without querying the patrol store.
type PatrolCompletedEvent struct {
	PatrolID     string `json:"patrol_id"`
	Date         string `json:"date"`
	Building     string `json:"building"`
	Entrance     int    `json:"entrance"`
	TotalEntries int    `json:"total_entries"`
	Present      int    `json:"present"`
	Absent       int    `json:"absent"`
	Unchecked    int    `json:"unchecked"`
	SubmittedAt  string `json:"submitted_at"`
}
