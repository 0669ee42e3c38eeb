// Package client holds the adapters for the two external collaborators
// the orchestrator consults during patrol creation: the identity
// service (roster of minor residents) and the application service
// (approved leaves).  Both are plain HTTP reads with bounded timeouts.
//
// Failures are never degraded into empty results.  A roster or ledger
// that cannot be reached surfaces as ErrUnavailable so the enclosing
// patrol creation aborts; an absent leave record must stay
// distinguishable from "this resident has no leave".
package client

import "errors"

// ErrUnavailable marks a failed or timed-out call to an external
// service.  Callers may retry the whole operation; patrol creation is
// idempotent under retry thanks to the slot unique key.
var ErrUnavailable = errors.New("external service unavailable")
