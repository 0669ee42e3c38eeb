// Package handler implements the REST adapter over the patrol
// orchestrator.  Handlers translate HTTP requests into orchestrator
// calls and orchestrator errors into a uniform error envelope:
//
//	{"error": {"code": "...", "message": "...", "trace_id": "..."}}
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dormguard/patrol-service/internal/client"
	"github.com/dormguard/patrol-service/internal/middleware"
	"github.com/dormguard/patrol-service/internal/repository"
	"github.com/dormguard/patrol-service/internal/service"
)

// Machine-readable error codes surfaced in the envelope.
const (
	codeValidation       = "VALIDATION_ERROR"
	codePatrolNotFound   = "PATROL_NOT_FOUND"
	codeEntryNotFound    = "PATROL_ENTRY_NOT_FOUND"
	codeAlreadyExists    = "PATROL_ALREADY_EXISTS"
	codeAlreadyCompleted = "PATROL_ALREADY_COMPLETED"
	codeNotInProgress    = "PATROL_NOT_IN_PROGRESS"
	codeExternalFailure  = "EXTERNAL_SERVICE_ERROR"
	codeInternal         = "INTERNAL_ERROR"
)

func traceID(c echo.Context) string {
	if v, ok := c.Get(middleware.TraceIDKey).(string); ok {
		return v
	}
	return ""
}

// writeError maps an orchestrator error onto an HTTP status and error
// code.  Deterministic business outcomes keep their message; anything
// unrecognised is reported as a 500 without leaking internals.
func writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	code := codeInternal
	msg := "internal error"

	switch {
	case errors.Is(err, service.ErrValidation):
		status, code, msg = http.StatusBadRequest, codeValidation, err.Error()
	case errors.Is(err, repository.ErrPatrolNotFound):
		status, code, msg = http.StatusNotFound, codePatrolNotFound, err.Error()
	case errors.Is(err, repository.ErrPatrolEntryNotFound):
		status, code, msg = http.StatusNotFound, codeEntryNotFound, err.Error()
	case errors.Is(err, repository.ErrPatrolAlreadyExists):
		status, code, msg = http.StatusConflict, codeAlreadyExists, err.Error()
	case errors.Is(err, repository.ErrPatrolAlreadyCompleted):
		status, code, msg = http.StatusUnprocessableEntity, codeAlreadyCompleted, err.Error()
	case errors.Is(err, repository.ErrPatrolNotInProgress):
		status, code, msg = http.StatusUnprocessableEntity, codeNotInProgress, err.Error()
	case errors.Is(err, client.ErrUnavailable):
		// Retryable: creation aborted whole, nothing persisted.
		status, code, msg = http.StatusBadGateway, codeExternalFailure, err.Error()
	}

	return c.JSON(status, echo.Map{
		"error": echo.Map{
			"code":     code,
			"message":  msg,
			"trace_id": traceID(c),
		},
	})
}
