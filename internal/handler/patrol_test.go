package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dormguard/patrol-service/internal/client"
	"github.com/dormguard/patrol-service/internal/model"
	"github.com/dormguard/patrol-service/internal/repository"
	"github.com/dormguard/patrol-service/internal/service"
)

// fakePatrolStore is a canned-response implementation of the
// orchestrator's store contract, enough to drive the HTTP layer.
type fakePatrolStore struct {
	patrol    *model.Patrol
	slotTaken bool
	err       error
}

func (f *fakePatrolStore) CreateWithEntries(_ context.Context, p *model.Patrol, entries []model.PatrolEntry) error {
	if f.err != nil {
		return f.err
	}
	cp := *p
	cp.Entries = entries
	f.patrol = &cp
	return nil
}

func (f *fakePatrolStore) GetByID(_ context.Context, patrolID string) (*model.Patrol, error) {
	if f.patrol == nil || f.patrol.PatrolID != patrolID {
		return nil, repository.ErrPatrolNotFound
	}
	p := *f.patrol
	p.Entries = nil
	return &p, nil
}

func (f *fakePatrolStore) GetByIDWithEntries(_ context.Context, patrolID string) (*model.Patrol, error) {
	if f.patrol == nil || f.patrol.PatrolID != patrolID {
		return nil, repository.ErrPatrolNotFound
	}
	return f.patrol, nil
}

func (f *fakePatrolStore) GetBySlot(_ context.Context, date, building string, entrance int) (*model.Patrol, error) {
	if f.slotTaken {
		return f.patrol, nil
	}
	return nil, repository.ErrPatrolNotFound
}

func (f *fakePatrolStore) List(_ context.Context, _ repository.ListFilter, _, _ int) ([]model.Patrol, int, error) {
	if f.patrol == nil {
		return []model.Patrol{}, 0, nil
	}
	return []model.Patrol{*f.patrol}, 1, nil
}

func (f *fakePatrolStore) Complete(_ context.Context, patrolID string, submittedAt time.Time) error {
	if f.patrol == nil || f.patrol.PatrolID != patrolID {
		return repository.ErrPatrolNotFound
	}
	if f.patrol.Status == model.StatusCompleted {
		return repository.ErrPatrolAlreadyCompleted
	}
	f.patrol.Status = model.StatusCompleted
	f.patrol.SubmittedAt = &submittedAt
	return nil
}

func (f *fakePatrolStore) Delete(_ context.Context, patrolID string) error {
	if f.patrol == nil || f.patrol.PatrolID != patrolID {
		return repository.ErrPatrolNotFound
	}
	f.patrol = nil
	return nil
}

type fakeEntryStore struct {
	entry *model.PatrolEntry
}

func (f *fakeEntryStore) GetByPatrolAndID(_ context.Context, patrolID, entryID string) (*model.PatrolEntry, error) {
	if f.entry == nil || f.entry.PatrolID != patrolID || f.entry.PatrolEntryID != entryID {
		return nil, repository.ErrPatrolEntryNotFound
	}
	return f.entry, nil
}

func (f *fakeEntryStore) Update(_ context.Context, patrolID, entryID string, isPresent *bool, absenceReason *string, checkedAt time.Time) (*model.PatrolEntry, error) {
	if f.entry == nil || f.entry.PatrolID != patrolID || f.entry.PatrolEntryID != entryID {
		return nil, repository.ErrPatrolEntryNotFound
	}
	if isPresent != nil {
		f.entry.IsPresent = isPresent
	}
	if absenceReason != nil {
		f.entry.AbsenceReason = absenceReason
	}
	f.entry.CheckedAt = &checkedAt
	return f.entry, nil
}

type fakeRoster struct{ residents []client.Resident }

func (f fakeRoster) GetMinorsByEntrance(context.Context, string, int) ([]client.Resident, error) {
	return f.residents, nil
}

type fakeLedger struct{ leaves []client.LeaveRecord }

func (f fakeLedger) GetApprovedLeaves(context.Context, string, string, int) ([]client.LeaveRecord, error) {
	return f.leaves, nil
}

func newTestHandler(store *fakePatrolStore, entries *fakeEntryStore) *PatrolHandler {
	svc := service.NewPatrolService(
		store,
		entries,
		fakeRoster{residents: []client.Resident{{UserID: "u-1", Room: "201"}}},
		fakeLedger{},
		nil,
		time.Second,
		zap.NewNop(),
	)
	return NewPatrolHandler(svc, nil, "")
}

func do(h echo.HandlerFunc, method, target, body string, params map[string]string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) > 0 {
		names := make([]string, 0, len(params))
		values := make([]string, 0, len(params))
		for k, v := range params {
			names = append(names, k)
			values = append(values, v)
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	_ = h(c)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			TraceID string `json:"trace_id"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestCreatePatrol_Created(t *testing.T) {
	store := &fakePatrolStore{}
	h := newTestHandler(store, &fakeEntryStore{})

	rec := do(h.Create, http.MethodPost, "/v1/patrols",
		`{"date":"2026-03-01","building":"8","entrance":1}`, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var got model.Patrol
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.StatusInProgress, got.Status)
	assert.Len(t, got.Entries, 1)
}

func TestCreatePatrol_ValidationEnvelope(t *testing.T) {
	h := newTestHandler(&fakePatrolStore{}, &fakeEntryStore{})

	rec := do(h.Create, http.MethodPost, "/v1/patrols",
		`{"date":"2026-03-01","building":"7","entrance":1}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeValidation, errorCode(t, rec))
}

func TestCreatePatrol_Conflict(t *testing.T) {
	store := &fakePatrolStore{
		slotTaken: true,
		patrol:    &model.Patrol{PatrolID: "p-1", Status: model.StatusInProgress},
	}
	h := newTestHandler(store, &fakeEntryStore{})

	rec := do(h.Create, http.MethodPost, "/v1/patrols",
		`{"date":"2026-03-01","building":"8","entrance":1}`, nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, codeAlreadyExists, errorCode(t, rec))
}

func TestGetPatrol_NotFoundEnvelope(t *testing.T) {
	h := newTestHandler(&fakePatrolStore{}, &fakeEntryStore{})

	rec := do(h.Get, http.MethodGet, "/v1/patrols/nope", "",
		map[string]string{"patrolId": "nope"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, codePatrolNotFound, errorCode(t, rec))
}

func TestCompletePatrol_ThenSecondCallIs422(t *testing.T) {
	store := &fakePatrolStore{
		patrol: &model.Patrol{PatrolID: "p-1", Status: model.StatusInProgress},
	}
	h := newTestHandler(store, &fakeEntryStore{})

	rec := do(h.Complete, http.MethodPatch, "/v1/patrols/p-1",
		`{"status":"completed"}`, map[string]string{"patrolId": "p-1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	var got model.Patrol
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.NotNil(t, got.SubmittedAt)

	rec = do(h.Complete, http.MethodPatch, "/v1/patrols/p-1",
		`{"status":"completed"}`, map[string]string{"patrolId": "p-1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, codeAlreadyCompleted, errorCode(t, rec))
}

func TestCompletePatrol_RejectsOtherStatus(t *testing.T) {
	h := newTestHandler(&fakePatrolStore{}, &fakeEntryStore{})

	rec := do(h.Complete, http.MethodPatch, "/v1/patrols/p-1",
		`{"status":"in_progress"}`, map[string]string{"patrolId": "p-1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeValidation, errorCode(t, rec))
}

func TestDeletePatrol_NoContent(t *testing.T) {
	store := &fakePatrolStore{
		patrol: &model.Patrol{PatrolID: "p-1", Status: model.StatusInProgress},
	}
	h := newTestHandler(store, &fakeEntryStore{})

	rec := do(h.Delete, http.MethodDelete, "/v1/patrols/p-1", "",
		map[string]string{"patrolId": "p-1"})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, store.patrol)
}

func TestUpdateEntry_MarksPresent(t *testing.T) {
	store := &fakePatrolStore{
		patrol: &model.Patrol{PatrolID: "p-1", Status: model.StatusInProgress},
	}
	entries := &fakeEntryStore{
		entry: &model.PatrolEntry{PatrolEntryID: "e-1", PatrolID: "p-1", UserID: "u-1", Room: "201"},
	}
	h := newTestHandler(store, entries)

	rec := do(h.UpdateEntry, http.MethodPatch, "/v1/patrols/p-1/entries/e-1",
		`{"is_present":true}`, map[string]string{"patrolId": "p-1", "entryId": "e-1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	var got model.PatrolEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.IsPresent)
	assert.True(t, *got.IsPresent)
	assert.NotNil(t, got.CheckedAt)
}

func TestUpdateEntry_CompletedPatrolIs422(t *testing.T) {
	store := &fakePatrolStore{
		patrol: &model.Patrol{PatrolID: "p-1", Status: model.StatusCompleted},
	}
	entries := &fakeEntryStore{
		entry: &model.PatrolEntry{PatrolEntryID: "e-1", PatrolID: "p-1"},
	}
	h := newTestHandler(store, entries)

	rec := do(h.UpdateEntry, http.MethodPatch, "/v1/patrols/p-1/entries/e-1",
		`{"is_present":true}`, map[string]string{"patrolId": "p-1", "entryId": "e-1"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, codeNotInProgress, errorCode(t, rec))
}

func TestListPatrols_Shape(t *testing.T) {
	store := &fakePatrolStore{
		patrol: &model.Patrol{PatrolID: "p-1", Status: model.StatusInProgress},
	}
	h := newTestHandler(store, &fakeEntryStore{})

	rec := do(h.List, http.MethodGet, "/v1/patrols?page=1&size=10", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Items []model.Patrol `json:"items"`
		Total int            `json:"total"`
		Page  int            `json:"page"`
		Size  int            `json:"size"`
		Pages int            `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, 1, payload.Total)
	assert.Equal(t, 10, payload.Size)
	assert.Equal(t, 1, payload.Pages)
}

func TestListPatrols_BadEntranceFilter(t *testing.T) {
	h := newTestHandler(&fakePatrolStore{}, &fakeEntryStore{})

	rec := do(h.List, http.MethodGet, "/v1/patrols?entrance=two", "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeValidation, errorCode(t, rec))
}
