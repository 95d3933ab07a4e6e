package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	requestlifecycle "pqrsd/contexts/citizen-services/request-lifecycle-service"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/services"
	lifecyclehttp "pqrsd/contexts/citizen-services/request-lifecycle-service/transport/http"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	var dates []civil.Date
	for day := 14; day <= 18; day++ {
		dates = append(dates, civil.Date{Year: 2025, Month: time.April, Day: day})
	}
	holidays := services.NewHolidayCalendar(dates...)
	clock := fixedClock{now: time.Date(2025, time.April, 10, 15, 0, 0, 0, time.UTC)}
	module := requestlifecycle.NewInMemoryModule(holidays, clock, nil)
	return New(module, Options{}, nil, ":0")
}

func doJSON(t *testing.T, s *Server, method string, path string, actorID string, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = raw
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if actorID != "" {
		req.Header.Set(headerActorID, actorID)
		req.Header.Set(headerActorRole, role)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func createRequest(t *testing.T, s *Server) lifecyclehttp.TransitionResponse {
	t.Helper()
	rr := doJSON(t, s, http.MethodPost, "/v1/requests", "", "", lifecyclehttp.CreateRequestRequest{
		Citizen: lifecyclehttp.CitizenDTO{FirstName: "Ana", LastName: "Gómez", Email: "ana@example.co"},
		Message: "Solicito información sobre el alumbrado público.",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp lifecyclehttp.TransitionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) lifecyclehttp.ErrorResponse {
	t.Helper()
	var resp lifecyclehttp.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestCreateRequestDefaultsToCitizenIntake(t *testing.T) {
	server := newTestServer(t)
	resp := createRequest(t, server)

	assert.Equal(t, "pending", resp.Request.State)
	assert.Equal(t, "PQRSD-2025-000001", resp.Request.Radicado)
	assert.Equal(t, int64(1), resp.Event.Sequence)
	assert.Equal(t, "created", resp.Event.EventType)
	assert.Equal(t, "citizen", resp.Event.FromActor.ActorID)
}

func TestCreateRequestRejectsMissingCitizenName(t *testing.T) {
	server := newTestServer(t)
	rr := doJSON(t, server, http.MethodPost, "/v1/requests", "", "", lifecyclehttp.CreateRequestRequest{
		Message: "sin nombre",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation_error", decodeError(t, rr).Code)
}

func TestCreateRequestRejectsInvalidJSON(t *testing.T) {
	server := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/requests", bytes.NewReader([]byte(`{`)))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_json", decodeError(t, rr).Code)
}

func TestAssignComputesDueDateAndHolder(t *testing.T) {
	server := newTestServer(t)
	created := createRequest(t, server)
	path := "/v1/requests/" + created.Request.RequestID

	rr := doJSON(t, server, http.MethodPost, path+"/assign", "coord-1", "assigner", lifecyclehttp.AssignRequest{
		ResponsibleID: "resp-7",
		BusinessDays:  3,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp lifecyclehttp.TransitionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "assigned", resp.Request.State)
	assert.Equal(t, "2025-04-22", resp.Request.DueAt)
	require.NotNil(t, resp.Request.Holder)
	assert.Equal(t, "resp-7", resp.Request.Holder.ActorID)

	rr = doJSON(t, server, http.MethodGet, path+"/holder", "", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var holder lifecyclehttp.HolderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &holder))
	require.NotNil(t, holder.Holder)
	assert.Equal(t, "resp-7", holder.Holder.ActorID)
}

func TestTransitionErrorMapping(t *testing.T) {
	server := newTestServer(t)
	created := createRequest(t, server)
	path := "/v1/requests/" + created.Request.RequestID

	cases := []struct {
		name   string
		path   string
		actor  string
		role   string
		body   any
		status int
		code   string
	}{
		{
			name:   "non positive days",
			path:   path + "/assign",
			actor:  "coord-1",
			role:   "assigner",
			body:   lifecyclehttp.AssignRequest{ResponsibleID: "resp-7", BusinessDays: 0},
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
		{
			name:   "unknown request",
			path:   "/v1/requests/missing/assign",
			actor:  "coord-1",
			role:   "assigner",
			body:   lifecyclehttp.AssignRequest{ResponsibleID: "resp-7", BusinessDays: 3},
			status: http.StatusNotFound,
			code:   "not_found",
		},
		{
			name:   "wrong state",
			path:   path + "/approve",
			actor:  "rev-1",
			role:   "reviewer",
			body:   lifecyclehttp.ApproveRequest{},
			status: http.StatusConflict,
			code:   "invalid_state",
		},
		{
			name:   "wrong role",
			path:   path + "/assign",
			actor:  "resp-7",
			role:   "responsible",
			body:   lifecyclehttp.AssignRequest{ResponsibleID: "resp-7", BusinessDays: 3},
			status: http.StatusForbidden,
			code:   "unauthorized",
		},
		{
			name:   "missing actor",
			path:   path + "/assign",
			body:   lifecyclehttp.AssignRequest{ResponsibleID: "resp-7", BusinessDays: 3},
			status: http.StatusForbidden,
			code:   "unauthorized",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, server, http.MethodPost, tc.path, tc.actor, tc.role, tc.body)
			require.Equal(t, tc.status, rr.Code, rr.Body.String())
			resp := decodeError(t, rr)
			assert.Equal(t, tc.code, resp.Code)
			assert.False(t, resp.Retryable)
		})
	}
}

func TestHistoryAndTrackingReflectTransitions(t *testing.T) {
	server := newTestServer(t)
	created := createRequest(t, server)
	path := "/v1/requests/" + created.Request.RequestID

	rr := doJSON(t, server, http.MethodPost, path+"/assign", "coord-1", "assigner", lifecyclehttp.AssignRequest{
		ResponsibleID: "resp-7",
		BusinessDays:  15,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = doJSON(t, server, http.MethodGet, path+"/history", "", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var history lifecyclehttp.HistoryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &history))
	require.Len(t, history.Items, 2)
	assert.Equal(t, "created", history.Items[0].EventType)
	assert.Equal(t, "assigned", history.Items[1].EventType)
	assert.Equal(t, int64(2), history.Items[1].Sequence)

	rr = doJSON(t, server, http.MethodGet, "/v1/tracking/"+created.Request.Radicado, "", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var tracking lifecyclehttp.TrackingResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tracking))
	assert.Equal(t, "assigned", tracking.State)
}

func TestPreviewDueDate(t *testing.T) {
	server := newTestServer(t)

	rr := doJSON(t, server, http.MethodGet, "/v1/deadlines/preview?start=2025-04-10&business_days=3", "", "", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp lifecyclehttp.DueDatePreviewResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "2025-04-22", resp.DueAt)

	rr = doJSON(t, server, http.MethodGet, "/v1/deadlines/preview?start=2025-04-10&business_days=abc", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, server, http.MethodGet, "/v1/deadlines/preview?start=2025-04-10&business_days=0", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSummaryListsEveryState(t *testing.T) {
	server := newTestServer(t)
	createRequest(t, server)

	rr := doJSON(t, server, http.MethodGet, "/v1/summary", "", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp lifecyclehttp.SummaryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.States, 7)
	assert.Equal(t, "pending", resp.States[0].State)
	assert.Equal(t, 1, resp.States[0].Count)
}

func TestOptionalSurfacesAreGated(t *testing.T) {
	server := newTestServer(t)

	rr := doJSON(t, server, http.MethodGet, "/metrics", "", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	withMetrics := New(server.lifecycle, Options{Metrics: metrics}, nil, ":0")
	rr = doJSON(t, withMetrics, http.MethodGet, "/metrics", "", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, withMetrics, http.MethodGet, "/healthz", "", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	server := newTestServer(t)
	withCORS := New(server.lifecycle, Options{AllowedOrigins: []string{"https://pqrsd.example.gov.co"}}, nil, ":0")

	req := httptest.NewRequest(http.MethodOptions, "/v1/requests", nil)
	req.Header.Set("Origin", "https://pqrsd.example.gov.co")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	withCORS.Handler().ServeHTTP(rr, req)

	assert.Equal(t, "https://pqrsd.example.gov.co", rr.Header().Get("Access-Control-Allow-Origin"))
}
