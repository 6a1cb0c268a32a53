package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tenderwatch/ted-adapter/internal/jobs"
	"github.com/tenderwatch/ted-adapter/internal/store"
	"github.com/tenderwatch/ted-adapter/pkg/model"
)

// --- mocks ---

type mockRuns struct {
	run       *model.RunResult
	runErr    error
	tender    *model.Tender
	tenderErr error
	healthErr error
}

func (m *mockRuns) LatestRun(context.Context) (*model.RunResult, error) {
	return m.run, m.runErr
}

func (m *mockRuns) GetTender(_ context.Context, id string) (*model.Tender, error) {
	if m.tender != nil && m.tender.NoticeIdentifier == id {
		return m.tender, nil
	}
	if m.tenderErr != nil {
		return nil, m.tenderErr
	}
	return nil, store.ErrNotFound
}

func (m *mockRuns) HealthCheck(context.Context) error { return m.healthErr }

type mockTrigger struct {
	run *model.RunResult
	err error
}

func (m *mockTrigger) RunOnce(context.Context) (*model.RunResult, error) {
	return m.run, m.err
}

// --- helpers ---

func strPtr(s string) *string { return &s }

func testRun() *model.RunResult {
	return &model.RunResult{
		RunID:       "run-1",
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Query:       "q",
		Available:   4,
		Fields:      24,
		Stats:       model.Stats{Total: 3, Urgency: map[string]int{"CRITICAL": 1, "NORMAL": 2}},
		Tenders: []model.Tender{
			{
				NoticeIdentifier: "N1",
				Dates:            model.Dates{UrgencyLevel: "CRITICAL"},
				Financial:        model.Financial{ValueCategory: strPtr("MICRO")},
				Buyer:            model.Buyer{Country: strPtr("DNK")},
				Classification:   model.Classification{CPVCode: strPtr("90910000")},
				Strategic:        model.Strategic{IsMultiLot: true, TotalLots: 3, IsSMEAccessible: true},
			},
			{
				NoticeIdentifier: "N2",
				Dates:            model.Dates{UrgencyLevel: "NORMAL"},
				Financial:        model.Financial{ValueCategory: strPtr("LARGE")},
				Buyer:            model.Buyer{Country: strPtr("SWE")},
				Classification:   model.Classification{CPVCode: strPtr("45233141")},
				Strategic:        model.Strategic{TotalLots: 1},
			},
			{
				NoticeIdentifier: "N3",
				Dates:            model.Dates{UrgencyLevel: "NORMAL"},
				Buyer:            model.Buyer{Country: strPtr("DNK")},
				Strategic:        model.Strategic{TotalLots: 1},
			},
		},
	}
}

func newTestApp(runs *mockRuns, trigger RunTrigger) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app, nil, runs, NewTenderHandler(zap.NewNop(), runs, trigger))
	return app
}

func doGet(t *testing.T, app *fiber.App, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func listIDs(t *testing.T, body []byte) []string {
	t.Helper()
	var out TenderListResponse
	require.NoError(t, json.Unmarshal(body, &out))
	ids := make([]string, len(out.Tenders))
	for i, tn := range out.Tenders {
		ids[i] = tn.NoticeIdentifier
	}
	return ids
}

// ─── ListTenders ───

func TestListTenders_All(t *testing.T) {
	app := newTestApp(&mockRuns{run: testRun()}, nil)

	resp, body := doGet(t, app, "/api/v1/tenders")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out TenderListResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, 3, out.Total)
	assert.Equal(t, 3, out.Matched)
	assert.Equal(t, []string{"N1", "N2", "N3"}, listIDs(t, body))
}

func TestListTenders_Filters(t *testing.T) {
	app := newTestApp(&mockRuns{run: testRun()}, nil)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"urgency", "?urgency=critical", []string{"N1"}},
		{"urgency list", "?urgency=CRITICAL,NORMAL", []string{"N1", "N2", "N3"}},
		{"bracket", "?bracket=LARGE", []string{"N2"}},
		{"multi lot", "?multi_lot=true", []string{"N1"}},
		{"single lot", "?multi_lot=false", []string{"N2", "N3"}},
		{"country", "?country=dnk", []string{"N1", "N3"}},
		{"cpv prefix", "?cpv=4523", []string{"N2"}},
		{"sme", "?sme=true", []string{"N1"}},
		{"combined", "?country=DNK&urgency=NORMAL", []string{"N3"}},
		{"paged", "?limit=1&offset=1", []string{"N2"}},
		{"offset past end", "?offset=10", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doGet(t, app, "/api/v1/tenders"+tt.query)
			require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
			assert.Equal(t, tt.want, listIDs(t, body))
		})
	}
}

func TestListTenders_BadQuery(t *testing.T) {
	app := newTestApp(&mockRuns{run: testRun()}, nil)

	for _, q := range []string{"?urgency=SOON", "?bracket=HUGE", "?multi_lot=maybe", "?limit=0", "?limit=5000", "?offset=-1", "?limit=x"} {
		resp, body := doGet(t, app, "/api/v1/tenders"+q)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, q)
		assert.Contains(t, string(body), "error")
	}
}

func TestListTenders_NoRun(t *testing.T) {
	app := newTestApp(&mockRuns{runErr: store.ErrNoRun}, nil)

	resp, body := doGet(t, app, "/api/v1/tenders")
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), "no completed refresh yet")
}

func TestListTenders_StoreError(t *testing.T) {
	app := newTestApp(&mockRuns{runErr: errors.New("redis down")}, nil)

	resp, _ := doGet(t, app, "/api/v1/tenders")
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

// ─── GetTender ───

func TestGetTender(t *testing.T) {
	runs := &mockRuns{tender: &model.Tender{NoticeIdentifier: "N1", Title: "Cleaning"}}
	app := newTestApp(runs, nil)

	resp, body := doGet(t, app, "/api/v1/tenders/N1")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got model.Tender
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "Cleaning", got.Title)

	resp, _ = doGet(t, app, "/api/v1/tenders/missing")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetTender_StoreError(t *testing.T) {
	app := newTestApp(&mockRuns{tenderErr: errors.New("boom")}, nil)

	resp, _ := doGet(t, app, "/api/v1/tenders/N9")
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

// ─── Stats ───

func TestStats(t *testing.T) {
	app := newTestApp(&mockRuns{run: testRun()}, nil)

	resp, body := doGet(t, app, "/api/v1/stats")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out struct {
		RunID     string      `json:"run_id"`
		Available int         `json:"available"`
		Stats     model.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, 4, out.Available)
	assert.Equal(t, 3, out.Stats.Total)
	assert.Equal(t, 1, out.Stats.Urgency["CRITICAL"])
}

// ─── Refresh ───

func doPost(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, path, nil))
	require.NoError(t, err)
	return resp
}

func TestRefresh(t *testing.T) {
	app := newTestApp(&mockRuns{}, &mockTrigger{run: testRun()})
	assert.Equal(t, fiber.StatusOK, doPost(t, app, "/api/v1/refresh").StatusCode)
}

func TestRefresh_InProgress(t *testing.T) {
	app := newTestApp(&mockRuns{}, &mockTrigger{err: jobs.ErrRefreshInProgress})
	assert.Equal(t, fiber.StatusConflict, doPost(t, app, "/api/v1/refresh").StatusCode)
}

func TestRefresh_Failure(t *testing.T) {
	app := newTestApp(&mockRuns{}, &mockTrigger{err: errors.New("fetch: upstream down")})
	assert.Equal(t, fiber.StatusBadGateway, doPost(t, app, "/api/v1/refresh").StatusCode)
}

func TestRefresh_Disabled(t *testing.T) {
	app := newTestApp(&mockRuns{}, nil)
	assert.Equal(t, fiber.StatusNotImplemented, doPost(t, app, "/api/v1/refresh").StatusCode)
}

// ─── Health / Metrics ───

func TestHealth(t *testing.T) {
	app := newTestApp(&mockRuns{}, nil)

	resp, body := doGet(t, app, "/health")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","checks":{"nats":"disabled","store":"ok"}}`, string(body))
}

func TestHealth_StoreDown(t *testing.T) {
	app := newTestApp(&mockRuns{healthErr: errors.New("redis ping failed")}, nil)

	resp, body := doGet(t, app, "/health")
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), "degraded")
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(&mockRuns{}, nil)

	resp, _ := doGet(t, app, "/metrics")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
