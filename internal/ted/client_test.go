package ted

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tenderwatch/ted-adapter/internal/httpclient"
	"github.com/tenderwatch/ted-adapter/internal/rate"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(zap.NewNop(), rate.NewManager(rate.Config{RequestsPerSecond: 1000, Burst: 10}), srv.Client(), srv.URL+"/v3/notices/search", 0)
}

// ─── Query ───

func TestQuery_String(t *testing.T) {
	q := Query{Countries: []string{"dnk", " SWE"}, LookbackDays: 15}
	assert.Equal(t,
		`notice-type IN (cn-standard, cn-social, pin-cfc-standard, pin-cfc-social) AND buyer-country IN ("DNK", "SWE") AND publication-date = (today(-15) <> today(0))`,
		q.String())
}

func TestQuery_StringOmitsEmptyClauses(t *testing.T) {
	q := Query{NoticeTypes: []string{"cn-standard"}}
	assert.Equal(t, "notice-type IN (cn-standard)", q.String())
}

func TestDefaultFields(t *testing.T) {
	fields := DefaultFields()
	assert.Len(t, fields, len(CoreFields)+len(ExtendedFields))
	assert.Equal(t, CoreFields, fields[:len(CoreFields)])

	seen := map[string]bool{}
	for _, f := range fields {
		assert.False(t, seen[f], "duplicate field %s", f)
		seen[f] = true
	}
}

// ─── Client ───

func TestClient_SearchSendsPayload(t *testing.T) {
	var got SearchRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/notices/search", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"notices":[{"notice-identifier":"N1","identifier-lot":"LOT-0001"}],"totalNoticeCount":7}`))
	})

	resp, err := c.Search(context.Background(), SearchRequest{
		Query: "q", Fields: CoreFields, Page: 2, Limit: 100,
		Scope: ScopeActive, PaginationMode: PaginationPageNumber, OnlyLatestVersions: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "q", got.Query)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 100, got.Limit)
	assert.Equal(t, "ACTIVE", got.Scope)
	assert.Equal(t, "PAGE_NUMBER", got.PaginationMode)
	assert.True(t, got.OnlyLatestVersions)
	assert.Equal(t, CoreFields, got.Fields)

	require.Len(t, resp.Notices, 1)
	assert.Equal(t, "N1", resp.Notices[0]["notice-identifier"])
	assert.Equal(t, 7, resp.Available())
}

func TestClient_NonObjectNoticeKeepsPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"notices":[{"notice-identifier":"N1"},"garbage",{"notice-identifier":"N2"}],"totalNoticeCount":3}`))
	})

	resp, err := c.Search(context.Background(), SearchRequest{Page: 1})
	require.NoError(t, err)
	require.Len(t, resp.Notices, 3)
	assert.Equal(t, "N1", resp.Notices[0]["notice-identifier"])
	assert.Nil(t, resp.Notices[1])
	assert.Equal(t, "N2", resp.Notices[2]["notice-identifier"])
	assert.Equal(t, 1, resp.Notices.Malformed())
}

func TestClient_HitsFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"notices":[],"hits":42}`))
	})
	resp, err := c.Search(context.Background(), SearchRequest{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 42, resp.Available())
}

func TestClient_UnsupportedFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Unsupported value 'gpa-lot' for field"}`))
	})
	_, err := c.Search(context.Background(), SearchRequest{Page: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFields)
}

func TestClient_OtherClientError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"syntax error in query"}`))
	})
	_, err := c.Search(context.Background(), SearchRequest{Page: 1})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnsupportedFields))

	var se *httpclient.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Status)
}
