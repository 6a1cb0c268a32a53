package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenderwatch/ted-adapter/internal/ted"
)

const rawRecords = `[
  {"notice-identifier": "P1", "identifier-lot": ["LOT-0001"], "notice-title": {"eng": "Cleaning"},
   "buyer-country": ["DNK"], "deadline-receipt-tender-date-lot": ["2024-03-06T10:00:00Z"]},
  {"notice-identifier": "P1", "identifier-lot": ["LOT-0002"]},
  {"notice-identifier": "P1", "identifier-lot": ["LOT-0003"]},
  {"notice-identifier": "P2", "identifier-lot": ["LOT-0000"],
   "deadline-receipt-tender-date-lot": ["2024-02-28T10:00:00Z"]},
  {"title-lot": "no identifier"}
]`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeOutput(t *testing.T, data []byte) outputFile {
	t.Helper()
	var out outputFile
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

// ─── aggregate ───

func TestAggregate_ToStdout(t *testing.T) {
	in := filepath.Join(t.TempDir(), "raw.json")
	require.NoError(t, os.WriteFile(in, []byte(rawRecords), 0o600))

	stdout, err := runCLI(t, "aggregate", "--in", in, "--out", "-", "--now", "2024-03-01T12:00:00Z")
	require.NoError(t, err)

	out := decodeOutput(t, []byte(stdout))
	require.Len(t, out.Tenders, 1)
	assert.Equal(t, 1, out.Metadata.Total)
	assert.Equal(t, 5, out.Metadata.Stats.RecordsIn)
	assert.Equal(t, 1, out.Metadata.Stats.RecordsSkipped)
	assert.Equal(t, 1, out.Metadata.Stats.ExpiredRemoved)

	p1 := out.Tenders[0]
	assert.Equal(t, "P1", p1.NoticeIdentifier)
	assert.True(t, p1.Strategic.IsMultiLot)
	assert.Equal(t, 3, p1.Strategic.TotalLots)
	assert.Equal(t, "CRITICAL", p1.Dates.UrgencyLevel)
}

func TestAggregate_SearchResponseToFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "page.json")
	outPath := filepath.Join(dir, "tenders.json")
	require.NoError(t, os.WriteFile(in, []byte(`{"notices":`+rawRecords+`,"totalNoticeCount":5}`), 0o600))

	_, err := runCLI(t, "aggregate", "-i", in, "-o", outPath, "--now", "2024-03-01T12:00:00Z")
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Len(t, decodeOutput(t, data).Tenders, 1)
}

func TestAggregate_Errors(t *testing.T) {
	_, err := runCLI(t, "aggregate")
	assert.Error(t, err)

	_, err = runCLI(t, "aggregate", "--in", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{not json`), 0o600))
	_, err = runCLI(t, "aggregate", "--in", bad, "--out", "-")
	assert.Error(t, err)

	_, err = runCLI(t, "aggregate", "--in", bad, "--now", "yesterday")
	assert.Error(t, err)
}

func TestDecodeRecords(t *testing.T) {
	recs, err := decodeRecords([]byte("  [{\"a\":1}]"))
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	recs, err = decodeRecords([]byte(`{"notices":[{"a":1},{"b":2}]}`))
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestDecodeRecords_NonObjectElementsKept(t *testing.T) {
	for _, input := range []string{
		`[{"notice-identifier":"P1"},"garbage"]`,
		`{"notices":[{"notice-identifier":"P1"},"garbage"]}`,
	} {
		recs, err := decodeRecords([]byte(input))
		require.NoError(t, err, input)
		require.Len(t, recs, 2, input)
		assert.Equal(t, "P1", recs[0]["notice-identifier"])
		assert.Nil(t, recs[1])
		assert.Equal(t, 1, recs.Malformed())
	}
}

func TestAggregate_NonObjectRecordsAreSkipped(t *testing.T) {
	in := filepath.Join(t.TempDir(), "raw.json")
	mixed := `[{"notice-identifier": "P1", "identifier-lot": ["LOT-0001"]}, "garbage", 17, null]`
	require.NoError(t, os.WriteFile(in, []byte(mixed), 0o600))

	stdout, err := runCLI(t, "aggregate", "--in", in, "--out", "-", "--now", "2024-03-01T12:00:00Z")
	require.NoError(t, err)

	out := decodeOutput(t, []byte(stdout))
	require.Len(t, out.Tenders, 1)
	assert.Equal(t, "P1", out.Tenders[0].NoticeIdentifier)
	assert.Equal(t, 4, out.Metadata.Stats.RecordsIn)
	assert.Equal(t, 3, out.Metadata.Stats.RecordsSkipped)
}

// ─── fetch ───

func TestFetch_AgainstStubAPI(t *testing.T) {
	var got ted.SearchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"notices":[
			{"notice-identifier":"P9","identifier-lot":["LOT-0001"],"deadline-receipt-tender-date-lot":["2999-01-01T00:00:00Z"]},
			{"notice-identifier":"P9","identifier-lot":["LOT-0002"]}
		],"totalNoticeCount":2}`))
	}))
	defer srv.Close()

	t.Setenv("TED_API_URL", srv.URL)
	t.Setenv("TED_REQUESTS_PER_SECOND", "100")
	t.Setenv("TED_RETRY_MAX", "0")

	dir := t.TempDir()
	outPath := filepath.Join(dir, "tenders.json")
	rawPath := filepath.Join(dir, "raw.json")

	_, err := runCLI(t, "fetch", "--countries", "dnk,swe", "--days", "7", "--core-fields", "--out", outPath, "--raw-out", rawPath)
	require.NoError(t, err)

	assert.Contains(t, got.Query, `buyer-country IN ("DNK", "SWE")`)
	assert.Contains(t, got.Query, "today(-7)")
	assert.Equal(t, ted.CoreFields, got.Fields)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	out := decodeOutput(t, data)
	require.Len(t, out.Tenders, 1)
	assert.Equal(t, 2, out.Metadata.Available)
	assert.Equal(t, len(ted.CoreFields), out.Metadata.Fields)
	assert.Equal(t, 2, out.Tenders[0].Strategic.TotalLots)

	raw, err := os.ReadFile(rawPath)
	require.NoError(t, err)
	recs, err := decodeRecords(raw)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}
