package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/IliaW/jamaah-scrape-worker/internal/model"
	"github.com/IliaW/jamaah-scrape-worker/internal/registry"
	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

var today = time.Date(2025, time.November, 15, 0, 0, 0, 0, time.UTC)

type fakeCache struct {
	snapshots map[string]*model.DailySnapshot
	requested []string
	current   *model.DailySnapshot
	err       error
}

func (f *fakeCache) Get(_ context.Context, date time.Time) (*model.DailySnapshot, bool, error) {
	key := date.Format(model.DateLayout)
	f.requested = append(f.requested, key)
	if f.err != nil {
		return nil, false, f.err
	}
	if s, ok := f.snapshots[key]; ok {
		return s, true, nil
	}
	s := &model.DailySnapshot{Date: key, UpdatedAt: today}
	f.snapshots[key] = s
	return s, false, nil
}

func (f *fakeCache) Current() *model.DailySnapshot {
	return f.current
}

func (f *fakeCache) Today() time.Time {
	return today
}

func newTestRouter(cache SnapshotCache) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(cache, registry.Default(), time.UTC, "test", testLog)
	return NewRouter(h, []string{"*"}, testLog)
}

func get(t *testing.T, r http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Origin", "https://example.org")
	r.ServeHTTP(w, req)
	return w
}

func TestKentMosquesDefaultsToToday(t *testing.T) {
	d := &model.MosqueDescriptor{ID: "kmwa", Name: "KMWA", URL: "https://kmwa.example", Address: "Chatham"}
	result := model.NewMosqueResult(d, model.Extraction{
		Jamaah: model.PrayerTimeSet{model.Fajr: "05:15", model.Dhuhr: "13:00"},
	}, today)
	cache := &fakeCache{snapshots: map[string]*model.DailySnapshot{
		"2025-11-15": {Date: "2025-11-15", Results: []model.MosqueResult{result}},
	}}

	w := get(t, newTestRouter(cache), "/api/kent-mosques")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.JSONEq(t, `{
		"date": "2025-11-15",
		"fromCache": true,
		"data": [{
			"id": "kmwa", "name": "KMWA", "url": "https://kmwa.example", "address": "Chatham",
			"jamaah": {"Fajr": "05:15", "Dhuhr": "13:00", "Asr": null, "Maghrib": null, "Isha": null},
			"jummah": [],
			"confidence": "high",
			"scrapedAt": "2025-11-15T00:00:00Z"
		}]
	}`, w.Body.String())
}

func TestKentMosquesWithDate(t *testing.T) {
	cache := &fakeCache{snapshots: map[string]*model.DailySnapshot{}}

	w := get(t, newTestRouter(cache), "/api/kent-mosques?date=2025-11-20")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"2025-11-20"}, cache.requested)
	assert.JSONEq(t, `{"date":"2025-11-20","fromCache":false,"data":[]}`, w.Body.String())
}

func TestKentMosquesBadDate(t *testing.T) {
	cache := &fakeCache{snapshots: map[string]*model.DailySnapshot{}}

	w := get(t, newTestRouter(cache), "/api/kent-mosques?date=15/11/2025")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)
	assert.Empty(t, cache.requested)
}

func TestKentMosquesFailure(t *testing.T) {
	cache := &fakeCache{err: errors.New("save snapshot 2025-11-15: read-only file system")}

	w := get(t, newTestRouter(cache), "/api/kent-mosques")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"save snapshot 2025-11-15: read-only file system"}`, w.Body.String())
}

func TestStatus(t *testing.T) {
	cache := &fakeCache{}
	r := newTestRouter(cache)

	w := get(t, r, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","date":"2025-11-15","updatedAt":null,"version":"test"}`, w.Body.String())

	cache.current = &model.DailySnapshot{Date: "2025-11-15", UpdatedAt: time.Date(2025, 11, 15, 3, 0, 0, 0, time.UTC)}
	w = get(t, r, "/api/status")
	assert.JSONEq(t, `{"status":"ok","date":"2025-11-15","updatedAt":"2025-11-15T03:00:00Z","version":"test"}`,
		w.Body.String())
}

func TestUsageAndMosques(t *testing.T) {
	r := newTestRouter(&fakeCache{})

	w := get(t, r, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/kent-mosques")

	w = get(t, r, "/api/mosques")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Mosques []model.MosqueDescriptor `json:"mosques"`
	}
	require.NoError(t, jsoniter.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Mosques, registry.Default().Len())
	assert.Equal(t, "kmwa", body.Mosques[0].ID)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(&fakeCache{snapshots: map[string]*model.DailySnapshot{}})
	get(t, r, "/api/kent-mosques")

	w := get(t, r, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "jamaah_http_requests_total")
}
