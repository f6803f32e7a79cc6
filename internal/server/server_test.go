package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/civicbrief/civicbrief/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populatedManager(t *testing.T, items []cache.Item) *cache.Manager {
	t.Helper()
	m := cache.NewManager(time.Hour, func(ctx context.Context) ([]cache.Item, error) {
		return items, nil
	})
	require.NoError(t, m.Refresh(context.Background()))
	return m
}

func sampleItems() []cache.Item {
	return []cache.Item{
		{
			ID: cache.ItemID("https://example.com/1"), Title: "Vaccine drive expands",
			Description: "hospital coverage grows", URL: "https://example.com/1",
			Source: "The Hindu", Language: "english", CategoryKey: "health",
			Category: "Health", FinalScore: 80,
		},
		{
			ID: cache.ItemID("https://example.com/2"), Title: "School enrollment rises",
			Description: "more students this year", URL: "https://example.com/2",
			Source: "BBC Hindi", Language: "hindi", CategoryKey: "education",
			Category: "Education", FinalScore: 65,
		},
	}
}

func doRequest(t *testing.T, h http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewsServesSnapshot(t *testing.T) {
	srv := New(populatedManager(t, sampleItems()), nil)
	rec := doRequest(t, srv.Router(), http.MethodGet, "/api/news", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success  bool         `json:"success"`
		News     []cache.Item `json:"news"`
		Total    int          `json:"total"`
		CachedAt *time.Time   `json:"cached_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Total)
	require.NotNil(t, resp.CachedAt)
	assert.False(t, resp.CachedAt.IsZero())
}

func TestNewsEmptyCacheAnswersWithLoadingMessage(t *testing.T) {
	m := cache.NewManager(time.Hour, func(ctx context.Context) ([]cache.Item, error) {
		return []cache.Item{}, nil
	})
	srv := New(m, nil)
	rec := doRequest(t, srv.Router(), http.MethodGet, "/api/news", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success bool   `json:"success"`
		Total   int    `json:"total"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 0, resp.Total)
	assert.Contains(t, resp.Message, "Loading news")
}

func TestNewsFilters(t *testing.T) {
	srv := New(populatedManager(t, sampleItems()), nil)
	router := srv.Router()

	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{"by category", "/api/news?category=health", []string{"https://example.com/1"}},
		{"by language", "/api/news?language=hindi", []string{"https://example.com/2"}},
		{"by search in title", "/api/news?search=enrollment", []string{"https://example.com/2"}},
		{"by search in description", "/api/news?search=hospital", []string{"https://example.com/1"}},
		{"category all passes everything", "/api/news?category=all", []string{"https://example.com/1", "https://example.com/2"}},
		{"no match", "/api/news?category=economy", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodGet, tt.target, "")
			require.Equal(t, http.StatusOK, rec.Code)
			var resp struct {
				News []cache.Item `json:"news"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			var urls []string
			for _, item := range resp.News {
				urls = append(urls, item.URL)
			}
			assert.Equal(t, tt.want, urls)
		})
	}
}

func TestRefreshEndpoint(t *testing.T) {
	srv := New(populatedManager(t, sampleItems()), nil)
	rec := doRequest(t, srv.Router(), http.MethodPost, "/api/refresh", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
}

func TestTrackValidation(t *testing.T) {
	srv := New(populatedManager(t, sampleItems()), nil)
	router := srv.Router()

	rec := doRequest(t, router, http.MethodPost, "/api/track", `{"action":"like"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/track", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Valid request with no database configured is a no-op, not an error.
	rec = doRequest(t, router, http.MethodPost, "/api/track",
		`{"news_url":"https://example.com/1","action":"like","category":"health"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	srv := New(populatedManager(t, sampleItems()), nil)
	rec := doRequest(t, srv.Router(), http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "fresh", resp["state"])
	assert.Equal(t, float64(2), resp["snapshotSize"])
	assert.Equal(t, false, resp["refreshing"])
}

func TestExportEndpoint(t *testing.T) {
	srv := New(populatedManager(t, sampleItems()), nil)
	rec := doRequest(t, srv.Router(), http.MethodGet, "/api/export", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Title")
	assert.Contains(t, lines[1], "Vaccine drive expands")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := New(populatedManager(t, sampleItems()), nil)
	rec := doRequest(t, srv.Router(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "items_published")
	// Without a database the feedback section contributes nothing, and the
	// payload stays well-formed.
	for k := range resp {
		assert.NotContains(t, k, "feedback_")
	}
}
