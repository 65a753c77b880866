package app

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tempizhere/shortlink/internal/analytics"
	"github.com/tempizhere/shortlink/internal/auth"
	"github.com/tempizhere/shortlink/internal/cache"
	"github.com/tempizhere/shortlink/internal/models"
	"github.com/tempizhere/shortlink/internal/repository"
	"github.com/tempizhere/shortlink/internal/service"
	"go.uber.org/zap"
)

const (
	testSecret    = "test-secret"
	trustedSubnet = "10.0.0.0/8"
	chromeUA      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// recordingSink запоминает поставленные в очередь клики
type recordingSink struct {
	mu   sync.Mutex
	reqs []models.ClickRequest
}

func (s *recordingSink) Enqueue(req models.ClickRequest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	return true
}

func (s *recordingSink) all() []models.ClickRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ClickRequest(nil), s.reqs...)
}

// failingAnalytics всегда возвращает заданную ошибку
type failingAnalytics struct{ err error }

func (f failingAnalytics) Get(context.Context, string, analytics.View, analytics.Options) (*analytics.Result, error) {
	return nil, f.err
}

type testEnv struct {
	router http.Handler
	repo   *repository.MemoryRepository
	sink   *recordingSink
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := repository.NewMemoryRepository()
	c := cache.NewMemoryCache(time.Minute)
	sink := &recordingSink{}
	svc := service.NewService(repo, c, sink, zap.NewNop(), service.Options{BaseURL: "http://localhost:8080"})
	agg := analytics.NewAggregator(repo, c, zap.NewNop(), analytics.Config{})
	appInstance := NewApp(svc, agg, zap.NewNop())
	return &testEnv{
		router: appInstance.Router(RouterOptions{Verifier: auth.NewVerifier(testSecret), TrustedSubnet: trustedSubnet}),
		repo:   repo,
		sink:   sink,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) create(t *testing.T, body string) models.LinkResponse {
	t.Helper()
	rr := e.do(httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp models.LinkResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestHandleCreateLink(t *testing.T) {
	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)

	tests := []struct {
		name          string
		body          string
		expectedCode  int
		expectedError string
		check         func(t *testing.T, resp models.LinkResponse)
	}{
		{
			name:         "Generated code",
			body:         `{"url":"HTTPS://Example.com/docs/"}`,
			expectedCode: http.StatusCreated,
			check: func(t *testing.T, resp models.LinkResponse) {
				assert.Equal(t, "https://example.com/docs", resp.OriginalURL)
				assert.Len(t, resp.Code, service.DefaultCodeLength)
				assert.Equal(t, "http://localhost:8080/"+resp.Code, resp.ShortURL)
				assert.True(t, resp.Created)
			},
		},
		{
			name:         "Custom alias with expiry",
			body:         `{"url":"https://example.com/promo","alias":"promo","expires_at":"` + future + `"}`,
			expectedCode: http.StatusCreated,
			check: func(t *testing.T, resp models.LinkResponse) {
				assert.Equal(t, "promo", resp.Code)
				assert.NotNil(t, resp.ExpiresAt)
			},
		},
		{
			name:         "Deduplicated",
			body:         `{"url":"https://example.com/existing"}`,
			expectedCode: http.StatusOK,
			check: func(t *testing.T, resp models.LinkResponse) {
				assert.Equal(t, "exist01", resp.Code)
				assert.False(t, resp.Created)
			},
		},
		{name: "Invalid JSON", body: `{"url":`, expectedCode: http.StatusBadRequest, expectedError: "Invalid JSON"},
		{name: "Invalid URL", body: `{"url":"ftp://example.com"}`, expectedCode: http.StatusBadRequest},
		{name: "Empty URL", body: `{"url":""}`, expectedCode: http.StatusBadRequest},
		{name: "Bad alias", body: `{"url":"https://example.com/a","alias":"a b!"}`, expectedCode: http.StatusBadRequest},
		{name: "Alias taken", body: `{"url":"https://example.com/b","alias":"exist01"}`, expectedCode: http.StatusConflict},
		{name: "Expiry in past", body: `{"url":"https://example.com/c","expires_at":"` + past + `"}`, expectedCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.repo.Create(context.Background(), &models.Link{
				Code: "exist01", OriginalURL: "https://example.com/existing", IsActive: true,
			})
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := env.do(req)

			assert.Equal(t, tt.expectedCode, rr.Code, rr.Body.String())
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			if tt.check != nil {
				var resp models.LinkResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				tt.check(t, resp)
				return
			}
			var errResp ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
			assert.NotEmpty(t, errResp.Error)
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, errResp.Error)
			}
		})
	}
}

func TestHandleCreateLink_Owner(t *testing.T) {
	env := newTestEnv(t)
	token, err := auth.NewVerifier(testSecret).IssueToken("user-42", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(`{"url":"https://example.com/mine"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := env.do(req)
	require.Equal(t, http.StatusCreated, rr.Code)

	link, err := env.repo.FindByOriginalURL(context.Background(), "https://example.com/mine")
	require.NoError(t, err)
	assert.Equal(t, "user-42", link.OwnerID)

	req = httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(`{"url":"https://example.com/other"}`))
	req.Header.Set("Authorization", "Bearer forged")
	rr = env.do(req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandleCreateLink_GzipRequest(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(`{"url":"https://example.com/gz"}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/links", &buf)
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Accept-Encoding", "gzip")
	rr := env.do(req)

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rr.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	var resp models.LinkResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "https://example.com/gz", resp.OriginalURL)
}

func TestHandleRedirect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	active := env.create(t, `{"url":"https://example.com/landing","alias":"land"}`)

	_, err := env.repo.Create(ctx, &models.Link{Code: "off0001", OriginalURL: "https://example.com/off", IsActive: false})
	require.NoError(t, err)
	expired := time.Now().Add(-time.Minute)
	_, err = env.repo.Create(ctx, &models.Link{Code: "old0001", OriginalURL: "https://example.com/old", IsActive: true, ExpiresAt: &expired})
	require.NoError(t, err)

	tests := []struct {
		name             string
		path             string
		expectedCode     int
		expectedLocation string
	}{
		{"Active", "/" + active.Code, http.StatusTemporaryRedirect, "https://example.com/landing"},
		{"Unknown", "/nope123", http.StatusNotFound, ""},
		{"Deactivated", "/off0001", http.StatusGone, ""},
		{"Expired", "/old0001", http.StatusGone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.expectedCode, rr.Code)
			assert.Equal(t, tt.expectedLocation, rr.Header().Get("Location"))
		})
	}

	// клик ставится в очередь только для успешного перехода
	assert.Len(t, env.sink.all(), 1)
}

func TestHandleRedirect_RequestMeta(t *testing.T) {
	env := newTestEnv(t)
	link := env.create(t, `{"url":"https://example.com/meta"}`)

	req := httptest.NewRequest(http.MethodGet, "/"+link.Code, nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("Referer", "https://news.example")
	req.Header.Set("User-Agent", chromeUA)
	rr := env.do(req)
	require.Equal(t, http.StatusTemporaryRedirect, rr.Code)

	clicks := env.sink.all()
	require.Len(t, clicks, 1)
	assert.Equal(t, link.Code, clicks[0].Code)
	assert.Equal(t, models.RequestMeta{IP: "203.0.113.7", Referrer: "https://news.example", UserAgent: chromeUA}, clicks[0].Meta)
	assert.False(t, clicks[0].OccurredAt.IsZero())
}

func TestHandleAnalytics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	link := env.create(t, `{"url":"https://example.com/stats","alias":"stats"}`)

	now := time.Now().UTC()
	for i, browser := range []string{"Chrome", "Chrome", "Firefox"} {
		_, err := env.repo.AppendClickEvent(ctx, &models.ClickEvent{
			Code:       link.Code,
			SourceIP:   fmt.Sprintf("203.0.113.%d", i+1),
			Device:     models.Device{Browser: browser, OS: "Linux", FormFactor: "Desktop"},
			Geo:        models.UnknownGeo(),
			OccurredAt: now.Add(-time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	tests := []struct {
		name         string
		path         string
		expectedCode int
		check        func(t *testing.T, res analytics.Result)
	}{
		{
			name:         "Browsers",
			path:         "/api/links/stats/analytics/browsers",
			expectedCode: http.StatusOK,
			check: func(t *testing.T, res analytics.Result) {
				assert.Equal(t, "browsers", res.View)
				assert.Equal(t, int64(3), res.Total)
				assert.Equal(t, []analytics.Stat{{Label: "Chrome", Count: 2}, {Label: "Firefox", Count: 1}}, res.Stats)
			},
		},
		{
			name:         "Clicks paged",
			path:         "/api/links/stats/analytics/clicks?limit=1&skip=1",
			expectedCode: http.StatusOK,
			check: func(t *testing.T, res analytics.Result) {
				assert.Equal(t, int64(3), res.Total)
				require.Len(t, res.Clicks, 1)
				assert.Equal(t, "203.0.113.2", res.Clicks[0].SourceIP)
			},
		},
		{
			name:         "Hourly time series",
			path:         "/api/links/stats/analytics/timeSeries?interval=hour",
			expectedCode: http.StatusOK,
			check: func(t *testing.T, res analytics.Result) {
				assert.Len(t, res.Buckets, analytics.DefaultBuckets)
			},
		},
		{
			name:         "Summary",
			path:         "/api/links/stats/analytics/summary",
			expectedCode: http.StatusOK,
			check: func(t *testing.T, res analytics.Result) {
				require.NotNil(t, res.Summary)
				assert.Equal(t, "https://example.com/stats", res.Summary.OriginalURL)
				assert.Equal(t, int64(3), res.Summary.TotalClicks)
			},
		},
		{name: "Unknown view", path: "/api/links/stats/analytics/heatmap", expectedCode: http.StatusBadRequest},
		{name: "Bad from", path: "/api/links/stats/analytics/clicks?from=yesterday", expectedCode: http.StatusBadRequest},
		{name: "Bad limit", path: "/api/links/stats/analytics/clicks?limit=ten", expectedCode: http.StatusBadRequest},
		{name: "Negative skip", path: "/api/links/stats/analytics/clicks?skip=-1", expectedCode: http.StatusBadRequest},
		{name: "Bad interval", path: "/api/links/stats/analytics/timeSeries?interval=week", expectedCode: http.StatusBadRequest},
		{
			name:         "From after to",
			path:         "/api/links/stats/analytics/clicks?from=2024-06-02T00:00:00Z&to=2024-06-01T00:00:00Z",
			expectedCode: http.StatusBadRequest,
		},
		{name: "Unknown link", path: "/api/links/nope123/analytics/browsers", expectedCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, tt.expectedCode, rr.Code, rr.Body.String())
			if tt.check == nil {
				return
			}
			var res analytics.Result
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
			tt.check(t, res)
		})
	}
}

func TestHandleAnalytics_AggregationFailed(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := service.NewService(repo, cache.NewMemoryCache(time.Minute), nil, zap.NewNop(), service.Options{})
	failure := fmt.Errorf("%w: %w", models.ErrAggregationFailed, errors.New("db down"))
	router := NewApp(svc, failingAnalytics{err: failure}, zap.NewNop()).Router(RouterOptions{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/links/abc1234/analytics/summary", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "db down")
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	link := env.create(t, `{"url":"https://example.com/admin"}`)
	path := "/api/links/" + link.Code

	admin := func(method, body, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if ip != "" {
			req.Header.Set("X-Real-IP", ip)
		}
		return env.do(req)
	}

	t.Run("Untrusted client", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, admin(http.MethodPatch, `{"is_active":false}`, "192.168.1.1").Code)
		assert.Equal(t, http.StatusForbidden, admin(http.MethodDelete, "", "").Code)
	})

	t.Run("Deactivate", func(t *testing.T) {
		// ссылка попадает в кэш разрешений
		require.Equal(t, http.StatusTemporaryRedirect, env.do(httptest.NewRequest(http.MethodGet, "/"+link.Code, nil)).Code)

		rr := admin(http.MethodPatch, `{"is_active":false}`, "10.1.2.3")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var updated models.Link
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
		assert.False(t, updated.IsActive)

		assert.Equal(t, http.StatusGone, env.do(httptest.NewRequest(http.MethodGet, "/"+link.Code, nil)).Code)
	})

	t.Run("Bad patch", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, admin(http.MethodPatch, `{"is_active":`, "10.1.2.3").Code)
		assert.Equal(t, http.StatusBadRequest, admin(http.MethodPatch, `{"expires_at":"2000-01-01T00:00:00Z"}`, "10.1.2.3").Code)
	})

	t.Run("Delete", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, admin(http.MethodDelete, "", "10.1.2.3").Code)
		assert.Equal(t, http.StatusNotFound, admin(http.MethodDelete, "", "10.1.2.3").Code)
		assert.Equal(t, http.StatusNotFound, env.do(httptest.NewRequest(http.MethodGet, "/"+link.Code, nil)).Code)
	})
}

func TestHandlePing(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrInvalidURL, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", models.ErrInvalidAliasFormat), http.StatusBadRequest},
		{models.ErrAliasTaken, http.StatusConflict},
		{models.ErrCreationConflict, http.StatusConflict},
		{models.ErrNotFound, http.StatusNotFound},
		{models.ErrExpired, http.StatusGone},
		{service.ErrCodeSpaceExhausted, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
