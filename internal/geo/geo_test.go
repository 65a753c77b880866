package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tempizhere/shortlink/internal/models"
	"go.uber.org/zap"
)

func newServer(t *testing.T, calls *atomic.Int32, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIPWhoResolver_Lookup(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/8.8.8.8", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ip":"8.8.8.8","success":true,"country":"United States","region":"California","city":"Mountain View","latitude":37.38,"longitude":-122.08}`))
	})
	r := NewIPWhoResolver(srv.URL+"/", nil, time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		g := r.Lookup(context.Background(), "8.8.8.8")
		assert.Equal(t, "United States", g.Country)
		assert.Equal(t, "California", g.Region)
		assert.Equal(t, "Mountain View", g.City)
		require.NotNil(t, g.Coordinates)
		assert.InDelta(t, 37.38, g.Coordinates.Latitude, 1e-9)
	}
	assert.Equal(t, int32(1), calls.Load(), "answers are memoized per IP")
}

func TestIPWhoResolver_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"Rejected", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"message":"Reserved range"}`))
		}},
		{"Server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"Broken body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"success":`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := newServer(t, &calls, tt.handler)
			r := NewIPWhoResolver(srv.URL, nil, time.Minute, zap.NewNop())

			assert.Equal(t, models.UnknownGeo(), r.Lookup(context.Background(), "1.1.1.1"))
			// ошибки не запоминаются
			r.Lookup(context.Background(), "1.1.1.1")
			assert.Equal(t, int32(2), calls.Load())
		})
	}
}

func TestIPWhoResolver_SkipsNonPublic(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, &calls, func(http.ResponseWriter, *http.Request) {})
	r := NewIPWhoResolver(srv.URL, nil, time.Minute, zap.NewNop())

	for _, ip := range []string{"", "not-an-ip", "127.0.0.1", "10.1.2.3", "192.168.0.10", "::1", "fe80::1"} {
		assert.Equal(t, models.UnknownGeo(), r.Lookup(context.Background(), ip), ip)
	}
	assert.Zero(t, calls.Load())
}

func TestNopResolver(t *testing.T) {
	assert.Equal(t, models.UnknownGeo(), NopResolver{}.Lookup(context.Background(), "8.8.8.8"))
}
