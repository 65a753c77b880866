package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// BenchmarkLogging измеряет накладные расходы логирования
func BenchmarkLogging(b *testing.B) {
	handler := Logging(zap.NewNop())(http.HandlerFunc(okHandler))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/abc1234", nil))
	}
}

// BenchmarkGzip измеряет сжатие JSON-ответа аналитики
func BenchmarkGzip(b *testing.B) {
	body := []byte(`{"stats":[` + strings.Repeat(`{"label":"Chrome","count":10},`, 100) + `{"label":"Safari","count":1}]}`)
	handler := Gzip(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/links/abc1234/analytics/browsers", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
