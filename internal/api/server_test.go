package api_test

import (
	"net/http"
	"net/http/httptest"
	"qrshield/internal/api"
	"qrshield/internal/api/handler/v1handler"
	mockanalyzer "qrshield/internal/analyzer/mock"
	"qrshield/pkg/domain"
	"qrshield/pkg/logger"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestMain(m *testing.M) {
	logger.Setup(logger.DevelopmentEnvironment)
	m.Run()
}

func newHandler(t *testing.T) (*mockanalyzer.MockAnalyzer, http.Handler) {
	t.Helper()

	a := mockanalyzer.NewMockAnalyzer(gomock.NewController(t))
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "qrshield_test_total"}))

	h, err := api.NewHandler(api.Deps{Deps: v1handler.Deps{Analyzer: a}}, api.Options{
		SecHandlerOptions: &v1handler.SecHandlerOptions{},
		RequestTimeout:    time.Second,
		MetricsPath:       "/metrics",
		Gatherer:          registry,
	})
	require.NoError(t, err)

	return a, h
}

func TestHandler_Routes(t *testing.T) {
	_, h := newHandler(t)

	cases := []struct {
		path        string
		status      int
		contains    string
		contentType string
	}{
		{"/healthz", http.StatusOK, `{"ok":true}`, "application/json"},
		{"/metrics", http.StatusOK, "qrshield_test_total", ""},
		{"/specs/v1.yaml", http.StatusOK, "openapi: 3.0.3", "application/yaml"},
		{"/v1/docs/", http.StatusOK, "QR Shield", ""},
		{"/debug/pprof/", http.StatusOK, "", ""},
		{"/v1/unknown", http.StatusNotFound, `"NOT_FOUND"`, "application/json"},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))

			require.Equal(t, tc.status, rec.Code)
			require.Contains(t, rec.Body.String(), tc.contains)
			if tc.contentType != "" {
				require.Equal(t, tc.contentType, rec.Header().Get("Content-Type"))
			}
			require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestHandler_ResolveThroughMiddlewares(t *testing.T) {
	a, h := newHandler(t)
	a.EXPECT().Resolve(gomock.Any(), "https://example.com/", gomock.Any()).
		Return(domain.NewExpansion("https://example.com/"), nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/resolve", strings.NewReader(`{"url":"https://example.com/"}`))
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Body.String(), `"resolved_url":"https://example.com/"`)
}

func TestHandler_StreamBypassesTimeoutWriter(t *testing.T) {
	a, h := newHandler(t)

	ch := make(chan domain.Report, 2)
	ch <- domain.Report{Stage: domain.StageLocal}
	ch <- domain.Report{Stage: domain.StageResolved}
	close(ch)
	a.EXPECT().Inspect(gomock.Any(), "https://example.com/", gomock.Any()).Return((<-chan domain.Report)(ch), nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader(`{"url":"https://example.com/"}`))
	req.Header.Set("Accept", "application/x-ndjson")
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, rec.Flushed)
	require.Equal(t, 2, strings.Count(rec.Body.String(), "\n"))
}
