package controller_test

import (
	"net/http"
	"net/http/httptest"
	"qrshield/pkg/controller"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func servePprof(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()

	// mounted the way the API server does it
	root := http.NewServeMux()
	root.Handle(controller.PprofPrefix, controller.PprofMux(controller.PprofPrefix))

	rec := httptest.NewRecorder()
	root.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	return rec
}

func TestPprofMux_Index(t *testing.T) {
	rec := servePprof(t, "/debug/pprof/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "goroutine")
}

func TestPprofMux_CmdlineUnderPrefix(t *testing.T) {
	rec := servePprof(t, "/debug/pprof/cmdline")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	require.NotContains(t, rec.Body.String(), "Unknown profile")
}

func TestPprofMux_NamedProfile(t *testing.T) {
	rec := servePprof(t, "/debug/pprof/goroutine?debug=1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "goroutine profile")
}

func TestPprofMux_AddsTrailingSlash(t *testing.T) {
	mux := controller.PprofMux("/internal/pprof")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/pprof/cmdline", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
