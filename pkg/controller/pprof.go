package controller

import (
	"net/http"
	"net/http/pprof"
	"strings"
)

// PprofPrefix is where the API server mounts the profiling endpoints.
const PprofPrefix = "/debug/pprof/"

// PprofMux returns an http.ServeMux with net/http/pprof handlers registered
// under prefix, so it can be mounted at that same path of the main server.
// Named profiles (heap, goroutine, ...) are served by the index handler.
func PprofMux(prefix string) *http.ServeMux {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	mux := http.NewServeMux()
	mux.HandleFunc(prefix, pprof.Index)
	mux.HandleFunc(prefix+"cmdline", pprof.Cmdline)
	mux.HandleFunc(prefix+"profile", pprof.Profile)
	mux.HandleFunc(prefix+"symbol", pprof.Symbol)
	mux.HandleFunc(prefix+"trace", pprof.Trace)

	return mux
}
