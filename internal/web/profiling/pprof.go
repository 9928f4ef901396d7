// Package profiling exposes pprof endpoints. The endpoints reveal
// goroutine stacks and memory contents, so they are served on a
// separate internal-only listener, never on the public API port.
package profiling

import (
	"fmt"
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/go-chi/chi/v5"
)

// Config holds profiling configuration
type Config struct {
	// Enabled determines if profiling is enabled
	Enabled bool

	// Path is the URL path prefix for profiling endpoints (default: "/debug/pprof")
	Path string

	// EnableBlockProfile enables block profiling
	EnableBlockProfile bool

	// EnableMutexProfile enables mutex profiling
	EnableMutexProfile bool

	// BlockRate sets the block profiling rate (0 = disabled)
	BlockRate int

	// MutexFraction sets the mutex profiling fraction (0 = disabled)
	MutexFraction int
}

// DefaultConfig returns default profiling configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:            true,
		Path:               "/debug/pprof",
		EnableBlockProfile: true,
		EnableMutexProfile: true,
		BlockRate:          1,
		MutexFraction:      1,
	}
}

// RegisterRoutes registers pprof profiling routes with a router
func RegisterRoutes(router chi.Router, config *Config) {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return
	}

	if config.EnableBlockProfile {
		runtime.SetBlockProfileRate(config.BlockRate)
	}
	if config.EnableMutexProfile {
		runtime.SetMutexProfileFraction(config.MutexFraction)
	}

	router.Route(config.Path, func(r chi.Router) {
		r.HandleFunc("/", pprof.Index)
		r.HandleFunc("/cmdline", pprof.Cmdline)
		r.HandleFunc("/profile", pprof.Profile)
		r.HandleFunc("/symbol", pprof.Symbol)
		r.HandleFunc("/trace", pprof.Trace)

		r.Handle("/allocs", pprof.Handler("allocs"))
		r.Handle("/block", pprof.Handler("block"))
		r.Handle("/goroutine", pprof.Handler("goroutine"))
		r.Handle("/heap", pprof.Handler("heap"))
		r.Handle("/mutex", pprof.Handler("mutex"))
		r.Handle("/threadcreate", pprof.Handler("threadcreate"))
	})
}

// Handler returns an http.Handler serving the profiling endpoints
func Handler(config *Config) http.Handler {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Profiling is disabled", http.StatusForbidden)
		})
	}

	router := chi.NewRouter()
	RegisterRoutes(router, config)

	return router
}

// StartProfilingServer starts a dedicated profiling server on a separate port
func StartProfilingServer(addr string, config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return fmt.Errorf("profiling is disabled")
	}

	router := chi.NewRouter()
	RegisterRoutes(router, config)

	return http.ListenAndServe(addr, router)
}
