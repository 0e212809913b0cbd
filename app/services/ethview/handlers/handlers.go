// Package handlers manages the different versions of the API.
package handlers

import (
	"context"
	"expvar"
	"net/http"
	"net/http/pprof"
	"os"

	"github.com/ardanlabs/ethview/app/services/ethview/handlers/debug/checkgrp"
	"github.com/ardanlabs/ethview/app/services/ethview/handlers/uigrp"
	v1 "github.com/ardanlabs/ethview/app/services/ethview/handlers/v1"
	"github.com/ardanlabs/ethview/business/core/session"
	"github.com/ardanlabs/ethview/business/sys/metrics"
	"github.com/ardanlabs/ethview/business/web/browser"
	"github.com/ardanlabs/ethview/business/web/mid"
	"github.com/ardanlabs/ethview/foundation/events"
	"github.com/ardanlabs/ethview/foundation/provider"
	"github.com/ardanlabs/ethview/foundation/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MuxConfig contains all the mandatory systems required by handlers.
type MuxConfig struct {
	Shutdown chan os.Signal
	Log      *zap.SugaredLogger
	Session  *session.Reconciler
	Browser  *browser.Browser
	Evts     *events.Events
	Metrics  *metrics.Metrics
}

// APIMux constructs a http.Handler with the page and all application
// routes defined.
func APIMux(cfg MuxConfig) http.Handler {

	// Construct the web.App which holds all routes as well as common Middleware.
	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Metrics(cfg.Metrics),
		mid.Cors("*"),
		mid.Panics(cfg.Metrics),
	)

	// Accept CORS 'OPTIONS' preflight requests for every route. The Cors
	// middleware answers them.
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return nil
	}
	app.Handle(http.MethodOptions, "", "/*", h)

	// Register the page.
	app.Handle(http.MethodGet, "", "/", uigrp.Index)

	// Load the v1 routes.
	v1.Routes(app, v1.Config{
		Log:     cfg.Log,
		Session: cfg.Session,
		Browser: cfg.Browser,
		Evts:    cfg.Evts,
		Metrics: cfg.Metrics,
	})

	return app
}

// DebugStandardLibraryMux registers all the debug routes from the standard library
// into a new mux bypassing the use of the DefaultServerMux. Using the
// DefaultServerMux would be a security risk since a dependency could inject a
// handler into our service without us knowing it.
func DebugStandardLibraryMux() *http.ServeMux {
	mux := http.NewServeMux()

	// Register all the standard library debug endpoints.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	return mux
}

// DebugMux registers all the debug standard library routes and then custom
// debug application routes for the service. This bypassing the use of the
// DefaultServerMux. Using the DefaultServerMux would be a security risk since
// a dependency could inject a handler into our service without us knowing it.
func DebugMux(build string, log *zap.SugaredLogger, prov provider.Provider, reg *prometheus.Registry) http.Handler {
	mux := DebugStandardLibraryMux()

	// Register debug check endpoints.
	cgh := checkgrp.Handlers{
		Build:    build,
		Log:      log,
		Provider: prov,
	}
	mux.HandleFunc("/debug/readiness", cgh.Readiness)
	mux.HandleFunc("/debug/liveness", cgh.Liveness)

	// Register the prometheus collectors.
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return mux
}
