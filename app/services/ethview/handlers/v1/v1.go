// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/ethview/app/services/ethview/handlers/v1/sessiongrp"
	"github.com/ardanlabs/ethview/business/core/session"
	"github.com/ardanlabs/ethview/business/sys/metrics"
	"github.com/ardanlabs/ethview/business/web/browser"
	"github.com/ardanlabs/ethview/foundation/events"
	"github.com/ardanlabs/ethview/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log     *zap.SugaredLogger
	Session *session.Reconciler
	Browser *browser.Browser
	Evts    *events.Events
	Metrics *metrics.Metrics
}

// Routes binds all the version 1 routes.
func Routes(app *web.App, cfg Config) {
	sgh := sessiongrp.Handlers{
		Log:     cfg.Log,
		Session: cfg.Session,
		Browser: cfg.Browser,
		Evts:    cfg.Evts,
		Metrics: cfg.Metrics,
		WS:      websocket.Upgrader{},
	}

	app.Handle(http.MethodGet, version, "/events", sgh.Events)
	app.Handle(http.MethodGet, version, "/session", sgh.Query)
	app.Handle(http.MethodPost, version, "/connect", sgh.Connect)
	app.Handle(http.MethodPost, version, "/accounts/refresh", sgh.RefreshAccounts)
	app.Handle(http.MethodPost, version, "/disconnect", sgh.Disconnect)
	app.Handle(http.MethodPost, version, "/tx/send", sgh.SendTransaction)
	app.Handle(http.MethodPost, version, "/prompts/:id", sgh.AnswerPrompt)
}
