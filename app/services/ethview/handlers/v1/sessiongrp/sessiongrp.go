// Package sessiongrp maintains the group of handlers for the wallet session.
package sessiongrp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/ethview/business/core/session"
	"github.com/ardanlabs/ethview/business/sys/metrics"
	"github.com/ardanlabs/ethview/business/sys/validate"
	"github.com/ardanlabs/ethview/business/web/browser"
	"github.com/ardanlabs/ethview/business/web/errs"
	"github.com/ardanlabs/ethview/foundation/events"
	"github.com/ardanlabs/ethview/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of session endpoints.
type Handlers struct {
	Log     *zap.SugaredLogger
	Session *session.Reconciler
	Browser *browser.Browser
	Evts    *events.Events
	Metrics *metrics.Metrics
	WS      websocket.Upgrader
}

// Events handles a web socket to push session frames to the page. The
// first frame is the current session.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	// The upgrade hijacked the connection so the status can't be changed.
	web.SetStatusCode(ctx, http.StatusSwitchingProtocols)

	ch := h.Evts.Acquire(v.TraceID)
	defer func() {
		h.Evts.Release(v.TraceID)
		h.Metrics.StreamClients(h.Evts.Count())
	}()
	h.Metrics.StreamClients(h.Evts.Count())

	frame, err := h.Browser.StateFrame(h.Session.Snapshot())
	if err != nil {
		return err
	}
	if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
		return nil
	}

	// Questions asked before this page attached are still waiting.
	prompts, err := h.Browser.PromptFrames()
	if err != nil {
		return err
	}
	for _, prompt := range prompts {
		if err := c.WriteMessage(websocket.TextMessage, prompt); err != nil {
			return nil
		}
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Query returns the current session.
func (h Handlers) Query(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Browser.View(h.Session.Snapshot()), http.StatusOK)
}

// Connect requests access to the wallet's accounts. The accounts arrive
// later through the event stream.
func (h Handlers) Connect(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.Session.Connect(ctx); err != nil {
		return toTrusted(err)
	}

	return web.Respond(ctx, w, status{Status: "connect requested"}, http.StatusAccepted)
}

// RefreshAccounts reads the accounts the wallet has authorized.
func (h Handlers) RefreshAccounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.Session.RefreshAccounts(ctx); err != nil {
		return toTrusted(err)
	}

	return web.Respond(ctx, w, status{Status: "accounts requested"}, http.StatusAccepted)
}

// Disconnect is a placeholder that leaves the session as is.
func (h Handlers) Disconnect(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.Session.Disconnect(ctx); err != nil {
		return toTrusted(err)
	}

	return web.Respond(ctx, w, status{Status: "disconnected"}, http.StatusOK)
}

// SendTransaction submits the configured transfer and waits for its receipt.
func (h Handlers) SendTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	receipt, err := h.Session.SendTransaction(ctx)
	if err != nil {
		return toTrusted(err)
	}

	h.Log.Infow("send tran", "traceid", v.TraceID, "tx", receipt.TxHash, "block", receipt.BlockNumber, "status", receipt.Status)

	return web.Respond(ctx, w, toReceipt(receipt), http.StatusOK)
}

// AnswerPrompt delivers the page's answer to a pending confirmation.
func (h Handlers) AnswerPrompt(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id := web.Param(r, "id")
	if err := validate.CheckID(id); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	var ans answer
	if err := web.Decode(r, &ans); err != nil {
		if validate.IsFieldErrors(err) {
			return err
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := h.Browser.Answer(id, *ans.Confirmed); err != nil {
		if errors.Is(err, browser.ErrUnknownPrompt) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return fmt.Errorf("answer prompt[%s]: %w", id, err)
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// toTrusted maps session errors to the status the page should see.
func toTrusted(err error) error {
	switch {
	case errors.Is(err, session.ErrNoProvider):
		return errs.NewTrusted(err, http.StatusServiceUnavailable)
	case errors.Is(err, session.ErrNotConnected):
		return errs.NewTrusted(err, http.StatusConflict)
	}
	return err
}
