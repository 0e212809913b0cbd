// Package uigrp serves the single page that renders the wallet session.
package uigrp

import (
	"context"
	_ "embed"
	"net/http"
)

//go:embed assets/index.html
var index []byte

// Index writes the page. The page renders whatever the session event
// stream pushes to it.
func Index(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(index); err != nil {
		return err
	}

	return nil
}
