// CLAUDE:SUMMARY Read-only chi HTTP API over the JSON index: health, product lookup and facet filter, unresolved codes, run history.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/surfacekeeper/ledger"
	"github.com/hazyhaar/surfacekeeper/shield"
)

// Router returns the HTTP API:
//
//	GET /health
//	GET /api/products?field=value&...
//	GET /api/products/{code}
//	GET /api/unresolved
//	GET /api/runs?limit=N
func (k *Keeper) Router() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.ReadOnlyStack(k.logger) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", k.handleProducts)
		r.Get("/products/{code}", k.handleProduct)
		r.Get("/unresolved", k.handleUnresolved)
		r.Get("/runs", k.handleRuns)
	})
	return r
}

func (k *Keeper) handleProducts(w http.ResponseWriter, r *http.Request) {
	query := make(map[string]string)
	for key, vals := range r.URL.Query() {
		if len(vals) > 0 && vals[0] != "" {
			query[key] = vals[0]
		}
	}
	writeJSON(w, http.StatusOK, k.Filter(query))
}

func (k *Keeper) handleProduct(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	rec, ok := k.Lookup(code)
	if !ok {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("product %s not found", code))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (k *Keeper) handleUnresolved(w http.ResponseWriter, r *http.Request) {
	run, us, err := k.LatestUnresolved(r.Context())
	switch {
	case errors.Is(err, ErrNoLedger), errors.Is(err, ledger.ErrNoRuns):
		writeJSON(w, http.StatusOK, map[string]any{"run": nil, "unresolved": []ledger.UnresolvedCode{}})
		return
	case err != nil:
		shield.GetLogger(r.Context()).Error("catalog: unresolved", "error", err)
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "unresolved": us})
}

func (k *Keeper) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := k.Runs(r.Context(), queryInt(r, "limit", 20))
	switch {
	case errors.Is(err, ErrNoLedger):
		writeError(w, r, http.StatusNotFound, err)
		return
	case err != nil:
		shield.GetLogger(r.Context()).Error("catalog: runs", "error", err)
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []*ledger.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// Serve runs the HTTP API on addr until ctx is cancelled.
func (k *Keeper) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		addr = k.cfg.Serve.Addr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           k.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		k.logger.Info("catalog: http listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("catalog: shutdown: %w", err)
	}
	k.logger.Info("catalog: http stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError echoes the request trace ID so a client report can be matched
// to the server log.
func writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error(), "trace_id": shield.GetTraceID(r.Context())})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
