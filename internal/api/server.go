// Package api serves a read-only JSON view of one tracking database.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/banshee-data/lmt.report/internal/confirm"
	"github.com/banshee-data/lmt.report/internal/db"
	"github.com/banshee-data/lmt.report/internal/httputil"
	"github.com/banshee-data/lmt.report/internal/monitoring"
)

const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Store is what the handlers read. *db.DB implements it.
type Store interface {
	confirm.EventSource
	ListRuns(ctx context.Context, limit int) ([]db.Run, error)
}

type Server struct {
	store   Store
	builder *confirm.Builder
}

func NewServer(store Store, builder *confirm.Builder) *Server {
	return &Server{store: store, builder: builder}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/animals", s.listAnimals)
	mux.HandleFunc("/api/confirmed", s.listConfirmed)
	mux.HandleFunc("/api/runs", s.listRuns)
	return mux
}

func (s *Server) listAnimals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	animals, err := s.store.LoadAnimals(r.Context())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load animals: %v", err))
		return
	}
	out := make([]db.Animal, 0, len(animals))
	for _, a := range animals {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	httputil.WriteJSONOK(w, out)
}

// listConfirmed resolves confirmed intervals for ?animal=<id>, or for every
// animal when the parameter is absent.
func (s *Server) listConfirmed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id, one, err := httputil.QueryInt(r, "animal")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	animals, err := s.store.LoadAnimals(r.Context())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load animals: %v", err))
		return
	}
	ids := make([]int, 0, len(animals))
	if one {
		if _, ok := animals[id]; !ok {
			httputil.NotFound(w, fmt.Sprintf("animal %d not found", id))
			return
		}
		ids = append(ids, id)
	} else {
		for id := range animals {
			ids = append(ids, id)
		}
		sort.Ints(ids)
	}

	out := make([]confirm.AnimalReport, 0, len(ids))
	for _, id := range ids {
		ar, err := s.builder.BuildAnimal(r.Context(), s.store, animals[id])
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("animal %d: %v", id, err))
			return
		}
		if ar.Confirmed == nil {
			ar.Confirmed = []confirm.ConfirmedInterval{}
		}
		out = append(out, ar)
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit, ok, err := httputil.QueryInt(r, "limit")
	if err != nil || (ok && limit < 1) {
		httputil.BadRequest(w, "limit must be a positive integer")
		return
	}
	if !ok {
		limit = 50
	}
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts the
// server down.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	server := &http.Server{
		Addr:    addr,
		Handler: h,
	}

	errc := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	monitoring.Logf("serving on %s", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	monitoring.Logf("HTTP server stopped")
	return nil
}
