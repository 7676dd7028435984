package db

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/lmt.report/internal/httputil"
	"github.com/banshee-data/lmt.report/internal/monitoring"
)

// AttachAdminRoutes mounts the /debug/ pages for this database: a tailsql
// console, the task log and a compressed snapshot download.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "LMT " + filepath.Base(db.path),
	})
	debug.Handle("tailsql/", "SQL console over the tracking database", tsql.NewMux())

	debug.Handle("tasklog", "Most recent LOG entries", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entries, err := db.TaskLog(r.Context(), 100)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, entries)
	}))

	debug.Handle("snapshot", "Download a consistent gzip snapshot of the database", http.HandlerFunc(db.serveSnapshot))
	return nil
}

func (db *DB) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	dir, err := os.MkdirTemp("", "lmt-snapshot-")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to create snapshot dir: %v", err))
		return
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			monitoring.Logf("failed to remove snapshot dir %s: %v", dir, err)
		}
	}()

	snapshot := filepath.Join(dir, filepath.Base(db.path))
	if _, err := db.ExecContext(r.Context(), "VACUUM INTO ?", snapshot); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to create snapshot: %v", err))
		return
	}
	f, err := os.Open(snapshot)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to open snapshot: %v", err))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filepath.Base(db.path)))
	w.Header().Set("Content-Type", "application/gzip")
	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, f); err != nil {
		monitoring.Logf("snapshot of %s interrupted: %v", db.path, err)
	}
}
