package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gnssmon/internal/basestation"
	"gnssmon/internal/stationcfg"
)

//go:embed assets/*
var embeddedAssets embed.FS

// Monitor is the slice of the basestation service the web surface reads.
type Monitor interface {
	Snapshot() basestation.Snapshot
	Watch(buffer int) (int, <-chan basestation.Snapshot)
	Unwatch(id int)
}

// Restarter restarts the receiver service after a settings change.
type Restarter interface {
	Restart(ctx context.Context) error
}

type Deps struct {
	Monitor   Monitor
	Settings  stationcfg.Store
	Locations stationcfg.Locations
	Restarter Restarter
	Logs      *LogBuffer
	StartUTC  time.Time
}

type StatusResponse struct {
	Service   string               `json:"service"`
	NowUTC    string               `json:"now_utc"`
	UptimeSec int64                `json:"uptime_sec"`
	Monitor   basestation.Snapshot `json:"monitor"`
	Station   SettingsPayload      `json:"station"`
	// MatchedLocation names the bookmark whose coordinates match the
	// station settings, when one does.
	MatchedLocation string `json:"matched_location,omitempty"`
}

func Handler(deps Deps) http.Handler {
	mux := http.NewServeMux()

	assetsFS, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		// Should never happen; keep server functional with API only.
		assetsFS = nil
	}

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		now := time.Now().UTC()
		resp := StatusResponse{
			Service: "gnssmon",
			NowUTC:  now.Format(time.RFC3339Nano),
		}
		if !deps.StartUTC.IsZero() {
			resp.UptimeSec = int64(now.Sub(deps.StartUTC).Seconds())
		}
		if deps.Monitor != nil {
			resp.Monitor = deps.Monitor.Snapshot()
		}
		settings, err := deps.Settings.Current()
		if err != nil {
			http.Error(w, fmt.Sprintf("station settings: %v", err), http.StatusInternalServerError)
			return
		}
		resp.Station = settingsToPayload(settings)
		if loc, ok, err := deps.Locations.Find(settings.Coordinates.Latitude, settings.Coordinates.Longitude, settings.Coordinates.Altitude); err == nil && ok {
			resp.MatchedLocation = loc.Name
		}

		writeJSON(w, resp)
	})

	mux.Handle("/api/settings", settingsHandler(deps))
	mux.Handle("/api/locations", locationsHandler(deps))
	mux.Handle("/api/locations/apply", locationsApplyHandler(deps))

	if deps.Logs != nil {
		mux.Handle("/api/logs", deps.Logs.Handler())
	}

	mux.Handle("/api/about", AboutHandler())
	mux.Handle("/metrics", promhttp.Handler())

	if deps.Monitor != nil {
		mux.Handle("/ws/status", statusSocket(deps.Monitor))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		if assetsFS == nil {
			// Fallback minimal page if embedding failed.
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>gnssmon</title></head><body>")
			_, _ = fmt.Fprintf(w, "<h1>gnssmon</h1><p>Web UI is unavailable. Use <a href=\"/api/status\">/api/status</a>.</p>")
			_, _ = fmt.Fprintf(w, "</body></html>")
			return
		}

		b, err := fs.ReadFile(assetsFS, "index.html")
		if err != nil {
			http.Error(w, "ui unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(b)
	})

	return mux
}

func Serve(ctx context.Context, listenAddr string, deps Deps) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}
