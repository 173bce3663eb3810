package charts

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/cmam-data/plate.report/internal/analysis"
	"github.com/cmam-data/plate.report/internal/config"
	"github.com/cmam-data/plate.report/internal/db"
	"github.com/cmam-data/plate.report/internal/monitoring"
)

// WebServer serves the chart viewer: an index of stored plate-assay
// keys and an on-demand chart page per key. Analyses run against the
// stored readings at request time, so the viewer always reflects the
// database.
type WebServer struct {
	address string
	db      *db.DB
	cfg     *config.Config
	server  *http.Server
}

// NewWebServer wires the viewer routes against a database and the
// analysis settings.
func NewWebServer(address string, database *db.DB, cfg *config.Config) *WebServer {
	ws := &WebServer{address: address, db: database, cfg: cfg}
	ws.server = &http.Server{
		Addr:    address,
		Handler: ws.setupRoutes(),
	}
	return ws
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleIndex)
	mux.HandleFunc("/charts", ws.handleCharts)
	mux.HandleFunc("/api/keys", ws.handleKeys)
	mux.HandleFunc("/api/runs", ws.handleRuns)

	return mux
}

// Start runs the server until the context is cancelled, then shuts it
// down.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		monitoring.Logf("starting chart viewer on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("chart viewer error: %v", err)
		}
	}()

	<-ctx.Done()
	monitoring.Logf("shutting down chart viewer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("chart viewer shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("chart viewer force close error: %v", err)
		}
	}
	return nil
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleIndex lists the stored keys with links to their chart pages.
func (ws *WebServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	keys, err := ws.db.ListKeys()
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list keys: %v", err))
		return
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>Plate Results</title></head><body>")
	b.WriteString("<h1>Plate Results</h1>")
	if len(keys) == 0 {
		b.WriteString("<p>No readings stored.</p>")
	} else {
		b.WriteString("<ul>")
		for _, k := range keys {
			safe := html.EscapeString(k)
			fmt.Fprintf(&b, `<li><a href="/charts?key=%s">%s</a></li>`, safe, safe)
		}
		b.WriteString("</ul>")
	}
	b.WriteString("</body></html>")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(b.String()))
}

// handleCharts analyzes one key and renders its chart page.
// Query params:
//   - key (required): plate-assay key, e.g. P1_AB
func (ws *WebServer) handleCharts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	key := r.URL.Query().Get("key")
	if key == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "missing 'key' parameter")
		return
	}
	plate, assay, ok := strings.Cut(key, "_")
	if !ok {
		ws.writeJSONError(w, http.StatusBadRequest, "key must be plate_assay")
		return
	}

	reads, err := ws.db.ReadsForKey(plate, assay)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("load readings: %v", err))
		return
	}
	if len(reads) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("no readings for %s", key))
		return
	}

	masks, err := ws.cfg.MaskSetFor(key)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("masks for %s: %v", key, err))
		return
	}
	// Preview convention: the control error stays the raw deviation
	// here; only the batch exports scale it down to a standard error.
	sections := ws.cfg.SectionSet()
	res, err := analysis.Analyze(key, reads, masks, sections, analysis.Options{
		SubtractControl: ws.cfg.GetSubtractNegCtrl(),
		ClampNegatives:  ws.cfg.GetClampNegatives(),
		Percent:         ws.cfg.GetUsePercentage(),
		Reference:       ws.cfg.GetReferenceSection(),
	})
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("analyze %s: %v", key, err))
		return
	}

	labels := SectionLabels(sections, ws.cfg.DosesFor(key, len(sections)), ws.cfg.GetSectionUnits())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := RenderResultPage(w, res, labels); err != nil {
		monitoring.Logf("render charts for %s: %v", key, err)
	}
}

// handleKeys returns the stored plate-assay keys as JSON.
func (ws *WebServer) handleKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := ws.db.ListKeys()
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list keys: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"keys": keys})
}

// handleRuns returns recent analysis runs as JSON.
// Query params:
//   - limit (optional, default 10, max 100)
func (ws *WebServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		fmt.Sscanf(l, "%d", &limit)
		if limit <= 0 || limit > 100 {
			limit = 10
		}
	}
	runs, err := ws.db.RecentAnalysisRuns(limit)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list runs: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"runs": runs})
}
