// Package monitor serves debugging charts for the registration pipeline:
// per-class feature counts and curvature statistics over recent scans.
package monitor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/yoshua-msc-thesis/loam-velodyne/internal/loam"
)

// defaultHistory is how many recent scans the server keeps for charting.
const defaultHistory = 600

// WebServer exposes debug endpoints over a bounded ring of recent scan
// statistics. Record is safe to call from the processing loop.
type WebServer struct {
	mu      sync.Mutex
	history []loam.ScanStats
	maxHist int
}

// NewWebServer creates a server keeping up to history scans (0 = default).
func NewWebServer(history int) *WebServer {
	if history <= 0 {
		history = defaultHistory
	}
	return &WebServer{maxHist: history}
}

// Record appends one scan's statistics, evicting the oldest past capacity.
// It satisfies loam.StatsSink.
func (ws *WebServer) Record(stats loam.ScanStats) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.history = append(ws.history, stats)
	if len(ws.history) > ws.maxHist {
		ws.history = ws.history[len(ws.history)-ws.maxHist:]
	}
}

// Handler returns the debug mux: /debug/features (chart), /debug/curvature
// (chart) and /api/scans (JSON of the ring, newest last).
func (ws *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/features", ws.handleFeatureChart)
	mux.HandleFunc("/debug/curvature", ws.handleCurvatureChart)
	mux.HandleFunc("/api/scans", ws.handleScansJSON)
	return mux
}

func (ws *WebServer) snapshot() []loam.ScanStats {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	out := make([]loam.ScanStats, len(ws.history))
	copy(out, ws.history)
	return out
}

// handleFeatureChart renders per-class feature counts for recent scans.
func (ws *WebServer) handleFeatureChart(w http.ResponseWriter, r *http.Request) {
	history := ws.snapshot()
	if len(history) == 0 {
		http.Error(w, "no scans recorded yet", http.StatusNotFound)
		return
	}

	xAxis := make([]string, len(history))
	sharp := make([]opts.LineData, len(history))
	lessSharp := make([]opts.LineData, len(history))
	flat := make([]opts.LineData, len(history))
	lessFlat := make([]opts.LineData, len(history))
	for i, s := range history {
		xAxis[i] = s.Stamp.Format("15:04:05.000")
		sharp[i] = opts.LineData{Value: s.CornerSharpCount}
		lessSharp[i] = opts.LineData{Value: s.CornerLessSharpCount}
		flat[i] = opts.LineData{Value: s.SurfaceFlatCount}
		lessFlat[i] = opts.LineData{Value: s.LessFlatScanCount}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Feature counts per scan"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)
	line.SetXAxis(xAxis).
		AddSeries("corner sharp", sharp).
		AddSeries("corner less sharp", lessSharp).
		AddSeries("surface flat", flat).
		AddSeries("less flat (scan)", lessFlat)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(w); err != nil {
		http.Error(w, fmt.Sprintf("rendering chart: %v", err), http.StatusInternalServerError)
	}
}

// handleCurvatureChart renders curvature distribution statistics for recent
// scans: mean, p50 and p95.
func (ws *WebServer) handleCurvatureChart(w http.ResponseWriter, r *http.Request) {
	history := ws.snapshot()
	if len(history) == 0 {
		http.Error(w, "no scans recorded yet", http.StatusNotFound)
		return
	}

	xAxis := make([]string, len(history))
	mean := make([]opts.LineData, len(history))
	p50 := make([]opts.LineData, len(history))
	p95 := make([]opts.LineData, len(history))
	for i, s := range history {
		xAxis[i] = s.Stamp.Format("15:04:05.000")
		mean[i] = opts.LineData{Value: s.CurvatureMean}
		p50[i] = opts.LineData{Value: s.CurvatureP50}
		p95[i] = opts.LineData{Value: s.CurvatureP95}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Curvature per scan"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)
	line.SetXAxis(xAxis).
		AddSeries("mean", mean).
		AddSeries("p50", p50).
		AddSeries("p95", p95)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(w); err != nil {
		http.Error(w, fmt.Sprintf("rendering chart: %v", err), http.StatusInternalServerError)
	}
}

// handleScansJSON returns the recorded scan statistics as JSON.
func (ws *WebServer) handleScansJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ws.snapshot()); err != nil {
		http.Error(w, fmt.Sprintf("encoding scans: %v", err), http.StatusInternalServerError)
	}
}
