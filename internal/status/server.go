package status

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/oddsline/collector/internal/collector"
	"github.com/oddsline/collector/internal/metrics"
)

var statusPage = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head><title>Odds Collector</title>
<style>
body { font-family: monospace; margin: 2em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #999; padding: 4px 10px; text-align: left; }
.ok { color: green; } .bad { color: red; }
</style>
</head>
<body>
<h1>Odds Collector</h1>
<p>run <b>{{.View.RunID}}</b>, up {{.View.Uptime}},
status <span class="{{if .Healthy}}ok{{else}}bad{{end}}">{{if .Healthy}}healthy{{else}}unhealthy{{end}}</span></p>
<table>
<tr><th>cycles</th><td>{{.View.CycleCount}}</td></tr>
<tr><th>last result</th><td>{{.View.LastResult}}</td></tr>
<tr><th>last success</th><td>{{.LastSuccess}}</td></tr>
<tr><th>consecutive failures</th><td>{{.View.ConsecutiveFailures}}</td></tr>
{{range $c, $n := .View.EntityCounts}}<tr><th>{{$c}} matches</th><td>{{$n}}</td></tr>
{{end}}<tr><th>leagues</th><td>{{.View.LeagueCount}}</td></tr>
</table>
<p><a href="/metrics">metrics</a> | <a href="/healthz">healthz</a></p>
</body>
</html>
`))

// Server exposes the status page, health probe and Prometheus metrics.
type Server struct {
	state    *State
	clock    collector.Clock
	interval time.Duration
	logger   *zap.Logger
}

// NewServer builds a Server over the given state.
func NewServer(state *State, clock collector.Clock, interval time.Duration, logger *zap.Logger) *Server {
	return &Server{state: state, clock: clock, interval: interval, logger: logger}
}

// Router builds the chi router for the status surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", metrics.Handler())
	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	now := s.clock.Now()
	view := s.state.Snapshot(now)

	lastSuccess := "never"
	if !view.LastSuccess.IsZero() {
		lastSuccess = view.LastSuccess.Format(time.DateTime)
	}
	data := struct {
		View        View
		Healthy     bool
		LastSuccess string
	}{view, s.state.Healthy(now, s.interval), lastSuccess}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusPage.Execute(w, data); err != nil {
		s.logger.Warn("render status page", zap.Error(err))
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	now := s.clock.Now()
	healthy := s.state.Healthy(now, s.interval)

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	payload := struct {
		Healthy bool `json:"healthy"`
		View
	}{healthy, s.state.Snapshot(now)}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode healthz", zap.Error(err))
	}
}

// Listen serves the status surface until the listener fails.
func (s *Server) Listen(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.logger.Info("status server listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, s.Router())
}
