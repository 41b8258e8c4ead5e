package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/TobiSchelling/wrestlepulse/internal/analyze"
	"github.com/TobiSchelling/wrestlepulse/internal/database"
	"github.com/TobiSchelling/wrestlepulse/internal/metrics"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

const historyLimit = 30

// Refresher starts an out-of-band refresh. The scheduler implements it.
type Refresher interface {
	Trigger()
}

// Server is the HTTP server for the dashboard.
type Server struct {
	db        *database.DB
	pages     map[string]*template.Template
	mux       *http.ServeMux
	refresher Refresher
	gatherer  prometheus.Gatherer
	clock     clockwork.Clock
	logger    *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRefresher enables POST /refresh.
func WithRefresher(r Refresher) Option {
	return func(s *Server) { s.refresher = r }
}

// WithGatherer serves g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithClock sets the clock relative times are rendered against.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a new Server.
func New(db *database.DB, opts ...Option) (*Server, error) {
	s := &Server{
		db:     db,
		mux:    http.NewServeMux(),
		clock:  clockwork.NewRealClock(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"ago":      s.ago,
		"comma":    func(n int) string { return humanize.Comma(int64(n)) },
		"signed":   func(v float64) string { return fmt.Sprintf("%+.2f", v) },
		"pct":      func(v float64) string { return strconv.FormatFloat(v, 'f', 0, 64) },
		"score":    func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) },
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone so their "content" blocks do not collide.
	pageNames := []string{"dashboard.html", "wrestler.html", "roster.html"}
	s.pages = make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		s.pages[name] = clone
	}

	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("GET /{$}", s.handleDashboard)
	s.mux.HandleFunc("GET /wrestler/{id}", s.handleWrestler)
	s.mux.HandleFunc("GET /roster", s.handleRoster)
	s.mux.HandleFunc("POST /roster", s.handleAddWrestler)
	s.mux.HandleFunc("POST /roster/{id}/champion", s.handleSetChampion)
	s.mux.HandleFunc("POST /roster/{id}/delete", s.handleDeleteWrestler)
	s.mux.HandleFunc("POST /refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /api/analysis", s.handleAPIAnalysis)
	if s.gatherer != nil {
		s.mux.Handle("GET /metrics", metrics.Handler(s.gatherer))
	}
}

// latest returns the newest run and its snapshots, or a nil run before the
// first analysis.
func (s *Server) latest() (*database.AnalysisRun, []database.WrestlerMetric, error) {
	run, err := s.db.GetLatestRun()
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.db.GetRunMetrics(run.ID)
	if err != nil {
		return nil, nil, err
	}
	return run, rows, nil
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	run, rows, err := s.latest()
	if err != nil {
		s.serverError(w, "loading latest run", err)
		return
	}
	stats, err := s.db.GetStats()
	if err != nil {
		s.serverError(w, "loading stats", err)
		return
	}

	s.render(w, "dashboard.html", map[string]any{
		"Run":        run,
		"Metrics":    rows,
		"Stats":      stats,
		"CanRefresh": s.refresher != nil,
		"Refreshing": r.URL.Query().Get("refresh") == "queued",
	})
}

func (s *Server) handleWrestler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	wrestler, err := s.db.GetWrestler(id)
	if errors.Is(err, database.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, "loading wrestler", err)
		return
	}

	history, err := s.db.GetWrestlerHistory(id, historyLimit)
	if err != nil {
		s.serverError(w, "loading history", err)
		return
	}

	// Related news comes from the newest run that mentioned the wrestler.
	var news []database.MentionedItem
	if len(history) > 0 {
		news, err = s.db.GetRunMentions(history[0].RunID, id)
		if err != nil {
			s.serverError(w, "loading mentions", err)
			return
		}
	}

	var current *database.WrestlerMetric
	if len(history) > 0 {
		current = &history[0]
	}

	s.render(w, "wrestler.html", map[string]any{
		"Wrestler": wrestler,
		"Current":  current,
		"History":  history,
		"News":     news,
	})
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	roster, err := s.db.GetAllWrestlers()
	if err != nil {
		s.serverError(w, "loading roster", err)
		return
	}
	s.render(w, "roster.html", map[string]any{
		"Roster": roster,
		"Error":  r.URL.Query().Get("error"),
	})
}

func (s *Server) handleAddWrestler(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		http.Redirect(w, r, "/roster?error=name+is+required", http.StatusSeeOther)
		return
	}

	title := strings.TrimSpace(r.FormValue("championship"))
	id, err := s.db.InsertWrestler(database.Wrestler{
		Name:              name,
		Promotion:         strings.TrimSpace(r.FormValue("promotion")),
		IsChampion:        title != "",
		ChampionshipTitle: title,
	})
	if err != nil {
		s.serverError(w, "adding wrestler", err)
		return
	}
	if id == 0 {
		http.Redirect(w, r, "/roster?error=already+on+the+roster", http.StatusSeeOther)
		return
	}
	s.logger.Info("wrestler added", zap.String("name", name), zap.Int64("id", id))
	http.Redirect(w, r, "/roster", http.StatusSeeOther)
}

func (s *Server) handleSetChampion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	err = s.db.SetChampion(id, strings.TrimSpace(r.FormValue("championship")))
	if errors.Is(err, database.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, "updating champion", err)
		return
	}
	http.Redirect(w, r, "/roster", http.StatusSeeOther)
}

func (s *Server) handleDeleteWrestler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	err = s.db.DeleteWrestler(id)
	if errors.Is(err, database.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, "removing wrestler", err)
		return
	}
	s.logger.Info("wrestler removed", zap.Int64("id", id))
	http.Redirect(w, r, "/roster", http.StatusSeeOther)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		http.Error(w, "auto-refresh is not running; start with --watch", http.StatusServiceUnavailable)
		return
	}
	s.refresher.Trigger()
	http.Redirect(w, r, "/?refresh=queued", http.StatusSeeOther)
}

type apiResponse struct {
	RunID         string                     `json:"run_id,omitempty"`
	ComputedAt    *time.Time                 `json:"computed_at,omitempty"`
	ScoringPreset string                     `json:"scoring_preset,omitempty"`
	ItemCount     int                        `json:"item_count"`
	Wrestlers     []analyze.WrestlerAnalysis `json:"wrestlers"`
}

func (s *Server) handleAPIAnalysis(w http.ResponseWriter, r *http.Request) {
	run, rows, err := s.latest()
	if err != nil {
		s.serverError(w, "loading latest run", err)
		return
	}

	resp := apiResponse{Wrestlers: []analyze.WrestlerAnalysis{}}
	if run != nil {
		resp.RunID = run.ID
		resp.ComputedAt = &run.FinishedAt
		resp.ScoringPreset = run.ScoringPreset
		resp.ItemCount = run.ItemCount
		for _, m := range rows {
			news, err := s.db.GetRunMentions(run.ID, m.WrestlerID)
			if err != nil {
				s.serverError(w, "loading mentions", err)
				return
			}
			resp.Wrestlers = append(resp.Wrestlers, analyze.FromDBMetric(m, news))
		}
		analyze.SortByMentions(resp.Wrestlers)
	}

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		s.logger.Warn("encoding analysis response", zap.Error(err))
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.serverError(w, "template lookup", fmt.Errorf("template %s not found", name))
		return
	}

	// Render to a buffer so a template error still yields a clean 500.
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		s.serverError(w, "rendering "+name, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Server) serverError(w http.ResponseWriter, what string, err error) {
	s.logger.Error(what, zap.Error(err))
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func (s *Server) ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, s.clock.Now(), "ago", "from now")
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve listens on 127.0.0.1:port until ctx is canceled.
func Serve(ctx context.Context, srv *Server, port int, logger *zap.Logger) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("url", "http://"+addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}
