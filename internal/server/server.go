package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yourorg/testgen/internal/config"
	"github.com/yourorg/testgen/internal/generator"
	"github.com/yourorg/testgen/internal/store"
	"github.com/yourorg/testgen/pkg/types"
)

// Server exposes run history, on-demand generation, generated files and
// metrics over HTTP.
type Server struct {
	cfg      *config.Config
	store    store.Store
	gen      *generator.Generator
	gatherer prometheus.Gatherer
	mux      *http.ServeMux

	// genMu keeps generation single-threaded.
	genMu sync.Mutex
}

// New constructs a new Server with routes registered. A nil gatherer uses
// the default Prometheus registry.
func New(cfg *config.Config, st store.Store, gen *generator.Generator, gatherer prometheus.Gatherer) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if st == nil {
		return nil, errors.New("store is nil")
	}
	if gen == nil {
		return nil, errors.New("generator is nil")
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	srv := &Server{
		cfg:      cfg,
		store:    st,
		gen:      gen,
		gatherer: gatherer,
		mux:      http.NewServeMux(),
	}
	srv.registerRoutes()
	return srv, nil
}

// Handler returns the http handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the server on addr.
func (s *Server) ListenAndServe(addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return hs.ListenAndServe()
}

func (s *Server) registerRoutes() {
	// Generated test modules.
	s.mux.Handle("/files/", http.StripPrefix("/files/", http.FileServer(http.Dir(s.cfg.Paths.TestsDir))))
	s.mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.mux.HandleFunc("/api/surfaces", s.handleSurfaces)
	s.mux.HandleFunc("/api/runs", s.handleRuns)
	s.mux.HandleFunc("/api/runs/", s.handleRunRoutes)
	s.mux.HandleFunc("/api/generate", s.handleGenerate)
}

func (s *Server) handleSurfaces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	surfaces, err := generator.Discover(s.cfg.Paths.APIsDir, s.cfg.Paths.Include)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	names := make([]string, 0, len(surfaces))
	for _, sf := range surfaces {
		names = append(names, sf.Name)
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	runs, err := s.store.ListRuns(r.URL.Query().Get("surface"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRunRoutes(w http.ResponseWriter, r *http.Request) {
	id, tail, ok := splitPath(r.URL.Path, "/api/runs/")
	if !ok || id == "" || tail != "" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.handleRunDetail(w, id)
	case http.MethodDelete:
		if _, err := s.store.GetRun(id); err != nil {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		if err := s.store.DeleteRun(id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRunDetail(w http.ResponseWriter, id string) {
	run, err := s.store.GetRun(id)
	if err != nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	results, err := s.store.GetResults(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := struct {
		Run     *types.Run             `json:"run"`
		Results []types.ScenarioResult `json:"results"`
	}{
		Run:     run,
		Results: results,
	}
	writeJSON(w, http.StatusOK, resp)
}

type generateRequest struct {
	Surface string `json:"surface"`
	Stage   string `json:"stage"`
	Resume  bool   `json:"resume"`
	NoCache bool   `json:"no_cache"`
}

type generateResponse struct {
	Run       *types.Run             `json:"run"`
	Scenarios []string               `json:"scenarios"`
	Results   []types.ScenarioResult `json:"results"`
	Error     string                 `json:"error,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Surface) == "" {
		http.Error(w, "surface required", http.StatusBadRequest)
		return
	}
	switch req.Stage {
	case "":
		req.Stage = types.StageGenerate
	case types.StageGenerate, types.StageScenarios, types.StageTests:
	default:
		http.Error(w, "unknown stage", http.StatusBadRequest)
		return
	}
	surface, err := generator.Lookup(s.cfg.Paths.APIsDir, req.Surface)
	if err != nil {
		http.Error(w, "surface not found", http.StatusNotFound)
		return
	}

	s.genMu.Lock()
	res := s.gen.RunSurface(r.Context(), surface, req.Stage, generator.Options{Resume: req.Resume, NoCache: req.NoCache})
	s.genMu.Unlock()

	resp := generateResponse{
		Run:       res.Run,
		Scenarios: res.Scenarios,
		Results:   generator.ScenarioResults(res.Run.ID, res.Outcomes),
	}
	status := http.StatusOK
	if res.Err != nil {
		resp.Error = res.Err.Error()
		status = errorStatus(res.Err)
	}
	writeJSON(w, status, resp)
}

func errorStatus(err error) int {
	var be *generator.BackendError
	switch {
	case errors.Is(err, generator.ErrMissingInput), errors.Is(err, generator.ErrNoScenarios):
		return http.StatusUnprocessableEntity
	case errors.As(err, &be):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func splitPath(fullPath, prefix string) (string, string, bool) {
	if !strings.HasPrefix(fullPath, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(fullPath, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	tail := ""
	if len(parts) > 1 {
		tail = strings.Join(parts[1:], "/")
	}
	return id, tail, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
