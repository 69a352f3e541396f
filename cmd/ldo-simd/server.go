package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/exporter-toolkit/web"

	"github.com/flexio-dpa/ldo/pkg/ldo"
)

// httpServer exposes the harness's metrics and a debug/submission surface,
// modeled on pkg/collector/server.go's CEEMSExporterServer: a mux router,
// a registry-backed metrics handler, and a web.FlagConfig-driven
// ListenAndServe so the same web.yml TLS/auth config mechanism the
// teacher's exporters use would apply here too.
type httpServer struct {
	logger    *slog.Logger
	harness   *Harness
	server    *http.Server
	webConfig *web.FlagConfig
	registry  *prometheus.Registry
}

func newHTTPServer(h *Harness) (*httpServer, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(h.collector); err != nil {
		return nil, fmt.Errorf("ldo-simd: register metrics collector: %w", err)
	}

	router := mux.NewRouter()
	addr := h.cfg.MetricsAddr
	addrs := []string{addr}
	webSystemdSocket := false
	webConfigFile := ""

	s := &httpServer{
		logger:  h.logger,
		harness: h,
		server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			ReadHeaderTimeout: 2 * time.Second,
		},
		webConfig: &web.FlagConfig{
			WebListenAddresses: &addrs,
			WebSystemdSocket:   &webSystemdSocket,
			WebConfigFile:      &webConfigFile,
		},
		registry: registry,
	}

	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(h.logger.Handler(), slog.LevelError),
		ErrorHandling: promhttp.ContinueOnError,
	}))

	router.HandleFunc("/debug/workers", s.handleDebugWorkers).Methods(http.MethodGet)

	// POST /cmdq submits one all-to-all command to a rank. Rate-limited
	// per remote address: the host command queue is a small, reusable
	// ring, and a runaway submitter could otherwise spin every worker's
	// poll loop far harder than any real host driver would.
	cmdq := httprate.Limit(
		20, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)(http.HandlerFunc(s.handleSubmitCommand))
	router.Handle("/cmdq", cmdq).Methods(http.MethodPost)

	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ldo-simd is healthy"))
	})

	return s, nil
}

// run serves HTTP until ctx is canceled, then shuts the server down
// gracefully.
func (s *httpServer) run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("ldo-simd: starting http server", "addr", s.server.Addr)
		if err := web.ListenAndServe(s.server, s.webConfig, s.logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type submitCommandRequest struct {
	Rank int `json:"rank"`
}

type submitCommandResponse struct {
	Rank     int    `json:"rank"`
	CmdIndex uint32 `json:"cmd_index"`
}

func (s *httpServer) handleSubmitCommand(w http.ResponseWriter, r *http.Request) {
	var req submitCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("ldo-simd: decode request: %v", err), http.StatusBadRequest)
		return
	}

	cmdIndex, err := s.harness.SubmitCommand(req.Rank)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(submitCommandResponse{Rank: req.Rank, CmdIndex: cmdIndex})
}

type workerStatus struct {
	Rank           int       `json:"rank"`
	State          ldo.State `json:"state"`
	StateName      string    `json:"state_name"`
	CmpCount       uint64    `json:"cmp_count"`
	RemoteCmpCount uint64    `json:"remote_cmp_count"`
}

func (s *httpServer) handleDebugWorkers(w http.ResponseWriter, _ *http.Request) {
	statuses := make([]workerStatus, 0, len(s.harness.ranks))
	for _, rc := range s.harness.ranks {
		statuses = append(statuses, workerStatus{
			Rank:           rc.worker.Rank,
			State:          rc.worker.State,
			StateName:      rc.worker.State.String(),
			CmpCount:       rc.worker.CmpCount,
			RemoteCmpCount: rc.worker.RemoteCmpFlag.Load(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statuses)
}
