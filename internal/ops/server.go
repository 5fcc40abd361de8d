package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/chainpay-backend/pkg/config"
	"github.com/angelmondragon/chainpay-backend/pkg/logger"
)

// Pinger is a dependency whose connectivity gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the worker's operational endpoints: liveness, readiness
// and prometheus metrics. It carries no merchant-facing surface.
type Server struct {
	httpServer *http.Server
	logg       *logger.Logger
}

// Params carries the dependencies for New.
type Params struct {
	Config *config.Config
	Logger *logger.Logger
	DB     Pinger
	Redis  Pinger
}

func New(params Params) (*Server, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	r := chi.NewRouter()
	r.Get("/health/live", handleLive(params.Config))
	r.Get("/health/ready", handleReady(params.Config, params.DB, params.Redis))
	r.Handle("/metrics", promhttp.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + params.Config.App.Port,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logg: params.Logger,
	}, nil
}

// Start serves until Shutdown. It blocks, callers run it in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.logg.Info(s.logg.WithField(ctx, "addr", s.httpServer.Addr), "ops server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func handleLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "live", "env": cfg.App.Env})
	}
}

func handleReady(cfg *config.Config, db, redis Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		for name, dep := range map[string]Pinger{"db": db, "redis": redis} {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = err.Error()
				healthy = false
				continue
			}
			checks[name] = "ok"
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]any{"status": readyWord(healthy), "env": cfg.App.Env, "checks": checks})
	}
}

func readyWord(healthy bool) string {
	if healthy {
		return "ready"
	}
	return "degraded"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
