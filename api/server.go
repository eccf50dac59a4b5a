package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"extgov/config"
	"extgov/core/governance"
	"extgov/core/scheduler"
	"extgov/core/utils"
	"github.com/go-chi/chi/v5"
)

type Server struct {
	cfg        *config.AppConfig
	db         *sql.DB
	router     *chi.Mux
	httpServer *http.Server
	logger     *utils.Logger
	svc        *governance.Service
	scheduler  *scheduler.Scheduler
}

type ServerDeps struct {
	DB        *sql.DB
	Service   *governance.Service
	Scheduler *scheduler.Scheduler
}

func NewServer(cfg *config.AppConfig, logger *utils.Logger, deps ServerDeps) *Server {
	s := &Server{
		cfg:       cfg,
		db:        deps.DB,
		router:    chi.NewRouter(),
		logger:    logger,
		svc:       deps.Service,
		scheduler: deps.Scheduler,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Stress runs answer synchronously.
		WriteTimeout: 10 * time.Minute,
	}
	s.logger.Printf("listening on %s", s.cfg.ListenAddr)
	if s.cfg.TLSEnabled {
		return s.httpServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
