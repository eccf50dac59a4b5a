package api

import (
	"extgov/api/handlers"
	"github.com/go-chi/chi/v5"
)

func (s *Server) registerRoutes() {
	s.router.Use(s.recoverMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.securityHeadersMiddleware)

	s.registerObservabilityRoutes()

	extensions := handlers.NewExtensionsHandler(s.svc)
	gov := handlers.NewGovernanceHandler(s.svc)
	logs := handlers.NewLogsHandler(s.svc)

	apiRouter := chi.NewRouter()
	apiRouter.Use(s.jsonMiddleware)

	apiRouter.Post("/scan", gov.Scan)
	apiRouter.Post("/conflicts/check", gov.ConflictCheck)
	apiRouter.Post("/simulations", gov.RunSimulation)
	apiRouter.Get("/audit", logs.List)

	apiRouter.Route("/extensions", func(r chi.Router) {
		r.Get("/", extensions.List)
		r.Post("/", extensions.Register)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", extensions.Get)
			r.Post("/disable", extensions.Disable)
			r.Post("/activate", extensions.Activate)
			r.Post("/analyze", gov.Analyze)
			r.Post("/stress-test", gov.StressTest)
			r.Post("/risk", gov.RiskAssess)
			r.Post("/guard/evaluate", gov.GuardEvaluate)
			r.Get("/guard", gov.GuardRecord)
		})
	})
	s.router.Mount("/api", apiRouter)
}
