package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authhandler "miriesgo/internal/auth/handler"
	clienthandler "miriesgo/internal/client/handler"
	companyhandler "miriesgo/internal/company/handler"
	dashboardhandler "miriesgo/internal/dashboard/handler"
	jwttoken "miriesgo/internal/jwt_token"
	loanhandler "miriesgo/internal/loan/handler"
	"miriesgo/internal/platform/config"
	"miriesgo/internal/platform/health"
	reporthandler "miriesgo/internal/report/handler"
	scoringhandler "miriesgo/internal/scoring/handler"
	uploadhandler "miriesgo/internal/upload/handler"
	id "miriesgo/pkg/domain"
	"miriesgo/pkg/platform/middleware/auth"
	"miriesgo/pkg/platform/middleware/request"
)

const (
	maxJSONBody    = 1 << 20
	requestTimeout = 30 * time.Second
)

func newRouter(cfg *config.Config, svcs *services, hc *health.Handler, log *slog.Logger, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Recovery(log))
	r.Use(request.RequestID)
	r.Use(request.RequestTime)
	r.Use(request.ClientMetadata(cfg.Server.TrustProxy))
	r.Use(request.Logger(log))
	r.Use(request.CORS(cfg.Server.CORSAllowedOrigins))
	r.Use(request.LatencyMiddleware(request.NewMetrics()))

	hc.Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	authH := authhandler.New(svcs.auth, log)
	requireAuth := auth.RequireAuth(jwttoken.NewJWTServiceAdapter(svcs.jwt), svcs.auth, log)

	r.Route("/api", func(api chi.Router) {
		// login takes the OAuth2 password form as well as JSON
		api.Group(func(public chi.Router) {
			public.Use(request.BodyLimit(maxJSONBody))
			public.Use(request.Timeout(requestTimeout))
			authH.RegisterPublic(public)
		})

		api.Group(func(private chi.Router) {
			private.Use(requireAuth)

			private.Group(func(j chi.Router) {
				j.Use(request.ContentTypeJSON)
				j.Use(request.BodyLimit(maxJSONBody))
				j.Use(request.Timeout(requestTimeout))

				authH.Register(j)
				clienthandler.New(svcs.clients, log).Register(j)
				loanhandler.New(svcs.loans, log).Register(j)
				reporthandler.New(svcs.reports, log).Register(j)
				scoringhandler.New(svcs.scoring, log).Register(j)
				dashboardhandler.New(svcs.dashboard, log).Register(j)
				companyhandler.New(svcs.companies, log).Register(j)
			})

			private.Group(func(up chi.Router) {
				up.Use(auth.RequireRole(log, id.RoleAdmin, id.RoleManager))
				up.Use(request.Timeout(requestTimeout))
				uploadhandler.New(svcs.uploads, log, cfg.Upload.MaxBytes).Register(up)
			})
		})
	})
	return r
}
