package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"miriesgo/internal/audit"
	authmodels "miriesgo/internal/auth/models"
	"miriesgo/internal/auth/ratelimit"
	authservice "miriesgo/internal/auth/service"
	"miriesgo/internal/auth/store/revocation"
	clientservice "miriesgo/internal/client/service"
	companyservice "miriesgo/internal/company/service"
	dashboardservice "miriesgo/internal/dashboard/service"
	jwttoken "miriesgo/internal/jwt_token"
	loanservice "miriesgo/internal/loan/service"
	"miriesgo/internal/platform/config"
	"miriesgo/internal/platform/database"
	"miriesgo/internal/platform/health"
	"miriesgo/internal/platform/kafka"
	"miriesgo/internal/platform/logger"
	"miriesgo/internal/platform/metrics"
	"miriesgo/internal/platform/redis"
	"miriesgo/internal/platform/tracer"
	reportservice "miriesgo/internal/report/service"
	"miriesgo/internal/scoring/gemini"
	scoringservice "miriesgo/internal/scoring/service"
	"miriesgo/internal/seeder"
	"miriesgo/internal/upload/jobs"
	uploadservice "miriesgo/internal/upload/service"
	"miriesgo/internal/upload/worker"
)

const revocationPurgeInterval = 15 * time.Minute

func newServeCmd() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), seed)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "load demo data before serving (in-memory mode always seeds)")
	return cmd
}

// services groups everything the router mounts.
type services struct {
	auth      *authservice.Service
	clients   *clientservice.Service
	loans     *loanservice.Service
	companies *companyservice.Service
	reports   *reportservice.Service
	scoring   *scoringservice.Service
	dashboard *dashboardservice.Service
	uploads   *uploadservice.Service
	jwt       *jwttoken.JWTService
}

func runServe(parent context.Context, seed bool) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.Database.URL
	dbCfg.MaxOpenConns = cfg.Database.MaxOpenConns
	pool, err := database.New(ctx, dbCfg, log)
	if err != nil {
		return err
	}

	hc := health.New(cfg.Environment)
	var st *stores
	if pool != nil {
		defer pool.Close() //nolint:errcheck // shutdown
		if err := database.Migrate(pool.DB(), database.Up); err != nil {
			return err
		}
		st = postgresStores(pool)
		hc.RegisterCheck("database", pool.Health)
		prometheus.MustRegister(pool.Collector())
		log.Info("using postgres storage")
	} else {
		st = memoryStores()
		seed = true
		log.Warn("DATABASE_URL not set, using in-memory storage")
	}

	rdb, err := redis.New(ctx, cfg.Database.RedisURL)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close() //nolint:errcheck // shutdown
		st.revoked = revocation.NewRedisList(rdb.Client)
		st.purge = nil
		hc.RegisterCheck("redis", rdb.Health)
		log.Info("token revocations stored in redis")
	}

	producer, err := kafka.New(kafka.DefaultConfig(cfg.Events.KafkaBrokers), log)
	if err != nil {
		return err
	}
	if producer != nil {
		defer producer.Close(5 * time.Second)
		st.audit = audit.NewStreamStore(st.audit, producer, cfg.Events.AuditTopic, log)
		hc.RegisterCheck("kafka", producer.Health)
		log.Info("streaming audit events", "topic", cfg.Events.AuditTopic)
	}

	if seed {
		res, err := seeder.New(seeder.Stores{
			Companies: st.companies,
			Clients:   st.clients,
			Loans:     st.loans,
			Users:     st.users,
		}, st.tx, log).Seed(ctx)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		if res.AdminPassword != "" {
			log.Warn("demo administrator created, change this password",
				"email", seeder.AdminEmail, "password", res.AdminPassword)
		}
	}

	m := metrics.New()
	trc := tracer.NewOTel()
	auditor := audit.NewPublisher(st.audit,
		audit.WithPublisherLogger(log),
		audit.WithAsyncBuffer(256),
	)
	defer auditor.Close()

	registry := jobs.NewRegistry(jobs.DefaultTTL, log)
	svcs, uploadPool := buildServices(cfg, st, log, m, trc, auditor, registry)

	router := newRouter(cfg, svcs, hc, log, prometheus.DefaultGatherer)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return uploadPool.Run(context.WithoutCancel(gctx))
	})
	g.Go(func() error {
		registry.Consume(context.WithoutCancel(gctx), uploadPool.Results())
		return nil
	})
	if st.purge != nil {
		g.Go(func() error {
			purgeRevocations(gctx, st.purge, log)
			return nil
		})
	}
	if rdb != nil {
		g.Go(func() error {
			t := time.NewTicker(30 * time.Second)
			defer t.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-t.C:
					rdb.RecordPoolStats()
				}
			}
		})
	}
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Server.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "error", err)
		}
		if err := uploadPool.Close(shutdownCtx); err != nil {
			log.Error("upload pool did not drain", "error", err)
		}
		return nil
	})

	err = g.Wait()
	log.Info("server stopped")
	return err
}

func buildServices(
	cfg *config.Config,
	st *stores,
	log *slog.Logger,
	m *metrics.Metrics,
	trc tracer.Tracer,
	auditor *audit.Publisher,
	registry *jobs.Registry,
) (*services, *worker.Pool) {
	jwt := jwttoken.NewJWTService(cfg.Auth.SecretKey, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.TokenTTL)

	importer := uploadservice.NewImporter(st.clients, st.companies, st.loans,
		uploadservice.WithImporterTx(st.tx),
		uploadservice.WithImporterLogger(log),
		uploadservice.WithImporterMetrics(m),
		uploadservice.WithImporterTracer(trc),
	)
	uploadPool := worker.NewPool(uploadservice.Processor(importer, registry),
		worker.WithWorkers(cfg.Upload.Workers),
		worker.WithQueueSize(cfg.Upload.QueueSize),
		worker.WithLogger(log),
		worker.WithMetrics(m),
	)

	scorer := gemini.New(gemini.Config{
		BaseURL: cfg.Scoring.BaseURL,
		APIKey:  cfg.Scoring.APIKey,
		Model:   cfg.Scoring.Model,
		Timeout: cfg.Scoring.Timeout,
	})
	if !scorer.Configured() {
		log.Warn("API_KEY not set, risk scoring answers 503")
	}

	svcs := &services{
		jwt: jwt,
		auth: authservice.New(st.users, jwt, st.revoked,
			authservice.WithTx(st.tx),
			authservice.WithLogger(log),
			authservice.WithMetrics(m),
			authservice.WithAuditor(auditor),
			authservice.WithLimiter(ratelimit.NewLoginLimiter(cfg.Auth.LoginRatePerMinute)),
			authservice.WithCompanyDirectory(st.companies),
			authservice.WithSessions(st.sessions),
			authservice.WithLockoutPolicy(authmodels.LockoutPolicy{
				MaxAttempts: cfg.Auth.MaxFailedAttempts,
				Duration:    cfg.Auth.LockoutDuration,
			}),
		),
		clients: clientservice.New(st.clients,
			clientservice.WithTx(st.tx),
			clientservice.WithLogger(log),
			clientservice.WithMetrics(m),
			clientservice.WithAuditor(auditor),
			clientservice.WithLoanCounter(st.loans),
		),
		loans: loanservice.New(st.loans,
			loanservice.WithTx(st.tx),
			loanservice.WithLogger(log),
			loanservice.WithMetrics(m),
			loanservice.WithAuditor(auditor),
		),
		companies: companyservice.New(st.companies,
			companyservice.WithTx(st.tx),
			companyservice.WithLogger(log),
			companyservice.WithAuditor(auditor),
			companyservice.WithMembers(companyMembers{users: st.users}),
		),
		reports: reportservice.New(st.clients, st.loans,
			reportservice.WithTx(st.readTx),
			reportservice.WithTracer(trc),
			reportservice.WithLogger(log),
			reportservice.WithMetrics(m),
			reportservice.WithAuditor(auditor),
		),
		scoring: scoringservice.New(scorer,
			scoringservice.WithTracer(trc),
			scoringservice.WithLogger(log),
			scoringservice.WithMetrics(m),
		),
		dashboard: dashboardservice.New(st.loans, st.clients, st.companies,
			dashboardservice.WithTx(st.readTx),
			dashboardservice.WithTracer(trc),
			dashboardservice.WithLogger(log),
		),
		uploads: uploadservice.New(uploadPool, registry,
			uploadservice.WithLogger(log),
			uploadservice.WithMetrics(m),
			uploadservice.WithAuditor(auditor),
		),
	}
	return svcs, uploadPool
}

func purgeRevocations(ctx context.Context, list *revocation.PostgresList, log *slog.Logger) {
	t := time.NewTicker(revocationPurgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := list.PurgeExpired(ctx)
			if err != nil {
				log.Error("purge revoked tokens failed", "error", err)
				continue
			}
			if n > 0 {
				log.Debug("purged revoked tokens", "count", n)
			}
		}
	}
}
