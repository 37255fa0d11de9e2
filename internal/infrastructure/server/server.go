// Package server assembles the shell host: orchestrator, catalog,
// recency store, control API, event stream, and the optional link to
// the out-of-process execution host.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/luminos-ui/shellhost/internal/api/http"
	"github.com/luminos-ui/shellhost/internal/api/middleware"
	"github.com/luminos-ui/shellhost/internal/api/ws"
	"github.com/luminos-ui/shellhost/internal/domain/catalog"
	"github.com/luminos-ui/shellhost/internal/domain/compositor"
	"github.com/luminos-ui/shellhost/internal/domain/host"
	"github.com/luminos-ui/shellhost/internal/domain/orchestrator"
	"github.com/luminos-ui/shellhost/internal/domain/policy"
	"github.com/luminos-ui/shellhost/internal/domain/recents"
	"github.com/luminos-ui/shellhost/internal/infrastructure/config"
	"github.com/luminos-ui/shellhost/internal/infrastructure/logging"
	"github.com/luminos-ui/shellhost/internal/infrastructure/monitoring"
	"github.com/luminos-ui/shellhost/internal/infrastructure/notify"
	"github.com/luminos-ui/shellhost/internal/infrastructure/tracing"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// Server owns the control plane and the orchestrator behind it.
type Server struct {
	cfg     *config.Config
	log     *logging.Logger
	orch    *orchestrator.Orchestrator
	seeder  *catalog.Seeder
	stream  *ws.Stream
	hook    *notify.Webhook
	link    *host.ConnManager
	metrics *monitoring.Metrics
	httpd   *http.Server

	linkCancel context.CancelFunc
}

// New wires every component but starts nothing; call Run.
func New(cfg *config.Config) (*Server, error) {
	var log *logging.Logger
	if cfg.Logging.Development {
		log = logging.NewDevelopment()
	} else {
		var err error
		if log, err = logging.New(cfg.Logging); err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
	}

	log.Info("initializing shell host",
		zap.String("port", cfg.Server.Port),
		zap.String("host_link", cfg.HostLink.Address),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("shellhost", log.Logger)

	cat := catalog.New()
	seeder := catalog.NewSeeder(cat, cfg.Surfaces.ProfileDir, log.Logger)
	if err := seeder.Seed(); err != nil {
		return nil, fmt.Errorf("seed layout profiles: %w", err)
	}
	seeder.SeedDefaults()

	store := recents.NewMemory().WithLimit(cfg.Recents.Limit)
	if cfg.Recents.SnapshotPath != "" {
		store = store.WithSnapshotFile(cfg.Recents.SnapshotPath)
	}

	// The host link, when configured, gates readiness on the execution
	// host's health endpoint. Lifecycle instructions themselves travel
	// the in-process loopback either way.
	var link *host.ConnManager
	if cfg.HostLink.Address != "" {
		var err error
		link, err = host.Dial(cfg.HostLink.Address, tracing.GRPCClientInterceptor(tracer))
		if err != nil {
			return nil, fmt.Errorf("dial execution host: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.HostLink.DialTimeout)
		err = link.WaitReady(ctx)
		if err == nil {
			// The first health check goes through the circuit breaker
			// like every later one.
			err = link.Check(ctx)
		}
		cancel()
		if err != nil {
			log.Warn("execution host not ready, continuing", zap.Error(err))
		}
	}

	hook := notify.New(cfg.Webhook, log.Logger)

	orch := orchestrator.New(orchestrator.Options{
		Log:        log.Logger,
		Metrics:    metrics,
		Host:       host.NewLoopback(),
		Compositor: compositor.NewRecording(),
		Policy:     policy.AllowAll{},
		Recents:    store,
		Catalog:    cat,
		Notifier:   hook,
	})

	stream := ws.NewStream(log.Logger, metrics)
	orch.SetEventFunc(func(ev orchestrator.Event) {
		stream.Publish(ev)
		hook.Publish(ev)
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(nil))
	router.Use(middleware.RateLimit(cfg.RateLimit))

	h := apihttp.NewHandlers(orch, cat, store, metrics, log)
	registerRoutes(router, h, stream)

	srv := &Server{
		cfg:     cfg,
		log:     log,
		orch:    orch,
		seeder:  seeder,
		stream:  stream,
		hook:    hook,
		link:    link,
		metrics: metrics,
		httpd: &http.Server{
			Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
			Handler: router,
		},
	}
	return srv, nil
}

func registerRoutes(r *gin.Engine, h *apihttp.Handlers, stream *ws.Stream) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/metrics/summary", h.MetricsSummary)

	r.POST("/launch", h.Launch)
	r.POST("/items/:id/idle", h.NotifyIdle)
	r.POST("/items/:id/behind-complete", h.LaunchBehindComplete)
	r.POST("/items/:id/finish", h.FinishItem)
	r.DELETE("/groups/:task", h.FinishGroup)
	r.GET("/groups/recents", h.Recents)
	r.POST("/groups/move", h.MoveGroup)
	r.POST("/groups/batch-move", h.BatchMove)

	r.POST("/surfaces", h.AddSurface)
	r.PUT("/surfaces/:id", h.UpdateSurface)
	r.DELETE("/surfaces/:id", h.RemoveSurface)
	r.PUT("/surfaces/:id/keyguard", h.SetKeyguard)

	r.POST("/power/sleep", h.Sleep)
	r.POST("/power/wake", h.Wake)
	r.POST("/power/tokens", h.CreateSleepToken)
	r.DELETE("/power/tokens/:token", h.ReleaseSleepToken)
	r.POST("/power/shutdown", h.Shutdown)

	r.POST("/lock/:task/start", h.StartLock)
	r.POST("/lock/:task/stop", h.StopLock)
	r.GET("/lock", h.LockChain)

	r.POST("/switches/disable", h.DisableAppSwitches)
	r.POST("/switches/enable", h.EnableAppSwitches)

	r.GET("/components", h.ListComponents)
	r.POST("/components", h.RegisterComponent)
	r.DELETE("/components/:pkg/:class", h.UnregisterComponent)

	r.GET("/state", h.Dump)
	r.GET("/state/snapshot", h.Snapshot)
	r.GET("/state/release-candidates", h.ReleaseCandidates)

	r.GET("/stream", stream.Handle)
}

// Run starts the orchestrator loop, brings up the boot surfaces and
// home component, then serves the control API until Close.
func (s *Server) Run() error {
	s.orch.Run()

	if s.link != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.linkCancel = cancel
		go s.watchHostLink(ctx)
	}

	home := types.ParseComponentName(s.cfg.Surfaces.Home)
	if err := s.orch.Bootstrap(s.seeder.Surfaces(), home); err != nil {
		s.log.Error("bootstrap failed", zap.Error(err))
	}

	s.log.Info("control API listening", zap.String("addr", s.httpd.Addr))
	if err := s.httpd.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// watchHostLink follows the execution host's health stream, logging
// and counting transitions. When the stream drops, recovery checks run
// through the circuit breaker until the host answers again.
func (s *Server) watchHostLink(ctx context.Context) {
	for {
		err := s.link.WatchHealth(ctx, func(serving bool) {
			status := "serving"
			if !serving {
				status = "not-serving"
			}
			s.log.Info("execution host health changed", zap.String("status", status))
			s.metrics.RecordHostCall("health-watch", status)
		})
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("execution host health stream lost", zap.Error(err))
		s.metrics.RecordHostError("health-watch", "stream-lost")

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			if err := s.link.Check(ctx); err == nil {
				break
			}
			s.metrics.RecordHostError("health-check", "unreachable")
		}
	}
}

// Close drains the control API, quiesces every work item, and stops
// the loop.
func (s *Server) Close() error {
	s.log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpd.Shutdown(ctx); err != nil {
		s.log.Warn("http shutdown", zap.Error(err))
	}

	if timedOut := s.orch.RequestShutdown(10 * time.Second); timedOut {
		s.log.Warn("shutdown quiesce timed out")
	}
	s.orch.Stop()

	s.stream.Close()
	s.hook.Close()
	if s.linkCancel != nil {
		s.linkCancel()
	}
	if s.link != nil {
		if err := s.link.Close(); err != nil {
			s.log.Warn("host link close", zap.Error(err))
		}
	}
	return s.log.Sync()
}
