package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/claimaudit/internal/audit/domain"
	caseauditdomain "github.com/smallbiznis/claimaudit/internal/caseaudit/domain"
	"github.com/smallbiznis/claimaudit/internal/caseaudit/feed"
	"github.com/smallbiznis/claimaudit/internal/config"
	"github.com/smallbiznis/claimaudit/internal/observability"
	obslogger "github.com/smallbiznis/claimaudit/internal/observability/logger"
	obstracing "github.com/smallbiznis/claimaudit/internal/observability/tracing"
	reviewerdomain "github.com/smallbiznis/claimaudit/internal/reviewer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())
	r.Use(ActorContext())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log = log.Named("http.server")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	reviewerSvc  reviewerdomain.Service
	caseAuditSvc caseauditdomain.Service
	batchSvc     caseauditdomain.BatchService
	auditSvc     auditdomain.Service
	candidates   candidateStore
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	ReviewerSvc  reviewerdomain.Service
	CaseAuditSvc caseauditdomain.Service
	BatchSvc     caseauditdomain.BatchService
	AuditSvc     auditdomain.Service
	Candidates   *feed.Repository
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		reviewerSvc:  p.ReviewerSvc,
		caseAuditSvc: p.CaseAuditSvc,
		batchSvc:     p.BatchSvc,
		auditSvc:     p.AuditSvc,
		candidates:   p.Candidates,
	}

	svc.registerAPIRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Roster --------
	api.GET("/users", s.ListUsers)
	api.GET("/users/:id", s.GetUser)
	api.PUT("/users/:id", s.UpsertUser)
	api.GET("/users/:id/quarters/:quarter/status", s.GetQuarterlyStatus)

	// -------- Batches --------
	api.POST("/quarters/:quarter/batch", s.PlanBatch)
	api.POST("/quarters/:quarter/preloaded", s.ImportPreloaded)
	api.POST("/candidates", s.AddCandidates)

	// -------- Records --------
	api.GET("/records", s.ListRecords)
	api.GET("/records/:id", s.GetRecord)
	api.GET("/records/:id/events", s.ListRecordEvents)
	api.GET("/records/:id/can-act", ActorRequired(), s.CanAct)
	api.POST("/records/:id/actions", ActorRequired(), s.ActOnRecord)
}
