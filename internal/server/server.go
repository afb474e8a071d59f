package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/mutrapro/internal/config"
	"github.com/smallbiznis/mutrapro/internal/customer"
	customerdomain "github.com/smallbiznis/mutrapro/internal/customer/domain"
	"github.com/smallbiznis/mutrapro/internal/idempotency"
	"github.com/smallbiznis/mutrapro/internal/observability"
	obsmiddleware "github.com/smallbiznis/mutrapro/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/mutrapro/internal/observability/metrics"
	obstracing "github.com/smallbiznis/mutrapro/internal/observability/tracing"
	"github.com/smallbiznis/mutrapro/internal/payment"
	paymentdomain "github.com/smallbiznis/mutrapro/internal/payment/domain"
	"github.com/smallbiznis/mutrapro/internal/providers/pdf"
	"github.com/smallbiznis/mutrapro/internal/ratelimit"
	"github.com/smallbiznis/mutrapro/internal/recordstore"
	"github.com/smallbiznis/mutrapro/internal/servicerequest"
	srdomain "github.com/smallbiznis/mutrapro/internal/servicerequest/domain"
	"github.com/smallbiznis/mutrapro/internal/transcription"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	recordstore.Module,
	idempotency.Module,
	ratelimit.Module,
	customer.Module,
	servicerequest.Module,
	payment.Module,
	transcription.Module,
	pdf.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

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
	engine           *gin.Engine
	cfg              config.Config
	db               *gorm.DB
	log              *zap.Logger
	customerSvc      customerdomain.Service
	requestSvc       srdomain.Service
	paymentSvc       paymentdomain.Service
	taskSvc          paymentdomain.TaskService
	transcriptionSvc *transcription.Service
	receipts         pdf.Provider
}

type ServerParams struct {
	fx.In

	Gin              *gin.Engine
	Cfg              config.Config
	DB               *gorm.DB `optional:"true"`
	Log              *zap.Logger
	CustomerSvc      customerdomain.Service
	RequestSvc       srdomain.Service
	PaymentSvc       paymentdomain.Service
	TaskSvc          paymentdomain.TaskService `optional:"true"`
	TranscriptionSvc *transcription.Service   `optional:"true"`
	Receipts         pdf.Provider             `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	svc := &Server{
		engine:           p.Gin,
		cfg:              p.Cfg,
		db:               p.DB,
		log:              log.Named("http"),
		customerSvc:      p.CustomerSvc,
		requestSvc:       p.RequestSvc,
		paymentSvc:       p.PaymentSvc,
		taskSvc:          p.TaskSvc,
		transcriptionSvc: p.TranscriptionSvc,
		receipts:         p.Receipts,
	}

	svc.registerProbeRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerProbeRoutes() {
	s.engine.GET("/ready", s.Ready)
}

func (s *Server) registerAPIRoutes() {
	r := s.engine

	// -------- Customers --------
	r.POST("/customers", s.CreateCustomer)
	r.GET("/customers/:id", s.GetCustomerByID)
	r.PUT("/customers/:id", s.UpdateCustomer)

	// -------- Service requests --------
	r.POST("/requests", s.SubmitRequest)
	r.GET("/requests/:id", s.GetRequestByID)
	r.GET("/requests/customer/:customer_id", s.ListRequestsByCustomer)
	r.PUT("/requests/:id/status", s.TransitionRequest)

	// -------- Feedback --------
	r.POST("/feedback", s.SubmitFeedback)
	r.GET("/feedback/request/:request_id", s.ListFeedbackByRequest)
	r.GET("/feedback/customer/:customer_id", s.ListFeedbackByCustomer)

	// -------- Payments --------
	r.POST("/payments", s.CreatePayment)
	r.GET("/transactions/:customer_id", s.ListTransactions)
	r.GET("/transactions/:customer_id/:transaction_id/receipt", s.TransactionReceipt)

	// -------- Transcription --------
	r.POST("/transcriptions", s.Transcribe)
	r.GET("/transcriptions/midi/:name", s.DownloadMIDI)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.GET("/reconciliation/tasks", s.ListReconciliationTasks)
	admin.POST("/reconciliation/tasks/:id/requeue", s.RequeueReconciliationTask)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

func (s *Server) Ready(c *gin.Context) {
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			s.log.Warn("readiness check failed", zap.Error(err))
			AbortWithError(c, ErrUnavailable)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// respondList writes a list payload. With LegacyEmptyList404 an empty
// list answers 404 the way the record store does.
func respondList[T any](s *Server, c *gin.Context, items []T) {
	if len(items) == 0 && s.cfg.LegacyEmptyList404 {
		AbortWithError(c, ErrNotFound)
		return
	}
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}
