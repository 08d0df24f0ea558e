package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sphera-erp/sphera/internal/billingentry"
	entrydomain "github.com/sphera-erp/sphera/internal/billingentry/domain"
	"github.com/sphera-erp/sphera/internal/catalog"
	catalogdomain "github.com/sphera-erp/sphera/internal/catalog/domain"
	"github.com/sphera-erp/sphera/internal/client"
	clientdomain "github.com/sphera-erp/sphera/internal/client/domain"
	"github.com/sphera-erp/sphera/internal/closing"
	closingdomain "github.com/sphera-erp/sphera/internal/closing/domain"
	"github.com/sphera-erp/sphera/internal/closing/format"
	"github.com/sphera-erp/sphera/internal/config"
	"github.com/sphera-erp/sphera/internal/observability"
	obsmiddleware "github.com/sphera-erp/sphera/internal/observability/logger"
	obsmetrics "github.com/sphera-erp/sphera/internal/observability/metrics"
	obstracing "github.com/sphera-erp/sphera/internal/observability/tracing"
	"github.com/sphera-erp/sphera/internal/pricing"
	pricingdomain "github.com/sphera-erp/sphera/internal/pricing/domain"
	"github.com/sphera-erp/sphera/internal/providers/pdf"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	client.Module,
	catalog.Module,
	billingentry.Module,
	pricing.Module,
	closing.Module,
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

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
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
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	genID      *snowflake.Node
	policy     *config.ClosingConfigHolder
	clientSvc  clientdomain.Service
	catalogSvc catalogdomain.Service
	entrySvc   entrydomain.Service
	pricingSvc pricingdomain.Service
	closingSvc closingdomain.Service
	pdfSvc     pdf.Provider
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	GenID      *snowflake.Node
	Policy     *config.ClosingConfigHolder
	ClientSvc  clientdomain.Service
	CatalogSvc catalogdomain.Service
	EntrySvc   entrydomain.Service
	PricingSvc pricingdomain.Service
	ClosingSvc closingdomain.Service
	PDFSvc     pdf.Provider
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		genID:      p.GenID,
		policy:     p.Policy,
		clientSvc:  p.ClientSvc,
		catalogSvc: p.CatalogSvc,
		entrySvc:   p.EntrySvc,
		pricingSvc: p.PricingSvc,
		closingSvc: p.ClosingSvc,
		pdfSvc:     p.PDFSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) formatter() *format.Formatter {
	policy := s.policy.Get()
	return format.New(policy.Locale, policy.Currency)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.OrgContext())

	// -------- Clients --------
	api.GET("/clients", s.ListClients)
	api.POST("/clients", s.CreateClient)
	api.GET("/clients/:id", s.GetClientByID)

	// -------- Service catalog --------
	api.GET("/services", s.ListServices)
	api.POST("/services", s.CreateService)
	api.GET("/services/:id", s.GetServiceByID)

	// -------- Billing entries --------
	api.GET("/billing-entries", s.ListBillingEntries)
	api.POST("/billing-entries", s.CreateBillingEntry)
	api.GET("/billing-entries/:id", s.GetBillingEntryByID)

	// -------- Prices --------
	api.POST("/prices", s.CreatePrice)

	// -------- Closing sessions --------
	api.POST("/closing-sessions", s.StartClosingSession)
	api.GET("/closing-sessions/:id", s.GetClosingSession)
	api.PUT("/closing-sessions/:id/config", s.ConfigureClosingGroup)
	api.POST("/closing-sessions/:id/submit", s.SubmitClosingGroup)
	api.POST("/closing-sessions/:id/cancel", s.CancelClosingSession)
	api.GET("/closing-sessions/:id/summary", s.RenderClosingSummary)
}
