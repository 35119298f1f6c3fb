// Package server exposes the HTTP surface: webhook intake, the review API,
// subscription lifecycle calls, and queue administration.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/orderguard/orderguard/internal/config"
	orderdomain "github.com/orderguard/orderguard/internal/order/domain"
	"github.com/orderguard/orderguard/internal/queue"
	quotadomain "github.com/orderguard/orderguard/internal/quota/domain"
	"github.com/orderguard/orderguard/internal/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, log *zap.Logger) *gin.Engine {
	return NewEngine(cfg, log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
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
	engine    *gin.Engine
	cfg       config.Config
	log       *zap.Logger
	verifier  *webhook.Verifier
	queue     queue.Queue
	inspector queue.Inspector
	orderSvc  orderdomain.Service
	quotaSvc  quotadomain.Service
	holder    *config.PipelineConfigHolder
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Log       *zap.Logger
	Queue     queue.Queue
	Inspector queue.Inspector
	OrderSvc  orderdomain.Service
	QuotaSvc  quotadomain.Service
	Holder    *config.PipelineConfigHolder
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		log:       p.Log.Named("server"),
		verifier:  webhook.NewVerifier(p.Cfg.WebhookSecret),
		queue:     p.Queue,
		inspector: p.Inspector,
		orderSvc:  p.OrderSvc,
		quotaSvc:  p.QuotaSvc,
		holder:    p.Holder,
	}

	svc.registerWebhookRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	webhooks := s.engine.Group("/webhooks")
	webhooks.POST("/orders/create", s.HandleOrderCreateWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", TenantRequired())

	api.GET("/orders", s.ListOrders)
	api.GET("/orders/:id", s.GetOrder)
	api.POST("/orders/:id/resolve", s.ResolveOrder)

	api.GET("/subscription", s.GetSubscription)
	api.POST("/subscription/tier", s.UpdateSubscriptionTier)
	api.POST("/subscription/cancel", s.CancelSubscription)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.GET("/queue/dead", s.ListDeadJobs)
	admin.POST("/queue/dead/:id/requeue", s.RequeueDeadJob)
}
