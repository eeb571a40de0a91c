package httpserver

import (
	"context"
	"errors"
	"log"
	"time"

	"garment-storefront/internal/domain"
	"garment-storefront/internal/metrics"
	"garment-storefront/internal/service/record"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxUploadBytes = 10 << 20

type orderService interface {
	CreateCatalogOrder(ctx context.Context, actor domain.Actor, items []record.ItemInput, notes string) (*domain.Order, error)
	ProposeCustom(ctx context.Context, actor domain.Actor, spec domain.CustomOrderSpec, images []domain.Upload, acknowledged bool) (*domain.Order, error)
	Transition(ctx context.Context, actor domain.Actor, id string, in record.TransitionInput) (*domain.Order, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error)
	List(ctx context.Context, actor domain.Actor, state domain.State) ([]domain.Order, error)
}

type catalogService interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
}

type tokenParser interface {
	Parse(raw string) (domain.Actor, error)
}

// Deps are the services the router dispatches to.
type Deps struct {
	Orders      orderService
	Products    catalogService
	Tokens      tokenParser
	ArtifactDir string
	CORSOrigins []string
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if deps.Orders == nil || deps.Tokens == nil {
		return nil, errors.New("httpserver: order service and token parser are required")
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.MaxMultipartMemory = 4 * maxUploadBytes
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery(), metrics.Middleware())
	router.Use(cors.New(corsConfig(deps.CORSOrigins)))

	checks := []readinessCheck{dbCheck(db)}
	if deps.ArtifactDir != "" {
		router.Static("/files", deps.ArtifactDir)
		checks = append(checks, artifactCheck(deps.ArtifactDir))
	}
	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(checks...))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	if deps.Products != nil {
		ph := &productHandlers{svc: deps.Products, logger: logger}
		router.GET("/products", ph.list)
		router.GET("/products/:productId", ph.get)
	}

	h := &orderHandlers{svc: deps.Orders, logger: logger}
	api := router.Group("/order", authMiddleware(deps.Tokens))
	api.POST("", h.create)
	api.GET("", h.list)
	api.GET("/:orderId", h.get)
	api.POST("/custom/propose", h.propose)
	api.POST("/custom/review/:orderId", h.review)
	api.POST("/custom/accept", h.acceptProposal)
	api.POST("/custom/reject", h.rejectProposal)
	api.POST("/custom/finalize/:orderId", h.finalize)
	api.POST("/checkout/proof", h.uploadProof)
	api.POST("/verify/:orderId", h.verify)
	api.POST("/production/:orderId", h.startProduction)
	api.POST("/dispatch/:orderId", h.dispatch)
	api.POST("/receive/:orderId", h.confirmReceipt)
	api.POST("/cancel/:orderId", h.cancel)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "X-Expected-State"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
