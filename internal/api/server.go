package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"catalog/internal/api/handlers"
	"catalog/internal/api/middleware"
	"catalog/internal/config"
	"catalog/internal/logger"
	"catalog/internal/metrics"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Server struct {
	config *config.Config
	logger *logger.Logger
	router *gin.Engine
	server *http.Server
}

func New(cfg *config.Config, logger *logger.Logger, db *gorm.DB, runner handlers.Runner) *Server {
	// Set Gin mode
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Initialize handlers
	importHandler := handlers.NewImportHandler(db, runner, logger)
	productHandler := handlers.NewProductHandler(db, logger)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": cfg.AppVersion})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Routes
	v1 := router.Group("/api/v1")
	{
		// Import runs
		imports := v1.Group("/imports")
		{
			imports.GET("", importHandler.List)
			imports.GET("/:id", importHandler.Get)
			imports.POST("", importHandler.Create)
		}

		// Imported catalog
		products := v1.Group("/products")
		{
			products.GET("", productHandler.List)
			products.GET("/:id", productHandler.Get)
		}
	}

	// Imports run inside the request, so writes have no deadline.
	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return &Server{
		config: cfg,
		logger: logger,
		router: router,
		server: server,
	}
}

// Start blocks until the server stops. It returns nil after a graceful Stop.
func (s *Server) Start() error {
	s.logger.Info("Starting server on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
