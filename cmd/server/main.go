package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"liana-gateway/internal/collections"
	"liana-gateway/internal/config"
	"liana-gateway/internal/controller"
	"liana-gateway/internal/middleware"
	"liana-gateway/internal/query"
	"liana-gateway/internal/security"
	"liana-gateway/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Set Gin mode
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database connection
	gormLogger := config.NewLogger(cfg.Logging.Level)
	db, err := config.InitDatabase(cfg, gormLogger)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}

	definitions := collections.Catalog()
	if cfg.Database.AutoMigrate {
		if err := migrate(db, definitions); err != nil {
			log.Printf("Warning: Database migration failed: %v", err)
			log.Println("Continuing with existing database schema...")
		}
	}

	// Build every collection schema once; the registries are read-only afterwards
	validator := security.NewSQLValidator(cfg.Security.MaxSegmentLength, cfg.Security.MaxSegmentComplexity)
	schemas, repositories, err := collections.Bootstrap(ctx, db, definitions, validator, gormLogger)
	if err != nil {
		log.Fatal("Failed to build collections:", err)
	}
	log.Printf("Registered collections: %v", schemas.Names())

	// Initialize metrics
	middleware.InitMetrics()
	metricsCollector := service.NewMetricsCollector(cfg.Metrics.Retention)
	go metricsCollector.StartCleanupRoutine(ctx, cfg.Metrics.CleanupInterval)
	go reportPoolStats(ctx, db, cfg.Metrics.PoolInterval)

	// Initialize services
	getter := service.NewResourcesGetter(schemas, repositories, gormLogger,
		service.WithQueryBuilder(query.NewQueryBuilder(schemas, cfg.Query.DefaultPageSize, cfg.Query.MaxPageSize)),
		service.WithDefaultLocation(cfg.Query.DefaultLocation()),
		service.WithMetricsCollector(metricsCollector),
	)

	// Initialize security
	jwtManager := security.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.JWTExpiration)
	authMiddleware := security.NewAuthMiddleware(jwtManager)

	// Initialize rate limiting
	rateLimiter := middleware.NewRateLimiter(ctx, middleware.RateLimiterConfig{
		RPM:             cfg.Security.RateLimitPerMinute,
		Burst:           cfg.Security.RateLimitBurst,
		CleanupInterval: 5 * time.Minute,
	})

	// Initialize controllers
	resourcesController := controller.NewResourcesController(getter, cfg.Query.Timeout)
	schemaController := controller.NewSchemaController(schemas)
	statsController := controller.NewStatsController(metricsCollector)
	healthController := controller.NewHealthController(db, schemas)

	// Create Gin router
	router := gin.New()

	// Add middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.Cors(cfg.Security.CorsOrigins...))
	router.Use(middleware.CorrelationID())
	router.Use(middleware.PrometheusMiddleware())

	// Health check and metrics endpoints (always available)
	router.GET("/health", healthController.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	api := router.Group("/api/v1")
	if cfg.Security.EnableAuth {
		api.Use(authMiddleware.RequireAuth())
	}
	// Rate limiting keys on the authenticated user, so it runs after auth
	if cfg.Security.EnableRateLimit {
		api.Use(rateLimiter.RateLimit())
	}
	{
		schemasGroup := api.Group("/schemas")
		{
			schemasGroup.GET("", schemaController.ListSchemas)
			schemasGroup.GET("/:collection", schemaController.GetSchema)
		}

		collectionsGroup := api.Group("/collections")
		if cfg.Security.EnableAuth {
			collectionsGroup.Use(authMiddleware.RequireCollectionAccess("collection"))
		}
		collectionsGroup.GET("/:collection", resourcesController.List)

		statsGroup := api.Group("/stats")
		if cfg.Security.EnableAuth {
			statsGroup.Use(authMiddleware.RequireAnyRole("admin"))
		}
		{
			statsGroup.GET("", statsController.GetStats)
			statsGroup.GET("/:collection", statsController.GetCollectionStats)
		}
	}

	// Start server
	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		log.Printf("Health check available at: http://localhost:%s/health", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func migrate(db *gorm.DB, definitions []collections.Definition) error {
	models := make([]interface{}, 0, len(definitions))
	for _, def := range definitions {
		models = append(models, def.Model)
	}
	return db.AutoMigrate(models...)
}

func reportPoolStats(ctx context.Context, db *gorm.DB, interval time.Duration) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Warning: connection pool metrics disabled: %v", err)
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			middleware.UpdateConnectionPoolMetrics(sqlDB.Stats())
		}
	}
}
