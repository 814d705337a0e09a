package main

import (
	"rukun-service/internal/authz"
	"rukun-service/internal/handler"
	"rukun-service/internal/middleware"
	"rukun-service/internal/session"
	"rukun-service/pkg/config"
	"rukun-service/pkg/database"
	"rukun-service/pkg/jwtutil"
	"rukun-service/pkg/logger"
	"rukun-service/pkg/validation"
	"rukun-service/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables. A missing
	// signing key is fatal here, before anything else comes up.
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting rukun service...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize session token codec
	jwtutil.Initialize(&cfg.JWT)

	// Session revocation store: Redis when configured, in-memory otherwise
	revocation := session.NewStore(&cfg.Redis, jwtutil.Expiration())
	if cfg.Redis.Addr == "" {
		log.Warn("REDIS_ADDR not set, session revocation is process-local")
	}

	guard := authz.NewGuard(cfg.JWT.CookieName, revocation)
	h := handler.New(database.GetDB(), guard, revocation, cfg)

	// Initialize Echo framework
	e := echo.New()
	e.Validator = validation.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)
	e.GET("/public/balance", h.PublicBalance)

	// Authentication routes
	auth := e.Group("/auth")
	auth.POST("/login", h.Login)
	auth.POST("/logout", h.Logout)

	// API routes - session required, handlers run their own role checks
	api := e.Group("/api")
	api.GET("/auth/me", h.Me)

	// Tenant-admin area - any admin role, unit scoping in handlers
	admin := api.Group("/admin", middleware.AdminArea(guard))
	admin.POST("/warga", h.RegisterWarga)
	admin.GET("/warga", h.ListWarga)
	admin.GET("/warga/:id", h.GetWarga)
	admin.PATCH("/warga/:id/active", h.SetWargaActive)
	admin.POST("/deposits", h.CreateDeposit)
	admin.GET("/balances/:warga_id", h.GetBalance)
	admin.GET("/waste-types", h.ListWasteTypes)
	admin.POST("/announcements", h.CreateAnnouncement)
	admin.GET("/announcements", h.ListAnnouncements)
	admin.PATCH("/announcements/:id", h.UpdateAnnouncement)
	admin.DELETE("/announcements/:id", h.DeleteAnnouncement)

	// Super-admin area - non-super sessions are downgraded by the gatekeeper
	super := api.Group("/superadmin", middleware.SuperAdminArea(guard))
	super.POST("/units", h.CreateUnit)
	super.GET("/units", h.ListUnits)
	super.PATCH("/units/:id", h.UpdateUnit)
	super.PATCH("/units/:id/active", h.SetUnitActive)
	super.POST("/admins", h.CreateAdminUser)
	super.GET("/admins", h.ListAdminUsers)
	super.PATCH("/admins/:id/active", h.SetAdminActive)
	super.POST("/waste-types", h.CreateWasteType)
	super.PATCH("/waste-types/:id", h.UpdateWasteType)
	super.PATCH("/waste-types/:id/active", h.SetWasteTypeActive)
	super.GET("/ledger/verify/:warga_id", h.VerifyBalance)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
