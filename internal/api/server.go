package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ksred/linkdesk/internal/config"
	"github.com/ksred/linkdesk/internal/database"
	"github.com/ksred/linkdesk/internal/i18n"
	"github.com/ksred/linkdesk/internal/mcp"
	"github.com/ksred/linkdesk/internal/metrics"
	"github.com/ksred/linkdesk/internal/rpc"
	"github.com/ksred/linkdesk/internal/search"
	"github.com/ksred/linkdesk/internal/services"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Dependencies are the services the HTTP API exposes
type Dependencies struct {
	Search     *search.Service
	PatchLogs  *services.PatchLogService
	DocTypes   *services.DocTypeService
	Records    *services.RecordService
	Activity   *services.ActivityService
	Translator *i18n.Translator
	Methods    *rpc.Registry
	Metrics    *metrics.Collector
}

type Server struct {
	router          *gin.Engine
	config          *config.Config
	db              *database.Database
	searchService   *search.Service
	patchLogService *services.PatchLogService
	docTypeService  *services.DocTypeService
	recordService   *services.RecordService
	activityService *services.ActivityService
	translator      *i18n.Translator
	methods         *rpc.Registry
	mcpHandler      *mcp.Handler
	authService     *AuthService
	resolver        *i18n.Resolver
	metrics         *metrics.Collector
	logger          zerolog.Logger
	httpServer      *http.Server
}

func NewServer(cfg *config.Config, db *database.Database, deps Dependencies, logger zerolog.Logger) (*Server, error) {
	if deps.Search == nil || deps.PatchLogs == nil || deps.DocTypes == nil || deps.Records == nil || deps.Activity == nil {
		return nil, fmt.Errorf("search, patch log, doctype, record and activity services are required")
	}
	if deps.Methods == nil {
		deps.Methods = rpc.NewRegistry(logger)
		if err := rpc.RegisterDefaults(deps.Methods, deps.Search, deps.PatchLogs); err != nil {
			return nil, err
		}
	}

	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		router:          gin.New(),
		config:          cfg,
		db:              db,
		searchService:   deps.Search,
		patchLogService: deps.PatchLogs,
		docTypeService:  deps.DocTypes,
		recordService:   deps.Records,
		activityService: deps.Activity,
		translator:      deps.Translator,
		methods:         deps.Methods,
		mcpHandler:      mcp.NewHandler(deps.Methods, deps.DocTypes, logger),
		authService:     NewAuthService(db, logger),
		resolver:        i18n.NewResolver(cfg.Locale.Default, cfg.Locale.Supported),
		metrics:         deps.Metrics,
		logger:          logger.With().Str("component", "http").Logger(),
	}

	server.router.Use(gin.Recovery())
	server.router.Use(RequestIDMiddleware())
	server.router.Use(LoggerMiddleware(server.logger))
	server.router.Use(server.metricsMiddleware())
	server.router.Use(cors.New(corsConfig(cfg.HTTP)))

	server.setupRoutes()

	return server, nil
}

func corsConfig(cfg config.HTTP) cors.Config {
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowOrigins
	} else {
		// Default origins for development
		corsConfig.AllowOrigins = []string{"http://localhost:3000", "http://localhost:5173", "http://127.0.0.1:3000", "http://127.0.0.1:5173"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Accept-Language", "Authorization", "X-API-Key", "X-Requested-With", requestIDHeader}
	corsConfig.ExposeHeaders = []string{"Content-Length", "Content-Type", requestIDHeader}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	return corsConfig
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)

	if s.config.Metrics.Enabled && s.metrics != nil {
		s.router.GET(s.config.Metrics.Path, gin.WrapH(s.metrics.Handler()))
	}

	// Swagger documentation
	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Whitelisted method calls, addressed by dotted name
	method := s.router.Group("/api/method")
	method.Use(s.authMiddleware())
	{
		method.GET("/:method", s.methodHandler)
		method.POST("/:method", s.methodHandler)
	}

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.Use(s.LocaleMiddleware())
		{
			auth.POST("/register", s.registerHandler)
			auth.POST("/login", s.loginHandler)
		}

		// Protected endpoints
		protected := v1.Group("")
		protected.Use(s.authMiddleware())
		{
			keys := protected.Group("/keys")
			{
				keys.GET("", s.listAPIKeysHandler)
				keys.POST("", s.createAPIKeyHandler)
				keys.DELETE("/:id", s.deleteAPIKeyHandler)
			}

			searchGroup := protected.Group("/search", requirePermission(PermSearch))
			{
				searchGroup.GET("/link", s.searchLinkHandler)
				searchGroup.GET("/widget", s.searchWidgetHandler)
			}

			patchLogs := protected.Group("/patch-logs")
			{
				patchLogs.GET("", requirePermission(PermPatchLogRead), s.listPatchLogsHandler)
				patchLogs.GET("/:id", requirePermission(PermPatchLogRead), s.getPatchLogHandler)
				patchLogs.POST("/:id/rerun", requirePermission(PermPatchLogRerun), s.rerunPatchHandler)
			}

			doctypes := protected.Group("/doctypes")
			{
				doctypes.GET("", s.listDocTypesHandler)
				doctypes.GET("/:name", s.getDocTypeHandler)
				doctypes.POST("", requirePermission(PermRegistryWrite), s.createDocTypeHandler)
			}

			records := protected.Group("/records/:doctype")
			{
				records.GET("", s.listRecordsHandler)
				records.POST("", requirePermission(PermRegistryWrite), s.createRecordHandler)
				records.POST("/:name/move", requirePermission(PermRegistryWrite), s.moveRecordHandler)
				records.DELETE("/:name", requirePermission(PermRegistryWrite), s.deleteRecordHandler)
			}

			protected.POST("/translations", requirePermission(PermRegistryWrite), s.saveTranslationHandler)
			protected.GET("/activity", s.recentActivityHandler)

			// MCP protocol endpoint
			protected.POST("/mcp", s.HandleMCP)
		}
	}
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	s.logger.Info().Str("address", addr).Msg("Starting HTTP server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// logActivity records an audit row for the request's actor. Failures are
// logged and never fail the request.
func (s *Server) logActivity(c *gin.Context, activityType string, details map[string]interface{}) {
	if err := s.activityService.LogActivity(c.Request.Context(), activityType, details); err != nil {
		s.logger.Warn().Err(err).Str("type", activityType).Msg("Failed to log activity")
	}
}

// @title Linkdesk API
// @version 1.0
// @description Link search, translated labels and patch administration
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8082
// @BasePath /api/v1

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

// healthHandler godoc
// @Summary Health check
// @Description Check if the service is healthy
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (s *Server) healthHandler(c *gin.Context) {
	ctx := c.Request.Context()

	dbHealthy := true
	var dbError string
	if err := s.db.Health(ctx); err != nil {
		dbHealthy = false
		dbError = err.Error()
	}

	status := "healthy"
	if !dbHealthy {
		status = "unhealthy"
	}

	response := gin.H{
		"status":         status,
		"timestamp":      time.Now().UTC(),
		"developer_mode": s.config.Server.DeveloperMode,
		"database": gin.H{
			"healthy": dbHealthy,
			"error":   dbError,
		},
	}

	if !dbHealthy {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}
