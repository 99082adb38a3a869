package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/warden/api/audit"
	"github.com/dev-mohitbeniwal/warden/api/catalog"
	"github.com/dev-mohitbeniwal/warden/api/config"
	"github.com/dev-mohitbeniwal/warden/api/controller"
	"github.com/dev-mohitbeniwal/warden/api/db"
	logger "github.com/dev-mohitbeniwal/warden/api/logging"
	"github.com/dev-mohitbeniwal/warden/api/metrics"
	"github.com/dev-mohitbeniwal/warden/api/pdp/engine"
	"github.com/dev-mohitbeniwal/warden/api/router"
	"github.com/dev-mohitbeniwal/warden/api/service"
	"github.com/dev-mohitbeniwal/warden/api/session"
	"github.com/dev-mohitbeniwal/warden/api/store"
	"github.com/dev-mohitbeniwal/warden/api/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger()
	defer logger.Sync()

	// Initialize metrics
	metrics.Init()

	// Initialize Redis (optional decision cache and rate limiting tier)
	redisEnabled := config.GetBool("redis.enabled")
	if redisEnabled {
		if err := db.InitRedis(); err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		defer db.CloseRedis()
	}

	// Initialize EventBus
	eventBus := util.NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventBus.Start(ctx)

	// Initialize audit trail: in-memory ring plus optional Elasticsearch mirror
	sink := audit.NewSink(config.GetInt("audit.retentionSize"))
	var auditRepo audit.Repository
	if config.GetBool("elasticsearch.enabled") {
		repo, err := audit.NewElasticsearchRepository(config.GetString("elasticsearch.url"))
		if err != nil {
			logger.Fatal("Failed to initialize Elasticsearch", zap.Error(err))
		}
		auditRepo = repo
	}
	auditService := audit.NewService(sink, auditRepo)

	// Initialize catalogs and stores
	permissionCatalog := catalog.NewPermissionCatalog()
	roleGraph := catalog.NewRoleGraph(permissionCatalog)
	userStore := store.NewUserStore(roleGraph, auditService, eventBus, config.GetInt("auth.lockoutThreshold"))

	// Initialize session manager and start the expiry sweeper
	sessionManager := session.NewManager(
		auditService,
		eventBus,
		config.GetDuration("auth.sessionTTL"),
		config.GetDuration("auth.sweepInterval"),
	)
	sessionManager.StartSweeper()
	defer sessionManager.StopSweeper()

	// Initialize the decision engine
	var remoteCache engine.RemoteDecisionCache
	if redisEnabled {
		remoteCache = db.NewDecisionCache(db.RedisClient, config.GetDuration("access.decisionCacheTTL"))
	}
	decisionEngine := engine.NewEngine(
		permissionCatalog,
		roleGraph,
		userStore,
		sessionManager,
		auditService,
		eventBus,
		remoteCache,
		engine.Config{
			BusinessHoursStart: config.GetInt("access.businessHoursStart"),
			BusinessHoursEnd:   config.GetInt("access.businessHoursEnd"),
			HighRiskThreshold:  config.GetFloat64("access.highRiskThreshold"),
			DriftThreshold:     config.GetFloat64("access.driftThreshold"),
			DecisionCacheTTL:   config.GetDuration("access.decisionCacheTTL"),
		},
	)

	// Initialize services and controllers
	accessService := service.NewAccessService(userStore, sessionManager, decisionEngine, auditService, eventBus)
	credentials := service.NewCredentialRegistry()
	controllers := controller.InitializeControllers(accessService, credentials, userStore, permissionCatalog, roleGraph, eventBus)

	// Set up the router and server
	r := router.SetupRouter(
		controllers,
		config.GetInt("rateLimit.requests"),
		config.GetDuration("rateLimit.window"),
		redisEnabled,
	)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: r,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", config.GetString("server.port")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
