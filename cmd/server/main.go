package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"highway_monitor/internal/config"
	"highway_monitor/internal/handler"
	"highway_monitor/internal/identity"
	"highway_monitor/internal/middleware"
	"highway_monitor/internal/notify"
	"highway_monitor/internal/provider"
	"highway_monitor/internal/realtime"
	"highway_monitor/internal/repository"
	"highway_monitor/internal/service"
	"highway_monitor/internal/storage"
	"highway_monitor/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const jwksRefreshInterval = time.Hour

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading, relying on environment variables")
	}

	// --- Configuration ---
	appCfg, err := config.LoadAppConfig()
	if err != nil {
		log.Fatalf("Failed to load app config: %v", err)
	}
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		log.Fatalf("Failed to load DB config: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Database Connection ---
	dbPool, err := config.ConnectDB(ctx, dbCfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbPool.Close()

	// --- Auto Migration ---
	if err := config.AutoMigrate(ctx, dbPool); err != nil {
		log.Fatalf("Failed to auto-migrate database: %v", err)
	}

	// --- Token verification ---
	// Access tokens are only verified here; the identity provider issues them.
	jwtUtil := utils.NewJWTUtil(appCfg.Supabase.JWTSecret, 1)
	if appCfg.Supabase.JWKSURL != "" {
		kf, err := utils.NewJWKSKeyfunc(ctx, appCfg.Supabase.JWKSURL, jwksRefreshInterval)
		if err != nil {
			log.Fatalf("Failed to load JWKS from %s: %v", appCfg.Supabase.JWKSURL, err)
		}
		jwtUtil.WithJWKS(kf)
	}

	upstream := &http.Client{Timeout: appCfg.UpstreamTimeout}
	identityClient := identity.NewClient(appCfg.Supabase.URL, appCfg.Supabase.AnonKey, upstream)

	// --- Storage ---
	var files service.FileStore
	var localUploadsDir string
	switch appCfg.StorageBackend {
	case "local":
		local, err := storage.NewLocalStorage(appCfg.UploadsDir, appCfg.PublicBaseURL)
		if err != nil {
			log.Fatalf("Failed to prepare local storage: %v", err)
		}
		localUploadsDir = local.Dir()
		files = local
		log.Printf("Uploads will be stored in: %s", localUploadsDir)
	default:
		bucket, err := storage.NewMinioStorage(ctx, appCfg.Minio)
		if err != nil {
			log.Fatalf("Failed to connect to object storage: %v", err)
		}
		files = bucket
		log.Printf("Uploads will be stored in bucket: %s", appCfg.Minio.Bucket)
	}

	// --- Realtime ---
	hub := realtime.NewHub(0)
	var changes service.ChangePublisher = hub
	if appCfg.RedisURL != "" {
		opts, err := redis.ParseURL(appCfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		broker := realtime.NewRedisBroker(rdb, hub, realtime.DefaultChannel)
		go func() {
			if err := broker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Realtime broker stopped: %v", err)
			}
		}()
		changes = broker
		log.Println("Realtime changes are relayed through Redis")
	}

	// --- Notifications ---
	var notifier service.IssueNotifier = notify.Noop{}
	if appCfg.AMQPURL != "" {
		publisher, err := notify.Dial(appCfg.AMQPURL)
		if err != nil {
			log.Fatalf("Failed to connect to message broker: %v", err)
		}
		defer publisher.Close()
		notifier = publisher
	}

	// --- Providers ---
	weatherProvider := provider.NewOpenWeatherClient(appCfg.OpenWeatherAPIKey, appCfg.OpenWeatherBaseURL, upstream)
	maps := provider.NewGoogleMapsClient(appCfg.GoogleMapsAPIKey, appCfg.GoogleMapsBaseURL, appCfg.GoogleRoadsBaseURL, upstream)
	traffic := provider.NewSimulatedTraffic(nil, nil)
	pavement := provider.NewPavementClient(appCfg.PavementPredictURL, upstream)

	// --- Initialize Repositories ---
	issueRepo := repository.NewIssueRepository(dbPool)
	profileRepo := repository.NewProfileRepository(dbPool)

	// --- Initialize Services ---
	schemaPolicy := service.SchemaPolicy(appCfg.SchemaPolicy)
	redirectURI := appCfg.PublicBaseURL + "/auth/callback"

	sessionService := service.NewSessionService(identityClient, jwtUtil, changes, redirectURI)
	profileService := service.NewProfileService(profileRepo, schemaPolicy)
	issueService := service.NewIssueService(service.IssueServiceDeps{
		Repo:             issueRepo,
		Files:            files,
		Changes:          changes,
		Subscriber:       hub,
		Notifier:         notifier,
		SchemaPolicy:     schemaPolicy,
		TransitionPolicy: service.TransitionPolicy(appCfg.TransitionPolicy),
	})
	routeService := service.NewRouteService(maps, maps)
	weatherService := service.NewWeatherService(weatherProvider, appCfg.WeatherCacheSize, appCfg.WeatherCacheTTL,
		service.WithRefreshCenters(service.DefaultMaxCenters, 2*appCfg.WeatherRefreshInterval))
	overlayService := service.NewOverlayService(issueService, routeService, weatherService, traffic)

	go weatherService.Run(ctx, appCfg.WeatherRefreshInterval)

	// --- Initialize Handlers ---
	authHandler := handler.NewAuthHandler(sessionService, identityClient, redirectURI, appCfg.SecureCookies)
	pageHandler := handler.NewPageHandler(profileService)
	profileHandler := handler.NewProfileHandler(profileService)
	issueHandler := handler.NewIssueHandler(issueService)
	mapHandler := handler.NewMapHandler(handler.MapHandlerDeps{
		Overlay:    overlayService,
		Routes:     routeService,
		Weather:    weatherService,
		Roads:      maps,
		StreetView: maps,
		Pavement:   pavement,
	})

	// --- Setup Gin Router ---
	// gin.SetMode(gin.ReleaseMode) // Uncomment for production
	router := gin.Default()
	router.Use(middleware.CORSMiddleware(appCfg.PublicBaseURL))
	router.Use(middleware.MetricsMiddleware())

	if localUploadsDir != "" {
		router.Static("/uploads", localUploadsDir)
	}

	// --- Initialize Middlewares ---
	pageAuthMW := []gin.HandlerFunc{
		middleware.SessionMiddleware(sessionService, appCfg.SecureCookies, middleware.ModePage),
		middleware.ProfileMiddleware(profileService, middleware.ModePage),
	}
	apiAuthMW := []gin.HandlerFunc{
		middleware.SessionMiddleware(sessionService, appCfg.SecureCookies, middleware.ModeAPI),
		middleware.ProfileMiddleware(profileService, middleware.ModeAPI),
	}

	// --- Register Routes ---
	authHandler.RegisterAuthRoutes(router)
	pageHandler.RegisterPageRoutes(router, pageAuthMW[0], pageAuthMW[1])

	apiGroup := router.Group("/api/v1") // Base path for API
	profileHandler.RegisterProfileRoutes(apiGroup, apiAuthMW...)
	issueHandler.RegisterIssueRoutes(apiGroup, apiAuthMW,
		middleware.ReporterMiddleware(), middleware.InspectorMiddleware(), middleware.StatusUpdateMiddleware())
	mapHandler.RegisterMapRoutes(apiGroup, apiAuthMW, middleware.InspectorMiddleware())

	router.GET("/health", func(c *gin.Context) {
		// Check DB connection
		if err := dbPool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "db": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "healthy"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.NoRoute(handler.NotFound)

	// --- Start Server ---
	srv := &http.Server{
		Addr:    ":" + appCfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on port %s", appCfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
