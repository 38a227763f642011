package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quocanhngo/reelsync/internal/catalog"
	"github.com/quocanhngo/reelsync/internal/config"
	"github.com/quocanhngo/reelsync/internal/handler"
	"github.com/quocanhngo/reelsync/internal/middleware"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/quocanhngo/reelsync/internal/repository"
	"github.com/quocanhngo/reelsync/internal/repository/memory"
	"github.com/quocanhngo/reelsync/internal/service"
	"github.com/quocanhngo/reelsync/internal/ws"
	"github.com/quocanhngo/reelsync/migrations"
	"github.com/quocanhngo/reelsync/pkg/auth"
	"github.com/quocanhngo/reelsync/pkg/certauth"
	applog "github.com/quocanhngo/reelsync/pkg/logger"
	"github.com/quocanhngo/reelsync/pkg/mailer"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// @title           ReelSync API
// @version         1.0
// @description     Device identity, session lifecycle and cross-device watch progress sync.

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      api.localhost
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// stores is the persistence backend the services run on
type stores struct {
	users    service.UserStore
	sessions service.SessionStore
	progress service.ProgressStore
	certs    service.CertificateStore
	revoked  service.RevocationList
	titles   catalog.TitleStore
	rdb      *redis.Client
}

func main() {
	// ==================== Load Config ====================
	cfg := config.Load()
	appLog := applog.New(cfg.App.Env, cfg.App.LogLevel)
	appLog.Info().Str("env", cfg.App.Env).Msg("🚀 Starting ReelSync API Server")

	// ==================== Persistence ====================
	var st stores
	if cfg.DB.InMemory() {
		st = memoryStores()
		appLog.Warn().Msg("⚠️  DB_DRIVER=memory: state is lost on restart, websocket fan-out is local only")
	} else {
		st = postgresStores(cfg, appLog)
	}

	// ==================== Certificate Authority ====================
	authority, err := certauth.LoadOrCreateAuthority(cfg.Cert.CAFile, cfg.Cert.CAKeyFile, cfg.Cert.CACommonName, cfg.Cert.Organization)
	if err != nil {
		appLog.Fatal().Err(err).Msg("❌ Failed to load certificate authority")
	}
	appLog.Info().Str("subject", authority.Certificate().Subject.CommonName).Msg("🔐 Certificate authority ready")

	// ==================== Email (SMTP) ====================
	var alerts service.DeviceAlerter
	if cfg.SMTP.Enabled() {
		alerts = mailer.New(mailer.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			FromName: cfg.SMTP.FromName,
		}, appLog)
		appLog.Info().Str("host", cfg.SMTP.Host).Str("port", cfg.SMTP.Port).Msg("📧 SMTP configured")
	}

	// ==================== Initialize Layers ====================
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	titleCatalog := catalog.New(st.titles, cfg.Catalog.CacheTTL)
	go titleCatalog.Start()
	defer titleCatalog.Stop()

	// WebSocket Hub (with Redis Pub/Sub for horizontal scaling)
	hub := ws.NewHub(st.rdb, appLog)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	// Services
	sessionService := service.NewSessionService(st.sessions, hub, appLog)
	progressService := service.NewProgressService(st.progress, st.sessions, titleCatalog, hub, appLog)
	certService := service.NewCertificateService(authority, st.certs, st.users, sessionService, st.revoked, jwtManager, alerts, appLog)
	identityService := service.NewIdentityService(jwtManager, st.users, sessionService, certService, appLog)
	authService := service.NewAuthService(st.users, sessionService, jwtManager)

	// Handlers
	handlers := handler.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		Session:     handler.NewSessionHandler(sessionService),
		Progress:    handler.NewProgressHandler(progressService),
		Certificate: handler.NewCertificateHandler(certService),
		WS:          handler.NewWSHandler(hub, identityService, appLog),
	}

	// ==================== Gin Router ====================
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(appLog))

	// Serve swagger.json at /docs/swagger.json to avoid conflict with /swagger/* wildcard
	router.StaticFile("/docs/swagger.json", "./docs/swagger.json")
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/docs/swagger.json")))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Global middleware
	router.Use(middleware.CORSMiddleware(cfg.CORS.Origins))

	// ==================== API Routes ====================
	api := router.Group("/api/v1")
	api.Use(middleware.Identity(identityService, middleware.GatewayConfig{
		CertEnabled:   cfg.Cert.Enabled,
		ForwardHeader: cfg.Cert.ForwardHeader,
		SkipPaths:     cfg.Cert.SkipPaths,
	}, appLog))

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "reelsync-api",
			"time":    time.Now().Format(time.RFC3339),
		})
	})
	handlers.Register(api)

	// ==================== Start Server ====================
	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		var err error
		if cfg.TLS.Enabled() {
			// Client certificates are optional at the handshake; the gateway decides
			clientCAs := x509.NewCertPool()
			clientCAs.AddCert(authority.Certificate())
			srv.TLSConfig = &tls.Config{
				MinVersion: tls.VersionTLS12,
				ClientAuth: tls.VerifyClientCertIfGiven,
				ClientCAs:  clientCAs,
			}
			err = srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal().Err(err).Msg("❌ Server failed")
		}
	}()

	scheme := "http"
	if cfg.TLS.Enabled() {
		scheme = "https"
	}
	base := scheme + "://0.0.0.0:" + cfg.App.Port
	appLog.Info().
		Str("addr", base).
		Str("docs", base+"/swagger/index.html").
		Str("metrics", base+"/metrics").
		Str("websocket", "/api/v1/ws?token=<jwt>").
		Msg("🌐 ReelSync API running")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info().Msg("🛑 Shutting down server...")

	// Give ongoing requests 5 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal().Err(err).Msg("❌ Server forced to shutdown")
	}

	hubCancel()
	appLog.Info().Msg("✅ Server exited gracefully")
}

func memoryStores() stores {
	titles := memory.NewTitleStore()
	for i := range catalog.DemoTitles {
		title := catalog.DemoTitles[i]
		_ = titles.Save(context.Background(), &title)
	}
	return stores{
		users:    memory.NewUserStore(),
		sessions: memory.NewSessionStore(),
		progress: memory.NewProgressStore(),
		certs:    memory.NewCertificateStore(),
		revoked:  memory.NewRevocationList(),
		titles:   titles,
	}
}

func postgresStores(cfg *config.Config, appLog zerolog.Logger) stores {
	// ==================== Database (PostgreSQL) ====================
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.App.Env == "production" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		appLog.Fatal().Err(err).Msg("❌ Failed to connect to database")
	}
	appLog.Info().Msg("✅ Connected to PostgreSQL")

	// ==================== Run Migrations ====================
	if err := migrations.Run(cfg.DB.URL(), appLog); err != nil {
		appLog.Warn().Err(err).Msg("⚠️  Migration failed, falling back to GORM AutoMigrate")
		if err := migrations.AutoMigrate(db,
			&model.User{},
			&model.Session{},
			&model.DeviceCertificate{},
			&model.Title{},
			&model.WatchProgress{},
		); err != nil {
			appLog.Fatal().Err(err).Msg("❌ Failed to migrate database")
		}
	}
	appLog.Info().Msg("✅ Database migrated successfully")

	// ==================== Redis ====================
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		appLog.Fatal().Err(err).Msg("❌ Failed to connect to Redis")
	}
	appLog.Info().Msg("✅ Connected to Redis")

	return stores{
		users:    repository.NewUserRepository(db),
		sessions: repository.NewSessionRepository(db),
		progress: repository.NewProgressRepository(db),
		certs:    repository.NewCertificateRepository(db),
		revoked:  repository.NewRevocationList(rdb),
		titles:   repository.NewTitleRepository(db),
		rdb:      rdb,
	}
}
