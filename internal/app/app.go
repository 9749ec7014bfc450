package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	"sorteos-backend/internal/common/auth"
	"sorteos-backend/internal/common/cache"
	"sorteos-backend/internal/common/config"
	"sorteos-backend/internal/common/logger"
	"sorteos-backend/internal/common/middleware"
	adminhttp "sorteos-backend/internal/features/admin/delivery/http"
	adminstore "sorteos-backend/internal/features/admin/repository/sqlstore"
	adminservice "sorteos-backend/internal/features/admin/service"
	"sorteos-backend/internal/features/chat"
	chathttp "sorteos-backend/internal/features/chat/delivery/http"
	paymenthttp "sorteos-backend/internal/features/payment/delivery/http"
	paymentmodels "sorteos-backend/internal/features/payment/models"
	"sorteos-backend/internal/features/payment/provider"
	paymentstore "sorteos-backend/internal/features/payment/repository/sqlstore"
	paymentservice "sorteos-backend/internal/features/payment/service"
	sorteohttp "sorteos-backend/internal/features/sorteo/delivery/http"
	sorteostore "sorteos-backend/internal/features/sorteo/repository/sqlstore"
	sorteoservice "sorteos-backend/internal/features/sorteo/service"
	tombolahttp "sorteos-backend/internal/features/tombola/delivery/http"
	tombolamodels "sorteos-backend/internal/features/tombola/models"
	tombolastore "sorteos-backend/internal/features/tombola/repository/sqlstore"
	tombolaservice "sorteos-backend/internal/features/tombola/service"
	userhttp "sorteos-backend/internal/features/user/delivery/http"
	userstore "sorteos-backend/internal/features/user/repository/sqlstore"
	userservice "sorteos-backend/internal/features/user/service"
	"sorteos-backend/internal/platform/database"
	"sorteos-backend/internal/platform/lock"
	"sorteos-backend/internal/platform/metrics"
	redisplatform "sorteos-backend/internal/platform/redis"
	"sorteos-backend/internal/platform/tracing"
	"sorteos-backend/internal/workers"
)

// App holds the wired services shared by the HTTP server and the CLI.
type App struct {
	cfg     *config.Config
	store   database.Store
	redis   *redisplatform.Client
	metrics *metrics.Metrics
	tokens  *auth.TokenManager

	shutdownTracing func(context.Context) error

	Users      userservice.UserService
	Raffles    sorteoservice.RaffleService
	Inventory  sorteoservice.InventoryService
	Purchases  sorteoservice.PurchaseService
	Promotions sorteoservice.PromotionService
	Tombola    tombolaservice.Service
	Payments   paymentservice.Service
	Admin      adminservice.AdminService
	Hub        *chat.Hub
}

// New opens storage and wires every feature. Close releases what it opened.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg, metrics: metrics.New()}

	shutdown, err := tracing.Setup(ctx, tracing.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: cfg.ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	a.shutdownTracing = shutdown

	a.store, err = database.Open(ctx, cfg.Database)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("Database connection established")

	var (
		locker lock.Locker
		c      cache.Cache
	)
	if cfg.Redis.Enabled {
		a.redis, err = redisplatform.Open(ctx, cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		locker = lock.NewRedis(a.redis)
		c = cache.NewRedisCache(a.redis)
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("Redis connection established")
	} else {
		lru, err := cache.NewLRUCache(cfg.Cache.LRUSize)
		if err != nil {
			a.Close()
			return nil, err
		}
		locker = lock.NewLocal()
		c = lru
		logger.Info().Msg("Redis disabled, using in-process lock and cache")
	}

	db := a.store.DB()
	a.tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	sorteoRepo := sorteostore.New(db)
	a.Users = userservice.NewUserService(userstore.NewUserRepository(db), a.tokens)
	a.Raffles = sorteoservice.NewRaffleService(sorteoRepo)
	a.Inventory = sorteoservice.NewInventoryService(sorteoRepo, sorteoservice.InventoryConfig{
		MonthlyQuota: cfg.Tickets.MonthlyQuota,
		BatchSize:    cfg.Tickets.BatchSize,
	}, a.metrics)
	a.Purchases = sorteoservice.NewPurchaseService(sorteoRepo, a.metrics)
	a.Promotions = sorteoservice.NewPromotionService(sorteoRepo)

	uniqueness, err := tombolamodels.ParseUniqueness(cfg.Draw.WinnerUniqueness)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Tombola = tombolaservice.NewService(tombolastore.New(db), locker, c, a.metrics, tombolaservice.Config{
		Uniqueness:      uniqueness,
		LockTTL:         cfg.Draw.LockTTL,
		EnforceSchedule: cfg.Draw.EnforceSchedule,
		WinnersTTL:      cfg.Cache.WinnersTTL,
	})

	providers := provider.NewRegistry(
		provider.NewOffline(paymentmodels.ProviderPayPal, cfg.Server.StorefrontURL),
		provider.NewOffline(paymentmodels.ProviderTransbank, cfg.Server.StorefrontURL),
	)
	a.Payments = paymentservice.NewService(paymentstore.New(db), a.Purchases, providers, a.metrics)
	a.Admin = adminservice.NewAdminService(adminstore.NewStatsRepository(db), sorteoRepo)
	a.Hub = chat.NewHub(a.metrics)

	return a, nil
}

func (a *App) Tokens() *auth.TokenManager {
	return a.tokens
}

func (a *App) Store() database.Store {
	return a.store
}

// Router builds the gin engine with every feature mounted under /api.
func (a *App) Router() *gin.Engine {
	if !a.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger("/health", "/live", "/ready", "/metrics"))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Metrics(a.metrics))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = a.cfg.Server.Origins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", "X-Request-ID"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	api := router.Group("/api", middleware.HandleErrors(), middleware.Authenticate(a.tokens))
	userhttp.NewUserHandler(a.Users).RegisterRoutes(api)
	sorteohttp.NewSorteoHandler(a.Raffles, a.Inventory, a.Purchases, a.Promotions).RegisterRoutes(api)
	tombolahttp.NewTombolaHandler(a.Tombola).RegisterRoutes(api)
	paymenthttp.NewPaymentHandler(a.Payments).RegisterRoutes(api)
	adminhttp.NewAdminHandler(a.Admin).RegisterRoutes(api)
	chathttp.NewChatHandler(a.Hub, a.cfg.Server.Origins).RegisterRoutes(api)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   a.cfg.ServiceName,
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := a.store.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "database unavailable",
				"details": err.Error(),
			})
			return
		}
		if a.redis != nil {
			if err := a.redis.HealthCheck(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unready",
					"error":   "redis unavailable",
					"details": err.Error(),
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   a.cfg.ServiceName,
		})
	})

	return router
}

// Run serves HTTP and the chat hub until ctx is cancelled. The payment
// stream and auto-draw workers run when enabled.
func (a *App) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      a.Router(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Int("port", a.cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.Hub.Run(gctx)
		return nil
	})

	if a.cfg.Payments.StreamEnabled && a.redis != nil {
		worker := workers.NewPaymentStreamWorker(a.redis, workers.NewServiceEvents(a.Payments), workers.StreamConfig{
			Key:      a.cfg.Payments.StreamKey,
			Group:    a.cfg.Payments.ConsumerGroup,
			Consumer: a.cfg.Payments.ConsumerName,
		})
		g.Go(func() error {
			return worker.Start(gctx)
		})
	}

	if a.cfg.Draw.AutoDraw {
		worker := workers.NewAutoDrawWorker(a.Raffles, a.Tombola, a.cfg.Draw.AutoDrawInterval)
		g.Go(func() error {
			return worker.Start(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	return g.Wait()
}

// Close releases storage connections and flushes traces.
func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close database")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close redis")
		}
	}
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdownTracing(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to flush traces")
		}
	}
}
