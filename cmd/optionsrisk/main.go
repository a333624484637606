package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/wyfcoding/optionsanalytics/internal/optionsrisk/application"
	"github.com/wyfcoding/optionsanalytics/internal/optionsrisk/infrastructure/client"
	"github.com/wyfcoding/optionsanalytics/internal/optionsrisk/infrastructure/messaging"
	"github.com/wyfcoding/optionsanalytics/internal/optionsrisk/infrastructure/persistence/mysql"
	analytics_http "github.com/wyfcoding/optionsanalytics/internal/optionsrisk/interfaces/http"
	"github.com/wyfcoding/optionsanalytics/pkg/cache"
	"github.com/wyfcoding/optionsanalytics/pkg/config"
	"github.com/wyfcoding/optionsanalytics/pkg/db"
	"github.com/wyfcoding/optionsanalytics/pkg/logger"
	"github.com/wyfcoding/optionsanalytics/pkg/metrics"
	"github.com/wyfcoding/optionsanalytics/pkg/middleware"
	"github.com/wyfcoding/optionsanalytics/pkg/mq"
	"github.com/wyfcoding/optionsanalytics/pkg/ratelimit"
	"github.com/wyfcoding/pkg/logging"
	"golang.org/x/sync/errgroup"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/optionsrisk/config.toml", "path to config file")
	flag.Parse()

	// 1. Config
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Sprintf("read config failed: %v", err))
	}

	// 2. Logger
	svcLogger := logging.NewLogger("optionsrisk", "main", viper.GetString("log.level"))
	slog.SetDefault(svcLogger.Logger)
	if err := logger.Init(logger.Config{
		Level:  viper.GetString("log.level"),
		Format: "json",
		Output: "stdout",
	}); err != nil {
		panic(fmt.Sprintf("init logger failed: %v", err))
	}

	// 3. Database
	dbConn, err := db.Init(db.Config{
		Driver:          "mysql",
		DSN:             viper.GetString("database.source"),
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 300,
	})
	if err != nil {
		panic(fmt.Sprintf("connect db failed: %v", err))
	}

	// Auto Migrate
	if err := dbConn.AutoMigrate(&mysql.MarginSnapshotModel{}, &messaging.OutboxMessage{}); err != nil {
		panic(fmt.Sprintf("migrate db failed: %v", err))
	}

	// 4. Infrastructure
	redisCache, err := cache.New(cache.Config{
		Host:     viper.GetString("redis.host"),
		Port:     viper.GetInt("redis.port"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})
	if err != nil {
		slog.Warn("redis unavailable, quote cache disabled", "error", err)
		redisCache = nil
	}

	producer, err := mq.NewProducer(mq.KafkaConfig{
		Brokers:      viper.GetStringSlice("kafka.brokers"),
		MaxRetries:   3,
		RetryBackoff: 100,
	})
	if err != nil {
		panic(fmt.Sprintf("create kafka producer failed: %v", err))
	}
	defer producer.Close()

	// Quote source: 行情映射来自配置，生产环境替换为行情服务客户端
	staticPrices := make(map[string]decimal.Decimal)
	for symbol, raw := range viper.GetStringMapString("quotes.static") {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			panic(fmt.Sprintf("invalid static quote %s=%s: %v", symbol, raw, err))
		}
		staticPrices[symbol] = price
	}
	quoteTTL := viper.GetDuration("quotes.cache_ttl")
	if quoteTTL <= 0 {
		quoteTTL = 5 * time.Second
	}
	quotes := client.NewCachedQuoteProvider(
		client.NewStaticQuoteProvider(staticPrices), redisCache, quoteTTL)

	snapshotRepo := mysql.NewMarginSnapshotRepository(dbConn.DB)
	publisher := messaging.NewOutboxEventPublisher(dbConn.DB, producer)

	// 5. Application
	appService := application.NewAnalyticsService(quotes, snapshotRepo, publisher)

	// 6. Interfaces
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.GinRecoveryMiddleware())
	r.Use(middleware.GinLoggingMiddleware())
	r.Use(middleware.GinCORSMiddleware())

	if redisCache != nil && viper.GetBool("ratelimit.enabled") {
		limiter := ratelimit.NewRedisRateLimiter(redisCache.GetClient())
		r.Use(middleware.RateLimitMiddleware(limiter, config.RateLimitConfig{
			Enabled: true,
			QPS:     viper.GetInt("ratelimit.qps"),
			Burst:   viper.GetInt("ratelimit.burst"),
		}))
	}

	handler := analytics_http.NewAnalyticsHandler(appService)
	handler.RegisterRoutes(r.Group(""))

	sys := r.Group("/sys")
	{
		sys.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
		sys.GET("/ready", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "READY"}) })
	}
	pp := r.Group("/debug/pprof")
	{
		pp.GET("/", gin.WrapF(pprof.Index))
		pp.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pp.GET("/profile", gin.WrapF(pprof.Profile))
		pp.GET("/symbol", gin.WrapF(pprof.Symbol))
		pp.GET("/trace", gin.WrapF(pprof.Trace))
	}

	// Prometheus
	svcMetrics := metrics.New("optionsrisk")
	if err := svcMetrics.Register(); err != nil {
		slog.Warn("register metrics failed", "error", err)
	}
	metricsPort := viper.GetInt("metrics.port")
	if metricsPort > 0 {
		if err := metrics.StartHTTPServer(metricsPort, viper.GetString("metrics.path")); err != nil {
			slog.Warn("start metrics server failed", "error", err)
		}
	}

	// 7. Start
	g, ctx := errgroup.WithContext(context.Background())

	// Outbox relay
	g.Go(func() error {
		publisher.StartRelay(ctx, 2*time.Second, 100)
		return nil
	})

	httpPort := viper.GetString("server.http_port")
	if httpPort == "" {
		httpPort = "8094"
	}
	server := &http.Server{Addr: fmt.Sprintf(":%s", httpPort), Handler: r}
	g.Go(func() error {
		slog.Info("HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// 8. Graceful Shutdown
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("shutting down servers...")
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down...")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited with error", "error", err)
	}
}
