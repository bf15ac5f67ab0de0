package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/cambiosur/exchange/internal/exchange/application"
	"github.com/cambiosur/exchange/internal/exchange/domain"
	"github.com/cambiosur/exchange/internal/exchange/infrastructure/notification"
	"github.com/cambiosur/exchange/internal/exchange/infrastructure/persistence/mysql"
	"github.com/cambiosur/exchange/internal/exchange/infrastructure/quote"
	"github.com/cambiosur/exchange/internal/exchange/infrastructure/rendering"
	"github.com/cambiosur/exchange/internal/exchange/infrastructure/storage"
	httpserver "github.com/cambiosur/exchange/internal/exchange/interfaces/http"
	"github.com/cambiosur/exchange/pkg/cache"
	"github.com/cambiosur/exchange/pkg/config"
	"github.com/cambiosur/exchange/pkg/db"
	"github.com/cambiosur/exchange/pkg/logger"
	"github.com/cambiosur/exchange/pkg/metrics"
	"github.com/cambiosur/exchange/pkg/middleware"
	"github.com/cambiosur/exchange/pkg/mq"
)

var configPath = flag.String("config", "configs/exchange/config.toml", "config file path")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}
	log := logger.Get()
	ctx := context.Background()

	m := metrics.New(cfg.ServiceName)
	if cfg.Metrics.Enabled {
		go m.ExposeHTTP(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to connect database", "error", err)
	}
	defer database.Close()

	// Auto migrate (仅开发环境)
	if cfg.Environment == "dev" {
		err := database.DB.AutoMigrate(
			&domain.Account{},
			&domain.AccountBalance{},
			&domain.Movement{},
			&domain.Quote{},
			&domain.Receipt{},
			&domain.DepositRequest{},
			&domain.WithdrawalRequest{},
		)
		if err != nil {
			logger.Error(ctx, "auto migrate failed", "error", err)
		}
	}

	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to connect redis", "error", err)
	}
	defer redisCache.Close()

	producer, err := mq.NewProducer(mq.KafkaConfig{
		Brokers:      cfg.Kafka.Brokers,
		MaxRetries:   cfg.Kafka.MaxRetries,
		RetryBackoff: cfg.Kafka.RetryBackoff,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to create kafka producer", "error", err)
	}
	defer producer.Close()

	// 仓储
	accountRepo := mysql.NewAccountRepository(database)
	movementRepo := mysql.NewMovementRepository(database)
	quoteRepo := quote.NewCachedRepository(
		mysql.NewQuoteRepository(database),
		redisCache,
		time.Duration(cfg.Redis.QuoteTTL)*time.Second,
		log,
	)
	receiptRepo := mysql.NewReceiptRepository(database)
	depositRepo := mysql.NewDepositRequestRepository(database)
	withdrawalRepo := mysql.NewWithdrawalRequestRepository(database)

	// 渲染与存储
	renderer, err := rendering.NewHTMLRenderer()
	if err != nil {
		logger.Fatal(ctx, "failed to init renderer", "error", err)
	}
	documentStore, err := storage.NewFilesystemStore(cfg.Documents.Dir)
	if err != nil {
		logger.Fatal(ctx, "failed to init document store", "error", err)
	}
	notifier := notification.NewKafkaNotifier(producer, cfg.Kafka.NotificationTopic, log)

	swapRate, err := decimal.NewFromString(cfg.Exchange.SwapRate)
	if err != nil {
		logger.Fatal(ctx, "invalid swap_rate", "value", cfg.Exchange.SwapRate, "error", err)
	}
	settings := application.Settings{
		SiteURL:    cfg.Exchange.SiteURL,
		SwapFeeBps: cfg.Exchange.SwapFeeBps,
		SwapRate:   swapRate,
		Company: domain.CompanyBlock{
			Name:           cfg.Exchange.CompanyName,
			TaxID:          cfg.Exchange.CompanyTaxID,
			Address:        cfg.Exchange.CompanyAddress,
			Contact:        cfg.Exchange.SupportContact,
			RegulatoryNote: cfg.Exchange.RegulatoryNote,
		},
	}

	// 应用服务
	issuer := application.NewReceiptIssuer(receiptRepo, renderer, documentStore, cfg.Exchange.SiteURL, m, log)
	accountSvc := application.NewAccountService(database, accountRepo, log)
	settlementSvc := application.NewSettlementService(database, accountRepo, movementRepo, quoteRepo, issuer, notifier, settings, m, log)
	fundingSvc := application.NewFundingService(database, accountRepo, movementRepo, depositRepo, withdrawalRepo, issuer, notifier, settings, m, log)
	querySvc := application.NewQueryService(accountRepo, movementRepo, receiptRepo, documentStore, log)
	verificationSvc := application.NewVerificationService(receiptRepo, documentStore, m, log)
	adminSvc := application.NewAdminService(database, accountRepo, movementRepo, quoteRepo, receiptRepo, log)

	// HTTP
	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.Logging(), middleware.Recovery(), middleware.Metrics(m))

	handler := httpserver.NewHandler(accountSvc, settlementSvc, fundingSvc, querySvc, verificationSvc)
	handler.RegisterRoutes(router)
	adminHandler := httpserver.NewAdminHandler(adminSvc, fundingSvc)
	adminHandler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(ctx, "HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-quit:
			logger.Info(ctx, "shutdown signal received", "signal", sig.String())
		case <-gctx.Done():
			return gctx.Err()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "server stopped")
}
