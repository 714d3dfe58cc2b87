package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/copytrading/internal/execution/application"
	"github.com/wyfcoding/copytrading/internal/execution/infrastructure/clob"
	"github.com/wyfcoding/copytrading/internal/execution/infrastructure/messaging"
	"github.com/wyfcoding/copytrading/internal/execution/infrastructure/persistence/mysql"
	"github.com/wyfcoding/copytrading/internal/execution/infrastructure/proxy"
	"github.com/wyfcoding/copytrading/internal/execution/infrastructure/signing"
	httpserver "github.com/wyfcoding/copytrading/internal/execution/interfaces/http"
	"github.com/wyfcoding/copytrading/pkg/config"
	"github.com/wyfcoding/copytrading/pkg/db"
	"github.com/wyfcoding/copytrading/pkg/logger"
	"github.com/wyfcoding/copytrading/pkg/metrics"
	"github.com/wyfcoding/copytrading/pkg/mq"
	"github.com/wyfcoding/copytrading/pkg/utils"
)

var configPath = flag.String("config", "configs/execution/config.toml", "config file path")

func main() {
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Logger
	if err := logger.Init(cfg.Logger); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 3. Metrics
	metricsImpl := metrics.New(cfg.ServiceName)
	if err := metricsImpl.Register(); err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}
	if cfg.Metrics.Enabled {
		metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// 4. Database
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
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if cfg.Environment == "dev" {
		if err := database.AutoMigrate(&mysql.OrderEventModel{}); err != nil {
			slog.Error("failed to migrate database", "error", err)
		}
	}

	// 5. Kafka
	kafkaProducer := mq.NewProducer(mq.KafkaConfig{
		Brokers:      cfg.Kafka.Brokers,
		MaxRetries:   cfg.Kafka.MaxRetries,
		RetryBackoff: cfg.Kafka.RetryBackoff,
	})
	defer kafkaProducer.Close()

	// 6. Exchange access
	rotator := proxy.NewRotator(cfg.Exchange.Proxies)
	gateway := clob.NewClient(clob.Config{
		BaseURL: cfg.Exchange.BaseURL,
		Timeout: time.Duration(cfg.Exchange.Timeout) * time.Second,
		Owner:   cfg.Signer.Funder,
	}, rotator)

	signer := signing.NewClient(signing.Config{
		BaseURL:           cfg.Signer.BaseURL,
		Address:           cfg.Signer.Address,
		ChainID:           cfg.Signer.ChainID,
		VerifyingContract: cfg.Signer.VerifyingContract,
		DomainName:        cfg.Signer.DomainName,
		DomainVersion:     cfg.Signer.DomainVersion,
		PollInterval:      time.Duration(cfg.Signer.PollInterval) * time.Millisecond,
		MaxPolls:          cfg.Signer.MaxPolls,
	}, metricsImpl)

	// 7. Repositories & publisher
	auditRepo := mysql.NewOrderEventRepository(database.DB)
	publisher := messaging.NewKafkaPublisher(kafkaProducer)

	// 8. Application services
	idGen := utils.NewSnowflakeID(1)

	defaultTickSize, err := decimal.NewFromString(cfg.Exchange.DefaultTickSize)
	if err != nil {
		slog.Error("invalid default_tick_size", "value", cfg.Exchange.DefaultTickSize)
		os.Exit(1)
	}
	minOrderSize, err := decimal.NewFromString(cfg.Exchange.MinOrderSize)
	if err != nil {
		slog.Error("invalid min_order_size", "value", cfg.Exchange.MinOrderSize)
		os.Exit(1)
	}

	funder := cfg.Signer.Funder
	if funder == "" {
		funder = cfg.Signer.Address
	}

	preparer := application.NewOrderPreparer(gateway, signer, idGen, application.PreparerConfig{
		DefaultTickSize:    defaultTickSize,
		SizeDecimals:       int32(cfg.Exchange.SizeDecimals),
		MaxImpliedDecimals: int32(cfg.Exchange.MaxImpliedDecimals),
		MinOrderSize:       minOrderSize,
		FunderAddress:      funder,
		SignerAddress:      cfg.Signer.Address,
		SignatureType:      cfg.Signer.SignatureType,
	})
	submitter := application.NewOrderSubmitter(gateway, rotator, auditRepo, publisher, metricsImpl, application.SubmitterConfig{
		MaxAttempts:       cfg.Exchange.MaxSubmitAttempts,
		ErrorMessageLimit: cfg.Exchange.ErrorMessageLimit,
	})
	resolver := application.NewFillResolver(gateway, auditRepo, metricsImpl)
	appSvc := application.NewExecutionService(preparer, submitter, resolver, auditRepo, gateway, idGen)

	// 9. Interfaces
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpserver.RequestID(idGen))
	r.Use(httpserver.Metrics(metricsImpl))
	r.Use(httpserver.AccessLog())

	handler := httpserver.NewExecutionHandler(appSvc)
	handler.RegisterRoutes(r.Group("/api"))

	// 10. Start
	g, ctx := errgroup.WithContext(context.Background())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	g.Go(func() error {
		slog.Info("HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

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
