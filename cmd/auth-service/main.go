package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	health "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/pribylovaa/go-invoicing-auth/internal/cache"
	"github.com/pribylovaa/go-invoicing-auth/internal/cleanup"
	"github.com/pribylovaa/go-invoicing-auth/internal/config"
	httpapi "github.com/pribylovaa/go-invoicing-auth/internal/http"
	"github.com/pribylovaa/go-invoicing-auth/internal/http/middleware"
	"github.com/pribylovaa/go-invoicing-auth/internal/interceptors"
	"github.com/pribylovaa/go-invoicing-auth/internal/metrics"
	"github.com/pribylovaa/go-invoicing-auth/internal/service"
	"github.com/pribylovaa/go-invoicing-auth/internal/storage/postgres"
	"github.com/pribylovaa/go-invoicing-auth/internal/token"
	identity "github.com/pribylovaa/go-invoicing-auth/internal/transport/grpc"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting application", slog.String("env", cfg.Env))

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	// Подключение к БД c ретраями до connect_timeout.
	dbCtx, dbCancel := context.WithTimeout(rootCtx, cfg.DB.ConnectTimeout)
	str, err := postgres.New(dbCtx, cfg.DB)
	dbCancel()
	if err != nil {
		log.Error("postgres_connect_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer str.Close()
	log.Info("postgres_connected")

	if cfg.DB.Migrate {
		if err := str.Migrate(rootCtx); err != nil {
			log.Error("migrations_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		log.Info("migrations_applied")
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	codec := token.New(cfg.Auth)
	srvc := service.New(str, codec)
	srvc.SetMetrics(m)

	// Кэш blacklist опционален: без REDIS_URL все проверки идут в БД.
	if cfg.Redis.RedisURL != "" {
		redisCtx, redisCancel := context.WithTimeout(rootCtx, 5*time.Second)
		bc, err := cache.NewRedisCache(redisCtx, cfg.Redis.RedisURL, cfg.Redis.Prefix)
		redisCancel()
		if err != nil {
			log.Error("redis_connect_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		defer func() { _ = bc.Close() }()

		srvc.SetBlacklistCache(bc)
		log.Info("redis_connected")
	}
	log.Info("service_initialized")

	// HTTP: auth-эндпоинты, health и метрики.
	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr: httpAddr,
		Handler: httpapi.NewRouter(
			httpapi.Deps{Service: srvc, Validator: codec, Blacklist: srvc},
			httpapi.Options{
				Logger:   log,
				Timeout:  cfg.Timeouts.Service,
				Metrics:  m,
				Gatherer: prometheus.DefaultGatherer,
				Health:   str,
				Auth:     middleware.AuthOptions{FailClosed: cfg.Auth.FailClosed},
			},
		),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("http_listen_start", slog.String("addr", httpAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
			rootCancel()
		}
	}()

	grpc_prometheus.EnableHandlingTimeHistogram()

	// gRPC-сервер интроспекции и интерсепторы.
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.Recover(log),
			interceptors.UnaryLoggingInterceptor(log),
			interceptors.WithTimeout(cfg.Timeouts.Service),
			grpc_prometheus.UnaryServerInterceptor,
		),
		grpc.ChainStreamInterceptor(
			grpc_prometheus.StreamServerInterceptor,
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	identity.RegisterIdentityServer(grpcServer, identity.NewServer(srvc))

	// Рефлексия — только в local/dev.
	if cfg.Env == envLocal || cfg.Env == envDev {
		reflection.Register(grpcServer)
	}

	grpc_prometheus.Register(grpcServer)

	// Фоновая очистка просроченных токенов.
	var bg sync.WaitGroup
	janitor := cleanup.New(str, log, cleanup.WithMetrics(m))
	bg.Add(1)
	go func() {
		defer bg.Done()
		janitor.Run(rootCtx)
	}()

	addr := cfg.GRPC.Addr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("grpc_listen_failed",
			slog.String("addr", addr),
			slog.String("err", err.Error()),
		)
		rootCancel()
		bg.Wait()
		return
	}
	log.Info("grpc_listen_start", slog.String("addr", addr))

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	serveErrCh := make(chan error, 1)
	go func() {
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	// Ожидание сигнала завершения или фатальной ошибки сервера.
	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("grpc_serve_failed", slog.String("err", err.Error()))
		}
		rootCancel()
	}

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	// Graceful stop с таймаутом.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc_stopped")
	case <-shutdownCtx.Done():
		log.Warn("grpc_force_stop")
		grpcServer.Stop()
	}

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_failed", slog.String("err", err.Error()))
	}

	// Дожидаемся выхода janitor, чтобы не закрыть пул посреди цикла.
	bg.Wait()

	log.Info("service_stopped")
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}
