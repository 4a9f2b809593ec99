package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"readiness-sync/internal/config"
	"readiness-sync/internal/handler"
	"readiness-sync/internal/middleware"
	"readiness-sync/internal/repository"
	"readiness-sync/internal/service"
	"readiness-sync/internal/websocket"
	"readiness-sync/pkg/logger"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	couchURL := fmt.Sprintf("http://%s:%s@%s:%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
	)

	client, err := kivik.New("couch", couchURL)
	if err != nil {
		zl.Fatal("failed to connect to CouchDB", zap.Error(err))
	}

	exists, err := client.DBExists(context.Background(), cfg.Database.Name)
	if err != nil {
		zl.Fatal("failed to check database existence", zap.Error(err))
	}

	if !exists {
		if err := client.CreateDB(context.Background(), cfg.Database.Name); err != nil {
			zl.Fatal("failed to create database", zap.Error(err))
		}
		zl.Info("created database", zap.String("name", cfg.Database.Name))
	}

	rowRepo := repository.NewRowRepository(client, cfg.Database.Name)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	wsManager := websocket.NewManager(
		cfg.WebSocket.MaxConnections,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
		zl,
	)
	wsManager.SetMessageHandler(handler.NewFeedMessageHandler(zl))
	go wsManager.Run(ctx)

	proxyService := service.NewProxyService(rowRepo, wsManager, zl)

	proxyHandler := handler.NewProxyHandler(proxyService, zl)
	wsHandler := handler.NewWebSocketHandler(
		wsManager,
		cfg.Client.SigningSecret,
		cfg.WebSocket.ReadBufferSize,
		cfg.WebSocket.WriteBufferSize,
		zl,
	)

	r := mux.NewRouter()
	r.Use(middleware.LoggerMiddleware(zl))

	exec := r.PathPrefix("/exec").Subrouter()
	exec.Use(middleware.TokenMiddleware(cfg.Client.SigningSecret))
	exec.HandleFunc("", proxyHandler.Exec).Methods("GET")

	r.HandleFunc("/ws", wsHandler.HandleConnection)
	r.HandleFunc("/health", proxyHandler.Health).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: cfg.CORS.AllowedMethods,
		AllowedHeaders: cfg.CORS.AllowedHeaders,
		MaxAge:         3600,
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      c.Handler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zl.Info("starting readiness proxy",
			zap.String("addr", addr),
			zap.String("env", cfg.Server.Env),
			zap.String("couchdb", fmt.Sprintf("%s:%s", cfg.Database.Host, cfg.Database.Port)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Fatal("server forced to shutdown", zap.Error(err))
	}
	stop()

	zl.Info("server stopped gracefully")
}
