// Copyright 2026 The Resource-E Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zcamb1/resource-e/internal/auth"
	"github.com/zcamb1/resource-e/internal/config"
	"github.com/zcamb1/resource-e/internal/cryptox"
	"github.com/zcamb1/resource-e/internal/identity"
	"github.com/zcamb1/resource-e/internal/observability/logger"
	"github.com/zcamb1/resource-e/internal/observability/metrics"
	"github.com/zcamb1/resource-e/internal/observability/tracing"
	"github.com/zcamb1/resource-e/internal/store/postgres"
	transportHTTP "github.com/zcamb1/resource-e/internal/transport/http"
	"github.com/zcamb1/resource-e/internal/vault"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting resource vault backend")

	ctx := context.Background()

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
		os.Exit(1)
	}
	vaultMetrics, err := meter.NewVaultMetrics()
	if err != nil {
		slog.Error("failed to register vault metrics", logger.Error(err))
		os.Exit(1)
	}

	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	resourceRepo := postgres.NewResourceRepository(db)

	// Crypto and auth primitives
	cipher, err := cryptox.New(cfg.Security.EncryptionKey)
	if err != nil {
		slog.Error("failed to derive encryption key", logger.Error(err))
		os.Exit(1)
	}
	passwordHasher := identity.NewPasswordHasher(cfg.Security.BcryptCost)
	tokens := auth.NewTokenAuthority(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	gateway := auth.NewGatewayGuard(cfg.Security.GatewayKey)
	if !gateway.Configured() {
		slog.Warn("gateway key is not configured; all gateway routes will reject requests")
	}

	// Services
	vaultService := vault.NewService(resourceRepo, cipher, vaultMetrics)
	identityService := identity.NewService(userRepo, passwordHasher, vaultService)
	bootstrapService := identity.NewBootstrapService(
		identityService,
		cfg.Admin.Email,
		cfg.Admin.Password,
		cfg.Admin.Username,
	)

	// Best-effort bootstrap at startup; the /admin/init route covers
	// deployments that prefer explicit initialisation.
	if bootstrapService.Configured() {
		if _, created, err := bootstrapService.EnsureAdmin(ctx); err != nil {
			slog.Error("admin bootstrap failed", logger.Error(err))
		} else if created {
			slog.Info("admin account bootstrapped at startup")
		}
	}

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	handler := transportHTTP.NewHandler(
		identityService,
		bootstrapService,
		vaultService,
		tokens,
		gateway,
		cfg.Security.InitSecret,
		cfg.Observability.ServiceName,
		cfg.Observability.ServiceVersion,
		vaultMetrics,
	)

	router := transportHTTP.NewRouter(handler, rateLimiter)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}
