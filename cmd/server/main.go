// Copyright 2026 The CloudBDay Authors
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

	"github.com/cloudbday/cloudbday/internal/app"
	"github.com/cloudbday/cloudbday/internal/auth"
	"github.com/cloudbday/cloudbday/internal/config"
	"github.com/cloudbday/cloudbday/internal/observability/logger"
	"github.com/cloudbday/cloudbday/internal/store/postgres"
)

const usage = `usage:
  server                         run the HTTP API
  server migrate                 apply database migrations
  server token admin NS EMAIL    mint an administrator token
  server token scheduler [TTL]   mint a scheduler token`

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			if err := postgres.Migrate(context.Background(), app.DatabaseConfig(cfg)); err != nil {
				fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Migration successful.")
			return
		case "token":
			tok, err := mintToken(cfg, os.Args[2:])
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n%s\n", err, usage)
				os.Exit(2)
			}
			fmt.Println(tok)
			return
		default:
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		slog.Error("server failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	slog.Info("starting cloudbday api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	router, rateLimiter := a.Router()
	defer rateLimiter.Close()

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"), slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
	return nil
}

// mintToken issues bearer tokens for operators and the scheduler.
func mintToken(cfg *config.Config, args []string) (string, error) {
	issuer, err := auth.NewIssuer([]byte(cfg.Auth.Secret), cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		return "", errors.New("missing token role")
	}

	switch auth.Role(args[0]) {
	case auth.RoleAdmin:
		if len(args) != 3 {
			return "", errors.New("admin token needs a namespace and an email")
		}
		return issuer.Admin(args[1], args[2])
	case auth.RoleScheduler:
		ttl := 365 * 24 * time.Hour
		if len(args) > 1 {
			if ttl, err = time.ParseDuration(args[1]); err != nil {
				return "", fmt.Errorf("invalid ttl: %w", err)
			}
		}
		return issuer.Scheduler(ttl)
	default:
		return "", fmt.Errorf("unknown role %q", args[0])
	}
}
