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

// Package app wires configuration into the services shared by the server,
// worker and scheduler binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cloudbday/cloudbday/internal/audit"
	"github.com/cloudbday/cloudbday/internal/auth"
	"github.com/cloudbday/cloudbday/internal/cache"
	"github.com/cloudbday/cloudbday/internal/cache/redis"
	"github.com/cloudbday/cloudbday/internal/cache/ristretto"
	"github.com/cloudbday/cloudbday/internal/config"
	"github.com/cloudbday/cloudbday/internal/google"
	"github.com/cloudbday/cloudbday/internal/mail"
	"github.com/cloudbday/cloudbday/internal/notify"
	"github.com/cloudbday/cloudbday/internal/observability/logger"
	"github.com/cloudbday/cloudbday/internal/observability/metrics"
	"github.com/cloudbday/cloudbday/internal/observability/tracing"
	"github.com/cloudbday/cloudbday/internal/person"
	natsqueue "github.com/cloudbday/cloudbday/internal/queue/nats"
	"github.com/cloudbday/cloudbday/internal/secrets"
	"github.com/cloudbday/cloudbday/internal/store/postgres"
	"github.com/cloudbday/cloudbday/internal/syncjob"
	"github.com/cloudbday/cloudbday/internal/task"
	"github.com/cloudbday/cloudbday/internal/tenant"
	transportHTTP "github.com/cloudbday/cloudbday/internal/transport/http"
	"github.com/cloudbday/cloudbday/internal/validation"
)

// ErrNoBroker is returned by Consume when no NATS URL is configured.
var ErrNoBroker = errors.New("no NATS_URL configured; tasks run inline in the server")

// Infra holds the external resources the services are built on.
type Infra struct {
	Tenants   tenant.Repository
	People    person.Repository
	Cache     cache.Cache
	Transport mail.Transport
	Google    google.Config
	// Queue is used when set; otherwise tasks run inline.
	Queue task.Queue
}

// App is the assembled application.
type App struct {
	Config     *config.Config
	Dispatcher *task.Dispatcher
	Queue      task.Queue
	Tenants    *tenant.Registry
	People     *person.Service
	Directory  *syncjob.Directory
	Calendar   *syncjob.Calendar
	Notifier   *notify.Notifier
	Sender     *notify.Sender
	Issuer     *auth.Issuer
	Audit      audit.Logger
	Metrics    *metrics.Instruments

	db      *postgres.DB
	nats    *natsqueue.Queue
	closers []func()
}

// New connects to every configured backend and assembles the application.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	var closers []func()
	fail := func(err error) (*App, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		return nil, err
	}

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Environment:    cfg.Observability.Environment,
		Endpoint:       cfg.Observability.OTLPEndpoint,
		SamplingRate:   cfg.Observability.SamplingRate,
	})
	if err != nil {
		return fail(fmt.Errorf("init tracer: %w", err))
	}
	closers = append(closers, func() { tracer.Shutdown(context.Background()) })

	meter, err := metrics.New(ctx, metrics.Config{Enabled: cfg.Observability.OTELEnabled}, cfg.Observability.ServiceName)
	if err != nil {
		return fail(fmt.Errorf("init meter: %w", err))
	}
	instruments, err := metrics.NewInstruments(meter)
	if err != nil {
		return fail(fmt.Errorf("init instruments: %w", err))
	}

	db, err := postgres.New(ctx, DatabaseConfig(cfg))
	if err != nil {
		return fail(fmt.Errorf("connect database: %w", err))
	}
	closers = append(closers, db.Close)
	slog.Info("connected to database")

	c, closeCache, err := newCache(ctx, cfg.Cache)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeCache)

	infra := Infra{
		Tenants:   postgres.NewTenantRepository(db),
		People:    postgres.NewPersonRepository(db),
		Cache:     c,
		Transport: newTransport(cfg.Mail),
		Google: google.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			TokenURL:     cfg.Google.TokenURL,
			PeopleURL:    cfg.Google.PeopleURL,
			CalendarURL:  cfg.Google.CalendarURL,
			Timeout:      cfg.Google.Timeout,
			RetryCount:   cfg.Google.RetryCount,
		},
	}

	var nq *natsqueue.Queue
	if cfg.Queue.NATSURL != "" {
		nq, err = natsqueue.Connect(ctx, natsqueue.Config{
			URL:        cfg.Queue.NATSURL,
			Stream:     cfg.Queue.Stream,
			MaxDeliver: cfg.Queue.MaxDeliver,
			AckWait:    cfg.Queue.AckWait,
		})
		if err != nil {
			return fail(fmt.Errorf("connect nats: %w", err))
		}
		closers = append(closers, func() { nq.Drain() })
		infra.Queue = nq
	} else {
		slog.Warn("NATS_URL not set, running tasks inline")
	}

	a, err := Assemble(cfg, infra, instruments)
	if err != nil {
		return fail(err)
	}
	a.Dispatcher.WithSpans(tracer)
	a.db, a.nats, a.closers = db, nq, closers
	return a, nil
}

// Assemble builds the services on infra. instruments may be nil.
func Assemble(cfg *config.Config, infra Infra, instruments *metrics.Instruments) (*App, error) {
	cipher, err := secrets.NewCipher([]byte(cfg.Secrets.Key))
	if err != nil {
		return nil, fmt.Errorf("init secrets: %w", err)
	}
	issuer, err := auth.NewIssuer([]byte(cfg.Auth.Secret), cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("init auth: %w", err)
	}
	loc, err := cfg.Schedule.Location()
	if err != nil {
		return nil, err
	}

	v := validation.New()
	auditLogger := audit.NewSlogLogger(slog.Default())
	dispatcher := task.NewDispatcher(instruments)

	q := infra.Queue
	if q == nil {
		q = task.NewInlineQueue(dispatcher)
	}

	registry := tenant.NewRegistry(infra.Tenants, infra.Cache, cipher, v, auditLogger)
	people := person.NewService(infra.People, infra.Cache, v, instruments)

	tokens := google.NewTokenSource(infra.Google, registry)
	directory := syncjob.NewDirectory(registry, people, google.NewDirectory(infra.Google, tokens), q, instruments)
	calendar := syncjob.NewCalendar(registry, people, google.NewCalendar(infra.Google, tokens), q, instruments)
	notifier := notify.NewNotifier(registry, people, q, loc, instruments)
	sender := notify.NewSender(registry, people, infra.Transport, notify.NewRenderer(cfg.Templates.Dir), cfg.Mail.SenderAddress, instruments)

	directory.Register(dispatcher)
	calendar.Register(dispatcher)
	sender.Register(dispatcher)

	return &App{
		Config:     cfg,
		Dispatcher: dispatcher,
		Queue:      q,
		Tenants:    registry,
		People:     people,
		Directory:  directory,
		Calendar:   calendar,
		Notifier:   notifier,
		Sender:     sender,
		Issuer:     issuer,
		Audit:      auditLogger,
		Metrics:    instruments,
	}, nil
}

// Router builds the HTTP router. Close the returned rate limiter on shutdown.
func (a *App) Router() (http.Handler, *transportHTTP.RateLimiter) {
	checks := map[string]transportHTTP.HealthCheck{}
	if a.db != nil {
		checks["database"] = a.db.Ping
	}
	if a.nats != nil {
		checks["queue"] = func(context.Context) error {
			if !a.nats.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		}
	}

	h := transportHTTP.NewHandler(
		a.Tenants,
		a.People,
		a.Notifier,
		a.Directory,
		a.Calendar,
		a.Issuer,
		a.Audit,
		transportHTTP.Options{
			MaxUploadBytes: a.Config.Server.MaxUploadBytes,
			HealthChecks:   checks,
		},
	)
	rl := transportHTTP.NewRateLimiter(a.Config.RateLimit.RequestsPerSecond, a.Config.RateLimit.Burst)
	return transportHTTP.NewRouter(h, rl), rl
}

// Consume starts JetStream consumers for both queues. The returned function
// stops them.
func (a *App) Consume(ctx context.Context) (func(), error) {
	if a.nats == nil {
		return nil, ErrNoBroker
	}
	var stops []func()
	stopAll := func() {
		for _, stop := range stops {
			stop()
		}
	}
	for _, q := range []string{task.QueueSync, task.QueueMail} {
		stop, err := a.nats.Consume(ctx, q, a.Dispatcher)
		if err != nil {
			stopAll()
			return nil, fmt.Errorf("consume %s: %w", q, err)
		}
		slog.Info("consuming tasks", logger.Queue(q))
		stops = append(stops, stop)
	}
	return stopAll, nil
}

// Close releases every backend in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// DatabaseConfig maps the database section onto the postgres store config.
func DatabaseConfig(cfg *config.Config) postgres.Config {
	return postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
	}
}

// newCache builds an in-process ristretto cache, tiered over Redis when an
// address is configured.
func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, func(), error) {
	l1, err := ristretto.New(cfg.L1MaxBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("init l1 cache: %w", err)
	}
	if cfg.RedisAddr == "" {
		return l1, l1.Close, nil
	}

	l2, err := redis.New(ctx, redis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   cfg.RedisPrefix,
	})
	if err != nil {
		l1.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	closeAll := func() {
		l1.Close()
		l2.Close()
	}
	return cache.NewTiered(l1, l2, cfg.L1TTL), closeAll, nil
}

func newTransport(cfg config.MailConfig) mail.Transport {
	switch cfg.Transport {
	case "mandrill":
		return mail.NewMandrill(mail.MandrillConfig{
			APIKey:  cfg.MandrillAPIKey,
			BaseURL: cfg.MandrillURL,
			Timeout: cfg.Timeout,
		})
	case "smtp":
		return mail.NewSMTP(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			Timeout:  cfg.Timeout,
		})
	default:
		return mail.LogTransport{}
	}
}
