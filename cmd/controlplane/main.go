package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseb "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"golang.org/x/sync/errgroup"

	"github.com/neomorfeo/controlplane/internal/adapter/dynamodb"
	"github.com/neomorfeo/controlplane/internal/adapter/eventbridge"
	"github.com/neomorfeo/controlplane/internal/adapter/fsm"
	oteladapter "github.com/neomorfeo/controlplane/internal/adapter/otel"
	riveradapter "github.com/neomorfeo/controlplane/internal/adapter/river"
	"github.com/neomorfeo/controlplane/internal/adapter/sigv4"
	"github.com/neomorfeo/controlplane/internal/adapter/sqlite"
	"github.com/neomorfeo/controlplane/internal/app"
	"github.com/neomorfeo/controlplane/internal/config"
	"github.com/neomorfeo/controlplane/internal/domain"
	"github.com/neomorfeo/controlplane/internal/logger"

	handler "github.com/neomorfeo/controlplane/internal/adapter/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("controlplane stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(logger.New(os.Stderr, cfg.Logging))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---
	providers, err := oteladapter.Setup(ctx, cfg.OTel, oteladapter.DeploymentAttributes(cfg)...)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Error("otel shutdown", "error", err)
		}
	}()

	cp, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer cp.Close()

	// --- Server ---
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           cp.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// River is stopped explicitly below so in-flight deliveries finish.
	if cp.queue != nil {
		if err := cp.queue.Start(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("river start: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if cp.queue != nil {
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return cp.queue.Stop(stopCtx)
		})
	}

	g.Go(func() error {
		slog.Info("controlplane listening", "addr", srv.Addr, "docs", cfg.Tenants.APIURL+"/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("stopped")
	return nil
}

// controlPlane is the wired process: the HTTP handler, the local event
// queue when River carries events, and what must be closed on exit.
type controlPlane struct {
	handler http.Handler
	queue   *riveradapter.Client
	closers []func() error
}

func (c *controlPlane) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			slog.Error("closing resource", "error", err)
		}
	}
}

// build wires adapters and services according to cfg.
func build(ctx context.Context, cfg *config.Config) (*controlPlane, error) {
	cp := &controlPlane{}
	fail := func(err error) (*controlPlane, error) {
		cp.Close()
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("aws config: %w", err))
	}

	// --- Adapters (out) ---
	var db *sql.DB
	if cfg.Store.Backend == config.StoreSQLite || cfg.Events.Backend == config.EventsRiver {
		db, err = oteladapter.OpenDB(cfg.Store.DatabasePath)
		if err != nil {
			return fail(fmt.Errorf("database: %w", err))
		}
		cp.closers = append(cp.closers, db.Close)
	}

	registrations, tenants, err := newStores(cfg, db, awsCfg)
	if err != nil {
		return fail(err)
	}

	sources := cfg.Events.Sources()
	router := app.NewRouter(sources)

	var transport domain.EventPublisher
	switch cfg.Events.Backend {
	case config.EventsRiver:
		cp.queue, err = riveradapter.Setup(ctx, db, oteladapter.NewTracingHandler(router))
		if err != nil {
			return fail(fmt.Errorf("river: %w", err))
		}
		transport = riveradapter.NewPublisher(cp.queue)
	case config.EventsEventBridge:
		transport = eventbridge.NewPublisher(awseb.NewFromConfig(awsCfg), cfg.Events.BusName)
	}
	bus := app.NewEventBus(oteladapter.NewTracingPublisher(transport), sources)

	caller, err := oteladapter.NewTracingCaller(
		sigv4.NewCaller(awsCfg.Credentials, cfg.AWSRegion, cfg.Signing.Service, nil),
	)
	if err != nil {
		return fail(fmt.Errorf("service caller: %w", err))
	}

	// --- Application ---
	registrationSvc := app.NewRegistrationService(
		oteladapter.NewTracingRegistrationRepository(registrations),
		app.NewDirectoryClient(caller, cfg.Tenants.APIURL),
		bus,
		fsm.New(),
		nil,
	)
	tenantSvc := app.NewTenantService(
		oteladapter.NewTracingTenantRepository(tenants),
		nil,
		cfg.Tenants.ConfigColumn,
	)

	reconciler := app.NewStatusReconciler(caller, cfg.Tenants.APIURL, cfg.Tenants.RegistrationPath)
	if err := router.Subscribe(reconciler,
		domain.DetailProvisionSuccess,
		domain.DetailProvisionFailure,
		domain.DetailDeprovisionSuccess,
		domain.DetailDeprovisionFailure,
	); err != nil {
		return fail(err)
	}
	if cfg.Events.ProvisionerEnabled {
		provisioner := app.NewProvisioner(bus)
		if err := router.Subscribe(provisioner, provisioner.DetailTypes()...); err != nil {
			return fail(err)
		}
	}

	// --- Adapters (in) ---
	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(logger.Requests)
	mux.Use(middleware.Recoverer)
	mux.Use(otelchi.Middleware(cfg.OTel.ServiceName, otelchi.WithChiRoutes(mux)))
	mux.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	deps := handler.Deps{
		Registrations: registrationSvc,
		Tenants:       tenantSvc,
		Events:        oteladapter.NewTracingRouter(router),
	}
	if cfg.Signing.Verify {
		deps.Verifier = sigv4.NewVerifier(cfg.Signing.AccessKeyID, cfg.Signing.SecretAccessKey, cfg.AWSRegion, cfg.Signing.Service)
	}

	api := handler.NewAPI(mux, "controlplane", cfg.OTel.ServiceVersion)
	handler.Register(api, deps)

	cp.handler = mux
	return cp, nil
}

func newStores(cfg *config.Config, db *sql.DB, awsCfg aws.Config) (domain.RegistrationRepository, domain.TenantRepository, error) {
	switch cfg.Store.Backend {
	case config.StoreDynamoDB:
		client := awsddb.NewFromConfig(awsCfg)
		return dynamodb.NewRegistrationRepository(client, cfg.Store.RegistrationTableName),
			dynamodb.NewTenantRepository(client, cfg.Store.TenantTableName, cfg.Store.TenantConfigIndexName, cfg.Tenants.NameColumn),
			nil
	default:
		store, err := sqlite.NewFromDB(db)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite store: %w", err)
		}
		return store.Registrations(), store.Tenants(cfg.Tenants.NameColumn), nil
	}
}

// loadAWSConfig resolves the region and credentials shared by the AWS
// clients and the request signer. A static signing identity replaces the
// default credential chain.
func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.Signing.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.Signing.AccessKeyID, cfg.Signing.SecretAccessKey, ""),
		))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}
