package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/fashionnest/internal/checkout"
	"github.com/xenking/fashionnest/internal/domain/cart"
	"github.com/xenking/fashionnest/internal/domain/user"
	"github.com/xenking/fashionnest/internal/payment"
	storage "github.com/xenking/fashionnest/internal/storage/mongo"
	"github.com/xenking/fashionnest/pkg/health"
	"github.com/xenking/fashionnest/pkg/httpmiddleware"
)

// Services bundles the wired-up commerce core for the delivery layers
// (HTTP storefront, admin) that live outside this repository.
type Services struct {
	Cart     *cart.Service
	Checkout *checkout.Service
	Users    *user.Service
}

// MountFunc lets a delivery layer register its routes against the wired
// services. The storefront and admin routing live outside this module and
// consume the core only through this seam.
type MountFunc func(mux *http.ServeMux, svc *Services)

// Run creates all dependencies, exposes the operational probe endpoints, and
// handles graceful shutdown. It is the single wiring point for the process.
func Run(ctx context.Context, lg *zap.Logger, cfg *Config, mount MountFunc) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	db, err := storage.Connect(ctx, cfg.MongoURL, cfg.Database)
	if err != nil {
		return errors.Wrap(err, "connect mongo")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Client().Disconnect(disconnectCtx); err != nil {
			lg.Error("mongo disconnect", zap.Error(err))
		}
	}()

	if err := storage.EnsureIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "ensure indexes")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("mongo", 5*time.Second, func(ctx context.Context) error {
		return db.Client().Ping(ctx, nil)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := storage.NewProductRepository(db)
	couponRepo := storage.NewCouponRepository(db)
	cartRepo := storage.NewCartRepository(db)
	orderRepo := storage.NewOrderRepository(db)
	userRepo := storage.NewUserRepository(db)

	// Payment gateway: constructed here with its configuration and injected
	// into the workflow, never shared through package state.
	gateway := payment.NewSandboxGateway(payment.SandboxConfig{
		Latency: cfg.Payment.SandboxLatency,
	})
	notifier := payment.NewLogNotifier(lg.Named("notify"))

	// Domain services.
	services := &Services{
		Cart: cart.NewService(cartRepo, productRepo, couponRepo),
		Checkout: checkout.NewService(
			checkout.Config{
				Currency:       cfg.Payment.Currency,
				PaymentTimeout: cfg.Payment.Timeout,
			},
			cartRepo, productRepo, couponRepo, orderRepo,
			gateway, notifier,
			lg.Named("checkout"),
		),
		Users: user.NewService(userRepo, productRepo),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	if mount != nil {
		mount(mux, services)
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
