// README: Entry point; loads config, wires services, starts HTTP server and
// background workers.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"cargoline/internal/broker/kafka"
	"cargoline/internal/config"
	httptransport "cargoline/internal/http"
	"cargoline/internal/infra"
	"cargoline/internal/integrations/backend"
	backendfake "cargoline/internal/integrations/backend/fake"
	"cargoline/internal/integrations/backend/resthttp"
	pushfake "cargoline/internal/integrations/push/fake"
	"cargoline/internal/integrations/push/fcm"
	"cargoline/internal/maps"
	"cargoline/internal/modules/drivers"
	"cargoline/internal/modules/jobs"
	"cargoline/internal/modules/notify"
	"cargoline/internal/modules/tracking"
)

func main() {
	cfg := config.Load()
	log := infra.NewLogger(cfg.ServiceName)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("CARGOLINE_FIREBASE_PROJECT_ID is required")
	}
	firebaseApp, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatal("firebase init", zap.Error(err))
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, firebaseApp)
	if err != nil {
		log.Fatal("firebase verifier init", zap.Error(err))
	}

	var backendClient backend.Client
	switch cfg.Backend.Mode {
	case "rest":
		backendClient = resthttp.New(cfg.Backend.BaseURL, cfg.Backend.APIKey, cfg.Backend.Timeout)
	default:
		backendClient = backendfake.New()
	}

	var pushProvider notify.Pusher
	switch cfg.Push.Mode {
	case "fcm":
		msgClient, err := infra.NewFirebaseMessaging(ctx, firebaseApp)
		if err != nil {
			log.Fatal("firebase messaging init", zap.Error(err))
		}
		pushProvider = fcm.New(msgClient)
	default:
		pushProvider = pushfake.NewLogging(log.Named("push"))
	}

	var jobStore jobs.Store
	if cfg.DB.DSN != "" {
		dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.Fatal("postgres init", zap.Error(err))
		}
		defer dbPool.Close()
		if err := infra.RunMigrations(ctx, dbPool, "migrations", log); err != nil {
			log.Fatal("migrations", zap.Error(err))
		}
		jobStore = jobs.NewPGStore(dbPool)
	} else {
		jobStore = jobs.NewMemStore()
	}

	var geoIndex *drivers.GeoIndex
	if cfg.Redis.Addr != "" {
		geoIndex = drivers.NewGeoIndex(infra.NewRedis(cfg.Redis.Addr))
	}

	driverSvc := drivers.NewService(
		drivers.NewStore(), geoIndex, jobStore, backendClient,
		cfg.Matching.LocationFreshness, log.Named("drivers"),
	)

	var routeOptimizer tracking.RouteOptimizer
	if cfg.Maps.APIKey != "" {
		routeOptimizer, err = maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatal("maps init", zap.Error(err))
		}
	}
	trackingSvc := tracking.NewService(
		backendClient, routeOptimizer, log.Named("tracking"),
		cfg.Maps.RouteTimeout, cfg.Backend.Timeout,
	)
	trackingSvc.AddSink(driverSvc)
	go trackingSvc.Run(ctx)

	jobSvc := jobs.NewService(jobStore, driverSvc, backendClient, log.Named("jobs"))

	notifStore := notify.NewStore()
	dispatcher := notify.NewDispatcher(
		notifStore, pushProvider, backendClient, log.Named("notify"), cfg.Push.Timeout,
	)
	jobSvc.AddSink(dispatcher)
	go dispatcher.Run(ctx)

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer func() { _ = producer.Close() }()
		publisher := kafka.NewPublisher(producer, cfg.Kafka.Topic, log.Named("kafka"))
		jobSvc.AddSink(publisher)
		go publisher.Run(ctx)
	}

	// Seed the registry from the platform roster; the rest arrives through
	// driver upserts at runtime.
	if roster, err := backendClient.FetchDrivers(ctx); err != nil {
		log.Warn("driver roster bootstrap failed", zap.Error(err))
	} else {
		for _, d := range roster {
			if err := driverSvc.Upsert(ctx, d); err != nil {
				log.Warn("roster driver rejected",
					zap.String("driver_id", string(d.ID)), zap.Error(err))
			}
		}
	}

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Jobs:          jobSvc,
		Drivers:       driverSvc,
		Tracking:      trackingSvc,
		Notifications: notifStore,
		Verifier:      verifier,
		Log:           log.Named("http"),
	})
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	log.Info("listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("http server", zap.Error(err))
	}
}
