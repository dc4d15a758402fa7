package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"business-inventory/internal/alert"
	"business-inventory/internal/api"
	"business-inventory/internal/common/auth"
	"business-inventory/internal/common/aws"
	"business-inventory/internal/common/config"
	"business-inventory/internal/common/database"
	"business-inventory/internal/common/logger"
	"business-inventory/internal/common/observability"
	"business-inventory/internal/devicestate"
	"business-inventory/internal/feed"
	"business-inventory/internal/imagestore"
	"business-inventory/internal/models"
	"business-inventory/internal/realtime"
	"business-inventory/internal/repository"
	"business-inventory/internal/search"
	"business-inventory/internal/session"
	"business-inventory/internal/store"
)

func serve(ctx context.Context, cfg *config.Config) error {
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"device":  cfg.App.DeviceID,
	})

	zapLog.Info("Starting inventory agent...", zap.String("environment", cfg.App.Environment))

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	// --- Init PostgreSQL with retry ---
	pg, err := connectPostgres(ctx, cfg.Database.Postgres, 15, 2*time.Second, zapLog)
	if err != nil {
		return err
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	rdb, err := connectRedis(ctx, cfg.Database.Redis, 10, 2*time.Second, zapLog)
	if err != nil {
		return err
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	device := devicestate.New(rdb.GetClient(), cfg.App.DeviceID)

	// --- Image storage ---
	s3Client, err := aws.NewS3Client(ctx, cfg.Storage.S3.Region, cfg.Storage.S3.Endpoint, cfg.Storage.S3.UsePathStyle)
	if err != nil {
		return err
	}
	images := imagestore.New(s3Client, imagestore.Config{
		Bucket:        cfg.Storage.S3.Bucket,
		PublicBaseURL: cfg.Storage.S3.PublicBaseURL,
		Region:        cfg.Storage.S3.Region,
		MaxSize:       cfg.Storage.S3.MaxSizeBytes,
	}, log)

	// --- Alerts ---
	hub := api.NewHub(log)
	defer hub.Close()
	recent := alert.NewMemory(50)
	sinks := alert.Fanout{alert.NewLogSink(log), recent, hub.Sink()}
	if cfg.Alerts.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Alerts.Region)
		if err != nil {
			return err
		}
		snsSink := alert.NewSNSSink(snsClient, cfg.Alerts.SNS.TopicARN, log)
		defer snsSink.Close()
		sinks = append(sinks, snsSink)
	}
	if cfg.Alerts.SES.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Alerts.Region)
		if err != nil {
			return err
		}
		sesSink := alert.NewSESSink(sesClient, cfg.Alerts.SES.FromEmail, cfg.Alerts.SES.ToEmail, log)
		defer sesSink.Close()
		sinks = append(sinks, sesSink)
	}

	// --- Entity store ---
	repos := repository.New(pg.GetDB())
	st := store.New(store.Deps{
		Businesses:    repos.Businesses,
		Products:      repos.Products,
		Notifications: repos.Notifications,
		Images:        images,
		Device:        device,
		Alerts:        sinks,
		Logger:        log,
		Observability: obs,
	}, store.Options{
		LoadTimeout:       config.GetDuration(cfg.Sync.LoadTimeout),
		NotificationLimit: cfg.Sync.NotificationLimit,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Listen before loading so no change committed during the load is missed.
	if cfg.Sync.Realtime {
		conn := pg.NewListener(
			config.GetDuration(cfg.Sync.ReconnectMin),
			config.GetDuration(cfg.Sync.ReconnectMax),
			realtime.ConnectionEvents(log),
		)
		listener := realtime.New(conn, st, log).WithFetcher(repos)
		if err := listener.Start(); err != nil {
			_ = listener.Close()
		} else {
			go listener.Run(runCtx)
			defer listener.Close()
		}
	}

	st.Load(runCtx)
	zapLog.Info("Store loaded",
		zap.Int("businesses", len(st.Businesses())),
		zap.Int("products", st.TotalProducts()),
		zap.Int("notifications", len(st.Notifications())),
	)

	tracker := feed.NewTracker(st, device, log)
	if err := tracker.Refresh(runCtx); err != nil {
		log.Warn("feed refresh failed", map[string]interface{}{"error": err.Error()})
	}
	st.Subscribe(func(c store.Change) {
		switch c.Table {
		case models.TableBusinesses, models.TableProducts, store.TableActive, store.TableAll:
			if err := tracker.Refresh(runCtx); err != nil {
				log.Warn("feed refresh failed", map[string]interface{}{"error": err.Error()})
			}
		}
	})
	st.Subscribe(hub.Observe)

	checks := []api.Check{
		{Name: "postgres", Fn: pg.Ping},
		{Name: "redis", Fn: rdb.Ping},
		{Name: "s3", Fn: func(ctx context.Context) error {
			return s3Client.HeadBucket(ctx, cfg.Storage.S3.Bucket)
		}},
	}

	// --- Search mirror ---
	var searcher api.Searcher
	if cfg.Database.Elasticsearch.Enabled {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		index := cfg.Database.Elasticsearch.Index
		if err := es.EnsureIndex(runCtx, index, search.Mapping); err != nil {
			log.Warn("search index unavailable, falling back to cached filter", map[string]interface{}{"error": err.Error()})
		} else {
			mirror := search.NewMirror(es.Client, index, st, log)
			st.Subscribe(mirror.Observe)
			if err := mirror.Reindex(runCtx); err != nil {
				log.Warn("initial reindex failed", map[string]interface{}{"error": err.Error()})
			}
			go mirror.Run(runCtx)
			searcher = mirror
			checks = append(checks, api.Check{Name: "elasticsearch", Fn: es.Ping})
		}
	}

	// --- Session ---
	keycloak := auth.NewKeycloakClient(
		cfg.Auth.Keycloak.URL,
		cfg.Auth.Keycloak.Realm,
		cfg.Auth.Keycloak.ClientID,
		cfg.Auth.Keycloak.ClientSecret,
		config.GetDuration(cfg.Auth.Keycloak.Timeout),
	)
	gate := session.NewGate(keycloak, sinks, log)

	// --- HTTP ---
	srv := &http.Server{
		Addr: cfg.HTTP.Address,
		Handler: api.NewRouter(api.Deps{
			Inventory: st,
			Session:   gate,
			Feed:      tracker,
			Search:    searcher,
			Images:    images,
			Alerts:    sinks,
			Recent:    recent,
			Hub:       hub,
			Checks:    checks,
			Logger:    log,

			MaxImageSize: cfg.Storage.S3.MaxSizeBytes,
		}),
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- Graceful Shutdown ---
	select {
	case <-ctx.Done():
		zapLog.Info("Shutdown signal received, stopping...")
	case err := <-errCh:
		zapLog.Error("HTTP server failed", zap.Error(err))
		return err
	}

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}

	zapLog.Info("Inventory agent stopped gracefully")
	return nil
}
