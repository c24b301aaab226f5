package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/api"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/archive"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/auth"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/cache"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/config"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/dedupe"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/disposable"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/dnsx"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/events"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/geocode"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/limiter"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/observability"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/orders"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/otp"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/rules"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/server"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/store"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/validate"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/vies"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/webhooks"
)

const (
	shutdownGrace     = 10 * time.Second
	dispatchPoll      = 15 * time.Second
	refreshInterval   = 24 * time.Hour
	sweepInterval     = 24 * time.Hour
	liteDatabasePath  = "data/orbitcheck.db"
	disposableSetName = "disposable_domains"
)

//nolint:gocognit // boot wiring is one long straight line on purpose
func runServer() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	db := openDatabase(ctx, cfg)
	defer func() { _ = db.Close() }()

	// Cache-backed collaborators. Without CACHE_URL everything runs
	// in-process; rate limits and idempotency then hold per instance.
	var (
		cch     cache.Cache
		dispSet cache.Set
		limits  limiter.Store
		idem    api.IdempotencyStorer
	)
	if cfg.CacheURL != "" {
		client, err := cache.Connect(cfg.CacheURL)
		if err != nil {
			log.Fatalf("Failed to connect to cache: %v", err)
		}
		cch = cache.NewRedisCache(client)
		dispSet = cache.NewRedisSet(client, disposableSetName)
		limits = limiter.NewRedisStore(client)
		idem = api.NewRedisIdempotencyStore(client)
		log.Println("[orbitcheck] redis: connected")
	} else {
		cch = cache.NewMemoryCache()
		dispSet = cache.NewMemorySet()
		limits = limiter.NewMemoryStore()
		idem = api.NewMemoryIdempotencyStore()
		log.Println("[orbitcheck] cache: in-process (CACHE_URL not set)")
	}

	obsConfig := observability.DefaultConfig()
	obsConfig.ServiceVersion = version
	obsConfig.OTLPEndpoint = cfg.OTLPEndpoint
	obs, err := observability.New(ctx, obsConfig)
	if err != nil {
		log.Fatalf("Failed to init telemetry: %v", err)
	}

	// Stores.
	projectStore := store.NewProjectStore(db)
	credStore := store.NewCredentialStore(db)
	customerStore := store.NewCustomerStore(db)
	addressStore := store.NewAddressStore(db)
	orderStore := store.NewOrderStore(db)
	eventStore := store.NewEventStore(db)
	usageStore := store.NewUsageStore(db)
	webhookStore := store.NewWebhookStore(db)
	outboxStore := store.NewOutboxStore(db)
	ruleStore := store.NewRuleStore(db)
	auditStore := store.NewAuditStore(db)
	refStore := store.NewReferenceStore(db)
	mergeStore := store.NewMergeStore(db)

	// Providers. Unset URLs leave the interface nil; the validators
	// degrade to deterministic reason codes.
	checker := disposable.NewChecker(dispSet)
	refresher := disposable.NewRefresher(dispSet, cfg.DisposableListURL, logger)
	var geo geocode.Geocoder
	if cfg.GeocoderURL != "" {
		geo = geocode.New(cfg.GeocoderURL, cfg.GeocoderKey)
	}
	var otpProvider otp.Provider
	if cfg.OTPBaseURL != "" {
		otpProvider = otp.New(cfg.OTPBaseURL, cfg.OTPAccountSID, cfg.OTPAuthToken)
	}

	// Validators.
	emailV := validate.NewEmailValidator(cch, dnsx.NetResolver{}, checker, logger)
	phoneV := validate.NewPhoneValidator(otpProvider, logger)
	addressV := validate.NewAddressValidator(cch, geo, refStore, refStore, logger)
	taxIDV := validate.NewTaxIDValidator(vies.New(cfg.VATRegistryURL), logger)
	batchV := validate.NewBatchValidator(emailV, phoneV, addressV, taxIDV, logger)

	// Dedupe.
	customerDeduper := dedupe.NewCustomerDeduper(customerStore)
	addressDeduper := dedupe.NewAddressDeduper(addressStore)
	merger := dedupe.NewMerger(mergeStore)

	// Rules.
	engine, err := rules.NewEngine(logger)
	if err != nil {
		log.Fatalf("Failed to init rule engine: %v", err)
	}
	if cfg.RulesFile != "" {
		pack, err := rules.LoadPack(cfg.RulesFile, engine)
		if err != nil {
			log.Fatalf("Failed to load rule pack %s: %v", cfg.RulesFile, err)
		}
		for i := range pack {
			if err := ruleStore.Upsert(ctx, "", &pack[i]); err != nil {
				log.Fatalf("Failed to seed rule %s: %v", pack[i].ID, err)
			}
		}
		log.Printf("[orbitcheck] rules: seeded %d from %s", len(pack), cfg.RulesFile)
	}

	// Event log and webhook fanout.
	fanout := webhooks.NewFanout(webhookStore, outboxStore, logger)
	eventLogger := events.NewLogger(eventStore, fanout, logger)

	evaluator := orders.New(orders.Deps{
		Email:       emailV,
		Phone:       phoneV,
		Address:     addressV,
		Customers:   customerDeduper,
		Addresses:   addressDeduper,
		Orders:      orderStore,
		CustomerDir: customerStore,
		AddressDir:  addressStore,
		Rules:       ruleStore,
		Engine:      engine,
		Events:      eventLogger,
		Logger:      logger,
	})

	// Credentials.
	var hmacVerifier *auth.HMACVerifier
	if cfg.EncryptionKey != nil {
		crypt, err := auth.NewKeyCrypt(cfg.EncryptionKey)
		if err != nil {
			log.Fatalf("Failed to init key encryption: %v", err)
		}
		hmacVerifier = auth.NewHMACVerifier(crypt, cch)
	} else {
		log.Println("[orbitcheck] auth: ENCRYPTION_KEY not set, HMAC credentials disabled")
	}
	authOpts := &auth.Options{
		Sessions: auth.NewSessionManager(cfg.SessionSecret),
		Creds:    credStore,
		HMAC:     hmacVerifier,
		Pepper:   auth.DerivePepper(cfg.EncryptionKey, cfg.SessionSecret),
	}

	defaultLimit := limiter.Limit{Count: cfg.RateLimitCount, Burst: cfg.RateLimitBurst}
	limitFor := func(ctx context.Context, projectID string) limiter.Limit {
		p, err := projectStore.Get(ctx, projectID)
		if err != nil {
			return defaultLimit
		}
		l := defaultLimit
		if p.Settings.RateLimitCount > 0 {
			l.Count = p.Settings.RateLimitCount
		}
		if p.Settings.RateLimitBurst > 0 {
			l.Burst = p.Settings.RateLimitBurst
		}
		return l
	}

	// Retention and delivery loops.
	archiver, err := archive.New(ctx, archive.Options{
		Type:       cfg.ArchiveType,
		Dir:        cfg.ArchiveDir,
		S3Bucket:   cfg.ArchiveS3Bucket,
		S3Region:   cfg.ArchiveS3Region,
		S3Endpoint: cfg.ArchiveS3Endpoint,
		S3Prefix:   cfg.ArchiveS3Prefix,
		GCSBucket:  cfg.ArchiveGCSBucket,
		GCSPrefix:  cfg.ArchiveGCSPrefix,
	})
	if err != nil {
		log.Fatalf("Failed to init log archive: %v", err)
	}
	if archiver != nil {
		log.Printf("[orbitcheck] archive: %s backend ready", cfg.ArchiveType)
	}
	sweeper := events.NewSweeper(eventStore, archiver, time.Duration(cfg.RetentionDays)*24*time.Hour, logger)
	dispatcher := webhooks.NewDispatcher(outboxStore, webhookStore, projectStore, eventLogger, nil, logger)

	go refresher.Run(ctx, refreshInterval)
	go sweeper.Run(ctx, sweepInterval)
	go dispatcher.Run(ctx, dispatchPoll)

	srv := server.New(server.Deps{
		Email:     emailV,
		Phone:     phoneV,
		Address:   addressV,
		TaxID:     taxIDV,
		Batch:     batchV,
		Customers: customerDeduper,
		Addresses: addressDeduper,
		Merger:    merger,
		Orders:    evaluator,
		Rules:     ruleStore,
		Logs:      eventStore,
		Usage:     usageStore,
		Webhooks:  webhookStore,
		Health:    db,
		Audit:     auditStore,
		Events:    eventLogger,
		Auth:      authOpts,
		Limits:    limits,
		LimitFor:  limitFor,
		Idem:      idem,
		Obs:       obs,
		Logger:    logger,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	log.Printf("[orbitcheck] ready: http://localhost:%s", cfg.Port)
	log.Println("[orbitcheck] press ctrl+c to stop")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	case <-ctx.Done():
		log.Println("[orbitcheck] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[orbitcheck] shutdown: %v", err)
		}
		if err := obs.Shutdown(shutdownCtx); err != nil {
			log.Printf("[orbitcheck] telemetry shutdown: %v", err)
		}
	}
}

// openDatabase connects per DATABASE_URL, falling back to the embedded
// engine, and runs the idempotent schema migration.
func openDatabase(ctx context.Context, cfg *config.Config) *store.DB {
	url := cfg.DatabaseURL
	if cfg.LiteMode() {
		if err := os.MkdirAll("data", 0o750); err != nil {
			log.Fatalf("Failed to create data dir: %v", err)
		}
		log.Printf("[orbitcheck] lite mode: using sqlite at %s", liteDatabasePath)
		url = "sqlite://" + liteDatabasePath
	}

	db, err := store.Open(url)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := db.Ping(ctx); err != nil {
		log.Fatalf("Database ping failed: %v", err)
	}
	if err := db.Init(ctx); err != nil {
		log.Fatalf("Failed to init schema: %v", err)
	}
	if !db.Lite() {
		log.Println("[orbitcheck] postgres: connected")
	}
	return db
}

// openConfigured is the job-command variant of openDatabase: errors come
// back to the caller instead of exiting.
func openConfigured(ctx context.Context) (*config.Config, *store.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	url := cfg.DatabaseURL
	if cfg.LiteMode() {
		if err := os.MkdirAll("data", 0o750); err != nil {
			return nil, nil, err
		}
		url = "sqlite://" + liteDatabasePath
	}
	db, err := store.Open(url)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Init(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return cfg, db, nil
}

func slogLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
