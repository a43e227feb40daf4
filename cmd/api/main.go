package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/grosir-api/internal/audit"
	"github.com/noah-isme/grosir-api/internal/auth"
	"github.com/noah-isme/grosir-api/internal/cart"
	"github.com/noah-isme/grosir-api/internal/catalog"
	"github.com/noah-isme/grosir-api/internal/checkout"
	"github.com/noah-isme/grosir-api/internal/common"
	"github.com/noah-isme/grosir-api/internal/config"
	"github.com/noah-isme/grosir-api/internal/events"
	"github.com/noah-isme/grosir-api/internal/health"
	"github.com/noah-isme/grosir-api/internal/lock"
	"github.com/noah-isme/grosir-api/internal/notify"
	"github.com/noah-isme/grosir-api/internal/obs"
	"github.com/noah-isme/grosir-api/internal/order"
	"github.com/noah-isme/grosir-api/internal/payment"
	"github.com/noah-isme/grosir-api/internal/pricing"
	"github.com/noah-isme/grosir-api/internal/queue"
	"github.com/noah-isme/grosir-api/internal/ratelimit"
	"github.com/noah-isme/grosir-api/internal/resilience"
	"github.com/noah-isme/grosir-api/internal/security"
	"github.com/noah-isme/grosir-api/internal/shipping"
	"github.com/noah-isme/grosir-api/internal/tax"
)

const adminCookieName = "grosir_admin"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "grosir")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	queue.MustRegister(prometheus.DefaultRegisterer)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "grosir-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	probes := []health.Probe{health.RedisProbe(redisClient)}

	var (
		orderRepo  order.Repository = order.NewMemoryRepository()
		eventStore events.EventStore
		auditStore audit.Store = &audit.MemoryStore{}
	)
	if cfg.UsePostgres() {
		if err := order.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migrate database")
		}
		pool, err := openPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect database")
		}
		defer pool.Close()
		orderRepo = order.NewPostgresRepository(pool)
		eventStore = events.PGStore{DB: pool}
		auditStore = audit.PGStore{DB: pool}
		probes = append(probes, health.PostgresProbe(pool))
	} else {
		logger.Warn().Msg("DATABASE_URL not set, orders are kept in memory")
	}

	outbound := func(target string) resilience.HTTPClient {
		return resilience.NewHTTPClient(resilience.Options{
			Target:      target,
			Timeout:     cfg.OutboundTimeout,
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseBackoff: cfg.RetryBaseBackoff,
			Jitter:      0.2,
			Breaker: resilience.NewBreaker(resilience.BreakerConfig{
				Target:       target,
				MinRequests:  cfg.CircuitFailures,
				FailureRatio: 0.5,
				OpenFor:      cfg.CircuitCooldown,
				Logger:       logger,
			}),
		})
	}

	content, err := catalog.NewContentClient(catalog.ContentConfig{
		BaseURL:    cfg.CMSBaseURL,
		Dataset:    cfg.CMSDataset,
		APIVersion: cfg.CMSAPIVersion,
		Token:      cfg.CMSToken,
	}, outbound("cms"))
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise content client")
	}
	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Source:       content,
		Cache:        catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		Logger:       logger,
		PriceOf:      pricing.LowestPrice,
		DefaultLimit: envInt("CATALOG_DEFAULT_LIMIT", 24),
		MaxLimit:     envInt("CATALOG_MAX_LIMIT", 100),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService})

	resolver := pricing.NewResolver(logger)
	priceHandler := pricing.NewHandler(catalogService, resolver)
	estimator := tax.NewEstimator(logger)
	taxHandler := &tax.Handler{Estimator: estimator}

	cartSvc := &cart.Service{
		Store:    cart.NewStore(redisClient, cfg.CartTTL),
		Catalog:  catalogService,
		Resolver: resolver,
		Logger:   logger,
	}
	cartHandler := &cart.Handler{Svc: cartSvc}

	var carrier shipping.Carrier
	if cfg.ShippoAPIKey != "" {
		carrier = shipping.NewShippoClient(cfg.ShippoBaseURL, cfg.ShippoAPIKey, outbound("shippo"))
	} else {
		logger.Warn().Msg("SHIPPO_API_KEY not set, quoting from the house rate card")
	}
	shipSvc := &shipping.Service{
		Carrier: carrier,
		Origin: shipping.Address{
			Name:    cfg.Origin.Name,
			Street1: cfg.Origin.Street1,
			City:    cfg.Origin.City,
			State:   cfg.Origin.State,
			Zip:     cfg.Origin.Zip,
			Country: cfg.Origin.Country,
			Phone:   cfg.Origin.Phone,
			Email:   cfg.Origin.Email,
		},
		Logger: logger,
	}
	shipHandler := &shipping.Handler{Svc: shipSvc, Carts: cartSvc}

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse asynq redis uri")
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()
	inspector := asynq.NewInspector(asynqOpt)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Error().Err(err).Msg("close queue inspector")
		}
	}()

	bus := &events.Bus{
		Store: eventStore,
		Notifiers: []events.Notifier{notify.EmailNotifier{
			Queue:        taskClient,
			CC:           cfg.EmailCC,
			TopicToggles: topicToggles(envOrDefault("NOTIFY_EMAIL_DISABLED_TOPICS", "")),
			MaxRetry:     envInt("NOTIFY_EMAIL_MAX_RETRY", 8),
			Logger:       logger,
		}},
	}

	orderSvc := &order.Service{
		Repo:   orderRepo,
		Events: bus,
		Labels: shipSvc,
		Locks:  lock.Locker{R: redisClient},
		Logger: logger,
	}
	orderHandler := &order.Handler{Svc: orderSvc}
	orderAdmin := &order.AdminHandler{Svc: orderSvc}
	shipWebhook := shipping.Webhook{
		Sink:      orderSvc,
		Replay:    redisClient,
		ReplayTTL: envDurationMillis("SHIPPING_WEBHOOK_REPLAY_TTL_MS", 86_400_000),
		Token:     cfg.ShippingWebhookToken,
	}

	paymentSvc := &payment.Service{Orders: orderSvc, Currency: cfg.CurrencyCode, Logger: logger}
	if cfg.StripeSecretKey != "" {
		paymentSvc.Provider = payment.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil)
	} else {
		logger.Warn().Msg("STRIPE_SECRET_KEY not set, payments disabled")
	}
	paymentHandler := &payment.Handler{Svc: paymentSvc}
	paymentWebhook := payment.Webhook{
		Provider:  paymentSvc.Provider,
		Orders:    orderSvc,
		Events:    bus,
		Replay:    redisClient,
		ReplayTTL: envDurationMillis("PAYMENT_WEBHOOK_REPLAY_TTL_MS", 86_400_000),
		Logger:    logger,
	}

	checkoutSvc := &checkout.Service{
		Carts:    cartSvc,
		Shipping: shipSvc,
		Tax:      estimator,
		Payments: paymentSvc,
		Orders:   orderSvc,
		Currency: cfg.CurrencyCode,
		Logger:   logger,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}

	var authService *auth.Service
	if svc, err := auth.NewService(auth.Config{
		Username:       cfg.AdminUsername,
		PasswordHash:   cfg.AdminPasswordHash,
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
		Logger:         logger,
	}); err != nil {
		logger.Warn().Err(err).Msg("admin auth disabled")
	} else {
		authService = svc
	}
	csrf := security.CSRF{Header: "X-CSRF-Token", Secure: cfg.IsProduction()}
	authHandler := auth.Handler{
		Service:      authService,
		AccessCookie: adminCookieName,
		CookieSecure: cfg.IsProduction(),
		CSRF:         csrf,
	}
	authMiddleware := auth.Middleware{Service: authService, AccessCookie: adminCookieName}

	loginStore, err := ratelimit.NewLoginStore(redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise login limiter store")
	}
	loginLimit, err := ratelimit.LoginMiddleware(loginStore, cfg.LoginRateLimit, func(err error) {
		logger.Error().Err(err).Msg("login limiter")
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise login limiter")
	}

	recorder := audit.HTTPRecorder{
		Service: audit.Service{Store: auditStore, Enabled: cfg.AuditEnabled, Logger: logger},
		OnError: func(err error) { logger.Error().Err(err).Msg("record audit entry") },
	}
	auditHandler := audit.Handler{Store: auditStore}
	queueAdmin := &queue.AdminHandler{
		Inspector: inspector,
		Queues:    []string{notify.EmailQueue},
		Logger:    logger,
	}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	apiLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:"},
		Config: ratelimit.Config{
			Name:   "api",
			Key:    ratelimit.ByClientIP,
			Window: time.Minute,
			Max:    cfg.RateLimitPerMinute,
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("api limiter") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{
		Enable:          envBool("SECURE_HEADERS_ENABLED", true),
		EnableHSTS:      cfg.IsProduction(),
		NoStorePrefixes: []string{"/api/v1/admin", "/api/v1/orders", "/api/v1/checkout", "/api/v1/carts"},
	}.Middleware)
	r.Use(security.BodyLimit{Max: int64(envInt("HTTP_MAX_BODY_BYTES", 1<<20))}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", !cfg.IsProduction()) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{Probes: probes}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(apiLimit.Middleware)

		v.Get("/products", catalogHandler.Products)
		v.Route("/products/{slug}", func(p chi.Router) {
			p.Get("/", catalogHandler.Product)
			p.Get("/price", priceHandler.Price)
			p.Get("/tiers", priceHandler.Tiers)
			p.Get("/range", priceHandler.Range)
		})
		v.Post("/tax/estimate", taxHandler.Estimate)

		v.Route("/carts", func(c chi.Router) {
			c.Get("/{id}", cartHandler.Get)
			c.Post("/{id}/quote/shipping", shipHandler.QuoteCart)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/", cartHandler.Create)
				g.Post("/{id}/items", cartHandler.AddItem)
				g.Patch("/{id}/items/{lineId}", cartHandler.UpdateItem)
				g.Delete("/{id}/items/{lineId}", cartHandler.RemoveItem)
				g.Delete("/{id}/items", cartHandler.Clear)
			})
		})

		v.Post("/checkout/quote", checkoutHandler.Quote)
		v.With(idem.Middleware).Post("/checkout", checkoutHandler.Checkout)
		v.With(idem.Middleware).Post("/payments/intent", paymentHandler.Intent)

		v.Get("/orders/{id}", orderHandler.Get)
		v.Post("/orders/{id}/cancel", orderHandler.Cancel)

		v.Post("/webhooks/stripe", paymentWebhook.Handle)
		v.Post("/webhooks/shippo", shipWebhook.Handle)

		v.Route("/admin", func(admin chi.Router) {
			admin.With(loginLimit).Post("/login", authHandler.Login)

			admin.Group(func(p chi.Router) {
				p.Use(authMiddleware.RequireAdmin)
				p.Use(csrf.Middleware)

				p.Get("/orders", orderAdmin.List)
				p.Get("/orders/{id}", orderAdmin.Get)
				p.With(recorder.Middleware(audit.HTTPConfig{Action: "order.status", ResourceType: "order", ResourceIDParam: "id"})).
					Patch("/orders/{id}/status", orderAdmin.PatchStatus)
				p.With(recorder.Middleware(audit.HTTPConfig{Action: "order.delete", ResourceType: "order", ResourceIDParam: "id"})).
					Delete("/orders/{id}", orderAdmin.Delete)
				p.With(recorder.Middleware(audit.HTTPConfig{Action: "order.label", ResourceType: "order", ResourceIDParam: "id"})).
					Post("/orders/{id}/label", orderAdmin.Label)
				p.With(recorder.Middleware(audit.HTTPConfig{Action: "catalog.refresh", ResourceType: "catalog"})).
					Post("/catalog/refresh", catalogHandler.Refresh)

				p.Get("/audit", auditHandler.List)

				p.Get("/queues/{queue}", queueAdmin.Stats)
				p.Get("/queues/{queue}/dead", queueAdmin.ListDead)
				p.With(recorder.Middleware(audit.HTTPConfig{Action: "queue.replay", ResourceType: "queue", ResourceIDParam: "queue"})).
					Post("/queues/{queue}/replay", queueAdmin.Replay)
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop, stopCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopCancel()
	go func() {
		<-stop.Done()
		health.SetReady(false)
		drain := envDurationMillis("HTTP_DRAIN_DELAY_MS", 0)
		time.Sleep(drain)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), envDurationMillis("HTTP_SHUTDOWN_TIMEOUT_MS", 15_000))
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	health.SetReady(true)
	logger.Info().Str("addr", srv.Addr).Bool("postgres", cfg.UsePostgres()).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func openPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "grosir-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

// topicToggles turns a comma separated list of muted topics into notifier toggles.
func topicToggles(disabled string) map[string]bool {
	toggles := make(map[string]bool)
	for _, topic := range events.DefaultTopics() {
		toggles[topic] = true
	}
	for _, topic := range strings.Split(disabled, ",") {
		if topic = strings.TrimSpace(topic); topic != "" {
			toggles[topic] = false
		}
	}
	return toggles
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
