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
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pasteleria/internal/auth"
	"github.com/noah-isme/backend-pasteleria/internal/cart"
	"github.com/noah-isme/backend-pasteleria/internal/catalog"
	"github.com/noah-isme/backend-pasteleria/internal/checkout"
	"github.com/noah-isme/backend-pasteleria/internal/common"
	"github.com/noah-isme/backend-pasteleria/internal/config"
	"github.com/noah-isme/backend-pasteleria/internal/db"
	"github.com/noah-isme/backend-pasteleria/internal/health"
	"github.com/noah-isme/backend-pasteleria/internal/lock"
	"github.com/noah-isme/backend-pasteleria/internal/obs"
	"github.com/noah-isme/backend-pasteleria/internal/order"
	"github.com/noah-isme/backend-pasteleria/internal/payment"
	"github.com/noah-isme/backend-pasteleria/internal/pricing"
	"github.com/noah-isme/backend-pasteleria/internal/promotion"
	"github.com/noah-isme/backend-pasteleria/internal/ratelimit"
	"github.com/noah-isme/backend-pasteleria/internal/security"
)

// Transbank's public integration credentials, used when the sandbox runs
// without explicit keys.
const (
	sandboxCommerceCode = "597055555532"
	sandboxAPIKey       = "579B532A7440BB0C9079DED94D31EA1615BACEB56610332264630D42D0A36B1C"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	decimal.MarshalJSONWithoutQuotes = true

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger("pasteleria-api", logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "pasteleria")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", cfg.OTLPEndpoint != "")
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "pasteleria-api",
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.Options{
		MaxConns:        int32(envInt("DB_MAX_CONNS", 0)),
		MaxConnLifetime: envDurationMillis("DB_MAX_CONN_LIFETIME_MS", 0),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if envBool("DB_APPLY_SCHEMA", !cfg.IsProduction()) {
		if err := db.ApplySchema(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("apply schema")
		}
	}

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

	queueOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse queue redis url")
	}
	taskClient := asynq.NewClient(queueOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	location := cfg.Location()

	productStore := catalog.NewStore(pool)
	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Repo:         productStore,
		Cache:        catalog.NewCache(redisClient, cfg.CatalogTTL),
		Logger:       logger.With().Str("component", "catalog").Logger(),
		DefaultPage:  1,
		DefaultLimit: envInt("CATALOG_DEFAULT_LIMIT", 12),
		MaxLimit:     envInt("CATALOG_MAX_LIMIT", 60),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService})

	promotionStore := promotion.NewStore(pool)
	promotionHandler := &promotion.Handler{Repo: promotionStore, Logger: logger.With().Str("component", "promotion").Logger()}

	pricer := &pricing.Orchestrator{
		Products:   productStore,
		Promotions: promotionStore,
		Logger:     logger.With().Str("component", "pricing").Logger(),
		Location:   location,
	}

	cartService := &cart.Service{
		Store:    &cart.Store{R: redisClient, TTL: cfg.CartTTL},
		Products: productStore,
		Pricer:   pricer,
		Logger:   logger.With().Str("component", "cart").Logger(),
	}
	cartHandler := &cart.Handler{Svc: cartService}

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, 30*time.Second)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise token validator")
	}
	authMiddleware := auth.Middleware{Tokens: tokens, AccessCookie: cfg.AccessCookie}

	gateway := payment.Webpay{
		CommerceCode: cfg.WebpayCommerceCode,
		APIKey:       cfg.WebpayAPIKey,
		BaseURL:      cfg.WebpayBaseURL,
		Sandbox:      cfg.WebpaySandbox,
	}
	if gateway.Sandbox && gateway.APIKey == "" {
		gateway.CommerceCode, gateway.APIKey = sandboxCommerceCode, sandboxAPIKey
	}

	orderStore := order.NewStore(pool, cfg.StoreTimeZone)
	checkoutService := &checkout.Service{
		Carts:     cartService,
		Orders:    orderStore,
		Payments:  gateway,
		Queue:     taskClient,
		Locks:     lock.Locker{R: redisClient, Prefix: "lock:"},
		LockTTL:   cfg.LockTTL,
		Catalog:   catalogService,
		ReturnURL: cfg.PaymentReturnURL,
		Logger:    logger.With().Str("component", "checkout").Logger(),
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutService, Logger: checkoutService.Logger}

	orderHandler := &order.Handler{Repo: orderStore, Logger: logger.With().Str("component", "orders").Logger()}
	orderAdmin := &order.AdminHandler{Repo: orderStore, Logger: orderHandler.Logger, Location: location}

	idem := common.Idem{R: redisClient, TTL: envDurationMillis("IDEMPOTENCY_TTL_MS", 600000)}

	cartLimiter, err := ratelimit.NewRedisLimiter(redisClient, cfg.CartRateLimit, "ratelimit:cart")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise cart rate limiter")
	}
	cartLimit := ratelimit.Handler{
		Limiter: cartLimiter,
		Key:     ratelimit.ByHeaderOrIP(cart.SessionHeader),
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limit store unavailable") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, nil, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if tracingEnabled {
		r.Use(obs.Tracing("pasteleria-api"))
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", cart.SessionHeader},
		ExposedHeaders:   []string{cart.SessionHeader, "X-Request-Id", "X-RateLimit-Remaining"},
		AllowCredentials: len(cfg.CORSAllowedOrigins) > 0,
		MaxAge:           300,
	}))
	r.Use(security.Headers{
		Enable:          envBool("SECURITY_HEADERS_ENABLED", true),
		HSTSMaxAge:      envInt("SECURITY_HSTS_MAX_AGE", 0),
		NoStorePrefixes: []string{"/api/v1/cart", "/api/v1/checkout", "/api/v1/orders", "/api/v1/admin"},
	}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", !cfg.IsProduction()) {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), envOrDefault("PPROF_BASIC_AUTH_USER", ""), envOrDefault("PPROF_BASIC_AUTH_PASS", "")))
	}

	healthHandler := health.Handler{Probes: []health.Probe{
		{Name: "db", Check: pool.Ping, Timeout: envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500)},
		{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }, Timeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300)},
	}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(authMiddleware.Authenticate)

		v.Get("/categories", catalogHandler.Categories)
		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{id}", catalogHandler.Product)
		v.Get("/search", catalogHandler.Search)
		v.Get("/promotions", promotionHandler.Public)

		v.Group(func(s chi.Router) {
			s.Use(cart.SessionMiddleware(cfg.CartTTL, cfg.CookieSecure))

			s.Get("/cart", cartHandler.Get)
			s.Group(func(m chi.Router) {
				m.Use(cartLimit.Middleware)
				m.Post("/cart/items", cartHandler.AddItem)
				m.Delete("/cart/items/{productId}", cartHandler.RemoveItem)
				m.Delete("/cart", cartHandler.Clear)
			})

			s.Post("/checkout", checkoutHandler.Review)
			s.With(authMiddleware.RequireAuth, idem.Middleware).Post("/checkout/pay", checkoutHandler.Pay)
			s.Post("/checkout/return", checkoutHandler.Return)
		})

		v.Group(func(c chi.Router) {
			c.Use(authMiddleware.RequireAuth)
			c.Get("/orders", orderHandler.List)
			c.Get("/orders/{id}", orderHandler.Get)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireStaff)

			admin.Post("/products", catalogHandler.AdminCreate)
			admin.Put("/products/{id}", catalogHandler.AdminUpdate)
			admin.Delete("/products/{id}", catalogHandler.AdminDelete)

			admin.Get("/promotions", promotionHandler.AdminList)
			admin.Post("/promotions", promotionHandler.AdminCreate)
			admin.Get("/promotions/{id}", promotionHandler.AdminGet)
			admin.Put("/promotions/{id}", promotionHandler.AdminUpdate)
			admin.Delete("/promotions/{id}", promotionHandler.AdminDelete)

			admin.Get("/orders", orderAdmin.List)
			admin.Get("/orders/{id}", orderAdmin.Get)
			admin.Patch("/orders/{id}/status", orderAdmin.PatchStatus)
			admin.Get("/dashboard", orderAdmin.Dashboard)
			admin.Get("/reports/top-products", orderAdmin.TopProducts)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		health.SetReady(false)
		logger.Info().Msg("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 15000))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Str("timezone", location.String()).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
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
