package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/niveshsaharan/centire-shopify/internal/application"
	"github.com/niveshsaharan/centire-shopify/internal/domain"
	"github.com/niveshsaharan/centire-shopify/internal/infrastructure/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Authenticator runs the OAuth install and impersonation flows
type Authenticator interface {
	SanitizeShop(raw string) string
	BeginInstall(shopParam string) (string, error)
	CompleteInstall(ctx context.Context, query url.Values) (*domain.Shop, error)
	Impersonate(ctx context.Context, shopParam, code string) (*domain.Shop, error)
}

// Sessions issues and resolves shop sessions
type Sessions interface {
	Login(ctx context.Context, shop *domain.Shop, impersonating bool) (*domain.ShopSession, string, error)
	Resolve(ctx context.Context, creds application.SessionCredentials) (*domain.ShopSession, error)
}

// Billing verifies and processes application charges
type Billing interface {
	Enabled() bool
	ConfirmationURL(ctx context.Context, session *domain.ShopSession) (string, error)
	VerifyCharge(ctx context.Context, session *domain.ShopSession) application.Verification
	Process(ctx context.Context, session *domain.ShopSession, chargeID uint64) application.Verification
	RequirePayment(session *domain.ShopSession) error
}

// Webhooks verifies and accepts webhook deliveries
type Webhooks interface {
	Verify(ctx context.Context, shopDomain string, body []byte, hmacHeader string) error
	Receive(ctx context.Context, event *domain.WebhookEvent) error
}

// Credentials manages private app credentials
type Credentials interface {
	ConfigurePrivateApp(ctx context.Context, shopDomain string, input *application.PrivateAppInput) (*domain.Shop, error)
	DeleteCredentials(ctx context.Context, shopDomain string) error
}

// WebhookHistory lists logged deliveries
type WebhookHistory interface {
	RecentWebhooks(ctx context.Context, shopDomain string, limit int64) ([]*domain.WebhookEvent, error)
}

// DeliveryMetrics records webhook responses
type DeliveryMetrics interface {
	ObserveWebhook(topic string, status int)
}

// Services are the application collaborators the handlers call
type Services struct {
	Auth        Authenticator
	Sessions    Sessions
	Billing     Billing
	Webhooks    Webhooks
	Credentials Credentials
	History     WebhookHistory
	Metrics     DeliveryMetrics
}

// RouterConfig controls paths, cookies and the documentation endpoints
type RouterConfig struct {
	AppName        string
	AuthPath       string
	BillingPath    string
	CookieName     string
	CookieTTL      time.Duration
	AllowedOrigins []string
	SwaggerFile    string
	Gatherer       prometheus.Gatherer
}

func (c RouterConfig) withDefaults() RouterConfig {
	if c.AuthPath == "" {
		c.AuthPath = "/auth"
	}
	if c.BillingPath == "" {
		c.BillingPath = "/billing"
	}
	if c.CookieName == "" {
		c.CookieName = "shopify_session"
	}
	if c.CookieTTL <= 0 {
		c.CookieTTL = 24 * time.Hour
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.SwaggerFile == "" {
		c.SwaggerFile = "./docs/swagger.json"
	}
	if c.Gatherer == nil {
		c.Gatherer = prometheus.DefaultGatherer
	}
	return c
}

// Server holds the HTTP handlers of the app
type Server struct {
	cfg    RouterConfig
	svc    Services
	logger zerolog.Logger
}

// NewServer creates a new Server
func NewServer(cfg RouterConfig, svc Services, logger zerolog.Logger) *Server {
	return &Server{cfg: cfg.withDefaults(), svc: svc, logger: logger}
}

// Router builds the chi router with every route mounted
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Api-Token", "X-Requested-With"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))

	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, s.cfg.SwaggerFile)
	})
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Get(s.cfg.AuthPath, s.authenticate)
	r.Get("/impersonate", s.impersonate)
	r.Post("/logout", s.logout)

	r.Post("/webhook/{type}", s.webhook)

	r.Group(func(r chi.Router) {
		r.Use(s.AuthShop)

		r.Get(s.cfg.BillingPath, s.billing)
		r.Get(s.cfg.BillingPath+"/process", s.processCharge)
		r.Get("/api/shop", s.shop)
		r.Put("/api/credentials", s.configureCredentials)
		r.Delete("/api/credentials", s.deleteCredentials)

		r.Group(func(r chi.Router) {
			r.Use(s.Billable)

			r.Get("/", s.home)
			r.Get("/api/webhooks", s.webhookHistory)
		})
	})

	return r
}
