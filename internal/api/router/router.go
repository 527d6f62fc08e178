package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/diagnostic-booking/internal/admin"
	"github.com/wolfman30/diagnostic-booking/internal/booking"
	"github.com/wolfman30/diagnostic-booking/internal/catalog"
	httpmiddleware "github.com/wolfman30/diagnostic-booking/internal/http/middleware"
	"github.com/wolfman30/diagnostic-booking/internal/leads"
	"github.com/wolfman30/diagnostic-booking/internal/orders"
	"github.com/wolfman30/diagnostic-booking/internal/proxy"
	"github.com/wolfman30/diagnostic-booking/internal/summary"
	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

// Config holds router configuration. Nil handlers leave their routes unmounted.
type Config struct {
	Logger          *logging.Logger
	BookingHandler  *booking.Handler
	OrdersHandler   *orders.Handler
	SummaryHandler  *summary.Handler
	ProxyHandler    *proxy.Handler
	LeadsHandler    *leads.Handler
	AdminHandler    *admin.Handler
	AdminAuthSecret string
	MetricsHandler  http.Handler

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// New creates the chi router for the booking API.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Get("/health", health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.SummaryHandler != nil {
		r.Get("/order-summary", cfg.SummaryHandler.Page)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimitRPS > 0 {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		}
		api.Get("/packages", catalog.ListPackages)
		if cfg.BookingHandler != nil {
			api.Mount("/bookings", cfg.BookingHandler.Routes())
		}
		if cfg.OrdersHandler != nil {
			api.Post("/orders", cfg.OrdersHandler.SubmitOrder)
		}
		if cfg.SummaryHandler != nil {
			api.Get("/order-summary", cfg.SummaryHandler.GetSummary)
		}
		if cfg.LeadsHandler != nil {
			api.Post("/callback-requests", cfg.LeadsHandler.CreateCallbackRequest)
		}
		if cfg.ProxyHandler != nil {
			cfg.ProxyHandler.Register(api)
		}
	})

	// Operator routes need a signed token; without a secret they are not served.
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(adm chi.Router) {
			adm.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.OrdersHandler != nil {
				adm.Get("/submissions", cfg.OrdersHandler.ListSubmissions)
			}
			if cfg.LeadsHandler != nil {
				adm.Get("/callback-requests", cfg.LeadsHandler.ListCallbackRequests)
			}
			if cfg.AdminHandler != nil {
				cfg.AdminHandler.Register(adm)
			}
		})
	}

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
