package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/chatwire/chatwire/internal/api/middleware"
	"github.com/chatwire/chatwire/internal/auth"
	"github.com/chatwire/chatwire/internal/config"
	"github.com/chatwire/chatwire/internal/handlers"
	"github.com/chatwire/chatwire/internal/realtime"
	"github.com/chatwire/chatwire/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg *config.Config, logger zerolog.Logger, st store.ChatStore, redisStore *store.RedisStore, tokens *auth.TokenService, gateway *realtime.Gateway) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(cfg.MaxUploadSize))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting requires redis; the sqlite dev setup runs without it.
	if redisStore != nil {
		limiter := middleware.NewRateLimiter(redisStore.Client(), logger, middleware.RateLimiterConfig{
			Whitelist:        cfg.RateLimitWhitelist,
			AutoBlockEnabled: cfg.AutoBlockEnabled,
		})
		r.Use(limiter.Middleware)
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(st, redisStore, tokens, gateway, logger, cfg.UploadDir, cfg.MaxUploadSize)
	authmw := middleware.NewAuthMiddleware(tokens)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/", h.Root)
	r.Get("/health", h.Check)
	r.Post("/api/auth/register", h.Register)
	r.Post("/api/auth/login", h.Login)

	// WebSocket endpoint authenticates its own handshake token.
	r.Get("/ws", realtime.NewSocketHandler(gateway, logger, cfg.AllowedOrigins).ServeHTTP)

	// Uploaded attachments
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	// Authenticated routes (require bearer token)
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth)

		r.Post("/api/auth/logout", h.Logout)
		r.Get("/api/auth/me", h.Me)
		r.Get("/api/auth/online-users", h.OnlineUsers)

		r.Get("/api/chat/rooms", h.ListRooms)
		r.Post("/api/chat/rooms", h.CreateRoom)
		r.Get("/api/chat/rooms/{roomID}/online", h.RoomOnlineUsers)
		r.Get("/api/chat/messages/{roomID}", h.ListMessages)
		r.Get("/api/chat/search", h.SearchMessages)
		r.Post("/api/chat/upload", h.Upload)
		r.Delete("/api/chat/message/{id}", h.DeleteMessage)
	})

	return r
}
