package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/LeArcanist/personas/internal/api/middleware"
	"github.com/LeArcanist/personas/internal/auth"
	"github.com/LeArcanist/personas/internal/chat"
	"github.com/LeArcanist/personas/internal/config"
	"github.com/LeArcanist/personas/internal/handlers"
	"github.com/LeArcanist/personas/internal/session"
	"github.com/LeArcanist/personas/internal/store"
)

// NewRouter creates and configures the HTTP router. redisClient may be nil,
// which disables rate limiting.
func NewRouter(cfg *config.Config, logger zerolog.Logger, dataStore store.DataStore, sessions session.Store, redisClient *redis.Client) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// CORS for browser poll clients
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Session loading on every route
	loader := middleware.NewSessionLoader(sessions, cfg.CookieName, logger)
	r.Use(loader.Load)

	// Wire the engines and handler
	rooms := chat.NewRoomEngine(dataStore, sessions, logger)
	threads := chat.NewThreadEngine(dataStore, logger)
	authProvider := auth.NewProvider(dataStore)
	h := handlers.NewHandler(dataStore, loader, sessions, authProvider, rooms, threads, logger)

	limiter := middleware.NewRateLimiter(redisClient, cfg.SendRateLimit, time.Minute, cfg.CookieName, logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/login", h.LoginRequired)
	r.Post("/login", h.Login)
	r.Post("/register", h.Register)
	r.Get("/logout", h.Logout)

	// Persona directory (ProfileStore surface)
	r.Get("/personas", h.ListPersonas)
	r.Post("/personas", h.CreatePersona)
	r.Post("/personas/{id}", h.UpdatePersona)

	// Category rooms
	r.Get("/chats", h.ListRooms)
	r.Post("/chats/enter", h.EnterRoom)
	r.Get("/chats/{category}", h.RoomView)
	r.Get("/chats/{category}/messages", h.PollRoomMessages)
	r.With(limiter.Limit).Post("/chats/{category}/send", h.SendRoomMessage)

	// DM threads
	r.Get("/dm", h.Inbox)
	r.Post("/dm/start", h.StartDM)
	r.Get("/dm/{id}", h.ThreadView)
	r.Get("/dm/{id}/messages", h.PollThreadMessages)
	r.With(limiter.Limit).Post("/dm/{id}/send", h.SendDM)

	return r
}
