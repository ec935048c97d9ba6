package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	cmdbus "loom-backend/application/commands/bus"
	querybus "loom-backend/application/queries/bus"
	"loom-backend/infrastructure/config"
	"loom-backend/interfaces/http/rest/handlers"
	"loom-backend/interfaces/http/rest/middleware"
	"loom-backend/pkg/auth"
)

// Router creates and configures the HTTP router
type Router struct {
	commandBus *cmdbus.CommandBus
	queryBus   *querybus.QueryBus
	validator  *auth.JWTValidator
	cfg        *config.Config
	logger     *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *cmdbus.CommandBus,
	queryBus *querybus.QueryBus,
	validator *auth.JWTValidator,
	cfg *config.Config,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		validator:  validator,
		cfg:        cfg,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.RequestLogger(rt.logger))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "https://*.loomchat.app"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	ipLimiter := auth.NewIPRateLimiter(rt.cfg.IPRateLimitPerMinute)
	userLimiter := auth.NewUserRateLimiter(rt.cfg.UserRateLimitPerMinute)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.validator, ipLimiter, userLimiter, rt.logger))

		conversationHandler := handlers.NewConversationHandler(rt.commandBus, rt.queryBus, rt.logger)
		graphHandler := handlers.NewGraphHandler(rt.queryBus, rt.logger)
		messageHandler := handlers.NewMessageHandler(rt.commandBus, rt.queryBus, rt.logger)

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)
			r.Patch("/{id}", conversationHandler.Rename)
			r.Delete("/{id}", conversationHandler.Delete)
			r.Get("/{id}/graph", graphHandler.GetGraph)
			r.Post("/{id}/messages", conversationHandler.CreateMessage)
		})

		r.Route("/messages", func(r chi.Router) {
			// The batch route must register before the {id} routes so chi
			// does not treat "batch" as a message ID
			r.Patch("/batch/position", messageHandler.BatchUpdatePositions)

			r.Patch("/{id}/position", messageHandler.UpdatePosition)
			r.Patch("/{id}/attach", messageHandler.Attach)
			r.Patch("/{id}/drop", messageHandler.Drop)
			r.Post("/{id}/duplicate", messageHandler.Duplicate)
			r.Post("/{id}/reply", messageHandler.Reply)
			r.Delete("/{id}", messageHandler.Delete)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
