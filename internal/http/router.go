package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"chaos-ai/internal/handlers"
	"chaos-ai/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Relay   service.RelayService
	Backend handlers.BackendPinger

	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler

	// Observer is notified of socket connections. May be nil.
	Observer handlers.ConnectionObserver

	AllowedOrigins  []string
	MaxMessageBytes int64
}

// Router serves every route and owns the socket handler's live connections.
type Router struct {
	http.Handler
	sockets *handlers.SocketHandler
}

// Shutdown closes open WebSocket connections. http.Server.Shutdown does not
// track hijacked connections, so register this with RegisterOnShutdown.
func (rt *Router) Shutdown() {
	rt.sockets.Shutdown()
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) (*Router, error) {
	homeHandler, err := handlers.NewHomeHandler()
	if err != nil {
		return nil, fmt.Errorf("create home handler: %w", err)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(CORS(deps.AllowedOrigins))

	chatHandler := handlers.NewChatHandler(deps.Relay, deps.MaxMessageBytes)
	socketHandler := handlers.NewSocketHandler(deps.Relay, handlers.SocketConfig{
		AllowedOrigins:  deps.AllowedOrigins,
		MaxMessageBytes: deps.MaxMessageBytes,
		Observer:        deps.Observer,
	})

	r.Route("/ai", func(r chi.Router) {
		r.Method(http.MethodPost, "/chat", chatHandler)
	})
	r.Method(http.MethodGet, "/socket", socketHandler)

	if deps.Backend != nil {
		r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(deps.Backend))
	}
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Method(http.MethodGet, "/", homeHandler)

	return &Router{Handler: r, sockets: socketHandler}, nil
}
