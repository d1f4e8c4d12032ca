package api

import (
	"net/http"

	"github.com/openblog/backend/internal/auth"
	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/health"
	"github.com/openblog/backend/internal/metrics"
	"github.com/openblog/backend/internal/posts"
	"github.com/openblog/backend/internal/websocket"
)

type Router struct {
	mux            *http.ServeMux
	authHandlers   *auth.Handlers
	authService    *auth.Service
	postHandlers   *posts.Handlers
	avatarHandlers *AvatarHandlers
	healthHandler  *health.Handler
	wsHandler      *websocket.Handler
	metrics        *metrics.Metrics
}

type RouterConfig struct {
	AuthHandlers   *auth.Handlers
	AuthService    *auth.Service
	PostHandlers   *posts.Handlers
	AvatarHandlers *AvatarHandlers
	HealthHandler  *health.Handler
	WSHandler      *websocket.Handler
	Metrics        *metrics.Metrics
}

func NewRouter(cfg *RouterConfig) *Router {
	r := &Router{
		mux:            http.NewServeMux(),
		authHandlers:   cfg.AuthHandlers,
		authService:    cfg.AuthService,
		postHandlers:   cfg.PostHandlers,
		avatarHandlers: cfg.AvatarHandlers,
		healthHandler:  cfg.HealthHandler,
		wsHandler:      cfg.WSHandler,
		metrics:        cfg.Metrics,
	}
	r.setupRoutes()
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) setupRoutes() {
	// Health and metrics
	r.mux.HandleFunc("GET /health", r.healthHandler.HealthHandler)
	r.mux.HandleFunc("GET /health/live", r.healthHandler.LivenessHandler)
	r.mux.HandleFunc("GET /health/ready", r.healthHandler.ReadinessHandler)
	r.mux.HandleFunc("GET /metrics", r.metrics.Handler())

	// Session routes (no auth required)
	r.mux.HandleFunc("POST /user/signup", apperrors.HandleFunc(r.authHandlers.Signup))
	r.mux.HandleFunc("POST /user/login", apperrors.HandleFunc(r.authHandlers.Login))
	r.mux.HandleFunc("POST /user/refresh", apperrors.HandleFunc(r.authHandlers.Refresh))
	r.mux.HandleFunc("POST /user/signout", apperrors.HandleFunc(r.authHandlers.Signout))

	// Session routes (auth required)
	r.mux.HandleFunc("POST /user/me", r.withAuth(r.authHandlers.Me))
	r.mux.HandleFunc("POST /user/avatar", r.withAuth(r.avatarHandlers.Upload))

	// Post routes (public reads)
	r.mux.HandleFunc("GET /posts", apperrors.HandleFunc(r.postHandlers.List))
	r.mux.HandleFunc("GET /posts/search", apperrors.HandleFunc(r.postHandlers.Search))
	r.mux.HandleFunc("GET /posts/{id}", apperrors.HandleFunc(r.postHandlers.Get))

	// Post routes (auth required)
	r.mux.HandleFunc("POST /posts/add", r.withAuth(r.postHandlers.Add))
	r.mux.HandleFunc("PUT /posts/update/{id}", r.withAuth(r.postHandlers.Update))
	r.mux.HandleFunc("POST /posts/remove", r.withAuth(r.postHandlers.Remove))

	// Stored images
	r.mux.HandleFunc("GET /static/uploads/images/{name}", apperrors.HandleFunc(r.avatarHandlers.ServeImage))

	// Live post events
	r.mux.HandleFunc("GET /ws", r.wsHandler.ServeWS)
}

func (r *Router) withAuth(next apperrors.Handler) http.HandlerFunc {
	gate := auth.Middleware(r.authService)
	return func(w http.ResponseWriter, req *http.Request) {
		gate(apperrors.HandleFunc(next)).ServeHTTP(w, req)
	}
}
