package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/digkill/LogoForge/internal/auth"
	"github.com/digkill/LogoForge/internal/metrics"
	"github.com/digkill/LogoForge/internal/models"
	"github.com/digkill/LogoForge/internal/paddle"
	"github.com/digkill/LogoForge/internal/replicate"
	"github.com/digkill/LogoForge/internal/service"
)

type Users interface {
	Ensure(ctx context.Context, userID, email string) (*models.User, error)
}

type Transforms interface {
	Run(ctx context.Context, userID string, model replicate.Model, input any) (json.RawMessage, error)
}

type Logos interface {
	Generate(ctx context.Context, userID string, mode models.LogoMode, req service.LogoRequest) (*service.LogoResult, error)
	List(ctx context.Context, userID string) ([]models.Logo, error)
	Get(ctx context.Context, userID, logoID string) (*service.LogoDetail, error)
	Community(ctx context.Context, skip, take int) (*service.CommunityPage, error)
	Favorites(ctx context.Context, userID string) ([]models.Logo, error)
	ToggleFavorite(ctx context.Context, userID, logoID string) (bool, error)
	TogglePublic(ctx context.Context, userID, logoID string) (*models.Logo, error)
}

type Subscriptions interface {
	HandleWebhook(ctx context.Context, signature string, body []byte) error
	Get(ctx context.Context, userID string) (*models.Subscription, error)
	ManagementURLs(ctx context.Context, userID, subscriptionID string) (*service.ManagementLinks, error)
	Upgrade(ctx context.Context, userID, priceID string) (*models.Subscription, error)
}

type Deps struct {
	Users         Users
	Transforms    Transforms
	Logos         Logos
	Subscriptions Subscriptions
	Auth          *auth.Verifier
	Metrics       *metrics.Metrics
}

type Server struct {
	addr         string
	writeTimeout time.Duration
	log          *slog.Logger
	deps         Deps
	router       *chi.Mux
}

func NewServer(addr string, writeTimeout time.Duration, log *slog.Logger, deps Deps) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(deps.Auth.Middleware)

	s := &Server{
		addr:         addr,
		writeTimeout: writeTimeout,
		log:          log,
		deps:         deps,
		router:       r,
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}
	r.Post("/api/webhooks", s.handleWebhook)
	r.Get("/api/community", s.handleCommunity)
	for _, m := range replicate.StableDiffusionModels {
		r.Get("/api/stable-diffusion/"+m.Slug, s.handleModelStatus(m))
	}
	for _, m := range replicate.AnimationModels {
		r.Get("/api/animation/"+m.Slug, s.handleModelStatus(m))
	}

	r.Group(func(protected chi.Router) {
		protected.Use(s.requireUser)
		for _, m := range replicate.StableDiffusionModels {
			protected.Post("/api/stable-diffusion/"+m.Slug, s.handleTransform(m))
		}
		for _, m := range replicate.AnimationModels {
			protected.Post("/api/animation/"+m.Slug, s.handleTransform(m))
		}
		protected.Post("/api/logo/{mode}", s.handleGenerateLogo)

		protected.Get("/api/get-user", s.handleGetUser)
		protected.Get("/api/subscription", s.handleSubscription)
		protected.Post("/api/subscription", s.handleSubscription)
		protected.Post("/api/manage-subscription", s.handleManageSubscription)
		protected.Post("/api/upgrade-subscription", s.handleUpgradeSubscription)

		protected.Get("/api/favorites", s.handleFavorites)
		protected.Route("/api/logos", func(r chi.Router) {
			r.Get("/", s.handleListLogos)
			r.Get("/{id}", s.handleGetLogo)
			r.Post("/{id}/favorite", s.handleToggleFavorite)
			r.Post("/{id}/public", s.handleTogglePublic)
		})
	})
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.writeTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("http shutdown error", "err", err)
		}
	}()

	s.log.Info("http api listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

type userKey struct{}

// requireUser rejects requests without a verified identity and makes sure the user row exists.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.FromContext(r.Context())
		if !ok {
			s.writeError(w, r, service.ErrUnauthenticated)
			return
		}
		user, err := s.deps.Users.Ensure(r.Context(), id.ID, id.Email)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func currentUser(r *http.Request) *models.User {
	u, _ := r.Context().Value(userKey{}).(*models.User)
	return u
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps service errors onto status codes. Unexpected errors are logged and reported
// without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var credits *service.InsufficientCreditsError
	switch {
	case errors.As(err, &credits):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: credits.Error()})
	case errors.Is(err, service.ErrValidation):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrUnauthenticated):
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		s.log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"err", err,
		)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// webhookBodyLimit bounds what is read from the payment provider.
const webhookBodyLimit = 1 << 20

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r, webhookBodyLimit)
	if err != nil {
		s.badRequest(w, "read body error")
		return
	}
	if err := s.deps.Subscriptions.HandleWebhook(r.Context(), r.Header.Get(paddle.SignatureHeader), body); err != nil {
		s.log.Warn("webhook rejected", "err", err)
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Processed webhook event"})
}
