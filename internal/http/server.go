package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/auth"
	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/config"
	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/crypto"
	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/identity"
	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/model"
	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/repository"
)

const sessionCookieName = "token"

// Store is everything the handlers need from the database layer.
type Store interface {
	identity.Store

	CreateEvent(ctx context.Context, event model.Event) (model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	GetEventByID(ctx context.Context, id string) (model.Event, error)
	UpdateEvent(ctx context.Context, event model.Event) error
	DeleteEvent(ctx context.Context, id string) error

	CreateApplication(ctx context.Context, app model.EventApplication) (model.EventApplication, error)
	ListApplicationsByEvent(ctx context.Context, eventID string) ([]model.EventApplication, error)
	ListApplicationsByIdentity(ctx context.Context, identityID string) ([]model.EventApplication, error)
	UpdateApplicationStatus(ctx context.Context, id, status string) error
}

var loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "katalyst_logins_total",
	Help: "Login attempts by outcome.",
}, []string{"outcome"})

type Server struct {
	cfg      config.Config
	store    Store
	resolver *identity.Resolver
	oauth    *oauthClient
	log      *logrus.Logger
}

func NewServer(cfg config.Config, store Store, log *logrus.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		store:    store,
		resolver: identity.NewResolver(store),
		log:      log,
	}
	if cfg.OAuthEnabled() {
		s.oauth = newOAuthClient(cfg)
	} else {
		log.Info("google oauth not configured, running password-only")
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.cfg.CORSOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignup)
			r.Post("/login", s.handleLogin)
			r.With(s.authMiddleware).Post("/logout", s.handleLogout)
			r.With(s.authMiddleware).Get("/me", s.handleGetMe)
			r.Get("/google", s.handleGoogleStart)
			r.Get("/google/callback", s.handleGoogleCallback)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.handleListEvents)
			r.With(s.authMiddleware, s.requireAdmin).Post("/", s.handleCreateEvent)
			r.With(s.authMiddleware, s.requireAdmin).Put("/{eventID}", s.handleUpdateEvent)
			r.With(s.authMiddleware, s.requireAdmin).Delete("/{eventID}", s.handleDeleteEvent)
			r.With(s.authMiddleware).Post("/{eventID}/applications", s.handleApply)
			r.With(s.authMiddleware, s.requireAdmin).Get("/{eventID}/applications", s.handleListEventApplications)
		})

		r.With(s.authMiddleware).Get("/me/applications", s.handleMyApplications)
		r.With(s.authMiddleware, s.requireAdmin).Patch("/applications/{applicationID}", s.handlePatchApplication)
	})

	return r
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type identitySummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
}

func summarize(ident model.Identity) identitySummary {
	return identitySummary{
		ID:       ident.ID,
		Username: ident.Username,
		Email:    ident.Email,
		Role:     ident.Kind.Role(),
	}
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Username == "" || req.Email == "" || strings.TrimSpace(req.Password) == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	ident, err := s.store.CreateIdentity(r.Context(), model.NewIdentity{
		Kind:     model.KindUser,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			writeError(w, http.StatusConflict, "user_exists")
		case errors.Is(err, crypto.ErrEmptyPassword):
			writeError(w, http.StatusBadRequest, "missing_fields")
		default:
			s.log.WithError(err).Error("signup failed")
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"user": summarize(ident)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	ident, err := s.resolver.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) || errors.Is(err, identity.ErrInvalidPassword) {
			// The concrete reason stays in the log; the client sees one
			// message for both, so emails can't be enumerated.
			s.log.WithField("email", req.Email).WithError(err).Info("login rejected")
			loginsTotal.WithLabelValues("rejected").Inc()
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		s.log.WithError(err).Error("login failed")
		loginsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	token, err := s.issueSessionToken(ident)
	if err != nil {
		s.log.WithError(err).Error("token issue failed")
		loginsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	s.setSessionCookie(w, token)
	loginsTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": summarize(ident)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Tokens are stateless: logout just discards the client's copy.
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	if ident == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	writeJSON(w, http.StatusOK, summarize(*ident))
}

func (s *Server) issueSessionToken(ident model.Identity) (string, error) {
	return auth.NewSessionToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.TokenTTL, auth.Claims{
		UserID:   ident.ID,
		Username: ident.Username,
		Role:     ident.Kind.Role(),
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cfg.TokenTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.cfg.Production,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.cfg.Production,
	})
}

// authMiddleware verifies the session cookie and re-resolves the identity
// from the store rather than trusting the token's embedded role, so a
// deleted or demoted account is locked out as soon as its row changes.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, cookie.Value)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		ident, err := s.resolver.ResolveByID(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, identity.ErrUserNotFound) {
				writeError(w, http.StatusUnauthorized, "invalid_token")
				return
			}
			s.log.WithError(err).Error("session resolution failed")
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}

		// The hash stays out of the request context.
		ident.PasswordHash = ""

		ctx := context.WithValue(r.Context(), identityKey{}, &ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident := identityFromContext(r.Context())
		if ident == nil || ident.Kind != model.KindAdmin {
			writeError(w, http.StatusForbidden, "admin_only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type identityKey struct{}

func identityFromContext(ctx context.Context) *model.Identity {
	value := ctx.Value(identityKey{})
	ident, _ := value.(*model.Identity)
	return ident
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
