package http

import (
	"context"
	"crypto/sha256"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"golang.org/x/oauth2"

	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/config"
	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/identity"
)

const oauthStateCookie = "oauth_state"

var (
	errInvalidState = errors.New("state parameter mismatch")
	errNoIDToken    = errors.New("token response carries no id_token")
)

// oauthClient drives the Google sign-in round trip. The OIDC provider is
// discovered lazily on first use so the service still starts when the
// identity provider is unreachable.
type oauthClient struct {
	cfg config.Config
	sc  *securecookie.SecureCookie

	mu       sync.Mutex
	provider *oidc.Provider
}

func newOAuthClient(cfg config.Config) *oauthClient {
	hashKey := sha256.Sum256([]byte(cfg.CookieSecret + ":hash"))
	blockKey := sha256.Sum256([]byte(cfg.CookieSecret + ":block"))
	return &oauthClient{
		cfg: cfg,
		sc:  securecookie.New(hashKey[:], blockKey[:]),
	}
}

func (o *oauthClient) oidcProvider(ctx context.Context) (*oidc.Provider, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.provider != nil {
		return o.provider, nil
	}
	provider, err := oidc.NewProvider(ctx, o.cfg.OIDCIssuerURL)
	if err != nil {
		return nil, err
	}
	o.provider = provider
	return provider, nil
}

func (o *oauthClient) oauth2Config(provider *oidc.Provider) oauth2.Config {
	return oauth2.Config{
		ClientID:     o.cfg.GoogleClientID,
		ClientSecret: o.cfg.GoogleClientSecret,
		RedirectURL:  o.cfg.GoogleRedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
}

func (s *Server) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		writeError(w, http.StatusNotFound, "oauth_not_configured")
		return
	}

	provider, err := s.oauth.oidcProvider(r.Context())
	if err != nil {
		s.log.WithError(err).Error("oidc discovery failed")
		s.redirectOAuthError(w, r)
		return
	}

	// State guards against CSRF; PKCE against authorization-code
	// interception. Both ride in a signed, encrypted cookie for the
	// duration of the round trip.
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	encoded, err := s.oauth.sc.Encode(oauthStateCookie, map[string]string{
		"state":    state,
		"verifier": verifier,
	})
	if err != nil {
		s.log.WithError(err).Error("oauth state encode failed")
		s.redirectOAuthError(w, r)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int((10 * time.Minute) / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.cfg.Production,
	})

	oauthCfg := s.oauth.oauth2Config(provider)
	http.Redirect(w, r, oauthCfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), http.StatusFound)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		writeError(w, http.StatusNotFound, "oauth_not_configured")
		return
	}

	profile, err := s.oauth.verifyCallback(r)
	if err != nil {
		// Provider errors never reach the browser, only the log.
		s.log.WithError(err).Warn("oauth callback rejected")
		s.redirectOAuthError(w, r)
		return
	}

	ident, err := s.resolver.LinkOrCreate(r.Context(), profile)
	if err != nil {
		s.log.WithError(err).Error("oauth identity link failed")
		s.redirectOAuthError(w, r)
		return
	}

	token, err := s.issueSessionToken(ident)
	if err != nil {
		s.log.WithError(err).Error("oauth token issue failed")
		s.redirectOAuthError(w, r)
		return
	}

	s.clearOAuthStateCookie(w)
	s.setSessionCookie(w, token)
	http.Redirect(w, r, s.cfg.FrontendURL+"/", http.StatusFound)
}

func (o *oauthClient) verifyCallback(r *http.Request) (identity.Profile, error) {
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil {
		return identity.Profile{}, err
	}
	cval := map[string]string{}
	if err := o.sc.Decode(oauthStateCookie, cookie.Value, &cval); err != nil {
		return identity.Profile{}, err
	}
	if state := r.URL.Query().Get("state"); state == "" || state != cval["state"] {
		return identity.Profile{}, errInvalidState
	}

	provider, err := o.oidcProvider(r.Context())
	if err != nil {
		return identity.Profile{}, err
	}

	oauthCfg := o.oauth2Config(provider)
	oauth2Token, err := oauthCfg.Exchange(r.Context(), r.URL.Query().Get("code"), oauth2.VerifierOption(cval["verifier"]))
	if err != nil {
		return identity.Profile{}, err
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return identity.Profile{}, errNoIDToken
	}
	idToken, err := provider.Verifier(&oidc.Config{ClientID: o.cfg.GoogleClientID}).Verify(r.Context(), rawIDToken)
	if err != nil {
		return identity.Profile{}, err
	}

	var claims struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return identity.Profile{}, err
	}

	return identity.Profile{
		Subject: idToken.Subject,
		Name:    claims.Name,
		Email:   claims.Email,
	}, nil
}

func (s *Server) redirectOAuthError(w http.ResponseWriter, r *http.Request) {
	s.clearOAuthStateCookie(w)
	http.Redirect(w, r, s.cfg.FrontendURL+"/login?error=oauth_failed", http.StatusFound)
}

func (s *Server) clearOAuthStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.cfg.Production,
	})
}
