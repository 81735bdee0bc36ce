package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/auth"
	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/config"
	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/identity"
	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/model"
	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/storetest"
)

func testConfig() config.Config {
	return config.Config{
		JWTSecret:    "test-secret",
		JWTIssuer:    "test-issuer",
		TokenTTL:     time.Hour,
		CORSOrigin:   "http://localhost:5173",
		FrontendURL:  "http://localhost:5173",
		CookieSecret: "test-secret",
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *storetest.Store) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := storetest.New()
	server := NewServer(testConfig(), store, log)
	app := httptest.NewServer(server.Router())
	t.Cleanup(app.Close)
	return app, store
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func sessionCookie(t *testing.T, client *http.Client, baseURL string) *http.Cookie {
	t.Helper()
	u, err := url.Parse(baseURL)
	require.NoError(t, err)
	for _, cookie := range client.Jar.Cookies(u) {
		if cookie.Name == sessionCookieName {
			return cookie
		}
	}
	return nil
}

func TestSignupLoginMeLogout(t *testing.T) {
	app, _ := newTestServer(t)
	client := newClient(t)

	resp := doJSON(t, client, http.MethodPost, app.URL+"/api/v1/auth/signup", map[string]string{
		"username": "jane", "email": "jane@x.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		User struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"user"`
	}
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.User.ID)
	require.Equal(t, "user", created.User.Role)

	resp = doJSON(t, client, http.MethodPost, app.URL+"/api/v1/auth/login", map[string]string{
		"email": "jane@x.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	cookie := sessionCookie(t, client, app.URL)
	require.NotNil(t, cookie, "login sets the session cookie")

	resp = doJSON(t, client, http.MethodGet, app.URL+"/api/v1/auth/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Role     string `json:"role"`
	}
	decodeBody(t, resp, &me)
	require.Equal(t, created.User.ID, me.ID)
	require.Equal(t, "jane", me.Username)
	require.Equal(t, "jane@x.com", me.Email)
	require.Equal(t, "user", me.Role)

	resp = doJSON(t, client, http.MethodPost, app.URL+"/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.Nil(t, sessionCookie(t, client, app.URL), "logout clears the cookie")

	resp = doJSON(t, client, http.MethodGet, app.URL+"/api/v1/auth/me", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestSignupValidation(t *testing.T) {
	app, store := newTestServer(t)
	client := newClient(t)

	for _, body := range []map[string]string{
		{"username": "", "email": "a@x.com", "password": "pw"},
		{"username": "a", "email": "", "password": "pw"},
		{"username": "a", "email": "a@x.com", "password": "   "},
	} {
		resp := doJSON(t, client, http.MethodPost, app.URL+"/api/v1/auth/signup", body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	}
	require.Empty(t, store.Identities())
}

func TestSignupDuplicateEmail(t *testing.T) {
	app, store := newTestServer(t)
	client := newClient(t)

	resp := doJSON(t, client, http.MethodPost, app.URL+"/api/v1/auth/signup", map[string]string{
		"username": "jane", "email": "jane@x.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodPost, app.URL+"/api/v1/auth/signup", map[string]string{
		"username": "imposter", "email": "jane@x.com", "password": "other",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// The original record is untouched and remains the only one.
	identities := store.Identities()
	require.Len(t, identities, 1)
	require.Equal(t, "jane", identities[0].Username)
}

func TestLoginFailuresAreGeneric(t *testing.T) {
	app, store := newTestServer(t)
	client := newClient(t)

	_, err := store.CreateIdentity(context.Background(), model.NewIdentity{
		Kind: model.KindUser, Username: "jane", Email: "jane@x.com", Password: "secret1",
	})
	require.NoError(t, err)

	// Unknown email and wrong password produce byte-identical error
	// bodies, so registered emails cannot be enumerated.
	readBody := func(body map[string]string) string {
		resp := doJSON(t, client, http.MethodPost, app.URL+"/api/v1/auth/login", body)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		return string(raw)
	}

	unknown := readBody(map[string]string{"email": "nobody@x.com", "password": "secret1"})
	wrongPassword := readBody(map[string]string{"email": "jane@x.com", "password": "wrong"})
	require.Equal(t, unknown, wrongPassword)
}

func TestLoginAdminPrecedence(t *testing.T) {
	app, store := newTestServer(t)
	client := newClient(t)

	_, err := store.CreateIdentity(context.Background(), model.NewIdentity{
		Kind: model.KindAdmin, Username: "boss", Email: "shared@x.com", Password: "admin-pass",
	})
	require.NoError(t, err)
	_, err = store.CreateIdentity(context.Background(), model.NewIdentity{
		Kind: model.KindUser, Username: "plain", Email: "shared@x.com", Password: "user-pass",
	})
	require.NoError(t, err)

	resp := doJSON(t, client, http.MethodPost, app.URL+"/api/v1/auth/login", map[string]string{
		"email": "shared@x.com", "password": "admin-pass",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		User struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	decodeBody(t, resp, &body)
	require.Equal(t, "admin", body.User.Role)
}

func TestSessionMiddlewareRejections(t *testing.T) {
	app, store := newTestServer(t)
	cfg := testConfig()

	ident, err := store.CreateIdentity(context.Background(), model.NewIdentity{
		Kind: model.KindUser, Username: "jane", Email: "jane@x.com", Password: "secret1",
	})
	require.NoError(t, err)

	expired, err := auth.NewSessionToken(cfg.JWTSecret, cfg.JWTIssuer, -time.Minute, auth.Claims{UserID: ident.ID, Role: "user"})
	require.NoError(t, err)
	orphaned, err := auth.NewSessionToken(cfg.JWTSecret, cfg.JWTIssuer, time.Hour, auth.Claims{UserID: "gone", Role: "user"})
	require.NoError(t, err)

	cases := []struct {
		name  string
		token string
	}{
		{"no cookie", ""},
		{"malformed token", "not-a-jwt"},
		{"expired token", expired},
		{"identity no longer exists", orphaned},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, app.URL+"/api/v1/auth/me", nil)
			require.NoError(t, err)
			if tc.token != "" {
				req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tc.token})
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestDeletedIdentityLosesAccess(t *testing.T) {
	app, store := newTestServer(t)
	client := newClient(t)

	resp := doJSON(t, client, http.MethodPost, app.URL+"/api/v1/auth/signup", map[string]string{
		"username": "jane", "email": "jane@x.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	resp = doJSON(t, client, http.MethodPost, app.URL+"/api/v1/auth/login", map[string]string{
		"email": "jane@x.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Token is unexpired, but the account is gone.
	store.RemoveIdentity(store.Identities()[0].ID)

	resp = doJSON(t, client, http.MethodGet, app.URL+"/api/v1/auth/me", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func loginAs(t *testing.T, app *httptest.Server, store *storetest.Store, kind model.Kind, email, password string) *http.Client {
	t.Helper()
	_, err := store.CreateIdentity(context.Background(), model.NewIdentity{
		Kind: kind, Username: email, Email: email, Password: password,
	})
	require.NoError(t, err)

	client := newClient(t)
	resp := doJSON(t, client, http.MethodPost, app.URL+"/api/v1/auth/login", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	return client
}

func TestEventLifecycle(t *testing.T) {
	app, store := newTestServer(t)
	admin := loginAs(t, app, store, model.KindAdmin, "boss@x.com", "admin-pass")
	user := loginAs(t, app, store, model.KindUser, "jane@x.com", "secret1")

	eventBody := map[string]string{
		"title":     "Hackathon",
		"location":  "Pune",
		"startDate": "2026-10-01T09:00:00Z",
		"endDate":   "2026-10-02T18:00:00Z",
	}

	// Only admins may manage events.
	resp := doJSON(t, user, http.MethodPost, app.URL+"/api/v1/events/", eventBody)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, admin, http.MethodPost, app.URL+"/api/v1/events/", eventBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var event struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &event)
	require.NotEmpty(t, event.ID)

	// Listing is public.
	resp = doJSON(t, newClient(t), http.MethodGet, app.URL+"/api/v1/events/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var events []struct {
		Title string `json:"title"`
	}
	decodeBody(t, resp, &events)
	require.Len(t, events, 1)
	require.Equal(t, "Hackathon", events[0].Title)

	applicationBody := map[string]string{
		"studentName":  "Jane Doe",
		"phoneNumber":  "9876543210",
		"college":      "COEP",
		"yearOfStudy":  "3rd Year",
		"fieldOfStudy": "IT",
	}
	resp = doJSON(t, user, http.MethodPost, app.URL+"/api/v1/events/"+event.ID+"/applications", applicationBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var application struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeBody(t, resp, &application)
	require.Equal(t, model.StatusApplied, application.Status)

	// One application per user per event.
	resp = doJSON(t, user, http.MethodPost, app.URL+"/api/v1/events/"+event.ID+"/applications", applicationBody)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Applying to a missing event is a 404.
	resp = doJSON(t, user, http.MethodPost, app.URL+"/api/v1/events/missing/applications", applicationBody)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, admin, http.MethodPatch, app.URL+"/api/v1/applications/"+application.ID, map[string]string{"status": "accepted"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, admin, http.MethodPatch, app.URL+"/api/v1/applications/"+application.ID, map[string]string{"status": "nonsense"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, user, http.MethodGet, app.URL+"/api/v1/me/applications", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mine []struct {
		Status string `json:"status"`
	}
	decodeBody(t, resp, &mine)
	require.Len(t, mine, 1)
	require.Equal(t, model.StatusAccepted, mine[0].Status)

	resp = doJSON(t, admin, http.MethodDelete, app.URL+"/api/v1/events/"+event.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = doJSON(t, admin, http.MethodDelete, app.URL+"/api/v1/events/"+event.ID, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestOAuthRoutesWithoutConfig(t *testing.T) {
	app, _ := newTestServer(t)
	client := newClient(t)

	// Without Google credentials the service degrades to password-only.
	resp := doJSON(t, client, http.MethodGet, app.URL+"/api/v1/auth/google", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
	resp = doJSON(t, client, http.MethodGet, app.URL+"/api/v1/auth/google/callback", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestOAuthCreatedAccountCannotPasswordLogin(t *testing.T) {
	app, store := newTestServer(t)
	client := newClient(t)

	resolver := identity.NewResolver(store)
	ident, err := resolver.LinkOrCreate(context.Background(), identity.Profile{
		Subject: "goog-42", Name: "Jane D", Email: "jane@x.com",
	})
	require.NoError(t, err)
	require.Empty(t, ident.PasswordHash)
	require.Len(t, store.Identities(), 1)

	resp := doJSON(t, client, http.MethodPost, app.URL+"/api/v1/auth/login", map[string]string{
		"email": "jane@x.com", "password": "anything",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}
