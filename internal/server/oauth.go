package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotauth/internal/metrics"
	"github.com/desertthunder/spotauth/internal/models"
	"github.com/desertthunder/spotauth/internal/services"
	"github.com/desertthunder/spotauth/internal/shared"
	"golang.org/x/oauth2"
)

// StateCookieName is the cookie holding the anti-forgery state between /login and /callback.
const StateCookieName = "spotify_auth_state"

const defaultStateTTL = 10 * time.Minute

// CredentialStore persists credential records.
type CredentialStore interface {
	Create(ctx context.Context, credential *models.Credential) error
}

// AuthHandlerConfig contains optional [AuthHandler] settings.
type AuthHandlerConfig struct {
	StateTTL     time.Duration
	CookieSecure bool
	Logger       *log.Logger
	Metrics      metrics.Recorder
}

// AuthHandler serves the authorization code flow: /login, /callback and /refresh_token.
type AuthHandler struct {
	service services.OAuthService
	store   CredentialStore
	config  AuthHandlerConfig
	logger  *log.Logger
	metrics metrics.Recorder
}

// NewAuthHandler creates an [AuthHandler] backed by service and store.
func NewAuthHandler(service services.OAuthService, store CredentialStore, config AuthHandlerConfig) *AuthHandler {
	if config.StateTTL <= 0 {
		config.StateTTL = defaultStateTTL
	}
	if config.Logger == nil {
		config.Logger = shared.NewLogger(nil)
	}
	if config.Metrics == nil {
		config.Metrics = metrics.Nop{}
	}

	return &AuthHandler{
		service: service,
		store:   store,
		config:  config,
		logger:  shared.WithLogger(config.Logger, "handler", "auth", "provider", service.Name()),
		metrics: config.Metrics,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *AuthHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/login", Handler: h.Login},
		{Method: http.MethodGet, Path: "/callback", Handler: h.Callback},
		{Method: http.MethodGet, Path: "/refresh_token", Handler: h.RefreshToken},
	}
}

// Login stores a fresh state in a cookie and redirects to the authorization endpoint.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := shared.GenerateState()
	if err != nil {
		h.logger.Error("failed to generate state", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(h.config.StateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	h.metrics.RecordLogin()
	http.Redirect(w, r, h.service.AuthURL(state), http.StatusFound)
}

// verifyState compares the state parameter against the state cookie set by /login.
func verifyState(r *http.Request) error {
	state := r.URL.Query().Get("state")
	if state == "" {
		return fmt.Errorf("%w: missing state parameter", shared.ErrStateMismatch)
	}

	cookie, err := r.Cookie(StateCookieName)
	if err != nil {
		return fmt.Errorf("%w: missing state cookie", shared.ErrStateMismatch)
	}
	if cookie.Value != state {
		return fmt.Errorf("%w: state does not match cookie", shared.ErrStateMismatch)
	}

	return nil
}

// Callback validates the state, exchanges the code and hands the tokens to the browser in the URL fragment.
//
// The credential record is written before the redirect. A failed profile lookup or insert is logged but the
// browser still receives the tokens.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if err := verifyState(r); err != nil {
		h.logger.Warn("callback rejected", "error", err)
		h.metrics.RecordCallback(metrics.OutcomeStateMismatch)
		redirectFragment(w, url.Values{"error": {"state_mismatch"}})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	if providerErr := query.Get("error"); providerErr != "" {
		h.logger.Warn("authorization denied", "error", providerErr)
		h.metrics.RecordCallback(metrics.OutcomeInvalidToken)
		redirectFragment(w, url.Values{"error": {"invalid_token"}})
		return
	}

	token, err := h.service.Exchange(r.Context(), query.Get("code"))
	if err != nil {
		h.logger.Warn("code exchange failed", "error", err)
		h.metrics.RecordCallback(metrics.OutcomeInvalidToken)
		redirectFragment(w, url.Values{"error": {"invalid_token"}})
		return
	}

	h.metrics.RecordCallback(h.persist(context.WithoutCancel(r.Context()), token))

	redirectFragment(w, url.Values{
		"access_token":  {token.AccessToken},
		"refresh_token": {token.RefreshToken},
	})
}

// persist looks up the token owner and stores one credential record, returning the callback outcome.
func (h *AuthHandler) persist(ctx context.Context, token *oauth2.Token) string {
	user, err := h.service.UserProfile(ctx, token)
	if err != nil {
		h.logger.Error("failed to fetch user profile", "error", err)
		return metrics.OutcomeProfileError
	}

	credential := models.NewCredential(user.ID, token.AccessToken, token.RefreshToken)
	if err := h.store.Create(ctx, credential); err != nil {
		h.logger.Error("failed to save credential", "spotify_id", user.ID, "error", err)
		return metrics.OutcomeStoreError
	}

	h.metrics.RecordCredentialSaved()
	h.logger.Info("saved credential", "spotify_id", user.ID, "id", credential.ID())
	return metrics.OutcomeSuccess
}

// refreshResponse is the body of a successful /refresh_token call.
type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

// RefreshToken trades the refresh_token query parameter for a new access token.
//
// Failures write a status code and no body.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	refreshToken := r.URL.Query().Get("refresh_token")
	if refreshToken == "" {
		h.metrics.RecordRefresh(metrics.OutcomeMissingToken)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	token, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		h.logger.Warn("token refresh failed", "error", err)
		h.metrics.RecordRefresh(metrics.OutcomeUpstreamError)
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	h.metrics.RecordRefresh(metrics.OutcomeSuccess)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(refreshResponse{AccessToken: token.AccessToken}); err != nil {
		h.logger.Error("failed to write refresh response", "error", err)
	}
}

// redirectFragment sends a 302 to "/#" followed by the form-encoded values.
//
// The Location header is set directly because [http.Redirect] would clean the path.
func redirectFragment(w http.ResponseWriter, values url.Values) {
	w.Header().Set("Location", "/#"+values.Encode())
	w.WriteHeader(http.StatusFound)
}
