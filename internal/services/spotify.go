// Spotify Accounts + Web API implementation of [OAuthService]
//
// See https://developer.spotify.com/documentation/web-api/tutorials/code-flow
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/spotauth/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	defaultRedirectURI = "http://localhost:8000/callback"
	defaultTimeout     = 15 * time.Second
)

// DefaultScopes are requested when no scopes are configured.
var DefaultScopes = []string{
	"streaming",
	"user-read-email",
	"user-read-private",
	"user-read-playback-state",
	"user-read-currently-playing",
	"user-modify-playback-state",
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Country     string `json:"country"`
	Product     string `json:"product"` // premium, free, etc.
	URI         string `json:"uri"`
}

// SpotifyOptions configures a [SpotifyService].
//
// Only ClientID and ClientSecret are required.
type SpotifyOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	// Endpoint overrides, empty for the public Spotify hosts.
	AuthURL  string
	TokenURL string
	APIURL   string

	HTTPClient *http.Client
	Timeout    time.Duration
}

// SpotifyOptionsFromConfig maps the [shared.SpotifyConfig] section onto [SpotifyOptions].
func SpotifyOptionsFromConfig(c shared.SpotifyConfig) SpotifyOptions {
	return SpotifyOptions{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURI:  c.RedirectURI,
		Scopes:       c.Scopes,
		AuthURL:      c.AuthURL,
		TokenURL:     c.TokenURL,
		APIURL:       c.APIURL,
		Timeout:      c.Timeout,
	}
}

// SpotifyService implements [OAuthService] for the Spotify Accounts service.
type SpotifyService struct {
	config     *oauth2.Config
	apiURL     string
	httpClient *http.Client
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 client credentials.
func NewSpotifyService(opts SpotifyOptions) (*SpotifyService, error) {
	if opts.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	if opts.RedirectURI == "" {
		opts.RedirectURI = defaultRedirectURI
	}
	if len(opts.Scopes) == 0 {
		opts.Scopes = DefaultScopes
	}
	if opts.AuthURL == "" {
		opts.AuthURL = spotifyAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}
	if opts.APIURL == "" {
		opts.APIURL = spotifyBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	config := &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		RedirectURL:  opts.RedirectURI,
		Scopes:       opts.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   opts.AuthURL,
			TokenURL:  opts.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	return &SpotifyService{
		config:     config,
		apiURL:     strings.TrimRight(opts.APIURL, "/"),
		httpClient: client,
	}, nil
}

// Name identifies the provider in logs.
func (s *SpotifyService) Name() string {
	return "Spotify"
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// withClient makes the oauth2 package use the service's HTTP client for token requests.
func (s *SpotifyService) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// Exchange trades an authorization code for tokens.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: %w", shared.ErrTokenExchange, shared.ErrMissingCode)
	}

	token, err := s.config.Exchange(s.withClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenExchange, describeTokenError(err))
	}

	return token, nil
}

// Refresh exchanges a refresh token for a new access token.
//
// Spotify may omit refresh_token from the response; the returned token then carries the input value.
func (s *SpotifyService) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	source := s.config.TokenSource(s.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, describeTokenError(err))
	}

	return token, nil
}

// UserProfile retrieves the profile of the user token was issued to.
func (s *SpotifyService) UserProfile(ctx context.Context, token *oauth2.Token) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, token, http.MethodGet, "/me", &user); err != nil {
		return nil, err
	}

	if user.ID == "" {
		return nil, fmt.Errorf("%w: profile response has no id", shared.ErrAPIRequest)
	}
	return &user, nil
}

// doRequest performs an authenticated HTTP request to the Spotify Web API.
func (s *SpotifyService) doRequest(ctx context.Context, token *oauth2.Token, method, endpoint string, result any) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: missing access token", shared.ErrAPIRequest)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.apiURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: spotify status %d: %s", shared.ErrAPIRequest, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}
	}

	return nil
}

// describeTokenError flattens an [oauth2.RetrieveError] to its status and error code.
func describeTokenError(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		code := re.ErrorCode
		if code == "" {
			code = "unknown_error"
		}
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return fmt.Sprintf("status %d: %s", status, code)
	}
	return err.Error()
}

var _ OAuthService = (*SpotifyService)(nil)
