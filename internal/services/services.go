// package services defines the OAuthService interface for the Spotify Accounts and Web APIs
package services

import (
	"context"

	"golang.org/x/oauth2"
)

// OAuthService defines the operations the authorization endpoints need from an OAuth2 provider.
type OAuthService interface {
	// AuthURL returns the URL the browser is redirected to, carrying state.
	AuthURL(state string) string

	// Exchange trades an authorization code for an access/refresh token pair.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// Refresh mints a new access token from a refresh token.
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)

	// UserProfile fetches the profile of the user the token was issued to.
	UserProfile(ctx context.Context, token *oauth2.Token) (*SpotifyUser, error)

	// Name returns the name of the provider (e.g., "Spotify")
	Name() string
}
