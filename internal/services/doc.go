// Package services implements the [OAuthService] interface for Spotify.
//
// # Spotify Implementation
//
// [SpotifyService] wraps an [oauth2.Config] for the Spotify Accounts service:
//   - [SpotifyService.AuthURL] builds the authorize URL (response_type=code, client_id, scope, redirect_uri, state)
//   - [SpotifyService.Exchange] trades a code for tokens, sending client credentials in a Basic header
//   - [SpotifyService.Refresh] runs the refresh_token grant
//   - [SpotifyService.UserProfile] calls GET /v1/me with the bearer token
//
// Endpoint URLs can be overridden through [SpotifyOptions] so tests can point the service at an
// httptest server.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrMissingCredentials] : client id or secret missing
//   - [shared.ErrTokenExchange] : code exchange rejected or unreachable
//   - [shared.ErrRefreshFailed] : refresh grant rejected or unreachable
//   - [shared.ErrNoRefreshToken] : empty refresh token
//   - [shared.ErrAPIRequest] : Web API request failed
package services
