package models

import (
	"errors"
	"time"
)

var ErrMissingSpotifyID = errors.New("spotify id is required")

// Credential holds the tokens issued to a Spotify user by one authorization.
type Credential struct {
	id           string
	sequence     int
	spotifyID    string
	accessToken  string
	refreshToken string
	createdAt    time.Time
}

// NewCredential creates a Credential stamped with the current time.
func NewCredential(spotifyID, accessToken, refreshToken string) *Credential {
	return &Credential{
		spotifyID:    spotifyID,
		accessToken:  accessToken,
		refreshToken: refreshToken,
		createdAt:    time.Now().UTC(),
	}
}

func (c *Credential) ID() string { return c.id }
func (c *Credential) Sequence() int { return c.sequence }
func (c *Credential) SpotifyID() string { return c.spotifyID }
func (c *Credential) AccessToken() string { return c.accessToken }
func (c *Credential) RefreshToken() string { return c.refreshToken }
func (c *Credential) CreatedAt() time.Time { return c.createdAt }
func (c *Credential) SetID(id string) { c.id = id }
func (c *Credential) SetSequence(seq int) { c.sequence = seq }
func (c *Credential) SetCreatedAt(t time.Time) { c.createdAt = t }

// Validate checks that the credential is keyed to a Spotify user.
func (c *Credential) Validate() error {
	if c.spotifyID == "" {
		return ErrMissingSpotifyID
	}
	return nil
}

// CredentialView is the JSON shape used when listing credentials.
type CredentialView struct {
	ID           string    `json:"id"`
	Sequence     int       `json:"sequence"`
	SpotifyID    string    `json:"spotify_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	CreatedAt    time.Time `json:"created_at"`
}

// View returns a serializable copy of c.
func (c *Credential) View() CredentialView {
	return CredentialView{
		ID:           c.id,
		Sequence:     c.sequence,
		SpotifyID:    c.spotifyID,
		AccessToken:  c.accessToken,
		RefreshToken: c.refreshToken,
		CreatedAt:    c.createdAt,
	}
}
