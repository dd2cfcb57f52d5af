// Package models defines the persistent entities of the authorization service.
//
// [Credential] is the only entity: the access and refresh tokens returned by the Spotify token
// endpoint, keyed to the Spotify user id they were issued for. A record is written after every
// successful authorization and never modified; logging in twice produces two rows.
//
// Persistent entities implement [Model]; [Repository] defines the storage operations.
package models
