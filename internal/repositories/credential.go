package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotauth/internal/models"
	"github.com/desertthunder/spotauth/internal/shared"
)

// CredentialRepository implements [models.Repository] for [models.Credential] persistence.
type CredentialRepository struct {
	db     *sql.DB
	driver string
}

// NewCredentialRepository creates a new [CredentialRepository] with the given database connection
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db, driver: shared.DriverOf(db)}
}

func (r *CredentialRepository) q(query string) string {
	return shared.Rebind(r.driver, query)
}

// Create inserts a new credential with generated ID and sequence.
//
// Credentials for the same Spotify user are not deduplicated.
func (r *CredentialRepository) Create(ctx context.Context, credential *models.Credential) error {
	if err := credential.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "credentials")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO credentials (id, sequence, spotify_id, access_token, refresh_token, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.q(query),
		id,
		sequence,
		credential.SpotifyID(),
		credential.AccessToken(),
		credential.RefreshToken(),
		credential.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}

	credential.SetID(id)
	credential.SetSequence(sequence)
	return nil
}

// Get retrieves a credential by ID
func (r *CredentialRepository) Get(ctx context.Context, id string) (*models.Credential, error) {
	query := `
		SELECT id, sequence, spotify_id, access_token, refresh_token, created_at
		FROM credentials
		WHERE id = ?
	`

	credential, err := scanCredential(r.db.QueryRowContext(ctx, r.q(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: credential %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}

	return credential, nil
}

// List retrieves all credentials matching the given criteria ordered by sequence.
//
// Supported criteria: "spotify_id" (string), "limit" (int).
func (r *CredentialRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Credential, error) {
	query := `
		SELECT id, sequence, spotify_id, access_token, refresh_token, created_at
		FROM credentials
		WHERE 1 = 1
	`

	args := []any{}

	if spotifyID, ok := criteria["spotify_id"].(string); ok && spotifyID != "" {
		query += " AND spotify_id = ?"
		args = append(args, spotifyID)
	}

	query += " ORDER BY sequence ASC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	var credentials []*models.Credential
	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		credentials = append(credentials, credential)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return credentials, nil
}

// Count returns the number of stored credentials.
func (r *CredentialRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM credentials").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count credentials: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCredential(s scanner) (*models.Credential, error) {
	var (
		id           string
		sequence     int
		spotifyID    string
		accessToken  sql.NullString
		refreshToken sql.NullString
		createdAt    time.Time
	)

	if err := s.Scan(&id, &sequence, &spotifyID, &accessToken, &refreshToken, &createdAt); err != nil {
		return nil, err
	}

	credential := models.NewCredential(spotifyID, accessToken.String, refreshToken.String)
	credential.SetID(id)
	credential.SetSequence(sequence)
	credential.SetCreatedAt(createdAt)
	return credential, nil
}

var _ models.Repository[*models.Credential] = (*CredentialRepository)(nil)
