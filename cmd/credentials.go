package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/spotauth/internal/models"
	"github.com/desertthunder/spotauth/internal/repositories"
	"github.com/desertthunder/spotauth/internal/shared"
	"github.com/urfave/cli/v3"
)

const tokenPreview = 12

// CredentialsList prints stored credential records. Tokens are always truncated.
func (r *Runner) CredentialsList(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := r.openDatabase(ctx, config)
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{}
	if id := cmd.String("spotify-id"); id != "" {
		criteria["spotify_id"] = id
	}
	if limit := int(cmd.Int("limit")); limit > 0 {
		criteria["limit"] = limit
	}

	credentials, err := repositories.NewCredentialRepository(db).List(ctx, criteria)
	if err != nil {
		return fmt.Errorf("failed to list credentials: %w", err)
	}

	views := make([]models.CredentialView, 0, len(credentials))
	for _, c := range credentials {
		v := c.View()
		v.AccessToken = shared.Truncate(v.AccessToken, tokenPreview)
		v.RefreshToken = shared.Truncate(v.RefreshToken, tokenPreview)
		views = append(views, v)
	}

	if cmd.Bool("json") {
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	if len(views) == 0 {
		return r.writePlain("%s\n", r.palette.Warn("No credentials stored."))
	}

	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			v.ID,
			v.SpotifyID,
			v.AccessToken,
			v.RefreshToken,
			v.CreatedAt.Local().Format(time.DateTime),
		})
	}

	r.writePlain("%s\n", r.palette.Title(fmt.Sprintf("Credentials (%d)", len(views))))
	return r.writePlain("%s\n", r.palette.Table(
		[]string{"ID", "SPOTIFY ID", "ACCESS TOKEN", "REFRESH TOKEN", "CREATED"},
		rows,
	))
}
