// Package authcmder provides the signin and signout commands for
// managing the local session.
package authcmder

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rotaworks/rotachat/pkg/cliui"
	"github.com/rotaworks/rotachat/pkg/dotdir"
	"github.com/rotaworks/rotachat/pkg/history"
)

const signinLongDesc string = `Save an access token for authenticated chat.

The token is presented to the relay as a bearer token on every
generation request and stored alongside the selected model in the
.rotachat session file.

Examples:
  rotachat signin --token sk-abc123
  rotachat signin --token sk-abc123 --user alice`

func NewSigninCmd() *cobra.Command {
	var token, user string

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Save an access token for authenticated chat",
		Long:  signinLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			ddm := dotdir.NewManager()
			session, err := ddm.LoadSessionState(configDir)
			if err != nil {
				return fmt.Errorf("loading session: %w", err)
			}
			if session == nil {
				session = &dotdir.SessionState{}
			}
			session.AccessToken = token
			session.UserID = user

			if err := ddm.SaveSession(session, configDir); err != nil {
				return fmt.Errorf("saving session: %w", err)
			}

			fmt.Printf("\n  %s Signed in\n\n", cliui.SuccessMark)
			return nil
		},
	}

	cmd.Flags().StringVarP(&token, "token", "t", "", "Access token to present to the relay")
	cmd.Flags().StringVarP(&user, "user", "u", "", "User ID the token belongs to")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

const signoutLongDesc string = `Clear the local session and all cached conversations.

The access token is removed and every model's conversation history is
deleted from the local database.`

func NewSignoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signout",
		Short: "Clear the session and cached conversations",
		Long:  signoutLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			ctx := context.Background()

			ddm := dotdir.NewManager()
			if err := ddm.ClearSession(configDir); err != nil {
				return fmt.Errorf("clearing session: %w", err)
			}

			// Conversations are tied to the signed-in user; drop them all.
			dir, err := ddm.Target(configDir)
			if err != nil {
				return fmt.Errorf("resolving history path: %w", err)
			}
			store, err := history.Open(ctx, filepath.Join(dir, "history.db"))
			if err != nil {
				return fmt.Errorf("opening history: %w", err)
			}
			defer store.Close()

			if err := store.ClearAll(ctx); err != nil {
				return fmt.Errorf("clearing history: %w", err)
			}

			fmt.Printf("\n  %s Signed out\n\n", cliui.SuccessMark)
			return nil
		},
	}

	return cmd
}
