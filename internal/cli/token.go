package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/datasud/idgo/internal/catalogsync/auth"
	"github.com/datasud/idgo/internal/catalogsync/config"
)

func newTokenCmd() *cobra.Command {
	var (
		username string
		admin    bool
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token --user USERNAME",
		Short: "Issue an identity token accepted by the API",
		Long: `Issues a token signed with the configured secret. Useful to call the API
from scripts when the front proxy is bypassed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Config()
			token, err := auth.CreateToken(cfg.Auth.JWTSecret, cfg.Auth.Issuer, auth.Identity{Username: username, IsAdmin: admin}, ttl)
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(map[string]string{
					"token":  token,
					"expiry": time.Now().Add(ttl).Format(time.RFC3339),
				})
				return nil
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "", "User the token names")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant administrator rights")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Validity of the token")
	cmd.MarkFlagRequired("user")
	return cmd
}
