package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/datasud/idgo/internal/catalogsync/config"
	"github.com/datasud/idgo/internal/catalogsync/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables of the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			db.Init(config.Config().DSN())
			err := withStore(cmd.Context(), func(ctx context.Context, _ db.Database) error {
				return db.Migrate(ctx)
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(map[string]string{"result": "ok"})
			} else {
				okLabel.Println("local store is up to date")
			}
			return nil
		},
	}
}
