package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datasud/idgo/internal/catalogsync/ckan"
	"github.com/datasud/idgo/internal/catalogsync/config"
	"github.com/datasud/idgo/internal/catalogsync/db"
	"github.com/datasud/idgo/internal/catalogsync/refdata"
	"github.com/datasud/idgo/internal/common/apperrors"
)

type syncFunc func(s *refdata.Syncer, ctx context.Context) ([]refdata.Result, apperrors.Error)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Align the catalog with the reference tables of the local store",
	}
	cmd.AddCommand(
		newSyncSubCmd("categories", "Create or update a catalog group per category", (*refdata.Syncer).SyncCategories),
		newSyncSubCmd("organisations", "Push organisation descriptions to the catalog", (*refdata.Syncer).SyncOrganisations),
		newSyncSubCmd("licenses", "Copy the licenses known to the catalog into the local store", (*refdata.Syncer).SyncLicenses),
		newRemoveCategoryCmd(),
	)
	return cmd
}

// runSync runs fn with a syncer over the local store and the catalog.
func runSync(ctx context.Context, fn func(ctx context.Context, s *refdata.Syncer) error) error {
	cfg := config.Config()
	db.Init(cfg.DSN())
	catalog := ckan.NewFromConfig(&cfg.Ckan)
	return withStore(ctx, func(ctx context.Context, st db.Database) error {
		return fn(ctx, refdata.NewSyncer(st, catalog))
	})
}

func newSyncSubCmd(use, short string, sync syncFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			var results []refdata.Result
			err := runSync(cmd.Context(), func(ctx context.Context, s *refdata.Syncer) error {
				var aerr apperrors.Error
				results, aerr = sync(s, ctx)
				if aerr != nil {
					return aerr
				}
				return nil
			})
			// results gathered before a failure are still reported
			printResults(results)
			return err
		},
	}
}

func newRemoveCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-category SLUG",
		Short: "Delete a category and its catalog group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runSync(cmd.Context(), func(ctx context.Context, s *refdata.Syncer) error {
				if aerr := s.RemoveCategory(ctx, args[0]); aerr != nil {
					return aerr
				}
				return nil
			})
			if err != nil {
				return err
			}
			printResults([]refdata.Result{{Name: args[0], Outcome: refdata.Deleted}})
			return nil
		},
	}
}

func printResults(results []refdata.Result) {
	if jsonOutput {
		out := make([]map[string]string, 0, len(results))
		for _, r := range results {
			out = append(out, map[string]string{"name": r.Name, "outcome": string(r.Outcome)})
		}
		printJSON(out)
		return
	}
	for _, r := range results {
		label := okLabel
		if r.Outcome == refdata.Skipped {
			label = warnLabel
		}
		label.Printf("%-8s", r.Outcome)
		fmt.Printf(" %s\n", r.Name)
	}
}
