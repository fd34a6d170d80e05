package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datasud/idgo/internal/catalogsync/config"
	"github.com/datasud/idgo/internal/catalogsync/db"
	"github.com/datasud/idgo/internal/catalogsync/refdata"
)

func newLoadCmd() *cobra.Command {
	var file string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "load -f FILE",
		Short: "Load reference data into the local store",
		Long: `Loads licenses, categories, data types, supports, coordinate systems and
resource formats from a multi-document YAML file. Every document names its
kind and lists its items. {{ .ENV.VAR }} placeholders are expanded first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("unable to read %s: %w", file, err)
			}
			set, err := readRefData(raw)
			if err != nil {
				return err
			}
			if !dryRun {
				db.Init(config.Config().DSN())
				err = withStore(cmd.Context(), func(ctx context.Context, st db.Database) error {
					if aerr := refdata.Apply(ctx, st, set); aerr != nil {
						return aerr
					}
					return nil
				})
				if err != nil {
					return err
				}
			}
			printLoadSummary(set, dryRun)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "filename", "f", "", "Reference data file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Check the file without writing anything")
	cmd.MarkFlagRequired("filename")
	return cmd
}

func readRefData(raw []byte) (*refdata.Set, error) {
	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, err
	}
	return refdata.Parse(expanded)
}

func printLoadSummary(set *refdata.Set, dryRun bool) {
	counts := map[string]int{
		string(refdata.KindLicense):        len(set.Licenses),
		string(refdata.KindCategory):       len(set.Categories),
		string(refdata.KindDataType):       len(set.DataTypes),
		string(refdata.KindSupport):        len(set.Supports),
		string(refdata.KindSupportedCrs):   len(set.SupportedCrs),
		string(refdata.KindResourceFormat): len(set.ResourceFormats),
	}
	if jsonOutput {
		printJSON(map[string]any{"dry_run": dryRun, "items": counts})
		return
	}
	verb := "loaded"
	if dryRun {
		verb = "checked"
	}
	okLabel.Printf("%d items %s\n", set.Len(), verb)
	for _, kind := range refdata.Kinds {
		if n := counts[string(kind)]; n > 0 {
			fmt.Printf("  %-16s %d\n", kind, n)
		}
	}
}
