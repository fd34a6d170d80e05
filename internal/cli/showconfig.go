package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/datasud/idgo/internal/catalogsync/config"
)

const redacted = "********"

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration, secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := redactConfig(*config.Config())
			if jsonOutput {
				printJSON(cfg)
				return nil
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("unable to render the configuration: %w", err)
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

// redactConfig returns a copy of cfg without its secrets.
func redactConfig(cfg config.ConfigParam) config.ConfigParam {
	for _, s := range []*string{
		&cfg.DB.Password,
		&cfg.Datagis.Password,
		&cfg.Ckan.APIKey,
		&cfg.MRA.Password,
		&cfg.Auth.JWTSecret,
	} {
		if *s != "" {
			*s = redacted
		}
	}
	return cfg
}
