// Package cli implements the idgosync command line: the synchronization
// server and the maintenance commands run against the same configuration.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/datasud/idgo/internal/catalogsync/catcommon"
	"github.com/datasud/idgo/internal/catalogsync/config"
	"github.com/datasud/idgo/internal/common/logtrace"
)

var (
	// Global flags
	jsonOutput bool
	configFile string
	envFile    string
)

var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var warnLabel = color.New(color.FgYellow)
var errorLabel = color.New(color.FgRed)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "idgosync [command] [flags]",
	Short: "Publishes the datasets of the platform to the catalog and the map services",
	Long: `idgosync keeps the open data catalog and the map layer registry in step
with the local store of datasets and resources.

Examples:
  # Run the synchronization API
  idgosync serve --config /etc/idgo/idgosync.toml

  # Create the tables of the local store
  idgosync migrate

  # Load licenses, categories and formats
  idgosync load -f refdata.yaml

  # Push the categories to the catalog
  idgosync sync categories`,
	PersistentPreRunE: preRunHandlePersistents,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to the configuration file (default $IDGO_CONFIG or ./idgosync.toml)")
	rootCmd.PersistentFlags().StringVarP(&envFile, "env", "", ".env", "File the environment is completed from, if it exists")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newLoadCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	err := rootCmd.Execute()
	if err != nil {
		if errors.Is(err, ErrAlreadyHandled) {
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(map[string]string{"error": err.Error()})
		} else {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if p := os.Getenv("IDGO_CONFIG"); p != "" {
		return p
	}
	return "idgosync.toml"
}

// preRunHandlePersistents completes the environment and loads the
// configuration before any command that needs it.
func preRunHandlePersistents(cmd *cobra.Command, args []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("unable to read %s: %w", envFile, err)
		}
		logtrace.SetLevel(os.Getenv(logtrace.LogLevelEnv))
	}
	if configFile == "" {
		configFile = defaultConfigPath()
	}
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "version" {
			return nil
		}
	}
	if err := config.LoadConfig(configFile); err != nil {
		return err
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of idgosync",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(map[string]string{
					"version":        catcommon.ServerVersion,
					"api_version":    catcommon.ApiVersion,
					"config_version": config.Version,
				})
				return
			}
			cmd.Printf("idgosync %s (api %s, config format %s)\n", catcommon.ServerVersion, catcommon.ApiVersion, config.Version)
		},
	}
}

// printJSON prints data as indented JSON to stdout
func printJSON(data any) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(jsonData))
}
