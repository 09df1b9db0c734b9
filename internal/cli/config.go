package cli

import (
	"github.com/ksyq12/omero-certificates/internal/config"
	"github.com/ksyq12/omero-certificates/internal/output"
	"github.com/spf13/cobra"
)

var (
	configDryRun      bool
	configShowSecrets bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Fill in certificate settings without creating certificates",
	Long: `Set every missing certificate setting in the server configuration to its
default and print the resulting settings. Nothing is written to the
certificate directory.

With --dry-run the configuration file is left untouched and the settings
that create would use are printed instead.

Examples:
  omero-certificates config
  omero-certificates config --dry-run --json
  omero-certificates config --show-secrets`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configDryRun, "dry-run", false, "Show the resolved settings without saving them")
	configCmd.Flags().BoolVar(&configShowSecrets, "show-secrets", false, "Print the bundle password in clear text")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var resolved map[string]string
	if configDryRun {
		resolved, err = previewReconcile(store)
	} else {
		resolved, err = config.Reconcile(store)
	}
	if err != nil {
		return err
	}

	shown := displaySettings(resolved, configShowSecrets)
	if jsonOutput {
		return output.JSON(shown)
	}
	output.Settings(shown)
	return nil
}
