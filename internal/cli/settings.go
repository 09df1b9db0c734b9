package cli

import (
	"fmt"
	"strconv"

	"github.com/ksyq12/omero-certificates/internal/config"
	"github.com/ksyq12/omero-certificates/internal/output"
	"github.com/spf13/cobra"
)

var (
	settingsBackend string
	settingsOpenSSL string
	settingsDays    int
	settingsSave    bool
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the tool settings",
	Long: `Show the settings of omero-certificates itself. These live in
~/.config/omero-certificates/config.yaml, never in the server configuration.

Pass --save to persist the given values.

Examples:
  omero-certificates settings
  omero-certificates settings --backend openssl --openssl /usr/local/bin/openssl --save
  omero-certificates settings --days 730 --save`,
	Args: cobra.NoArgs,
	RunE: runSettings,
}

func init() {
	settingsCmd.Flags().StringVar(&settingsBackend, "backend", "", "Default backend: native or openssl")
	settingsCmd.Flags().StringVar(&settingsOpenSSL, "openssl", "", "Path to the openssl binary")
	settingsCmd.Flags().IntVar(&settingsDays, "days", 0, "Default certificate validity in days")
	settingsCmd.Flags().BoolVar(&settingsSave, "save", false, "Persist the settings")
	rootCmd.AddCommand(settingsCmd)
}

func runSettings(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(settingsBackend, settingsDays)
	if err != nil {
		return err
	}
	if settingsOpenSSL != "" {
		settings.OpenSSL = settingsOpenSSL
	}

	if settingsSave {
		if err := deps.SettingsLoader.Save(settings); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
	}

	if jsonOutput {
		return output.JSON(settings)
	}

	output.Settings(settingsMap(settings))
	if settingsSave {
		output.Success("Settings saved")
	}
	return nil
}

func settingsMap(s *config.Settings) map[string]string {
	openssl := s.OpenSSL
	if openssl == "" {
		openssl = "openssl (from PATH)"
	}
	return map[string]string{
		"backend":       s.Backend,
		"openssl":       openssl,
		"validity_days": strconv.Itoa(s.ValidityDays),
	}
}
