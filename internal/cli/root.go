package cli

import (
	"os"

	"github.com/ksyq12/omero-certificates/internal/errors"
	"github.com/ksyq12/omero-certificates/internal/logger"
	"github.com/spf13/cobra"
)

var (
	omeroDir   string
	jsonOutput bool
	verbose    bool
	quiet      bool
	version    = "dev"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "omero-certificates",
	Short: "Self-signed certificates for OMERO.server",
	Long: `omero-certificates configures OMERO.server for TLS and creates the
certificates it needs.

It fills in any missing omero.certificates.* and omero.glacier2.IceSSL.*
settings in etc/grid/config.xml, then writes a private key, a self-signed
certificate and a PKCS#12 bundle to the certificate directory. An existing
private key is always reused.

The server directory is taken from --omerodir or the OMERODIR environment
variable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	// Initialize logger based on verbosity flags (parsed by cobra)
	cobra.OnInitialize(func() {
		logger.Init(verbose, quiet)
	})

	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

// reportError logs a failed command. Certificate errors carry their code
// and the setting or file involved as fields.
func reportError(err error) {
	var certErr *errors.CertError
	if !errors.As(err, &certErr) {
		logger.LogError(err, "omero-certificates failed")
		return
	}
	fields := map[string]interface{}{"code": certErr.Code}
	if certErr.Key != "" {
		fields["setting"] = certErr.Key
	}
	if certErr.Path != "" {
		fields["path"] = certErr.Path
	}
	logger.ErrorFields(err.Error(), fields)
}

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&omeroDir, "omerodir", "", "OMERO.server directory (default $OMERODIR)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging for debugging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")
}
