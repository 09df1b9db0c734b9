package cli

import (
	"time"

	"github.com/ksyq12/omero-certificates/internal/certs"
	"github.com/ksyq12/omero-certificates/internal/config"
	"github.com/ksyq12/omero-certificates/internal/errors"
	"github.com/ksyq12/omero-certificates/internal/output"
	"github.com/spf13/cobra"
)

var (
	createBackend string
	createDays    int
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Configure OMERO.server and create its certificates",
	Long: `Fill in missing certificate settings in the server configuration, then
create the private key, self-signed certificate and PKCS#12 bundle.

Settings that already have a value are never changed. An existing private
key is reused; the certificate and bundle are recreated on every run.

The bundle uses 3DES encryption with a SHA-1 MAC so that older OpenSSL
releases, macOS and Windows can read it. Protect it with file permissions.

Examples:
  omero-certificates create --omerodir /opt/omero/server/OMERO.server
  OMERODIR=/opt/omero/server/OMERO.server omero-certificates create
  omero-certificates create --backend openssl --json`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createBackend, "backend", "", "Cryptographic backend: native or openssl (default from settings)")
	createCmd.Flags().IntVar(&createDays, "days", 0, "Certificate validity in days (default from settings)")
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(createBackend, createDays)
	if err != nil {
		return err
	}

	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	resolved, err := config.Reconcile(store)
	if err != nil {
		return err
	}

	backend, err := deps.BackendFactory.Create(settings.Backend, settings, deps.Executor)
	if err != nil {
		return errors.Backend("failed to initialise backend "+settings.Backend, err)
	}

	summary, err := certs.Provision(resolved,
		certs.WithBackend(backend),
		certs.WithValidity(time.Duration(settings.ValidityDays)*24*time.Hour),
	)
	if err != nil {
		return err
	}

	if err := outputResult(summary, "%s", summary); err != nil || jsonOutput {
		return err
	}
	output.Info("Subject %s, valid until %s", summary.Subject, summary.NotAfter.Format("2006-01-02"))
	if summary.KeyReused {
		output.Info("Reused existing private key %s", summary.Paths.Key)
	}
	return nil
}
