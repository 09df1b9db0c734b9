package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/ksyq12/omero-certificates/internal/certs"
	"github.com/ksyq12/omero-certificates/internal/config"
	"github.com/ksyq12/omero-certificates/internal/executor"
	"github.com/ksyq12/omero-certificates/internal/output"
	"github.com/ksyq12/omero-certificates/internal/platform"
	"github.com/spf13/cobra"
)

// expiryWarning is how close to expiry a certificate is reported.
const expiryWarning = 30 * 24 * time.Hour

// now is the clock used for expiry checks (can be replaced for testing)
var now = time.Now

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the certificate setup and diagnose issues",
	Long: `Run diagnostic checks without changing anything.

Checks:
  - openssl installation (required by the openssl backend)
  - Server directory and configuration file
  - Configuration schema version and owner syntax
  - Private key, certificate expiry and bundle password

Examples:
  omero-certificates doctor
  omero-certificates doctor --json`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// Check statuses
const (
	statusSuccess = "success"
	statusWarning = "warning"
	statusError   = "error"
)

// CheckResult represents a single diagnostic check result
type CheckResult struct {
	Status  string `json:"status"` // "success", "warning", "error"
	Message string `json:"message"`
}

// DoctorReport contains all diagnostic results
type DoctorReport struct {
	System        []CheckResult `json:"system"`
	Configuration []CheckResult `json:"configuration"`
	Certificates  []CheckResult `json:"certificates"`
}

// HasErrors reports whether any check failed
func (r *DoctorReport) HasErrors() bool {
	for _, group := range [][]CheckResult{r.System, r.Configuration, r.Certificates} {
		for _, c := range group {
			if c.Status == statusError {
				return true
			}
		}
	}
	return false
}

func runDoctor(cmd *cobra.Command, args []string) error {
	settings, err := deps.SettingsLoader.Load()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	report := &DoctorReport{}
	report.System = checkSystem(deps.Executor, settings)

	var resolved map[string]string
	report.Configuration, resolved = checkConfiguration(omeroDir)
	if resolved != nil {
		report.Certificates = checkCertificates(resolved)
	}

	if jsonOutput {
		if err := output.JSON(report); err != nil {
			return err
		}
	} else {
		displayDoctorResults(report)
	}

	if report.HasErrors() {
		return fmt.Errorf("doctor found problems")
	}
	return nil
}

func checkSystem(exec executor.CommandExecutor, settings *config.Settings) []CheckResult {
	results := []CheckResult{{
		Status:  statusSuccess,
		Message: fmt.Sprintf("Platform %s, backend %s", platform.Platform(), settings.Backend),
	}}

	openssl := certs.NewOpenSSLBackend(exec, settings.OpenSSL)
	if err := openssl.Available(); err != nil {
		status := statusWarning
		suffix := " (optional)"
		if settings.Backend == config.BackendOpenSSL {
			status = statusError
			suffix = ""
		}
		return append(results, CheckResult{
			Status:  status,
			Message: fmt.Sprintf("openssl not installed%s", suffix),
		})
	}

	ver, err := openssl.Version()
	if err != nil {
		ver = "unknown version"
	}
	return append(results, CheckResult{
		Status:  statusSuccess,
		Message: fmt.Sprintf("openssl installed (%s)", ver),
	})
}

// checkConfiguration inspects the config store without modifying it. It
// returns the settings create would use, or nil when they cannot be
// determined.
func checkConfiguration(dir string) ([]CheckResult, map[string]string) {
	results := []CheckResult{}

	serverDir, err := platform.ResolveServerDir(dir)
	if err != nil {
		return append(results, CheckResult{Status: statusError, Message: err.Error()}), nil
	}
	results = append(results, CheckResult{
		Status:  statusSuccess,
		Message: fmt.Sprintf("Server directory %s", serverDir),
	})

	// Opening a missing store would create it.
	if !platform.HasConfigXML(serverDir) {
		return append(results, CheckResult{
			Status:  statusError,
			Message: fmt.Sprintf("Config file not found (%s)", platform.ConfigXMLPath(serverDir)),
		}), nil
	}

	store, err := deps.StoreOpener.Open(serverDir)
	if err != nil {
		return append(results, CheckResult{Status: statusError, Message: err.Error()}), nil
	}
	defer store.Close()

	schema := store.Version()
	if err := config.CheckSchema(schema); err != nil {
		return append(results, CheckResult{Status: statusError, Message: err.Error()}), nil
	}
	if schema == "" {
		schema = "unversioned"
	}
	results = append(results, CheckResult{
		Status:  statusSuccess,
		Message: fmt.Sprintf("Config schema %s supported", schema),
	})

	current, err := store.AsMap()
	if err != nil {
		return append(results, CheckResult{Status: statusError, Message: err.Error()}), nil
	}
	missing := 0
	for _, key := range config.RecognizedKeys() {
		if current[key] == "" {
			missing++
		}
	}
	if missing > 0 {
		results = append(results, CheckResult{
			Status:  statusWarning,
			Message: fmt.Sprintf("%d certificate settings unset (create will set defaults)", missing),
		})
	} else {
		results = append(results, CheckResult{
			Status:  statusSuccess,
			Message: "All certificate settings present",
		})
	}

	resolved, err := previewReconcile(store)
	if err != nil {
		return append(results, CheckResult{Status: statusError, Message: err.Error()}), nil
	}

	if subject, err := certs.ParseSubject(resolved[config.KeyOwner], resolved[config.KeyCommonName]); err != nil {
		results = append(results, CheckResult{Status: statusError, Message: err.Error()})
	} else {
		results = append(results, CheckResult{
			Status:  statusSuccess,
			Message: fmt.Sprintf("Subject %s", subject),
		})
	}

	return results, resolved
}

func checkCertificates(resolved map[string]string) []CheckResult {
	results := []CheckResult{}

	paths, err := certs.ResolvePaths(resolved)
	if err != nil {
		return append(results, CheckResult{Status: statusError, Message: err.Error()})
	}

	if _, err := os.Stat(paths.Key); os.IsNotExist(err) {
		return append(results, CheckResult{
			Status:  statusWarning,
			Message: fmt.Sprintf("No private key yet (%s), run create", paths.Key),
		})
	}
	key, err := certs.LoadKey(paths.Key)
	if err != nil {
		return append(results, CheckResult{Status: statusError, Message: err.Error()})
	}
	results = append(results, CheckResult{
		Status:  statusSuccess,
		Message: fmt.Sprintf("Private key OK (RSA %d bits)", key.N.BitLen()),
	})

	cert, err := certs.ReadCertificate(paths.Certificate)
	if err != nil {
		results = append(results, CheckResult{
			Status:  statusError,
			Message: fmt.Sprintf("Certificate unreadable (%s): %v", paths.Certificate, err),
		})
	} else {
		results = append(results, checkExpiry(cert.NotAfter))
		if !key.PublicKey.Equal(cert.PublicKey) {
			results = append(results, CheckResult{
				Status:  statusError,
				Message: "Certificate does not match the private key, run create",
			})
		}
	}

	if _, _, err := certs.OpenBundle(paths.Bundle, resolved[config.KeyPassword]); err != nil {
		results = append(results, CheckResult{
			Status:  statusError,
			Message: fmt.Sprintf("Bundle cannot be opened with the configured password (%s)", paths.Bundle),
		})
	} else {
		results = append(results, CheckResult{
			Status:  statusSuccess,
			Message: "Bundle opens with the configured password",
		})
	}

	return results
}

func checkExpiry(notAfter time.Time) CheckResult {
	remaining := notAfter.Sub(now())
	expiry := notAfter.Format("2006-01-02")
	switch {
	case remaining <= 0:
		return CheckResult{Status: statusError, Message: fmt.Sprintf("Certificate expired on %s, run create", expiry)}
	case remaining < expiryWarning:
		return CheckResult{Status: statusWarning, Message: fmt.Sprintf("Certificate expires on %s, run create soon", expiry)}
	default:
		return CheckResult{Status: statusSuccess, Message: fmt.Sprintf("Certificate valid until %s", expiry)}
	}
}

func displayDoctorResults(report *DoctorReport) {
	output.Print("Checking system...")
	for _, check := range report.System {
		displayCheck(check)
	}
	output.Print("")

	output.Print("Checking configuration...")
	for _, check := range report.Configuration {
		displayCheck(check)
	}
	output.Print("")

	if len(report.Certificates) > 0 {
		output.Print("Checking certificates...")
		for _, check := range report.Certificates {
			displayCheck(check)
		}
	}
}

func displayCheck(check CheckResult) {
	switch check.Status {
	case statusSuccess:
		output.Success("%s", check.Message)
	case statusWarning:
		output.Warn("%s", check.Message)
	case statusError:
		output.Error("%s", check.Message)
	}
}
