package cli

import (
	"fmt"

	"github.com/ksyq12/omero-certificates/internal/config"
	"github.com/ksyq12/omero-certificates/internal/errors"
	"github.com/ksyq12/omero-certificates/internal/logger"
	"github.com/ksyq12/omero-certificates/internal/output"
	"github.com/ksyq12/omero-certificates/internal/platform"
)

// secretMask replaces secret values in displayed settings.
const secretMask = "********"

// openStore resolves the server directory and opens its config store
func openStore() (config.Store, string, error) {
	serverDir, err := platform.ResolveServerDir(omeroDir)
	if err != nil {
		return nil, "", err
	}
	logger.Debug("Using OMERO.server directory %s", serverDir)

	store, err := deps.StoreOpener.Open(serverDir)
	if err != nil {
		return nil, "", err
	}
	return store, serverDir, nil
}

// loadSettings loads the tool settings and applies command line overrides
func loadSettings(backend string, days int) (*config.Settings, error) {
	settings, err := deps.SettingsLoader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if backend != "" {
		settings.Backend = backend
	}
	if days > 0 {
		settings.ValidityDays = days
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// previewReconcile returns the map Reconcile would produce for store
// without writing to it
func previewReconcile(store config.Store) (map[string]string, error) {
	current, err := store.AsMap()
	if err != nil {
		return nil, errors.Config("", "failed to read config store", err)
	}
	return config.Reconcile(config.NewMemoryStore(current))
}

// displaySettings returns a copy of m with secrets masked unless show is set
func displaySettings(m map[string]string, show bool) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if !show && config.IsSecret(k) && v != "" {
			v = secretMask
		}
		out[k] = v
	}
	return out
}

// outputResult handles JSON or human-readable output
func outputResult(data interface{}, successMsg string, args ...interface{}) error {
	if jsonOutput {
		return output.JSON(data)
	}
	output.Success(successMsg, args...)
	return nil
}
