package cli

import (
	"fmt"

	"github.com/ksyq12/omero-certificates/internal/certs"
	"github.com/ksyq12/omero-certificates/internal/config"
	"github.com/ksyq12/omero-certificates/internal/executor"
	"github.com/ksyq12/omero-certificates/internal/platform"
)

// Dependencies aggregates all CLI external dependencies for testability
type Dependencies struct {
	StoreOpener    StoreOpener
	SettingsLoader SettingsLoader
	BackendFactory BackendFactory
	Executor       executor.CommandExecutor
}

// StoreOpener opens the config store of an OMERO.server directory
type StoreOpener interface {
	Open(serverDir string) (config.Store, error)
}

// SettingsLoader handles loading and saving the tool settings
type SettingsLoader interface {
	Load() (*config.Settings, error)
	Save(s *config.Settings) error
}

// BackendFactory creates cryptographic backends by name
type BackendFactory interface {
	Create(name string, settings *config.Settings, exec executor.CommandExecutor) (certs.Backend, error)
}

// Package-level dependencies (can be overridden for testing)
var deps = &Dependencies{
	StoreOpener:    &realStoreOpener{},
	SettingsLoader: &realSettingsLoader{},
	BackendFactory: &realBackendFactory{},
	Executor:       executor.NewSystemExecutor(),
}

// SetDeps replaces the package dependencies (for testing)
func SetDeps(d *Dependencies) {
	deps = d
}

// GetDeps returns the current dependencies (for testing)
func GetDeps() *Dependencies {
	return deps
}

// Real implementations that delegate to existing functions

type realStoreOpener struct{}

func (r *realStoreOpener) Open(serverDir string) (config.Store, error) {
	return config.OpenXMLStore(platform.ConfigXMLPath(serverDir))
}

type realSettingsLoader struct{}

func (r *realSettingsLoader) Load() (*config.Settings, error) {
	return config.LoadSettings()
}

func (r *realSettingsLoader) Save(s *config.Settings) error {
	return s.Save()
}

type realBackendFactory struct{}

func (r *realBackendFactory) Create(name string, settings *config.Settings, exec executor.CommandExecutor) (certs.Backend, error) {
	switch name {
	case config.BackendNative:
		return certs.NewNativeBackend(), nil
	case config.BackendOpenSSL:
		backend := certs.NewOpenSSLBackend(exec, settings.OpenSSL)
		if err := backend.Available(); err != nil {
			return nil, err
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}
