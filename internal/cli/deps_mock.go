package cli

import (
	"github.com/ksyq12/omero-certificates/internal/certs"
	"github.com/ksyq12/omero-certificates/internal/config"
	"github.com/ksyq12/omero-certificates/internal/executor"
)

// MockStoreOpener is a test double for StoreOpener. Every Open returns a
// view of the same MemoryStore; closing the view leaves the store usable
// so tests can inspect it afterwards.
type MockStoreOpener struct {
	Store      *config.MemoryStore
	Err        error
	OpenCalls  int
	CloseCalls int
	Dirs       []string
}

func (m *MockStoreOpener) Open(serverDir string) (config.Store, error) {
	m.OpenCalls++
	m.Dirs = append(m.Dirs, serverDir)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Store == nil {
		m.Store = config.NewMemoryStore(nil)
	}
	return &mockStoreView{MemoryStore: m.Store, opener: m}, nil
}

type mockStoreView struct {
	*config.MemoryStore
	opener *MockStoreOpener
}

func (v *mockStoreView) Close() error {
	v.opener.CloseCalls++
	return nil
}

// MockSettingsLoader is a test double for SettingsLoader
type MockSettingsLoader struct {
	Settings  *config.Settings
	LoadErr   error
	SaveErr   error
	SaveCalls int
}

func (m *MockSettingsLoader) Load() (*config.Settings, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if m.Settings == nil {
		m.Settings = config.NewSettings()
	}
	// Copy so command line overrides do not leak into the stored value
	s := *m.Settings
	return &s, nil
}

func (m *MockSettingsLoader) Save(s *config.Settings) error {
	m.SaveCalls++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if err := s.Validate(); err != nil {
		return err
	}
	m.Settings = s
	return nil
}

// MockBackendFactory is a test double for BackendFactory. It returns
// Backend when set and a native backend otherwise.
type MockBackendFactory struct {
	Backend certs.Backend
	Err     error
	Names   []string
}

func (m *MockBackendFactory) Create(name string, settings *config.Settings, exec executor.CommandExecutor) (certs.Backend, error) {
	m.Names = append(m.Names, name)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Backend != nil {
		return m.Backend, nil
	}
	return certs.NewNativeBackend(), nil
}

// MockDependenciesBuilder helps create mock dependencies for tests
type MockDependenciesBuilder struct {
	deps *Dependencies
}

// NewMockDeps creates a new MockDependenciesBuilder with sensible defaults
func NewMockDeps() *MockDependenciesBuilder {
	return &MockDependenciesBuilder{
		deps: &Dependencies{
			StoreOpener:    &MockStoreOpener{Store: config.NewMemoryStore(nil)},
			SettingsLoader: &MockSettingsLoader{Settings: config.NewSettings()},
			BackendFactory: &MockBackendFactory{},
			Executor:       &executor.MockExecutor{},
		},
	}
}

// WithStore sets the config store returned by the opener
func (b *MockDependenciesBuilder) WithStore(store *config.MemoryStore) *MockDependenciesBuilder {
	b.deps.StoreOpener = &MockStoreOpener{Store: store}
	return b
}

// WithStoreOpener sets a custom store opener
func (b *MockDependenciesBuilder) WithStoreOpener(opener StoreOpener) *MockDependenciesBuilder {
	b.deps.StoreOpener = opener
	return b
}

// WithSettings sets the settings for the mock
func (b *MockDependenciesBuilder) WithSettings(s *config.Settings) *MockDependenciesBuilder {
	b.deps.SettingsLoader = &MockSettingsLoader{Settings: s}
	return b
}

// WithSettingsLoader sets a custom settings loader
func (b *MockDependenciesBuilder) WithSettingsLoader(loader SettingsLoader) *MockDependenciesBuilder {
	b.deps.SettingsLoader = loader
	return b
}

// WithBackendFactory sets a custom backend factory
func (b *MockDependenciesBuilder) WithBackendFactory(factory BackendFactory) *MockDependenciesBuilder {
	b.deps.BackendFactory = factory
	return b
}

// WithExecutor sets the command executor
func (b *MockDependenciesBuilder) WithExecutor(exec executor.CommandExecutor) *MockDependenciesBuilder {
	b.deps.Executor = exec
	return b
}

// Build returns the configured Dependencies
func (b *MockDependenciesBuilder) Build() *Dependencies {
	return b.deps
}

// TestHelper provides utilities for CLI tests
type TestHelper struct {
	T interface {
		Helper()
		Cleanup(func())
	}
	OldDeps      *Dependencies
	Store        *config.MemoryStore
	StoreOpener  *MockStoreOpener
	Settings     *MockSettingsLoader
	Backends     *MockBackendFactory
	MockExecutor *executor.MockExecutor
}

// NewTestHelper installs mock dependencies backed by an in-memory config
// store whose omero.data.dir is dataDir. Package flag variables are reset
// and restored on cleanup.
func NewTestHelper(t interface {
	Helper()
	Cleanup(func())
}, dataDir string) *TestHelper {
	t.Helper()

	initial := map[string]string{}
	if dataDir != "" {
		initial[config.KeyDataDir] = dataDir
	}
	store := config.NewMemoryStore(initial)

	helper := &TestHelper{
		T:            t,
		OldDeps:      deps,
		Store:        store,
		StoreOpener:  &MockStoreOpener{Store: store},
		Settings:     &MockSettingsLoader{Settings: config.NewSettings()},
		Backends:     &MockBackendFactory{},
		MockExecutor: &executor.MockExecutor{},
	}

	deps = NewMockDeps().
		WithStoreOpener(helper.StoreOpener).
		WithSettingsLoader(helper.Settings).
		WithBackendFactory(helper.Backends).
		WithExecutor(helper.MockExecutor).
		Build()

	oldFlags := saveFlags()
	resetFlags()

	t.Cleanup(func() {
		deps = helper.OldDeps
		oldFlags.restore()
	})

	return helper
}

// Config returns a copy of the mock config store contents
func (h *TestHelper) Config() map[string]string {
	m, _ := h.Store.AsMap()
	return m
}

type flagState struct {
	omeroDir          string
	createBackend     string
	createDays        int
	settingsBackend   string
	settingsOpenSSL   string
	settingsDays      int
	settingsSave      bool
	jsonOutput        bool
	configDryRun      bool
	configShowSecrets bool
}

func saveFlags() flagState {
	return flagState{
		omeroDir:          omeroDir,
		createBackend:     createBackend,
		settingsBackend:   settingsBackend,
		settingsOpenSSL:   settingsOpenSSL,
		createDays:        createDays,
		settingsDays:      settingsDays,
		jsonOutput:        jsonOutput,
		configDryRun:      configDryRun,
		configShowSecrets: configShowSecrets,
		settingsSave:      settingsSave,
	}
}

func (f flagState) restore() {
	omeroDir = f.omeroDir
	createBackend = f.createBackend
	settingsBackend = f.settingsBackend
	settingsOpenSSL = f.settingsOpenSSL
	createDays = f.createDays
	settingsDays = f.settingsDays
	jsonOutput = f.jsonOutput
	configDryRun = f.configDryRun
	configShowSecrets = f.configShowSecrets
	settingsSave = f.settingsSave
}

func resetFlags() {
	flagState{}.restore()
}
