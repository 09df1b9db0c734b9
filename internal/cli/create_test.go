package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ksyq12/omero-certificates/internal/certs"
	"github.com/ksyq12/omero-certificates/internal/config"
	"github.com/ksyq12/omero-certificates/internal/errors"
)

// serverFixture creates an OMERO.server directory and a data directory
// and installs mock dependencies rooted at them.
func serverFixture(t *testing.T) (*TestHelper, string) {
	t.Helper()
	dataDir := filepath.Join(t.TempDir(), "OMERO")
	h := NewTestHelper(t, dataDir)
	omeroDir = t.TempDir()
	return h, filepath.Join(dataDir, "certs")
}

func TestRunCreate(t *testing.T) {
	tests := []struct {
		name       string
		setupFlags func()
		setupDeps  func(*TestHelper)
		wantErr    bool
		wantCode   errors.ErrorCode
		validate   func(*testing.T, *TestHelper, string)
	}{
		{
			name: "creates certificates from scratch",
			validate: func(t *testing.T, h *TestHelper, certDir string) {
				for _, name := range []string{"server.key", "server.pem", "server.p12"} {
					if _, err := os.Stat(filepath.Join(certDir, name)); err != nil {
						t.Errorf("%s not created: %v", name, err)
					}
				}
				cfg := h.Config()
				for _, key := range config.RecognizedKeys() {
					if cfg[key] == "" {
						t.Errorf("%s not set in config", key)
					}
				}
				if cfg[config.KeyCertDir] != certDir {
					t.Errorf("cert dir = %q, want %q", cfg[config.KeyCertDir], certDir)
				}
				if len(h.Backends.Names) != 1 || h.Backends.Names[0] != config.BackendNative {
					t.Errorf("backends = %v, want [native]", h.Backends.Names)
				}
				if h.StoreOpener.CloseCalls != 1 {
					t.Errorf("store closed %d times, want 1", h.StoreOpener.CloseCalls)
				}
			},
		},
		{
			name: "backend flag overrides settings",
			setupFlags: func() {
				createBackend = config.BackendOpenSSL
			},
			validate: func(t *testing.T, h *TestHelper, certDir string) {
				if len(h.Backends.Names) != 1 || h.Backends.Names[0] != config.BackendOpenSSL {
					t.Errorf("backends = %v, want [openssl]", h.Backends.Names)
				}
			},
		},
		{
			name: "backend from settings",
			setupDeps: func(h *TestHelper) {
				h.Settings.Settings.Backend = config.BackendOpenSSL
			},
			validate: func(t *testing.T, h *TestHelper, certDir string) {
				if len(h.Backends.Names) != 1 || h.Backends.Names[0] != config.BackendOpenSSL {
					t.Errorf("backends = %v, want [openssl]", h.Backends.Names)
				}
			},
		},
		{
			name: "days flag sets validity",
			setupFlags: func() {
				createDays = 30
			},
			validate: func(t *testing.T, h *TestHelper, certDir string) {
				cert, err := certs.ReadCertificate(filepath.Join(certDir, "server.pem"))
				if err != nil {
					t.Fatalf("ReadCertificate() error = %v", err)
				}
				if got := cert.NotAfter.Sub(cert.NotBefore); got != 30*24*time.Hour {
					t.Errorf("validity = %v, want 720h", got)
				}
			},
		},
		{
			name: "operator settings are kept",
			setupDeps: func(h *TestHelper) {
				_ = h.Store.Set(config.KeyCommonName, "omero.example.org")
				_ = h.Store.Set(config.KeyPassword, "hunter2")
			},
			validate: func(t *testing.T, h *TestHelper, certDir string) {
				cfg := h.Config()
				if cfg[config.KeyCommonName] != "omero.example.org" {
					t.Errorf("commonname overwritten: %q", cfg[config.KeyCommonName])
				}
				cert, err := certs.ReadCertificate(filepath.Join(certDir, "server.pem"))
				if err != nil {
					t.Fatalf("ReadCertificate() error = %v", err)
				}
				if cert.Subject.CommonName != "omero.example.org" {
					t.Errorf("CN = %q", cert.Subject.CommonName)
				}
				if _, _, err := certs.OpenBundle(filepath.Join(certDir, "server.p12"), "hunter2"); err != nil {
					t.Errorf("bundle does not open with configured password: %v", err)
				}
			},
		},
		{
			name: "invalid backend flag",
			setupFlags: func() {
				createBackend = "gnutls"
			},
			wantErr: true,
			validate: func(t *testing.T, h *TestHelper, certDir string) {
				if h.StoreOpener.OpenCalls != 0 {
					t.Error("store opened despite invalid settings")
				}
			},
		},
		{
			name: "missing server directory",
			setupFlags: func() {
				omeroDir = ""
			},
			wantCode: errors.ErrCodeConfig,
		},
		{
			name: "backend unavailable",
			setupDeps: func(h *TestHelper) {
				h.Backends.Err = fmt.Errorf("openssl is not installed")
			},
			wantCode: errors.ErrCodeBackend,
			validate: func(t *testing.T, h *TestHelper, certDir string) {
				if _, err := os.Stat(certDir); !os.IsNotExist(err) {
					t.Error("certificate directory created despite backend failure")
				}
			},
		},
		{
			name: "invalid owner",
			setupDeps: func(h *TestHelper) {
				_ = h.Store.Set(config.KeyOwner, "L=OMERO,O")
			},
			wantCode: errors.ErrCodeInvalidSubject,
			validate: func(t *testing.T, h *TestHelper, certDir string) {
				if _, err := os.Stat(certDir); !os.IsNotExist(err) {
					t.Error("certificate directory created for invalid owner")
				}
			},
		},
		{
			name: "unsupported schema",
			setupDeps: func(h *TestHelper) {
				_ = h.Store.Set(config.KeyConfigVersion, "6.0.0")
			},
			wantCode: errors.ErrCodeConfig,
			validate: func(t *testing.T, h *TestHelper, certDir string) {
				if h.Config()[config.KeyOwner] != "" {
					t.Error("config written despite unsupported schema")
				}
			},
		},
		{
			name: "store cannot be opened",
			setupDeps: func(h *TestHelper) {
				h.StoreOpener.Err = errors.Config("", "failed to parse config store", nil)
			},
			wantCode: errors.ErrCodeConfig,
		},
		{
			name: "json output",
			setupFlags: func() {
				jsonOutput = true
			},
		},
	}

	t.Setenv("OMERODIR", "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, certDir := serverFixture(t)
			if tt.setupFlags != nil {
				tt.setupFlags()
			}
			if tt.setupDeps != nil {
				tt.setupDeps(h)
			}

			err := runCreate(nil, nil)

			wantErr := tt.wantErr || tt.wantCode != ""
			if (err != nil) != wantErr {
				t.Fatalf("runCreate() error = %v, wantErr %v", err, wantErr)
			}
			if tt.wantCode != "" && errors.CodeOf(err) != tt.wantCode {
				t.Errorf("error code = %s, want %s (%v)", errors.CodeOf(err), tt.wantCode, err)
			}
			if tt.validate != nil {
				tt.validate(t, h, certDir)
			}
		})
	}
}

func TestRunCreateReusesKey(t *testing.T) {
	t.Setenv("OMERODIR", "")
	h, certDir := serverFixture(t)

	if err := runCreate(nil, nil); err != nil {
		t.Fatalf("first runCreate() error = %v", err)
	}
	keyPath := filepath.Join(certDir, "server.key")
	first, err := os.ReadFile(keyPath)
	if err != nil {
		t.Fatal(err)
	}
	writes := h.Store.Writes

	if err := runCreate(nil, nil); err != nil {
		t.Fatalf("second runCreate() error = %v", err)
	}
	second, err := os.ReadFile(keyPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("private key changed between runs")
	}
	if h.Store.Writes != writes {
		t.Errorf("second run wrote %d settings, want 0", h.Store.Writes-writes)
	}
}

func TestRunCreateOutput(t *testing.T) {
	t.Setenv("OMERODIR", "")
	_, certDir := serverFixture(t)

	out := captureStdout(t, func() {
		if err := runCreate(nil, nil); err != nil {
			t.Errorf("runCreate() error = %v", err)
		}
	})
	if !strings.Contains(out, "certificates created: ") {
		t.Errorf("missing summary line: %s", out)
	}
	if !strings.Contains(out, "→ Subject L=OMERO,O=OMERO.server,CN=localhost, valid until ") {
		t.Errorf("missing subject line: %s", out)
	}
	if strings.Contains(out, "Reused existing private key") {
		t.Errorf("first run reported a reused key: %s", out)
	}

	out = captureStdout(t, func() {
		if err := runCreate(nil, nil); err != nil {
			t.Errorf("runCreate() error = %v", err)
		}
	})
	if !strings.Contains(out, "→ Reused existing private key "+filepath.Join(certDir, "server.key")) {
		t.Errorf("missing reused key line: %s", out)
	}

	jsonOutput = true
	out = captureStdout(t, func() {
		if err := runCreate(nil, nil); err != nil {
			t.Errorf("runCreate() error = %v", err)
		}
	})
	if strings.Contains(out, "→") {
		t.Errorf("JSON output carries status lines: %s", out)
	}
}

func TestRunCreateSettingsError(t *testing.T) {
	h, _ := serverFixture(t)
	h.Settings.LoadErr = fmt.Errorf("yaml: line 1: did not find expected key")

	err := runCreate(nil, nil)
	if err == nil || !strings.Contains(err.Error(), "failed to load settings") {
		t.Errorf("runCreate() error = %v, want settings error", err)
	}
}
