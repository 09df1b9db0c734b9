package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSettings(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)

	settingsPath := filepath.Join(tempDir, ".config", "omero-certificates", "config.yaml")

	t.Run("NewSettings", func(t *testing.T) {
		s := NewSettings()
		if s.Backend != BackendNative {
			t.Errorf("expected native backend, got %s", s.Backend)
		}
		if s.ValidityDays != 365 {
			t.Errorf("expected 365 days, got %d", s.ValidityDays)
		}
	})

	t.Run("LoadNonexistent", func(t *testing.T) {
		s, err := LoadSettings()
		if err != nil {
			t.Fatalf("LoadSettings failed: %v", err)
		}
		if s.Backend != BackendNative {
			t.Errorf("expected native backend, got %s", s.Backend)
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		s := NewSettings()
		s.Backend = BackendOpenSSL
		s.OpenSSL = "/usr/local/bin/openssl"
		s.ValidityDays = 730

		if err := s.Save(); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
			t.Fatal("settings file was not created")
		}

		loaded, err := LoadSettings()
		if err != nil {
			t.Fatalf("LoadSettings failed: %v", err)
		}
		if *loaded != *s {
			t.Errorf("loaded %+v, want %+v", *loaded, *s)
		}
	})

	t.Run("PartialFileKeepsDefaults", func(t *testing.T) {
		if err := os.WriteFile(settingsPath, []byte("backend: openssl\n"), 0644); err != nil {
			t.Fatal(err)
		}

		loaded, err := LoadSettings()
		if err != nil {
			t.Fatalf("LoadSettings failed: %v", err)
		}
		if loaded.Backend != BackendOpenSSL || loaded.ValidityDays != 365 {
			t.Errorf("unexpected settings %+v", *loaded)
		}
	})

	t.Run("InvalidBackendRejected", func(t *testing.T) {
		if err := os.WriteFile(settingsPath, []byte("backend: gnutls\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadSettings(); err == nil {
			t.Error("expected error for unknown backend")
		}
	})

	t.Run("MalformedYAML", func(t *testing.T) {
		if err := os.WriteFile(settingsPath, []byte("backend: [\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadSettings(); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       Settings
		wantErr bool
	}{
		{"native", Settings{Backend: BackendNative, ValidityDays: 1}, false},
		{"openssl", Settings{Backend: BackendOpenSSL, ValidityDays: 365}, false},
		{"empty backend", Settings{ValidityDays: 365}, true},
		{"zero validity", Settings{Backend: BackendNative}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
