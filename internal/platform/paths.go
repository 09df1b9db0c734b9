// Package platform resolves OMERO.server installation paths.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/ksyq12/omero-certificates/internal/errors"
)

// ServerDirEnv names the environment variable locating OMERO.server.
const ServerDirEnv = "OMERODIR"

// DefaultDataDir returns the data directory OMERO.server uses when
// omero.data.dir is not configured.
func DefaultDataDir() string {
	return defaultDataDir(runtime.GOOS)
}

func defaultDataDir(goos string) string {
	switch goos {
	case "windows":
		return `C:\OMERO`
	default:
		return "/OMERO"
	}
}

// ResolveServerDir returns the absolute OMERO.server directory. An explicit
// value wins over $OMERODIR. The directory must exist.
func ResolveServerDir(explicit string) (string, error) {
	dir := explicit
	if dir == "" {
		dir = os.Getenv(ServerDirEnv)
	}
	if dir == "" {
		return "", errors.Config(ServerDirEnv, "OMERO.server directory not set (use --omerodir or set the environment variable)", nil)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Config(ServerDirEnv, "invalid OMERO.server directory", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", errors.Config(ServerDirEnv, "OMERO.server directory not accessible", err)
	}
	if !info.IsDir() {
		return "", errors.Config(ServerDirEnv, "OMERO.server path is not a directory", fmt.Errorf("%s", abs))
	}

	return abs, nil
}

// ConfigXMLPath returns the location of the server's config store.
func ConfigXMLPath(serverDir string) string {
	return filepath.Join(serverDir, "etc", "grid", "config.xml")
}

// pathExists checks if a path exists on the filesystem.
func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// HasConfigXML reports whether serverDir already contains a config store.
func HasConfigXML(serverDir string) bool {
	return pathExists(ConfigXMLPath(serverDir))
}

// Platform returns a string describing the current platform.
func Platform() string {
	return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
}
