package config

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/ksyq12/omero-certificates/internal/errors"
	"github.com/ksyq12/omero-certificates/internal/logger"
	"github.com/ksyq12/omero-certificates/internal/platform"
)

// Reconcile fills every recognized key that is absent or empty with its
// default, persisting each write as it goes, and returns the resolved map.
// Keys the operator already set are never overwritten, so running it again
// performs no writes.
func Reconcile(store Store) (map[string]string, error) {
	schema, err := checkSchema(store.Version())
	if err != nil {
		return nil, err
	}

	legacy, err := legacyValues(store, schema)
	if err != nil {
		return nil, err
	}

	dataDir, err := lookup(store, KeyDataDir)
	if err != nil {
		return nil, err
	}
	if dataDir == "" {
		dataDir = platform.DefaultDataDir()
	}

	for _, d := range Defaults(dataDir) {
		current, err := lookup(store, d.Key)
		if err != nil {
			return nil, err
		}
		if current != "" {
			continue
		}
		if v, ok := legacy[d.Key]; ok {
			logger.Info("Using legacy setting for %s: %s", d.Key, display(d.Key, v))
			continue
		}

		if err := store.Set(d.Key, d.Value); err != nil {
			return nil, errors.Config(d.Key, "failed to write setting", err)
		}
		logger.Info("Setting %s=%s", d.Key, display(d.Key, d.Value))
	}

	resolved, err := store.AsMap()
	if err != nil {
		return nil, errors.Config("", "failed to read config store", err)
	}
	for k, v := range legacy {
		if resolved[k] == "" {
			resolved[k] = v
		}
	}
	return resolved, nil
}

// CheckSchema reports a CONFIG error when version is outside
// SupportedSchema. An empty version is accepted.
func CheckSchema(version string) error {
	_, err := checkSchema(version)
	return err
}

// checkSchema parses the store version and rejects versions outside
// SupportedSchema. An empty version yields a nil schema.
func checkSchema(version string) (*semver.Version, error) {
	if version == "" {
		return nil, nil
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, errors.Config(KeyConfigVersion, fmt.Sprintf("unrecognized config schema version %q", version), err)
	}

	supported, err := semver.NewConstraint(SupportedSchema)
	if err != nil {
		return nil, errors.Config(KeyConfigVersion, "invalid supported schema range", err)
	}
	if !supported.Check(v) {
		return nil, errors.Config(KeyConfigVersion,
			fmt.Sprintf("config schema version %s is not supported (want %s)", version, SupportedSchema), nil)
	}
	return v, nil
}

// legacyValues collects the values of honoured legacy aliases keyed by
// their canonical name. Aliases present in stores that are too new to use
// them are reported and ignored.
func legacyValues(store Store, schema *semver.Version) (map[string]string, error) {
	out := make(map[string]string)
	for _, a := range Compatibility {
		v, err := lookup(store, a.Legacy)
		if err != nil {
			return nil, err
		}
		if v == "" {
			continue
		}
		if !a.honoured(schema) {
			logger.WarnFields("Ignoring legacy setting", map[string]interface{}{
				"setting":     a.Legacy,
				"schema":      schemaLabel(store.Version()),
				"replacement": a.Key,
			})
			continue
		}
		out[a.Key] = v
	}
	return out, nil
}

func lookup(store Store, key string) (string, error) {
	v, _, err := store.Get(key)
	if err != nil {
		return "", errors.Config(key, "failed to read setting", err)
	}
	return v, nil
}

func display(key, value string) string {
	if IsSecret(key) {
		return "********"
	}
	return value
}

func schemaLabel(version string) string {
	if version == "" {
		return "unversioned"
	}
	return version
}
