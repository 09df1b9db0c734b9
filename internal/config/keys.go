package config

import (
	"path/filepath"

	"github.com/Masterminds/semver/v3"
)

// Config keys read or written by the reconciler.
const (
	KeyConfigVersion = "omero.config.version"
	KeyDataDir       = "omero.data.dir"

	KeyCertDir            = "omero.glacier2.IceSSL.DefaultDir"
	KeyCommonName         = "omero.certificates.commonname"
	KeyOwner              = "omero.certificates.owner"
	KeyKeyFile            = "omero.certificates.key"
	KeyBundleFile         = "omero.glacier2.IceSSL.CertFile"
	KeyCAFile             = "omero.glacier2.IceSSL.CAs"
	KeyPassword           = "omero.glacier2.IceSSL.Password"
	KeyCiphers            = "omero.glacier2.IceSSL.Ciphers"
	KeyProtocolVersionMax = "omero.glacier2.IceSSL.ProtocolVersionMax"
	KeyProtocols          = "omero.glacier2.IceSSL.Protocols"
)

// Owner strings. DefaultOwner is RFC 4514; LegacyOwner is the
// slash-delimited form stored by 0.2.x releases, which is still accepted.
const (
	DefaultOwner = "L=OMERO,O=OMERO.server"
	LegacyOwner  = "/L=OMERO/O=OMERO.server"
)

// CurrentSchema is the version written into new config stores.
const CurrentSchema = "5.1.0"

// SupportedSchema is the range of store schema versions the reconciler
// accepts. Stores with no recorded version are treated as current.
const SupportedSchema = ">= 4.0.0, < 6.0.0"

// Default is one entry of the reconciliation table.
type Default struct {
	Key   string
	Value string
}

// Defaults returns the recognized keys and their defaults in
// reconciliation order. dataDir is the resolved omero.data.dir.
func Defaults(dataDir string) []Default {
	return []Default{
		{KeyCertDir, filepath.Join(dataDir, "certs")},
		{KeyCommonName, "localhost"},
		{KeyOwner, DefaultOwner},
		{KeyKeyFile, "server.key"},
		{KeyBundleFile, "server.p12"},
		{KeyCAFile, "server.pem"},
		{KeyPassword, "secret"},
		{KeyCiphers, "HIGH"},
		{KeyProtocolVersionMax, "TLS1_2"},
		{KeyProtocols, "TLS1_0,TLS1_1,TLS1_2"},
	}
}

// RecognizedKeys lists the keys of the reconciliation table.
func RecognizedKeys() []string {
	defaults := Defaults("")
	keys := make([]string, len(defaults))
	for i, d := range defaults {
		keys[i] = d.Key
	}
	return keys
}

// Alias maps a legacy key name onto its canonical key.
type Alias struct {
	Key    string // canonical key
	Legacy string // name used by older stores
	Before string // honoured only while the store schema is below this version
}

// Compatibility is the table of legacy key names the reconciler honours.
// A legacy value fills the canonical key in the resolved map without being
// migrated in the store. A store with no recorded schema version counts as
// current, so legacy names are ignored for it.
//
// Owner syntax is not listed here: both owner forms are accepted at every
// schema version because certificates issued by 0.2.x releases carry the
// slash form.
var Compatibility = []Alias{
	{Key: KeyCAFile, Legacy: "omero.glacier2.IceSSL.CertAuthFile", Before: "5.1.0"},
}

// honoured reports whether a store at schema (nil when unrecorded) still
// uses the legacy name.
func (a Alias) honoured(schema *semver.Version) bool {
	if schema == nil {
		return false
	}
	return schema.LessThan(semver.MustParse(a.Before))
}

// IsSecret reports whether the value of key must not be displayed.
func IsSecret(key string) bool {
	return key == KeyPassword
}
