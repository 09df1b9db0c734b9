// Package config reconciles the certificate settings of an OMERO.server
// config store and holds the tool's own preferences.
//
// # Config Store
//
// Store is the key/value interface the reconciler works against. XMLStore
// implements it on top of etc/grid/config.xml, reading and writing the
// properties of the active profile; MemoryStore keeps everything in memory.
//
//	store, err := config.OpenXMLStore(platform.ConfigXMLPath(serverDir))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	resolved, err := config.Reconcile(store)
//
// # Reconciliation
//
// Reconcile walks the ordered Defaults table. Any key that is absent or
// empty is set to its default and written immediately, so an interrupted
// run leaves the defaults it already applied and can simply be repeated.
// Values set by the operator are never replaced.
//
// # Schema Compatibility
//
// The store's omero.config.version must satisfy SupportedSchema; other
// versions are rejected before anything is written. Legacy key names listed
// in Compatibility are honoured for stores below the listed version: their
// value fills the canonical key in the returned map while the store itself
// is left untouched. The owner setting accepts both the RFC 4514 form
// (DefaultOwner) and the slash form written by 0.2.x releases (LegacyOwner)
// at every schema version.
//
// # Settings
//
// Settings are read from ~/.config/omero-certificates/config.yaml:
//
//	backend: openssl
//	openssl: /usr/local/bin/openssl
//	validity_days: 365
//
// # Thread Safety
//
// Stores are NOT safe for concurrent use, and two processes reconciling the
// same config.xml race on the file.
package config
