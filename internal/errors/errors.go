// Package errors provides the error taxonomy for certificate provisioning.
//
// Every failure surfaced by the config and certs packages is a *CertError
// carrying a Code, so callers can tell configuration mistakes apart from
// filesystem trouble and from cryptographic backend failures without
// parsing messages.
//
// # Error Codes
//
//   - CONFIG: base directory missing, store unreadable/unwritable, or an
//     incompatible config schema version
//   - INVALID_SUBJECT: the owner setting is not valid RDN syntax
//   - KEY_LOAD: an existing key file could not be read or parsed
//   - FILESYSTEM: directory creation or file write failed
//   - BACKEND: key generation, signing or bundle encoding failed
//
// # Usage
//
// Creating errors:
//
//	return errors.Config("omero.data.dir", "failed to read setting", err)
//	return errors.InvalidSubject(owner, err)
//	return errors.KeyLoad(keyPath, err)
//	return errors.Filesystem(certDir, "failed to create directory", err)
//	return errors.Backend("failed to sign certificate", err)
//
// # Error Checking
//
// Use errors.Is with the sentinel errors, which compare by code:
//
//	if errors.Is(err, errors.ErrInvalidSubject) {
//	    // owner syntax problem, most likely an upgrade leftover
//	}
//
// Use errors.As to reach the offending key, path or value:
//
//	var certErr *errors.CertError
//	if errors.As(err, &certErr) {
//	    fmt.Printf("code=%s path=%s\n", certErr.Code, certErr.Path)
//	}
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors for programmatic handling.
type ErrorCode string

// Error codes for the provisioning failure classes.
const (
	ErrCodeConfig         ErrorCode = "CONFIG"          // Configuration input or store failure
	ErrCodeInvalidSubject ErrorCode = "INVALID_SUBJECT" // Owner string is not valid RDN syntax
	ErrCodeKeyLoad        ErrorCode = "KEY_LOAD"        // Existing key unreadable or corrupt
	ErrCodeFilesystem     ErrorCode = "FILESYSTEM"      // Directory or file write failure
	ErrCodeBackend        ErrorCode = "BACKEND"         // Cryptographic backend failure
)

// UpgradeHint is appended to invalid owner errors. Owner strings written by
// older releases are the most common cause.
const UpgradeHint = "Are you upgrading? The owner must be an RFC 4514 string such as " +
	"'L=OMERO,O=OMERO.server' or the legacy form '/L=OMERO/O=OMERO.server'"

// CertError represents a provisioning failure with enough context to fix
// the cause and re-run.
type CertError struct {
	Code    ErrorCode // Error category
	Message string    // Human-readable message
	Key     string    // Config key involved (if applicable)
	Path    string    // Filesystem path involved (if applicable)
	Value   string    // Offending config value (if applicable)
	Err     error     // Underlying error (if any)
}

// Error implements the error interface.
func (e *CertError) Error() string {
	msg := e.Message
	switch {
	case e.Key != "" && e.Value != "":
		msg = fmt.Sprintf("%s: '%s' setting '%s'", msg, e.Key, e.Value)
	case e.Key != "":
		msg = fmt.Sprintf("%s: %s", msg, e.Key)
	case e.Value != "":
		msg = fmt.Sprintf("%s: '%s'", msg, e.Value)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain traversal.
func (e *CertError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error.
// Comparison is based on error code.
func (e *CertError) Is(target error) bool {
	t, ok := target.(*CertError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel errors, one per code. Use these with errors.Is().
var (
	// ErrConfig indicates missing input or a config store failure.
	ErrConfig = &CertError{Code: ErrCodeConfig, Message: "configuration error"}

	// ErrInvalidSubject indicates the owner setting failed RDN parsing.
	ErrInvalidSubject = &CertError{Code: ErrCodeInvalidSubject, Message: "invalid certificate subject"}

	// ErrKeyLoad indicates an existing private key could not be loaded.
	ErrKeyLoad = &CertError{Code: ErrCodeKeyLoad, Message: "failed to load private key"}

	// ErrFilesystem indicates a directory or file could not be written.
	ErrFilesystem = &CertError{Code: ErrCodeFilesystem, Message: "filesystem error"}

	// ErrBackend indicates the cryptographic backend failed.
	ErrBackend = &CertError{Code: ErrCodeBackend, Message: "cryptographic backend error"}
)

// Config creates a configuration error for the given key.
func Config(key, msg string, err error) error {
	return &CertError{
		Code:    ErrCodeConfig,
		Message: msg,
		Key:     key,
		Err:     err,
	}
}

// InvalidSubject creates an error for an owner string that is not valid
// RDN syntax. The message carries the upgrade remediation hint.
func InvalidSubject(owner string, err error) error {
	return &CertError{
		Code:    ErrCodeInvalidSubject,
		Message: "not a valid RFC 4514 string (" + UpgradeHint + ")",
		Key:     "omero.certificates.owner",
		Value:   owner,
		Err:     err,
	}
}

// KeyLoad creates an error for an unreadable or corrupt key file.
func KeyLoad(path string, err error) error {
	return &CertError{
		Code:    ErrCodeKeyLoad,
		Message: "failed to load existing private key (remove it to generate a new identity)",
		Path:    path,
		Err:     err,
	}
}

// Filesystem creates an error for a failed filesystem operation on path.
func Filesystem(path, msg string, err error) error {
	return &CertError{
		Code:    ErrCodeFilesystem,
		Message: msg,
		Path:    path,
		Err:     err,
	}
}

// Backend creates an error for a failed cryptographic operation.
func Backend(msg string, err error) error {
	return &CertError{
		Code:    ErrCodeBackend,
		Message: msg,
		Err:     err,
	}
}

// CodeOf returns the code of the first *CertError in err's chain, or ""
// when there is none.
func CodeOf(err error) ErrorCode {
	var certErr *CertError
	if errors.As(err, &certErr) {
		return certErr.Code
	}
	return ""
}

// Is reports whether any error in err's chain matches target.
// This is a re-export of errors.Is for convenience.
var Is = errors.Is

// As finds the first error in err's chain that matches target.
// This is a re-export of errors.As for convenience.
var As = errors.As

// New is a re-export of errors.New for convenience.
var New = errors.New
