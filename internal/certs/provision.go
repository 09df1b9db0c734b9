package certs

import (
	"crypto/rsa"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ksyq12/omero-certificates/internal/config"
	"github.com/ksyq12/omero-certificates/internal/errors"
	"github.com/ksyq12/omero-certificates/internal/logger"
	"github.com/ksyq12/omero-certificates/internal/platform"
)

// File modes of the written artifacts.
const (
	keyFileMode    os.FileMode = 0600
	certFileMode   os.FileMode = 0644
	bundleFileMode os.FileMode = 0600
	certDirMode    os.FileMode = 0755
)

// Paths are the artifact locations derived from a resolved config map.
type Paths struct {
	Dir         string
	Key         string
	Certificate string
	Bundle      string
}

// ResolvePaths derives the artifact locations from cfg. Every path setting
// must be present and non-empty.
func ResolvePaths(cfg map[string]string) (*Paths, error) {
	dir, err := requireSetting(cfg, config.KeyCertDir)
	if err != nil {
		return nil, err
	}
	key, err := requireSetting(cfg, config.KeyKeyFile)
	if err != nil {
		return nil, err
	}
	cert, err := requireSetting(cfg, config.KeyCAFile)
	if err != nil {
		return nil, err
	}
	bundle, err := requireSetting(cfg, config.KeyBundleFile)
	if err != nil {
		return nil, err
	}

	return &Paths{
		Dir:         dir,
		Key:         filepath.Join(dir, key),
		Certificate: filepath.Join(dir, cert),
		Bundle:      filepath.Join(dir, bundle),
	}, nil
}

func requireSetting(cfg map[string]string, key string) (string, error) {
	v := cfg[key]
	if v == "" {
		return "", errors.Config(key, "missing required setting", nil)
	}
	return v, nil
}

// Summary reports the outcome of a provisioning run.
type Summary struct {
	// Created lists the files written this run, in creation order. The key
	// appears only when it was generated.
	Created []string `json:"created"`

	Paths     Paths     `json:"paths"`
	KeyReused bool      `json:"key_reused"`
	Backend   string    `json:"backend"`
	Subject   string    `json:"subject"`
	Serial    string    `json:"serial"`
	NotBefore time.Time `json:"not_before"`
	NotAfter  time.Time `json:"not_after"`
}

// String renders the summary line printed after a successful run.
func (s *Summary) String() string {
	return "certificates created: " + strings.Join(s.Created, " ")
}

type options struct {
	backend  Backend
	now      func() time.Time
	validity time.Duration
}

// Option configures optional behavior for Provision.
type Option func(*options)

// WithBackend selects the cryptographic backend. The default is
// NewNativeBackend().
func WithBackend(b Backend) Option {
	return func(o *options) {
		if b != nil {
			o.backend = b
		}
	}
}

// WithClock overrides the time source used for the validity period.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithValidity overrides DefaultValidity.
func WithValidity(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.validity = d
		}
	}
}

// Provision materializes the key, the self-signed certificate and the
// PKCS#12 bundle described by cfg, which must be a map produced by
// config.Reconcile.
//
// An existing key is reused and never overwritten; a key that cannot be
// loaded aborts the run. The certificate and bundle are rewritten on every
// call. The owner is parsed before anything is written, so an invalid owner
// leaves the certificate directory untouched.
func Provision(cfg map[string]string, opts ...Option) (*Summary, error) {
	o := options{
		now:      time.Now,
		validity: DefaultValidity,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.backend == nil {
		o.backend = NewNativeBackend()
	}

	paths, err := ResolvePaths(cfg)
	if err != nil {
		return nil, err
	}
	commonName, err := requireSetting(cfg, config.KeyCommonName)
	if err != nil {
		return nil, err
	}
	password, err := requireSetting(cfg, config.KeyPassword)
	if err != nil {
		return nil, err
	}

	subject, err := ParseSubject(cfg[config.KeyOwner], commonName)
	if err != nil {
		return nil, err
	}

	logger.DebugFields("Provisioning certificates", map[string]interface{}{
		"backend": o.backend.Name(),
		"dir":     paths.Dir,
		"subject": subject.String(),
	})

	if err := os.MkdirAll(paths.Dir, certDirMode); err != nil {
		return nil, errors.Filesystem(paths.Dir, "failed to create certificate directory", err)
	}

	summary := &Summary{
		Paths:   *paths,
		Backend: o.backend.Name(),
		Subject: subject.String(),
	}

	key, created, err := ensureKey(o.backend, paths.Key)
	if err != nil {
		return nil, err
	}
	if created {
		summary.Created = append(summary.Created, paths.Key)
	} else {
		summary.KeyReused = true
	}

	logger.Info("Creating self-signed certificate: %s", paths.Certificate)
	serial, err := newSerial()
	if err != nil {
		return nil, errors.Backend("failed to generate serial number", err)
	}
	now := o.now().UTC().Truncate(time.Second)
	cert, err := o.backend.SignCertificate(key, CertificateRequest{
		Subject:   subject,
		Serial:    serial,
		NotBefore: now,
		NotAfter:  now.Add(o.validity),
	})
	if err != nil {
		return nil, errors.Backend("failed to sign certificate", err)
	}
	if err := platform.WriteFileAtomic(paths.Certificate, encodeCertificatePEM(cert), certFileMode); err != nil {
		return nil, errors.Filesystem(paths.Certificate, "failed to write certificate", err)
	}
	summary.Created = append(summary.Created, paths.Certificate)
	summary.Serial = cert.SerialNumber.Text(16)
	summary.NotBefore = cert.NotBefore
	summary.NotAfter = cert.NotAfter
	logger.InfoFields("Certificate signed", map[string]interface{}{
		"serial":    summary.Serial,
		"not_after": cert.NotAfter.Format(time.RFC3339),
	})

	logger.Info("Creating PKCS12 bundle: %s", paths.Bundle)
	pfx, err := o.backend.BuildBundle(key, cert, password)
	if err != nil {
		return nil, errors.Backend("failed to build PKCS#12 bundle", err)
	}
	if err := platform.WriteFileAtomic(paths.Bundle, pfx, bundleFileMode); err != nil {
		return nil, errors.Filesystem(paths.Bundle, "failed to write bundle", err)
	}
	summary.Created = append(summary.Created, paths.Bundle)

	return summary, nil
}

// ensureKey loads the key at path or, when no file exists, generates and
// writes a new one. created reports whether the key was generated.
func ensureKey(backend Backend, path string) (key *rsa.PrivateKey, created bool, err error) {
	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		logger.Info("Using existing key: %s", path)
		key, err = LoadKey(path)
		return key, false, err
	case !os.IsNotExist(statErr):
		return nil, false, errors.KeyLoad(path, statErr)
	}

	logger.Info("Creating self-signed CA key: %s", path)
	key, err = backend.GenerateKey()
	if err != nil {
		return nil, false, errors.Backend("failed to generate private key", err)
	}
	if err := platform.WriteFileAtomic(path, encodeKeyPEM(key), keyFileMode); err != nil {
		return nil, false, errors.Filesystem(path, "failed to write private key", err)
	}
	return key, true, nil
}
