package certs

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ksyq12/omero-certificates/internal/executor"
	"github.com/ksyq12/omero-certificates/internal/logger"
)

// PasswordEnv carries the bundle password to the openssl child process.
const PasswordEnv = "OMERO_CERTIFICATES_PASSWORD"

// OpenSSLBackend drives the openssl command line tool. Intermediate files
// live in a private scratch directory that is removed after each step.
type OpenSSLBackend struct {
	exec   executor.CommandExecutor
	binary string
}

// NewOpenSSLBackend creates an OpenSSLBackend running binary through exec.
// An empty binary means "openssl" on PATH.
func NewOpenSSLBackend(exec executor.CommandExecutor, binary string) *OpenSSLBackend {
	if binary == "" {
		binary = "openssl"
	}
	return &OpenSSLBackend{exec: exec, binary: binary}
}

// Name implements Backend.
func (b *OpenSSLBackend) Name() string {
	return "openssl"
}

// Available reports an error when the openssl binary cannot be found.
func (b *OpenSSLBackend) Available() error {
	if _, err := b.exec.LookPath(b.binary); err != nil {
		return fmt.Errorf("%s is not installed: %w", b.binary, err)
	}
	return nil
}

// Version returns the output of `openssl version`.
func (b *OpenSSLBackend) Version() (string, error) {
	out, err := b.exec.Execute(b.binary, "version")
	if err != nil {
		return "", fmt.Errorf("%s version failed: %w", b.binary, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// keyUsageNames maps x509 key usage bits to their openssl config names.
var keyUsageNames = []struct {
	bit  x509.KeyUsage
	name string
}{
	{x509.KeyUsageDigitalSignature, "digitalSignature"},
	{x509.KeyUsageContentCommitment, "nonRepudiation"},
	{x509.KeyUsageKeyEncipherment, "keyEncipherment"},
	{x509.KeyUsageDataEncipherment, "dataEncipherment"},
	{x509.KeyUsageKeyAgreement, "keyAgreement"},
	{x509.KeyUsageCertSign, "keyCertSign"},
	{x509.KeyUsageCRLSign, "cRLSign"},
}

func opensslKeyUsage(usage x509.KeyUsage) string {
	var names []string
	for _, u := range keyUsageNames {
		if usage&u.bit != 0 {
			names = append(names, u.name)
		}
	}
	return strings.Join(names, ",")
}

// reqConfig is passed to `openssl req` in place of the system openssl.cnf
// so that the extensions match NativeBackend. The subject always comes
// from -subj.
func reqConfig() string {
	return fmt.Sprintf(`[req]
distinguished_name = req_dn
x509_extensions = v3_ca
prompt = no

[req_dn]
CN = unused

[v3_ca]
subjectKeyIdentifier = hash
basicConstraints = critical,CA:TRUE
keyUsage = critical,%s
`, opensslKeyUsage(CertificateKeyUsage))
}

// validityDays converts a validity period to whole days for -days, rounding
// up so the certificate never expires earlier than requested.
func validityDays(d time.Duration) int {
	days := int(math.Ceil(d.Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

// run executes one openssl subcommand, including its output in the error.
func (b *OpenSSLBackend) run(env []string, args ...string) error {
	if err := b.Available(); err != nil {
		return err
	}
	logger.Debug("Running %s %s", b.binary, strings.Join(args, " "))
	out, err := b.exec.ExecuteEnv(env, b.binary, args...)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w: %s", b.binary, args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// withScratch runs fn with a private temporary directory.
func withScratch(fn func(dir string) error) error {
	dir, err := os.MkdirTemp("", "omero-certificates-*")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)
	return fn(dir)
}

// GenerateKey implements Backend.
func (b *OpenSSLBackend) GenerateKey() (*rsa.PrivateKey, error) {
	var key *rsa.PrivateKey
	err := withScratch(func(dir string) error {
		keyPath := filepath.Join(dir, "key.pem")
		if err := b.run(nil, "genrsa", "-out", keyPath, strconv.Itoa(KeyBits)); err != nil {
			return err
		}
		data, err := os.ReadFile(keyPath)
		if err != nil {
			return fmt.Errorf("failed to read generated key: %w", err)
		}
		key, err = parseKeyPEM(data)
		if err != nil {
			return fmt.Errorf("failed to parse generated key: %w", err)
		}
		return nil
	})
	return key, err
}

// SignCertificate implements Backend. openssl only takes a whole number of
// days, see validityDays.
func (b *OpenSSLBackend) SignCertificate(key *rsa.PrivateKey, req CertificateRequest) (*x509.Certificate, error) {
	var cert *x509.Certificate
	err := withScratch(func(dir string) error {
		keyPath := filepath.Join(dir, "key.pem")
		certPath := filepath.Join(dir, "cert.pem")
		configPath := filepath.Join(dir, "req.cnf")
		if err := os.WriteFile(keyPath, encodeKeyPEM(key), 0600); err != nil {
			return fmt.Errorf("failed to stage key: %w", err)
		}
		if err := os.WriteFile(configPath, []byte(reqConfig()), 0600); err != nil {
			return fmt.Errorf("failed to stage openssl config: %w", err)
		}

		args := []string{
			"req", "-new", "-x509",
			"-config", configPath,
			"-extensions", "v3_ca",
			"-key", keyPath,
			"-out", certPath,
			"-days", strconv.Itoa(validityDays(req.NotAfter.Sub(req.NotBefore))),
			"-sha256",
			"-utf8",
			"-subj", req.Subject.OpenSSL(),
			"-set_serial", "0x" + req.Serial.Text(16),
		}
		if req.Subject.MultiValued() {
			args = append(args, "-multivalue-rdn")
		}
		if err := b.run(nil, args...); err != nil {
			return err
		}

		var err error
		cert, err = ReadCertificate(certPath)
		if err != nil {
			return fmt.Errorf("failed to read generated certificate: %w", err)
		}
		return nil
	})
	return cert, err
}

// BuildBundle implements Backend. The password reaches openssl through the
// environment so it never shows up in the process list.
func (b *OpenSSLBackend) BuildBundle(key *rsa.PrivateKey, cert *x509.Certificate, password string) ([]byte, error) {
	var pfx []byte
	err := withScratch(func(dir string) error {
		keyPath := filepath.Join(dir, "key.pem")
		certPath := filepath.Join(dir, "cert.pem")
		bundlePath := filepath.Join(dir, "bundle.p12")
		if err := os.WriteFile(keyPath, encodeKeyPEM(key), 0600); err != nil {
			return fmt.Errorf("failed to stage key: %w", err)
		}
		if err := os.WriteFile(certPath, encodeCertificatePEM(cert), 0600); err != nil {
			return fmt.Errorf("failed to stage certificate: %w", err)
		}

		args := []string{
			"pkcs12", "-export",
			"-inkey", keyPath,
			"-in", certPath,
			"-out", bundlePath,
			"-name", FriendlyName,
			"-keypbe", "PBE-SHA1-3DES",
			"-certpbe", "PBE-SHA1-3DES",
			"-macalg", "sha1",
			"-iter", strconv.Itoa(BundleIterations),
			"-passout", "env:" + PasswordEnv,
		}
		if err := b.run([]string{PasswordEnv + "=" + password}, args...); err != nil {
			return err
		}

		var err error
		pfx, err = os.ReadFile(bundlePath)
		if err != nil {
			return fmt.Errorf("failed to read generated bundle: %w", err)
		}
		return nil
	})
	return pfx, err
}
