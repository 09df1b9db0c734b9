package certs

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"math/big"
	"time"
)

// Fixed parameters of the generated material.
const (
	// KeyBits is the RSA modulus size of generated keys.
	KeyBits = 2048

	// FriendlyName labels the key and certificate inside the bundle.
	FriendlyName = "server"

	// BundleIterations is the PBE and MAC iteration count of the bundle.
	BundleIterations = 50000

	// DefaultValidity is how long a generated certificate stays valid.
	DefaultValidity = 365 * 24 * time.Hour
)

// CertificateKeyUsage is the key usage of generated certificates. They are
// also marked as CA so that they verify as their own issuer.
const CertificateKeyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign

// CertificateRequest describes the self-signed certificate to create.
type CertificateRequest struct {
	Subject   *Subject
	Serial    *big.Int
	NotBefore time.Time
	NotAfter  time.Time
}

// Backend performs the cryptographic steps of provisioning.
//
// Bundles must use the legacy PKCS#12 parameters regardless of backend:
// pbeWithSHAAnd3-KeyTripleDES-CBC for both key and certificate bags and an
// HMAC-SHA-1 MAC, with BundleIterations rounds. These are weak by current
// standards and are kept so that OpenSSL < 3.0, the macOS security
// framework and Windows can open the bundle.
type Backend interface {
	// Name identifies the backend in logs and output.
	Name() string

	// GenerateKey creates a new KeyBits RSA key with exponent 65537.
	GenerateKey() (*rsa.PrivateKey, error)

	// SignCertificate creates a certificate for req signed by key, with
	// issuer equal to subject and a SHA-256 RSA signature. The certificate
	// carries CA:TRUE basic constraints and CertificateKeyUsage.
	SignCertificate(key *rsa.PrivateKey, req CertificateRequest) (*x509.Certificate, error)

	// BuildBundle encodes key and cert as a password protected PKCS#12 file.
	BuildBundle(key *rsa.PrivateKey, cert *x509.Certificate, password string) ([]byte, error)
}

// newSerial returns a random positive 128-bit serial number.
func newSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	for {
		serial, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return nil, err
		}
		if serial.Sign() > 0 {
			return serial, nil
		}
	}
}
