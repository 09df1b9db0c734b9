package certs

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
)

// NativeBackend generates all material in process with crypto/x509. Its
// bundles label both entries with FriendlyName, like `openssl pkcs12 -name`.
type NativeBackend struct{}

// NewNativeBackend creates a NativeBackend.
func NewNativeBackend() *NativeBackend {
	return &NativeBackend{}
}

// Name implements Backend.
func (b *NativeBackend) Name() string {
	return "native"
}

// GenerateKey implements Backend.
func (b *NativeBackend) GenerateKey() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	return key, nil
}

// SignCertificate implements Backend.
func (b *NativeBackend) SignCertificate(key *rsa.PrivateKey, req CertificateRequest) (*x509.Certificate, error) {
	rawSubject, err := req.Subject.DER()
	if err != nil {
		return nil, fmt.Errorf("failed to encode subject: %w", err)
	}

	template := x509.Certificate{
		SerialNumber:       req.Serial,
		RawSubject:         rawSubject,
		NotBefore:          req.NotBefore,
		NotAfter:           req.NotAfter,
		SignatureAlgorithm: x509.SHA256WithRSA,

		KeyUsage:              CertificateKeyUsage,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	// Self-signed: RawSubject of the parent becomes the issuer.
	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	cert, err := parseCertificate(derBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated certificate: %w", err)
	}
	return cert, nil
}

// BuildBundle implements Backend.
func (b *NativeBackend) BuildBundle(key *rsa.PrivateKey, cert *x509.Certificate, password string) ([]byte, error) {
	pfx, err := encodeBundle(key, cert, password, FriendlyName)
	if err != nil {
		return nil, fmt.Errorf("failed to encode PKCS#12 bundle: %w", err)
	}
	return pfx, nil
}
