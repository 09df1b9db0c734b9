package certs

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/ksyq12/omero-certificates/internal/errors"
)

// PEM block types.
const (
	pemRSAPrivateKey = "RSA PRIVATE KEY"
	pemPrivateKey    = "PRIVATE KEY"
	pemCertificate   = "CERTIFICATE"
)

// internal variables for mocking in tests
var (
	readFile         = os.ReadFile
	parseCertificate = x509.ParseCertificate
)

// LoadKey reads an unencrypted RSA private key from a PEM file. Both
// PKCS#1 ("RSA PRIVATE KEY") and PKCS#8 ("PRIVATE KEY") encodings are
// accepted. Any failure is a KEY_LOAD error.
func LoadKey(path string) (*rsa.PrivateKey, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, errors.KeyLoad(path, err)
	}
	key, err := parseKeyPEM(data)
	if err != nil {
		return nil, errors.KeyLoad(path, err)
	}
	return key, nil
}

func parseKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM data found")
	}
	if _, ok := block.Headers["Proc-Type"]; ok {
		return nil, fmt.Errorf("encrypted keys are not supported")
	}

	switch block.Type {
	case pemRSAPrivateKey:
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case pemPrivateKey:
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("unsupported key type %T, expected RSA", parsed)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block %q, expected RSA private key", block.Type)
	}
}

// encodeKeyPEM returns key as an unencrypted PKCS#1 PEM block.
func encodeKeyPEM(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: pemRSAPrivateKey, Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

// ReadCertificate reads the first certificate from a PEM file.
func ReadCertificate(path string) (*x509.Certificate, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return parseCertificatePEM(data)
}

func parseCertificatePEM(data []byte) (*x509.Certificate, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("no certificate found")
		}
		if block.Type == pemCertificate {
			return parseCertificate(block.Bytes)
		}
	}
}

func encodeCertificatePEM(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: pemCertificate, Bytes: cert.Raw})
}
