package certs

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"software.sslmate.com/src/go-pkcs12"
)

// OpenBundle decrypts the PKCS#12 file at path and returns its RSA key and
// certificate.
func OpenBundle(path, password string) (*rsa.PrivateKey, *x509.Certificate, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, nil, err
	}

	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	key, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, nil, fmt.Errorf("bundle %s holds a %T key, expected RSA", path, priv)
	}
	return key, cert, nil
}
