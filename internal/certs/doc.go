// Package certs provisions the TLS material of an OMERO.server: an RSA
// private key, a self-signed certificate and a password protected PKCS#12
// bundle for Glacier2's IceSSL transport.
//
// # Basic Usage
//
// Provision consumes the map returned by config.Reconcile:
//
//	resolved, err := config.Reconcile(store)
//	if err != nil {
//	    return err
//	}
//	summary, err := certs.Provision(resolved)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(summary) // certificates created: /OMERO/certs/server.key ...
//
// # Files
//
// All files live in omero.glacier2.IceSSL.DefaultDir:
//
//	<omero.certificates.key>          PKCS#1 PEM private key, reused across runs
//	<omero.glacier2.IceSSL.CAs>       PEM self-signed certificate, rewritten every run
//	<omero.glacier2.IceSSL.CertFile>  PKCS#12 bundle, rewritten every run
//
// Every file is written to a temporary name and renamed into place.
//
// # Key Reuse
//
// An existing key file is always reused so the server identity survives
// re-runs. A key file that cannot be parsed as an RSA key fails with a
// KEY_LOAD error; it is never replaced automatically.
//
// # Subject
//
// The subject is the owner setting followed by CN=<commonname>. Owners are
// RFC 4514 strings ("L=OMERO,O=OMERO.server"); the slash-delimited form
// stored by older releases ("/L=OMERO/O=OMERO.server") is also accepted.
//
// # Backends
//
// NativeBackend (the default) works in process. OpenSSLBackend shells out
// to the openssl binary through an executor.CommandExecutor:
//
//	backend := certs.NewOpenSSLBackend(executor.NewSystemExecutor(), "")
//	summary, err := certs.Provision(resolved, certs.WithBackend(backend))
//
// Both produce bundles with pbeWithSHAAnd3-KeyTripleDES-CBC encryption, an
// HMAC-SHA-1 MAC and 50000 iterations. This is a compatibility choice for
// OpenSSL < 3.0, macOS and Windows consumers, not a recommendation; keep
// the bundle readable only by the server account.
package certs
