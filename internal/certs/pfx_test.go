package certs

import (
	"crypto/cipher"
	"crypto/des"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"testing"
	"unicode/utf16"

	"github.com/github/fakeca"
	"github.com/stretchr/testify/require"
	"software.sslmate.com/src/go-pkcs12"
)

// decodeSafeBags checks the MAC of pfxData and returns every bag it holds,
// decrypting encrypted safe contents with password.
func decodeSafeBags(t *testing.T, pfxData []byte, password string) []safeBag {
	t.Helper()
	encodedPassword, err := bmpStringZeroTerminated(password)
	require.NoError(t, err)

	var pfx pfxPdu
	rest, err := asn1.Unmarshal(pfxData, &pfx)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.Equal(t, 3, pfx.Version)
	require.True(t, pfx.AuthSafe.ContentType.Equal(oidDataContentType))

	var authenticatedSafe []byte
	_, err = asn1.Unmarshal(pfx.AuthSafe.Content.Bytes, &authenticatedSafe)
	require.NoError(t, err)

	require.True(t, pfx.MacData.Mac.Algorithm.Algorithm.Equal(oidSHA1))
	require.Equal(t, BundleIterations, pfx.MacData.Iterations)
	require.Len(t, pfx.MacData.MacSalt, pbeSaltSize)
	mac := hmac.New(sha1.New, pbkdf(pbeMACID, encodedPassword, pfx.MacData.MacSalt, pfx.MacData.Iterations, sha1.Size))
	mac.Write(authenticatedSafe)
	require.True(t, hmac.Equal(mac.Sum(nil), pfx.MacData.Mac.Digest), "MAC mismatch")

	var infos []contentInfo
	_, err = asn1.Unmarshal(authenticatedSafe, &infos)
	require.NoError(t, err)

	var bags []safeBag
	for _, info := range infos {
		var data []byte
		switch {
		case info.ContentType.Equal(oidDataContentType):
			_, err = asn1.Unmarshal(info.Content.Bytes, &data)
			require.NoError(t, err)
		case info.ContentType.Equal(oidEncryptedDataContentType):
			var encrypted encryptedData
			_, err = asn1.Unmarshal(info.Content.Bytes, &encrypted)
			require.NoError(t, err)
			content := encrypted.EncryptedContentInfo
			require.True(t, content.ContentType.Equal(oidDataContentType))
			data = pbeDecrypt(t, content.ContentEncryptionAlgorithm, content.EncryptedContent, encodedPassword)
		default:
			t.Fatalf("unexpected content type %v", info.ContentType)
		}

		var safeContents []safeBag
		_, err = asn1.Unmarshal(data, &safeContents)
		require.NoError(t, err)
		bags = append(bags, safeContents...)
	}
	return bags
}

func pbeDecrypt(t *testing.T, algorithm pkix.AlgorithmIdentifier, ciphertext, password []byte) []byte {
	t.Helper()
	require.True(t, algorithm.Algorithm.Equal(oidPBEWithSHAAnd3KeyDESCBC), "unexpected algorithm %v", algorithm.Algorithm)

	var params pbeParams
	_, err := asn1.Unmarshal(algorithm.Parameters.FullBytes, &params)
	require.NoError(t, err)
	require.Equal(t, BundleIterations, params.Iterations)
	require.Len(t, params.Salt, pbeSaltSize)

	block, err := des.NewTripleDESCipher(pbkdf(pbeKeyID, password, params.Salt, params.Iterations, 24))
	require.NoError(t, err)
	iv := pbkdf(pbeIVID, password, params.Salt, params.Iterations, block.BlockSize())

	require.Zero(t, len(ciphertext)%block.BlockSize())
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	padding := int(plaintext[len(plaintext)-1])
	require.True(t, padding >= 1 && padding <= block.BlockSize(), "bad padding %d", padding)
	return plaintext[:len(plaintext)-padding]
}

// attributeValue returns the single value of attribute id on bag.
func attributeValue(t *testing.T, bag safeBag, id asn1.ObjectIdentifier) []byte {
	t.Helper()
	for _, attr := range bag.Attributes {
		if attr.ID.Equal(id) {
			return attr.Value.Bytes
		}
	}
	t.Fatalf("bag %v has no attribute %v", bag.ID, id)
	return nil
}

func friendlyNameOf(t *testing.T, bag safeBag) string {
	t.Helper()
	var raw asn1.RawValue
	_, err := asn1.Unmarshal(attributeValue(t, bag, oidFriendlyName), &raw)
	require.NoError(t, err)
	require.Equal(t, asn1.TagBMPString, raw.Tag)
	require.Zero(t, len(raw.Bytes)%2)

	units := make([]uint16, len(raw.Bytes)/2)
	for i := range units {
		units[i] = uint16(raw.Bytes[2*i])<<8 | uint16(raw.Bytes[2*i+1])
	}
	return string(utf16.Decode(units))
}

func localKeyIDOf(t *testing.T, bag safeBag) []byte {
	t.Helper()
	var id []byte
	_, err := asn1.Unmarshal(attributeValue(t, bag, oidLocalKeyID), &id)
	require.NoError(t, err)
	return id
}

func TestEncodeBundle(t *testing.T) {
	identity := fakeca.New()
	key := identity.PrivateKey.(*rsa.PrivateKey)
	cert := identity.Certificate

	pfx, err := encodeBundle(key, cert, "s3cret", "server")
	require.NoError(t, err)

	bags := decodeSafeBags(t, pfx, "s3cret")
	require.Len(t, bags, 2)
	certBagEntry, keyBagEntry := bags[0], bags[1]

	wantID := sha1.Sum(cert.Raw)
	for _, bag := range bags {
		require.Equal(t, "server", friendlyNameOf(t, bag))
		require.Equal(t, wantID[:], localKeyIDOf(t, bag))
	}

	require.True(t, certBagEntry.ID.Equal(oidCertBag))
	var cb certBag
	_, err = asn1.Unmarshal(certBagEntry.Value.Bytes, &cb)
	require.NoError(t, err)
	require.True(t, cb.ID.Equal(oidCertTypeX509Certificate))
	require.Equal(t, cert.Raw, cb.Data)

	require.True(t, keyBagEntry.ID.Equal(oidPKCS8ShroudedKeyBag))
	var shrouded encryptedPrivateKeyInfo
	_, err = asn1.Unmarshal(keyBagEntry.Value.Bytes, &shrouded)
	require.NoError(t, err)
	encodedPassword, err := bmpStringZeroTerminated("s3cret")
	require.NoError(t, err)
	pkcs8 := pbeDecrypt(t, shrouded.AlgorithmIdentifier, shrouded.EncryptedData, encodedPassword)
	parsed, err := x509.ParsePKCS8PrivateKey(pkcs8)
	require.NoError(t, err)
	require.True(t, key.Equal(parsed))
}

func TestEncodeBundleReadableByGoPKCS12(t *testing.T) {
	identity := fakeca.New()
	key := identity.PrivateKey.(*rsa.PrivateKey)

	for _, password := range []string{"secret", "", "pässwörd"} {
		t.Run(password, func(t *testing.T) {
			pfx, err := encodeBundle(key, identity.Certificate, password, FriendlyName)
			require.NoError(t, err)

			priv, cert, err := pkcs12.Decode(pfx, password)
			require.NoError(t, err)
			require.True(t, key.Equal(priv))
			require.True(t, identity.Certificate.Equal(cert))

			_, _, err = pkcs12.Decode(pfx, password+"x")
			require.ErrorIs(t, err, pkcs12.ErrIncorrectPassword)
		})
	}
}

func TestNativeBundleFriendlyName(t *testing.T) {
	cfg := resolvedConfig(t)
	summary, err := Provision(cfg)
	require.NoError(t, err)

	bags := decodeSafeBags(t, readBytes(t, summary.Paths.Bundle), "secret")
	require.Len(t, bags, 2)
	for _, bag := range bags {
		require.Equal(t, FriendlyName, friendlyNameOf(t, bag))
	}
}

func TestEncodeBundleRejectsNonBMPPassword(t *testing.T) {
	identity := fakeca.New()
	_, err := encodeBundle(identity.PrivateKey.(*rsa.PrivateKey), identity.Certificate, "pass\U0001F511", FriendlyName)
	require.Error(t, err)
}

func TestBMPString(t *testing.T) {
	got, err := bmpStringZeroTerminated("server")
	require.NoError(t, err)
	require.Equal(t, []byte{0, 's', 0, 'e', 0, 'r', 0, 'v', 0, 'e', 0, 'r', 0, 0}, got)

	got, err = bmpString("é")
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0xe9}, got)
}
