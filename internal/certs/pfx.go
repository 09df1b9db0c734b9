package certs

import (
	"bytes"
	"crypto/cipher"
	"crypto/des"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"unicode/utf16"
)

// Legacy PKCS#12 writer used by NativeBackend. go-pkcs12 covers reading and
// the same algorithms, but cannot attach a friendlyName to its bags.

var (
	oidDataContentType          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	oidEncryptedDataContentType = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 6}
	oidPBEWithSHAAnd3KeyDESCBC  = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 1, 3}
	oidSHA1                     = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	oidFriendlyName             = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 20}
	oidLocalKeyID               = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 21}
	oidCertTypeX509Certificate  = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 22, 1}
	oidPKCS8ShroudedKeyBag      = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 10, 1, 2}
	oidCertBag                  = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 12, 10, 1, 3}
)

// pbeSaltSize is the salt length for the PBE and MAC key derivation.
const pbeSaltSize = 8

type pfxPdu struct {
	Version  int
	AuthSafe contentInfo
	MacData  macData
}

type contentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"tag:0,explicit,optional"`
}

type encryptedData struct {
	Version              int
	EncryptedContentInfo encryptedContentInfo
}

type encryptedContentInfo struct {
	ContentType                asn1.ObjectIdentifier
	ContentEncryptionAlgorithm pkix.AlgorithmIdentifier
	EncryptedContent           []byte `asn1:"tag:0,optional"`
}

type macData struct {
	Mac        digestInfo
	MacSalt    []byte
	Iterations int
}

type digestInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	Digest    []byte
}

type safeBag struct {
	ID         asn1.ObjectIdentifier
	Value      asn1.RawValue     `asn1:"tag:0,explicit"`
	Attributes []pkcs12Attribute `asn1:"set,optional"`
}

type pkcs12Attribute struct {
	ID    asn1.ObjectIdentifier
	Value asn1.RawValue `asn1:"set"`
}

type certBag struct {
	ID   asn1.ObjectIdentifier
	Data []byte `asn1:"tag:0,explicit"`
}

type encryptedPrivateKeyInfo struct {
	AlgorithmIdentifier pkix.AlgorithmIdentifier
	EncryptedData       []byte
}

type pbeParams struct {
	Salt       []byte
	Iterations int
}

// encodeBundle writes key and cert as a PKCS#12 file protected by
// password. Both bags are encrypted with pbeWithSHAAnd3-KeyTripleDES-CBC,
// labelled with friendlyName and tied together by a localKeyId holding the
// SHA-1 of the certificate. The MAC is HMAC-SHA-1.
func encodeBundle(key *rsa.PrivateKey, cert *x509.Certificate, password, friendlyName string) ([]byte, error) {
	encodedPassword, err := bmpStringZeroTerminated(password)
	if err != nil {
		return nil, err
	}

	localKeyID := sha1.Sum(cert.Raw)
	attributes, err := bagAttributes(friendlyName, localKeyID[:])
	if err != nil {
		return nil, err
	}

	certSafe, err := certSafeContents(cert, attributes, encodedPassword)
	if err != nil {
		return nil, err
	}
	keySafe, err := keySafeContents(key, attributes, encodedPassword)
	if err != nil {
		return nil, err
	}

	authenticatedSafe, err := asn1.Marshal([]contentInfo{certSafe, keySafe})
	if err != nil {
		return nil, err
	}

	pfx := pfxPdu{Version: 3}
	if pfx.MacData, err = computeMac(authenticatedSafe, encodedPassword); err != nil {
		return nil, err
	}
	pfx.AuthSafe.ContentType = oidDataContentType
	if pfx.AuthSafe.Content, err = explicitContent(authenticatedSafe); err != nil {
		return nil, err
	}

	return asn1.Marshal(pfx)
}

func certSafeContents(cert *x509.Certificate, attributes []pkcs12Attribute, password []byte) (contentInfo, error) {
	bagValue, err := asn1.Marshal(certBag{ID: oidCertTypeX509Certificate, Data: cert.Raw})
	if err != nil {
		return contentInfo{}, err
	}
	safeContents, err := asn1.Marshal([]safeBag{newSafeBag(oidCertBag, bagValue, attributes)})
	if err != nil {
		return contentInfo{}, err
	}

	algorithm, ciphertext, err := pbeEncrypt(safeContents, password)
	if err != nil {
		return contentInfo{}, err
	}
	content, err := asn1.Marshal(encryptedData{
		EncryptedContentInfo: encryptedContentInfo{
			ContentType:                oidDataContentType,
			ContentEncryptionAlgorithm: algorithm,
			EncryptedContent:           ciphertext,
		},
	})
	if err != nil {
		return contentInfo{}, err
	}
	return contentInfo{
		ContentType: oidEncryptedDataContentType,
		Content:     asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: content},
	}, nil
}

func keySafeContents(key *rsa.PrivateKey, attributes []pkcs12Attribute, password []byte) (contentInfo, error) {
	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return contentInfo{}, err
	}
	algorithm, ciphertext, err := pbeEncrypt(pkcs8, password)
	if err != nil {
		return contentInfo{}, err
	}
	bagValue, err := asn1.Marshal(encryptedPrivateKeyInfo{AlgorithmIdentifier: algorithm, EncryptedData: ciphertext})
	if err != nil {
		return contentInfo{}, err
	}
	safeContents, err := asn1.Marshal([]safeBag{newSafeBag(oidPKCS8ShroudedKeyBag, bagValue, attributes)})
	if err != nil {
		return contentInfo{}, err
	}

	info := contentInfo{ContentType: oidDataContentType}
	if info.Content, err = explicitContent(safeContents); err != nil {
		return contentInfo{}, err
	}
	return info, nil
}

func newSafeBag(id asn1.ObjectIdentifier, value []byte, attributes []pkcs12Attribute) safeBag {
	return safeBag{
		ID:         id,
		Value:      asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: value},
		Attributes: attributes,
	}
}

// explicitContent wraps data as an OCTET STRING inside the [0] EXPLICIT
// content of a ContentInfo.
func explicitContent(data []byte) (asn1.RawValue, error) {
	octets, err := asn1.Marshal(data)
	if err != nil {
		return asn1.RawValue{}, err
	}
	return asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: octets}, nil
}

func bagAttributes(friendlyName string, localKeyID []byte) ([]pkcs12Attribute, error) {
	name, err := bmpString(friendlyName)
	if err != nil {
		return nil, err
	}
	nameValue, err := asn1.Marshal(asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagBMPString, Bytes: name})
	if err != nil {
		return nil, err
	}
	idValue, err := asn1.Marshal(localKeyID)
	if err != nil {
		return nil, err
	}
	return []pkcs12Attribute{
		{ID: oidFriendlyName, Value: setOf(nameValue)},
		{ID: oidLocalKeyID, Value: setOf(idValue)},
	}, nil
}

func setOf(value []byte) asn1.RawValue {
	return asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagSet, IsCompound: true, Bytes: value}
}

func pbeEncrypt(plaintext, password []byte) (pkix.AlgorithmIdentifier, []byte, error) {
	salt := make([]byte, pbeSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return pkix.AlgorithmIdentifier{}, nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	params, err := asn1.Marshal(pbeParams{Salt: salt, Iterations: BundleIterations})
	if err != nil {
		return pkix.AlgorithmIdentifier{}, nil, err
	}

	block, err := des.NewTripleDESCipher(pbkdf(pbeKeyID, password, salt, BundleIterations, 24))
	if err != nil {
		return pkix.AlgorithmIdentifier{}, nil, err
	}
	iv := pbkdf(pbeIVID, password, salt, BundleIterations, block.BlockSize())

	padding := block.BlockSize() - len(plaintext)%block.BlockSize()
	ciphertext := make([]byte, len(plaintext)+padding)
	copy(ciphertext, plaintext)
	copy(ciphertext[len(plaintext):], bytes.Repeat([]byte{byte(padding)}, padding))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, ciphertext)

	algorithm := pkix.AlgorithmIdentifier{
		Algorithm:  oidPBEWithSHAAnd3KeyDESCBC,
		Parameters: asn1.RawValue{FullBytes: params},
	}
	return algorithm, ciphertext, nil
}

func computeMac(message, password []byte) (macData, error) {
	salt := make([]byte, pbeSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return macData{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	mac := hmac.New(sha1.New, pbkdf(pbeMACID, password, salt, BundleIterations, sha1.Size))
	mac.Write(message)
	return macData{
		Mac: digestInfo{
			Algorithm: pkix.AlgorithmIdentifier{Algorithm: oidSHA1, Parameters: asn1.NullRawValue},
			Digest:    mac.Sum(nil),
		},
		MacSalt:    salt,
		Iterations: BundleIterations,
	}, nil
}

// Diversifier IDs of the PKCS#12 key derivation (RFC 7292, appendix B.3).
const (
	pbeKeyID byte = 1
	pbeIVID  byte = 2
	pbeMACID byte = 3
)

// pbkdf is the PKCS#12 key derivation function (RFC 7292, appendix B.2)
// with SHA-1. password must already be a zero terminated BMPString.
func pbkdf(id byte, password, salt []byte, iterations, size int) []byte {
	const u, v = sha1.Size, 64

	d := bytes.Repeat([]byte{id}, v)
	in := append(repeatTo(salt, v), repeatTo(password, v)...)

	one := big.NewInt(1)
	out := make([]byte, 0, size+u)
	for len(out) < size {
		h := sha1.New()
		h.Write(d)
		h.Write(in)
		a := h.Sum(nil)
		for i := 1; i < iterations; i++ {
			sum := sha1.Sum(a)
			a = sum[:]
		}
		out = append(out, a...)
		if len(out) >= size {
			break
		}

		// in[j] = (in[j] + b + 1) mod 2^(8v) for every v-byte block.
		b := new(big.Int).SetBytes(repeatTo(a, v)[:v])
		for j := 0; j < len(in); j += v {
			block := in[j : j+v]
			n := new(big.Int).SetBytes(block)
			n.Add(n, b)
			n.Add(n, one)
			sum := n.Bytes()
			if len(sum) > v {
				sum = sum[len(sum)-v:]
			}
			clear(block)
			copy(block[v-len(sum):], sum)
		}
	}
	return out[:size]
}

// repeatTo concatenates copies of b up to the next multiple of v bytes.
func repeatTo(b []byte, v int) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, v*((len(b)+v-1)/v))
	for i := range out {
		out[i] = b[i%len(b)]
	}
	return out
}

// bmpString encodes s as big-endian UCS-2.
func bmpString(s string) ([]byte, error) {
	out := make([]byte, 0, 2*len(s))
	for _, r := range s {
		if r > 0xFFFF || utf16.IsSurrogate(r) {
			return nil, fmt.Errorf("%q contains characters outside the Basic Multilingual Plane", s)
		}
		out = append(out, byte(r>>8), byte(r))
	}
	return out, nil
}

func bmpStringZeroTerminated(s string) ([]byte, error) {
	out, err := bmpString(s)
	if err != nil {
		return nil, err
	}
	return append(out, 0, 0), nil
}
