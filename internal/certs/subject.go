package certs

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ksyq12/omero-certificates/internal/errors"
)

// Attribute type OIDs accepted by name in owner strings.
var (
	oidCommonName       = asn1.ObjectIdentifier{2, 5, 4, 3}
	oidCountry          = asn1.ObjectIdentifier{2, 5, 4, 6}
	oidLocality         = asn1.ObjectIdentifier{2, 5, 4, 7}
	oidProvince         = asn1.ObjectIdentifier{2, 5, 4, 8}
	oidStreetAddress    = asn1.ObjectIdentifier{2, 5, 4, 9}
	oidOrganization     = asn1.ObjectIdentifier{2, 5, 4, 10}
	oidOrganizationUnit = asn1.ObjectIdentifier{2, 5, 4, 11}
	oidDomainComponent  = asn1.ObjectIdentifier{0, 9, 2342, 19200300, 100, 1, 25}
	oidUserID           = asn1.ObjectIdentifier{0, 9, 2342, 19200300, 100, 1, 1}
)

var attributeTypes = []struct {
	name string
	oid  asn1.ObjectIdentifier
}{
	{"CN", oidCommonName},
	{"C", oidCountry},
	{"L", oidLocality},
	{"ST", oidProvince},
	{"STREET", oidStreetAddress},
	{"O", oidOrganization},
	{"OU", oidOrganizationUnit},
	{"DC", oidDomainComponent},
	{"UID", oidUserID},
}

// Subject is the distinguished name of the self-signed certificate. It is
// used as both subject and issuer.
type Subject struct {
	rdns pkix.RDNSequence
}

// ParseSubject builds the certificate subject from the owner setting and
// the common name. owner is either an RFC 4514 string such as
// "L=OMERO,O=OMERO.server" or the slash-delimited form "/L=OMERO/O=OMERO.server"
// written by older releases. Any other input yields an INVALID_SUBJECT error.
func ParseSubject(owner, commonName string) (*Subject, error) {
	if strings.HasPrefix(owner, "/") {
		rdns, err := parseSlashDN(owner)
		if err == nil {
			err = checkValues(rdns)
		}
		if err != nil {
			return nil, errors.InvalidSubject(owner, err)
		}
		rdns = append(rdns, pkix.RelativeDistinguishedNameSET{{Type: oidCommonName, Value: commonName}})
		return &Subject{rdns: rdns}, nil
	}

	rdns, err := parseRFC4514(owner)
	if err == nil {
		err = checkValues(rdns)
	}
	if err != nil {
		return nil, errors.InvalidSubject(owner, err)
	}
	// CN is written last in RFC 4514 order, so it comes first in ASN.1 order.
	cn := pkix.RelativeDistinguishedNameSET{{Type: oidCommonName, Value: commonName}}
	return &Subject{rdns: append(pkix.RDNSequence{cn}, rdns...)}, nil
}

// RDNs returns the subject in ASN.1 order.
func (s *Subject) RDNs() pkix.RDNSequence {
	return s.rdns
}

// Name returns the subject as a pkix.Name.
func (s *Subject) Name() pkix.Name {
	var name pkix.Name
	name.FillFromRDNSequence(&s.rdns)
	return name
}

// DER returns the DER encoding of the subject, suitable for
// x509.Certificate.RawSubject.
func (s *Subject) DER() ([]byte, error) {
	return asn1.Marshal(s.rdns)
}

// String returns the RFC 4514 form of the subject.
func (s *Subject) String() string {
	return s.rdns.String()
}

// MultiValued reports whether any RDN holds more than one attribute.
func (s *Subject) MultiValued() bool {
	for _, rdn := range s.rdns {
		if len(rdn) > 1 {
			return true
		}
	}
	return false
}

// OpenSSL returns the subject in the format of `openssl req -subj`.
func (s *Subject) OpenSSL() string {
	var b strings.Builder
	for _, rdn := range s.rdns {
		b.WriteByte('/')
		for i, atv := range rdn {
			if i > 0 {
				b.WriteByte('+')
			}
			b.WriteString(attributeName(atv.Type))
			b.WriteByte('=')
			b.WriteString(escapeSlash(fmt.Sprint(atv.Value)))
		}
	}
	return b.String()
}

// checkValues rejects values that cannot be encoded for their attribute
// type. A country is an ISO 3166 two-letter code.
func checkValues(rdns pkix.RDNSequence) error {
	for _, rdn := range rdns {
		for _, atv := range rdn {
			if !atv.Type.Equal(oidCountry) {
				continue
			}
			v := fmt.Sprint(atv.Value)
			if len(v) != 2 || !isASCIILetter(v[0]) || !isASCIILetter(v[1]) {
				return fmt.Errorf("country %q must be a two-letter code", v)
			}
		}
	}
	return nil
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func attributeOID(name string) (asn1.ObjectIdentifier, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("missing attribute type")
	}
	for _, t := range attributeTypes {
		if strings.EqualFold(t.name, name) {
			return t.oid, nil
		}
	}
	if name[0] >= '0' && name[0] <= '9' {
		var oid asn1.ObjectIdentifier
		for _, part := range strings.Split(name, ".") {
			n, err := strconv.Atoi(part)
			if err != nil || n < 0 || strconv.Itoa(n) != part {
				return nil, fmt.Errorf("invalid attribute OID %q", name)
			}
			oid = append(oid, n)
		}
		if len(oid) < 2 {
			return nil, fmt.Errorf("invalid attribute OID %q", name)
		}
		return oid, nil
	}
	return nil, fmt.Errorf("unknown attribute type %q", name)
}

func attributeName(oid asn1.ObjectIdentifier) string {
	for _, t := range attributeTypes {
		if t.oid.Equal(oid) {
			return t.name
		}
	}
	return oid.String()
}

// parseRFC4514 parses a distinguished name string. RFC 4514 lists RDNs
// most specific first, so the result is reversed into ASN.1 order.
func parseRFC4514(s string) (pkix.RDNSequence, error) {
	if s == "" {
		return nil, fmt.Errorf("empty distinguished name")
	}

	var (
		rdns pkix.RDNSequence
		rdn  pkix.RelativeDistinguishedNameSET
	)
	for i := 0; i <= len(s); {
		eq := strings.IndexByte(s[i:], '=')
		if eq < 0 {
			return nil, fmt.Errorf("attribute %q has no value", s[i:])
		}
		oid, err := attributeOID(s[i : i+eq])
		if err != nil {
			return nil, err
		}
		i += eq + 1

		value, n, err := readRFC4514Value(s[i:])
		if err != nil {
			return nil, err
		}
		i += n
		rdn = append(rdn, pkix.AttributeTypeAndValue{Type: oid, Value: value})

		if i == len(s) || s[i] == ',' {
			rdns = append(rdns, rdn)
			rdn = nil
		}
		if i == len(s) {
			break
		}
		i++
		if i == len(s) {
			return nil, fmt.Errorf("trailing separator")
		}
	}

	for l, r := 0, len(rdns)-1; l < r; l, r = l+1, r-1 {
		rdns[l], rdns[r] = rdns[r], rdns[l]
	}
	return rdns, nil
}

// readRFC4514Value reads one attribute value up to the next unescaped ','
// or '+', returning the unescaped value and the bytes consumed.
func readRFC4514Value(s string) (string, int, error) {
	if strings.HasPrefix(s, "#") {
		return "", 0, fmt.Errorf("hex-encoded attribute values are not supported")
	}

	var (
		out []byte
		i   int
	)
	for i < len(s) {
		c := s[i]
		switch c {
		case ',', '+':
			return finishValue(out, i)
		case '"', ';', '<', '>':
			return "", 0, fmt.Errorf("unescaped %q in attribute value", c)
		case '\\':
			if i+1 >= len(s) {
				return "", 0, fmt.Errorf("dangling escape at end of value")
			}
			next := s[i+1]
			if strings.IndexByte(`,+"\<>;= #`, next) >= 0 {
				out = append(out, next)
				i += 2
				continue
			}
			if i+2 < len(s) {
				if b, err := hex.DecodeString(s[i+1 : i+3]); err == nil {
					out = append(out, b[0])
					i += 3
					continue
				}
			}
			return "", 0, fmt.Errorf("invalid escape sequence at %q", s[i:])
		default:
			out = append(out, c)
			i++
		}
	}
	return finishValue(out, i)
}

func finishValue(out []byte, n int) (string, int, error) {
	if !utf8.Valid(out) {
		return "", 0, fmt.Errorf("attribute value is not valid UTF-8")
	}
	return string(out), n, nil
}

// parseSlashDN parses the "/TYPE=value/TYPE=value" form used by
// `openssl req -subj`. RDNs are already in ASN.1 order.
func parseSlashDN(s string) (pkix.RDNSequence, error) {
	var (
		rdns  pkix.RDNSequence
		parts []string
		cur   []byte
	)
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 >= len(s) {
				return nil, fmt.Errorf("dangling escape at end of value")
			}
			i++
			cur = append(cur, s[i])
		case '/':
			parts = append(parts, string(cur))
			cur = nil
		default:
			cur = append(cur, s[i])
		}
	}
	parts = append(parts, string(cur))

	for _, part := range parts {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("attribute %q has no value", part)
		}
		oid, err := attributeOID(name)
		if err != nil {
			return nil, err
		}
		if !utf8.ValidString(value) {
			return nil, fmt.Errorf("attribute value is not valid UTF-8")
		}
		rdns = append(rdns, pkix.RelativeDistinguishedNameSET{{Type: oid, Value: value}})
	}
	return rdns, nil
}

func escapeSlash(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `/`, `\/`, `+`, `\+`)
	return r.Replace(v)
}
