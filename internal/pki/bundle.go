package pki

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spiffe/go-spiffe/v2/bundle/x509bundle"
	"github.com/spiffe/go-spiffe/v2/spiffeid"
)

// Encoding is the outer transport encoding of a trust bundle.
type Encoding int

const (
	// EncodingBase64 is base64 over concatenated PEM records. This is what the
	// control plane stores in acceptedClientCa.
	EncodingBase64 Encoding = iota
	// EncodingPEM is raw concatenated PEM records.
	EncodingPEM
)

func (e Encoding) String() string {
	if e == EncodingPEM {
		return "pem"
	}
	return "base64"
}

var (
	ErrMalformedBundle = errors.New("malformed trust bundle")
	ErrEmptyBundle     = errors.New("trust bundle would contain no certificates")
)

// bundleTrustDomain only scopes the go-spiffe parser, it is never published.
var bundleTrustDomain = spiffeid.RequireTrustDomainFromString("cloudops.internal")

// Bundle is an ordered sequence of CA certificates in its transport form.
type Bundle string

func (b Bundle) IsEmpty() bool {
	return strings.TrimSpace(string(b)) == ""
}

// DetectEncoding reports the outer encoding of b. Armored text is PEM,
// anything else is treated as base64.
func DetectEncoding(b Bundle) Encoding {
	if strings.HasPrefix(strings.TrimSpace(string(b)), "-----BEGIN") {
		return EncodingPEM
	}
	return EncodingBase64
}

// Raw strips the outer encoding and returns the PEM bytes.
func (b Bundle) Raw() ([]byte, error) {
	if b.IsEmpty() {
		return nil, nil
	}
	if DetectEncoding(b) == EncodingPEM {
		return []byte(b), nil
	}
	compact := strings.Join(strings.Fields(string(b)), "")
	raw, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 envelope: %w", ErrMalformedBundle, err)
	}
	return raw, nil
}

// Encode wraps raw PEM bytes in the requested outer encoding.
func Encode(raw []byte, enc Encoding) Bundle {
	if enc == EncodingPEM {
		return Bundle(raw)
	}
	return Bundle(base64.StdEncoding.EncodeToString(raw))
}

// Initial returns a bundle holding only ca.
func Initial(ca *Certificate) Bundle {
	return Bundle(ca.Encoded())
}

// Decode returns the certificates in b in bundle order. Any block that is not
// a certificate, and any non-whitespace text between or after blocks, is an
// error.
func Decode(b Bundle) ([]*x509.Certificate, error) {
	raw, err := b.Raw()
	if err != nil {
		return nil, err
	}
	return decodePEM(raw)
}

func decodePEM(raw []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := bytes.TrimSpace(raw)
	for len(rest) > 0 {
		if !bytes.HasPrefix(rest, []byte("-----BEGIN")) {
			return nil, fmt.Errorf("%w: unexpected data after record %d", ErrMalformedBundle, len(certs))
		}
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, fmt.Errorf("%w: unterminated PEM block after record %d", ErrMalformedBundle, len(certs))
		}
		if block.Type != pemTypeCertificate {
			return nil, fmt.Errorf("%w: record %d has type %q", ErrMalformedBundle, len(certs), block.Type)
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrMalformedBundle, len(certs), err)
		}
		certs = append(certs, cert)
		rest = bytes.TrimSpace(rest)
	}
	return certs, nil
}

// Append adds ca to the end of existing. The existing bundle is decoded to
// raw bytes, the new record is concatenated and the result is re-encoded in
// the existing bundle's outer encoding. An empty existing bundle yields
// Initial(ca). The result is checked to decode to the existing records
// followed by ca.
func Append(existing Bundle, ca *Certificate) (Bundle, error) {
	if ca == nil || ca.Cert == nil {
		return "", errors.New("certificate is required")
	}
	if existing.IsEmpty() {
		return Initial(ca), nil
	}

	current, err := Decode(existing)
	if err != nil {
		return "", fmt.Errorf("refusing to append to bundle: %w", err)
	}

	raw, err := existing.Raw()
	if err != nil {
		return "", err
	}

	combined := make([]byte, 0, len(raw)+len(ca.CertPEM)+1)
	combined = append(combined, raw...)
	if len(combined) > 0 && combined[len(combined)-1] != '\n' {
		combined = append(combined, '\n')
	}
	combined = append(combined, ca.CertPEM...)

	out := Encode(combined, DetectEncoding(existing))

	appended, err := Decode(out)
	if err != nil {
		return "", fmt.Errorf("appended bundle does not decode: %w", err)
	}
	if len(appended) != len(current)+1 {
		return "", fmt.Errorf("%w: expected %d records after append, got %d", ErrMalformedBundle, len(current)+1, len(appended))
	}
	for i, cert := range current {
		if !appended[i].Equal(cert) {
			return "", fmt.Errorf("%w: record %d changed during append", ErrMalformedBundle, i)
		}
	}
	if !appended[len(current)].Equal(ca.Cert) {
		return "", fmt.Errorf("%w: appended record does not match the new certificate", ErrMalformedBundle)
	}

	return out, nil
}

// Validate checks that b is non-empty and parses cleanly, both with the
// strict record decoder and with the SPIFFE X.509 bundle parser.
func Validate(b Bundle) error {
	certs, err := Decode(b)
	if err != nil {
		return err
	}
	if len(certs) == 0 {
		return ErrEmptyBundle
	}

	raw, err := b.Raw()
	if err != nil {
		return err
	}
	parsed, err := x509bundle.Parse(bundleTrustDomain, raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedBundle, err)
	}
	if len(parsed.X509Authorities()) == 0 {
		return ErrEmptyBundle
	}
	return nil
}

// Contains reports whether cert is one of the records in b.
func Contains(b Bundle, cert *x509.Certificate) (bool, error) {
	certs, err := Decode(b)
	if err != nil {
		return false, err
	}
	for _, c := range certs {
		if c.Equal(cert) {
			return true, nil
		}
	}
	return false, nil
}

// Filter keeps the records for which keep returns true, preserving order and
// outer encoding, and returns the removed records. It never returns an empty
// bundle.
func Filter(b Bundle, keep func(index int, cert *x509.Certificate) bool) (Bundle, []*x509.Certificate, error) {
	certs, err := Decode(b)
	if err != nil {
		return "", nil, err
	}

	var (
		buf     bytes.Buffer
		removed []*x509.Certificate
		kept    int
	)
	for i, cert := range certs {
		if !keep(i, cert) {
			removed = append(removed, cert)
			continue
		}
		if err := pem.Encode(&buf, &pem.Block{Type: pemTypeCertificate, Bytes: cert.Raw}); err != nil {
			return "", nil, fmt.Errorf("failed to encode record %d: %w", i, err)
		}
		kept++
	}

	if kept == 0 {
		return "", nil, ErrEmptyBundle
	}
	if len(removed) == 0 {
		return b, nil, nil
	}
	return Encode(buf.Bytes(), DetectEncoding(b)), removed, nil
}

// LatestExpiry returns the furthest NotAfter among certs.
func LatestExpiry(certs []*x509.Certificate) time.Time {
	var latest time.Time
	for _, c := range certs {
		if c.NotAfter.After(latest) {
			latest = c.NotAfter
		}
	}
	return latest
}
