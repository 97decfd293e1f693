package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"

	"cloudops/internal/config"

	"github.com/google/uuid"
)

const (
	MinKeyBits = 2048

	pemTypeCertificate = "CERTIFICATE"
)

// ErrCryptoGeneration is returned when key or certificate generation fails.
var ErrCryptoGeneration = errors.New("ca generation failed")

// internal variables for mocking in tests
var (
	randReader       io.Reader = rand.Reader
	parseCertificate           = x509.ParseCertificate
)

// Certificate is a freshly generated CA. The private key is dropped once the
// certificate is signed, only the public certificate is kept.
type Certificate struct {
	Cert    *x509.Certificate
	CertPEM []byte
}

// Encoded returns the PEM wrapped in the base64 envelope the control plane
// expects for accepted client CAs.
func (c *Certificate) Encoded() string {
	return base64.StdEncoding.EncodeToString(c.CertPEM)
}

func (c *Certificate) Fingerprint() string {
	return Fingerprint(c.Cert)
}

// Factory generates self-signed CA certificates.
type Factory struct {
	KeyBits          int
	Validity         time.Duration
	Organization     string
	CommonNamePrefix string

	now func() time.Time
}

func NewFactory(cfg config.CAConfig) *Factory {
	return &Factory{
		KeyBits:          cfg.KeyBits,
		Validity:         cfg.Validity,
		Organization:     cfg.Organization,
		CommonNamePrefix: cfg.CommonNamePrefix,
		now:              time.Now,
	}
}

// Generate creates a new RSA CA with common name "<prefix>-<suffix>". The
// suffix should carry a freshness token (see UniqueSuffix) so repeated
// rotations never produce two CAs with the same subject.
func (f *Factory) Generate(commonNameSuffix string) (*Certificate, error) {
	keyBits := f.KeyBits
	if keyBits == 0 {
		keyBits = config.DefaultCAConfig.KeyBits
	}
	if keyBits < MinKeyBits {
		return nil, fmt.Errorf("%w: key size %d is below the %d bit minimum", ErrCryptoGeneration, keyBits, MinKeyBits)
	}

	validity := f.Validity
	if validity <= 0 {
		validity = config.DefaultCAConfig.Validity
	}

	now := time.Now
	if f.now != nil {
		now = f.now
	}

	privKey, err := rsa.GenerateKey(randReader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate private key: %w", ErrCryptoGeneration, err)
	}

	serial, err := newSerialNumber()
	if err != nil {
		return nil, err
	}

	subject := pkix.Name{CommonName: f.commonName(commonNameSuffix)}
	if f.Organization != "" {
		subject.Organization = []string{f.Organization}
	}

	notBefore := now().UTC().Truncate(time.Second)
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               subject,
		Issuer:                subject,
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(validity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		SubjectKeyId:          subjectKeyID(&privKey.PublicKey),
		SignatureAlgorithm:    x509.SHA256WithRSA,
	}

	derBytes, err := x509.CreateCertificate(randReader, &template, &template, &privKey.PublicKey, privKey)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create certificate: %w", ErrCryptoGeneration, err)
	}

	cert, err := parseCertificate(derBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse generated certificate: %w", ErrCryptoGeneration, err)
	}

	return &Certificate{
		Cert:    cert,
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: pemTypeCertificate, Bytes: derBytes}),
	}, nil
}

func (f *Factory) commonName(suffix string) string {
	switch {
	case f.CommonNamePrefix == "":
		return suffix
	case suffix == "":
		return f.CommonNamePrefix
	default:
		return f.CommonNamePrefix + "-" + suffix
	}
}

// UniqueSuffix returns "<unix-seconds>-<random>" for use as a common name
// suffix.
func UniqueSuffix(now time.Time) string {
	return strconv.FormatInt(now.Unix(), 10) + "-" + uuid.NewString()[:8]
}

// newSerialNumber returns a random 128 bit positive serial.
func newSerialNumber() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(randReader, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate serial number: %w", ErrCryptoGeneration, err)
	}
	// zero is not a valid serial
	if serial.Sign() == 0 {
		serial.SetInt64(1)
	}
	return serial, nil
}

// subjectKeyID follows RFC 5280 section 4.2.1.2 method (1).
func subjectKeyID(pub *rsa.PublicKey) []byte {
	sum := sha1.Sum(x509.MarshalPKCS1PublicKey(pub))
	return sum[:]
}

// Fingerprint is the hex SHA-256 of the certificate DER.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:])
}
