package pki

import (
	"crypto/x509"

	"cloudops/internal/models"
)

// CertificateDetails extracts display fields from a parsed certificate.
func CertificateDetails(index int, cert *x509.Certificate) models.CertificateDetails {
	return models.CertificateDetails{
		Index:        index,
		SerialNumber: cert.SerialNumber.String(),
		Subject:      cert.Subject.String(),
		Issuer:       cert.Issuer.String(),
		NotBefore:    cert.NotBefore,
		NotAfter:     cert.NotAfter,
		CommonName:   cert.Subject.CommonName,
		Organization: cert.Subject.Organization,
		IsCA:         cert.IsCA,
		Fingerprint:  Fingerprint(cert),
	}
}

// Describe decodes b and returns details for every record in order.
func Describe(b Bundle) ([]models.CertificateDetails, error) {
	certs, err := Decode(b)
	if err != nil {
		return nil, err
	}

	details := make([]models.CertificateDetails, 0, len(certs))
	for i, cert := range certs {
		details = append(details, CertificateDetails(i, cert))
	}
	return details, nil
}
