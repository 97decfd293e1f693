package models

import (
	"time"
)

// CertificateDetails describes one CA in a namespace trust bundle.
type CertificateDetails struct {
	Index        int       `json:"index" yaml:"index"`
	SerialNumber string    `json:"serial_number" yaml:"serial_number"`
	Subject      string    `json:"subject" yaml:"subject"`
	Issuer       string    `json:"issuer" yaml:"issuer"`
	NotBefore    time.Time `json:"not_before" yaml:"not_before"`
	NotAfter     time.Time `json:"not_after" yaml:"not_after"`
	CommonName   string    `json:"common_name" yaml:"common_name"`
	Organization []string  `json:"organization" yaml:"organization"`
	IsCA         bool      `json:"is_ca" yaml:"is_ca"`
	Fingerprint  string    `json:"fingerprint_sha256" yaml:"fingerprint_sha256"`
}

func (d CertificateDetails) Expired(now time.Time) bool {
	return !now.Before(d.NotAfter)
}
