package models

import "strings"

const (
	NamespaceStateActive         = "active"
	NamespaceStateResourceActive = "RESOURCE_STATE_ACTIVE"
	NamespaceStateFailed         = "RESOURCE_STATE_FAILED"
)

// Namespace is a snapshot of a namespace as returned by the control plane.
// It is request scoped and never cached between operations.
type Namespace struct {
	ID               string          `json:"namespace" yaml:"id"`
	ResourceVersion  string          `json:"resourceVersion" yaml:"resource_version"`
	Spec             NamespaceSpec   `json:"spec" yaml:"spec"`
	State            string          `json:"state" yaml:"state"`
	AsyncOperationID string          `json:"asyncOperationId,omitempty" yaml:"async_operation_id,omitempty"`
	Endpoints        *NamespaceHosts `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
}

type NamespaceHosts struct {
	WebAddress      string `json:"webAddress,omitempty" yaml:"web_address,omitempty"`
	GrpcAddress     string `json:"grpcAddress,omitempty" yaml:"grpc_address,omitempty"`
	MtlsGrpcAddress string `json:"mtlsGrpcAddress,omitempty" yaml:"mtls_grpc_address,omitempty"`
}

type NamespaceSpec struct {
	Name          string          `json:"name" yaml:"name"`
	Regions       []string        `json:"regions" yaml:"regions"`
	RetentionDays int             `json:"retentionDays" yaml:"retention_days"`
	MTLSAuth      *MTLSAuthSpec   `json:"mtlsAuth,omitempty" yaml:"mtls_auth,omitempty"`
	APIKeyAuth    *APIKeyAuthSpec `json:"apiKeyAuth,omitempty" yaml:"api_key_auth,omitempty"`
}

type MTLSAuthSpec struct {
	Enabled            bool                `json:"enabled" yaml:"enabled"`
	AcceptedClientCA   string              `json:"acceptedClientCa,omitempty" yaml:"accepted_client_ca,omitempty"`
	CertificateFilters []CertificateFilter `json:"certificateFilters,omitempty" yaml:"certificate_filters,omitempty"`
}

type CertificateFilter struct {
	CommonName             string `json:"commonName,omitempty" yaml:"common_name,omitempty"`
	Organization           string `json:"organization,omitempty" yaml:"organization,omitempty"`
	OrganizationalUnit     string `json:"organizationalUnit,omitempty" yaml:"organizational_unit,omitempty"`
	SubjectAlternativeName string `json:"subjectAlternativeName,omitempty" yaml:"subject_alternative_name,omitempty"`
}

type APIKeyAuthSpec struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// AccountID returns the account suffix of a fully qualified namespace id.
func (n Namespace) AccountID() string {
	_, account, _ := strings.Cut(n.ID, ".")
	return account
}

func (n Namespace) IsActive() bool {
	return IsActiveState(n.State)
}

func (n Namespace) MTLSEnabled() bool {
	return n.Spec.MTLSAuth != nil && n.Spec.MTLSAuth.Enabled
}

func IsActiveState(state string) bool {
	return strings.EqualFold(state, NamespaceStateActive) || state == NamespaceStateResourceActive
}

// IsFailedState reports whether the control plane considers the resource
// permanently failed.
func IsFailedState(state string) bool {
	return strings.EqualFold(state, "failed") || state == NamespaceStateFailed
}

// Clone returns a deep copy of the namespace spec so callers can modify the copy
// without aliasing the fetched snapshot.
func (s NamespaceSpec) Clone() NamespaceSpec {
	out := s
	out.Regions = append([]string(nil), s.Regions...)
	if s.MTLSAuth != nil {
		mtls := *s.MTLSAuth
		mtls.CertificateFilters = append([]CertificateFilter(nil), s.MTLSAuth.CertificateFilters...)
		out.MTLSAuth = &mtls
	}
	if s.APIKeyAuth != nil {
		apiKey := *s.APIKeyAuth
		out.APIKeyAuth = &apiKey
	}
	return out
}

// FullyQualifiedName joins a short namespace name with the account id.
func FullyQualifiedName(name, accountID string) string {
	if accountID == "" || strings.HasSuffix(name, "."+accountID) {
		return name
	}
	return name + "." + accountID
}
