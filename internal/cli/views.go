package cli

import (
	"strconv"
	"strings"
	"time"

	"cloudops/internal/models"
)

const timeLayout = "2006-01-02 15:04 MST"

type namespaceTable []models.Namespace

func (t namespaceTable) Header() []string {
	return []string{"NAMESPACE", "STATE", "AUTH", "REGIONS", "RETENTION", "VERSION"}
}

func (t namespaceTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, ns := range t {
		rows = append(rows, []string{
			ns.ID,
			ns.State,
			authModes(ns.Spec),
			strings.Join(ns.Spec.Regions, ","),
			strconv.Itoa(ns.Spec.RetentionDays) + "d",
			ns.ResourceVersion,
		})
	}
	return rows
}

// namespaceView renders a single namespace as a one row table while keeping
// the full object for json and yaml.
type namespaceView struct {
	models.Namespace `yaml:",inline"`
}

func (v namespaceView) Header() []string { return namespaceTable{}.Header() }

func (v namespaceView) Rows() [][]string {
	return namespaceTable{v.Namespace}.Rows()
}

func authModes(spec models.NamespaceSpec) string {
	var modes []string
	if spec.APIKeyAuth != nil && spec.APIKeyAuth.Enabled {
		modes = append(modes, "api_key")
	}
	if spec.MTLSAuth != nil && spec.MTLSAuth.Enabled {
		modes = append(modes, "mtls")
	}
	if len(modes) == 0 {
		return "-"
	}
	return strings.Join(modes, ",")
}

type certificateTable []models.CertificateDetails

func (t certificateTable) Header() []string {
	return []string{"INDEX", "COMMON NAME", "NOT AFTER", "STATUS", "FINGERPRINT"}
}

func (t certificateTable) Rows() [][]string {
	now := time.Now()
	rows := make([][]string, 0, len(t))
	for _, cert := range t {
		status := "valid"
		if cert.Expired(now) {
			status = "expired"
		}
		rows = append(rows, []string{
			strconv.Itoa(cert.Index),
			cert.CommonName,
			cert.NotAfter.UTC().Format(timeLayout),
			status,
			cert.Fingerprint,
		})
	}
	return rows
}

type provisionView struct {
	Namespace     string `json:"namespace" yaml:"namespace"`
	State         string `json:"state" yaml:"state"`
	Created       bool   `json:"created" yaml:"created"`
	Transitions   string `json:"transitions" yaml:"transitions"`
	CAFingerprint string `json:"ca_fingerprint,omitempty" yaml:"ca_fingerprint,omitempty"`
	CAExpires     string `json:"ca_expires,omitempty" yaml:"ca_expires,omitempty"`
}

type rotationView struct {
	Namespace           string `json:"namespace" yaml:"namespace"`
	CACommonName        string `json:"ca_common_name" yaml:"ca_common_name"`
	CAFingerprint       string `json:"ca_fingerprint" yaml:"ca_fingerprint"`
	CAExpires           string `json:"ca_expires" yaml:"ca_expires"`
	BundleSize          int    `json:"bundle_size" yaml:"bundle_size"`
	BaseResourceVersion string `json:"base_resource_version" yaml:"base_resource_version"`
	Attempts            int    `json:"attempts" yaml:"attempts"`
	Conflicts           int    `json:"conflicts" yaml:"conflicts"`
	OperationID         string `json:"operation_id,omitempty" yaml:"operation_id,omitempty"`
}

// pruneView lists the removed CAs in table form.
type pruneView struct {
	Namespace string                      `json:"namespace" yaml:"namespace"`
	Removed   []models.CertificateDetails `json:"removed" yaml:"removed"`
	Remaining int                         `json:"remaining" yaml:"remaining"`
}

func (v pruneView) Header() []string { return certificateTable{}.Header() }

func (v pruneView) Rows() [][]string {
	return certificateTable(v.Removed).Rows()
}

type userTable []models.User

func (t userTable) Header() []string {
	return []string{"ID", "EMAIL", "ACCOUNT ROLE", "NAMESPACES", "STATE"}
}

func (t userTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, u := range t {
		rows = append(rows, []string{u.ID, u.Spec.Email, accountRole(u.Spec.Access), strconv.Itoa(len(u.Spec.Access.NamespaceAccesses)), u.State})
	}
	return rows
}

type serviceAccountTable []models.ServiceAccount

func (t serviceAccountTable) Header() []string {
	return []string{"ID", "NAME", "ACCOUNT ROLE", "NAMESPACES", "STATE"}
}

func (t serviceAccountTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, sa := range t {
		rows = append(rows, []string{sa.ID, sa.Spec.Name, accountRole(sa.Spec.Access), strconv.Itoa(len(sa.Spec.Access.NamespaceAccesses)), sa.State})
	}
	return rows
}

func accountRole(access models.Access) string {
	if access.AccountAccess == nil || access.AccountAccess.Role == "" {
		return "-"
	}
	return access.AccountAccess.Role
}

type createdView struct {
	ID          string `json:"id" yaml:"id"`
	OperationID string `json:"operation_id,omitempty" yaml:"operation_id,omitempty"`
	State       string `json:"state,omitempty" yaml:"state,omitempty"`
}

func newCreatedView(id string, op *models.AsyncOperation) createdView {
	view := createdView{ID: id}
	if op != nil {
		view.OperationID = op.ID
		view.State = op.State
	}
	return view
}

type apiKeyView struct {
	KeyID   string `json:"key_id" yaml:"key_id"`
	Token   string `json:"token" yaml:"token"`
	Expires string `json:"expires" yaml:"expires"`
}
