package models

import "time"

type User struct {
	ID              string    `json:"id" yaml:"id"`
	ResourceVersion string    `json:"resourceVersion" yaml:"resource_version"`
	Spec            UserSpec  `json:"spec" yaml:"spec"`
	State           string    `json:"state" yaml:"state"`
	CreatedTime     time.Time `json:"createdTime" yaml:"created_time"`
}

type UserSpec struct {
	Email  string `json:"email" yaml:"email"`
	Access Access `json:"access" yaml:"access"`
}

// Access is shared by users and service accounts.
type Access struct {
	AccountAccess     *AccountAccess             `json:"accountAccess,omitempty" yaml:"account_access,omitempty"`
	NamespaceAccesses map[string]NamespaceAccess `json:"namespaceAccesses,omitempty" yaml:"namespace_accesses,omitempty"`
}

type AccountAccess struct {
	Role string `json:"role" yaml:"role"`
}

type NamespaceAccess struct {
	Permission string `json:"permission" yaml:"permission"`
}

// NewAccess builds an Access value from an account role and a map of
// namespace id to permission.
func NewAccess(accountRole string, namespacePermissions map[string]string) Access {
	access := Access{}
	if accountRole != "" {
		access.AccountAccess = &AccountAccess{Role: accountRole}
	}
	if len(namespacePermissions) > 0 {
		access.NamespaceAccesses = make(map[string]NamespaceAccess, len(namespacePermissions))
		for ns, perm := range namespacePermissions {
			access.NamespaceAccesses[ns] = NamespaceAccess{Permission: perm}
		}
	}
	return access
}
