package cloudapi

import (
	"context"

	"cloudops/internal/models"
)

//go:generate mockgen -source=service.go -destination=../mocks/cloudapi.go -package=mocks

// NamespaceService is the subset of the control plane used to provision and
// rotate namespaces.
type NamespaceService interface {
	GetNamespace(ctx context.Context, namespaceID string) (*models.Namespace, error)
	CreateNamespace(ctx context.Context, spec models.NamespaceSpec) (*models.AsyncOperation, error)
	UpdateNamespace(ctx context.Context, namespaceID string, spec models.NamespaceSpec, resourceVersion string) (*models.AsyncOperation, error)
	ListNamespaces(ctx context.Context) ([]models.Namespace, error)
}

// IdentityService covers account administration.
type IdentityService interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, spec models.UserSpec) (string, *models.AsyncOperation, error)
	ListServiceAccounts(ctx context.Context) ([]models.ServiceAccount, error)
	CreateServiceAccount(ctx context.Context, spec models.ServiceAccountSpec) (string, *models.AsyncOperation, error)
	CreateAPIKey(ctx context.Context, spec models.APIKeySpec) (*models.CreatedAPIKey, error)
}

type LookupStatus int

const (
	LookupFailed LookupStatus = iota
	LookupFound
	LookupNotFound
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupNotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// LookupResult is the outcome of a namespace lookup. Exactly one of
// Namespace (Found) or Err (Failed) is set; NotFound carries neither.
type LookupResult struct {
	Status    LookupStatus
	Namespace *models.Namespace
	Err       error
}

// LookupNamespace fetches a namespace and folds the not found case into an
// explicit result instead of an error.
func LookupNamespace(ctx context.Context, svc NamespaceService, namespaceID string) LookupResult {
	ns, err := svc.GetNamespace(ctx, namespaceID)
	switch {
	case err == nil:
		return LookupResult{Status: LookupFound, Namespace: ns}
	case IsNotFound(err):
		return LookupResult{Status: LookupNotFound}
	default:
		return LookupResult{Status: LookupFailed, Err: err}
	}
}
