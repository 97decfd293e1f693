package models

import "time"

type ServiceAccount struct {
	ID              string             `json:"id" yaml:"id"`
	ResourceVersion string             `json:"resourceVersion" yaml:"resource_version"`
	Spec            ServiceAccountSpec `json:"spec" yaml:"spec"`
	State           string             `json:"state" yaml:"state"`
	CreatedTime     time.Time          `json:"createdTime" yaml:"created_time"`
}

type ServiceAccountSpec struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Access      Access `json:"access" yaml:"access"`
}

const (
	OwnerTypeUser           = "OWNER_TYPE_USER"
	OwnerTypeServiceAccount = "OWNER_TYPE_SERVICE_ACCOUNT"
)

type APIKeySpec struct {
	OwnerID     string    `json:"ownerId" yaml:"owner_id"`
	OwnerType   string    `json:"ownerType" yaml:"owner_type"`
	DisplayName string    `json:"displayName" yaml:"display_name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	ExpiryTime  time.Time `json:"expiryTime" yaml:"expiry_time"`
	Disabled    bool      `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// CreatedAPIKey carries the one-time token returned on creation.
type CreatedAPIKey struct {
	KeyID          string          `json:"keyId" yaml:"key_id"`
	Token          string          `json:"token" yaml:"token"`
	AsyncOperation *AsyncOperation `json:"asyncOperation,omitempty" yaml:"async_operation,omitempty"`
}
