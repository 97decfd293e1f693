package provisioner

import (
	"errors"
	"fmt"
	"time"

	"cloudops/internal/config"
	"cloudops/internal/models"
	"cloudops/internal/pki"
)

type State string

const (
	StateChecking State = "CHECKING"
	StateCreating State = "CREATING"
	StatePolling  State = "POLLING"
	StateActive   State = "ACTIVE"
	StateFailed   State = "FAILED"
)

var (
	// ErrTimeout means the namespace did not become active before the
	// polling deadline. It is distinct from a failed provisioning.
	ErrTimeout        = errors.New("timed out waiting for namespace to become active")
	ErrInvalidRequest = errors.New("invalid provisioning request")
	errFailedState    = errors.New("namespace entered a failed state")
)

// Request describes the namespace to create or get. Name is the short name,
// the fully qualified id is derived from the provisioner's account id.
type Request struct {
	Name          string
	AuthMode      string
	Regions       []string
	RetentionDays int
}

type Result struct {
	NamespaceID string
	Namespace   *models.Namespace
	Created     bool
	States      []State
	// CA is the initial client CA generated for a new mTLS namespace.
	CA *pki.Certificate
}

func (r *Result) State() State {
	if len(r.States) == 0 {
		return ""
	}
	return r.States[len(r.States)-1]
}

// Error reports the state a provisioning run stopped in.
type Error struct {
	Namespace string
	State     State
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provision namespace %s: %s: %v", e.Namespace, e.State, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Options struct {
	AccountID            string
	PollInterval         time.Duration
	Timeout              time.Duration
	DefaultRegions       []string
	DefaultRetentionDays int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		AccountID:            cfg.API.AccountID,
		PollInterval:         cfg.Provisioning.PollInterval,
		Timeout:              cfg.Provisioning.Timeout,
		DefaultRegions:       cfg.Provisioning.DefaultRegions,
		DefaultRetentionDays: cfg.Provisioning.DefaultRetentionDays,
	}
}

func (o Options) pollInterval() time.Duration {
	if o.PollInterval <= 0 {
		return config.DefaultProvisioningConfig.PollInterval
	}
	return o.PollInterval
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return config.DefaultProvisioningConfig.Timeout
	}
	return o.Timeout
}
