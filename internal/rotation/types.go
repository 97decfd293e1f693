package rotation

import (
	"errors"
	"fmt"
	"time"

	"cloudops/internal/config"
	"cloudops/internal/models"
	"cloudops/internal/pki"
)

var (
	ErrNotMTLS                  = errors.New("namespace does not have mtls auth enabled")
	ErrConflictRetriesExhausted = errors.New("version conflict retries exhausted")
	ErrWouldEmptyBundle         = errors.New("refusing to leave the trust bundle empty")
	ErrFingerprintNotFound      = errors.New("fingerprint not found in trust bundle")
	ErrNoPruneCriteria          = errors.New("no prune criteria given")
)

// Error wraps a rotation or prune failure with the namespace it concerns.
type Error struct {
	Op        string
	Namespace string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Namespace, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Options bound the fetch, modify, update loop. MaxAttempts is the total
// number of attempts; MaxBackoff only caps the delay between them.
type Options struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RenewBefore    time.Duration
}

func OptionsFromConfig(cfg config.RotationConfig) Options {
	return Options{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		RenewBefore:    cfg.RenewBefore,
	}
}

type Result struct {
	NamespaceID string
	CA          *pki.Certificate
	Bundle      pki.Bundle
	// BaseResourceVersion is the version the accepted update was made
	// against. The update itself produces a newer one.
	BaseResourceVersion string
	Attempts            int
	Conflicts           int
	Operation           *models.AsyncOperation
}

// PruneOptions select the CAs to drop. Criteria combine: a CA is removed
// when any of them matches it.
type PruneOptions struct {
	RemoveExpired bool
	// KeepNewest keeps only the last N records of the bundle. Zero disables it.
	KeepNewest int
	// Fingerprints are hex SHA-256 fingerprints, colons and case ignored.
	Fingerprints []string
}

func (o PruneOptions) validate() error {
	if o.KeepNewest < 0 {
		return fmt.Errorf("keep newest must not be negative, got %d", o.KeepNewest)
	}
	if !o.RemoveExpired && o.KeepNewest == 0 && len(o.Fingerprints) == 0 {
		return ErrNoPruneCriteria
	}
	return nil
}

type PruneResult struct {
	NamespaceID string
	Removed     []models.CertificateDetails
	Remaining   int
	Bundle      pki.Bundle
	Attempts    int
	Conflicts   int
	// Noop is set when nothing matched and no update was sent.
	Noop bool
}
