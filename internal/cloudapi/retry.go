package cloudapi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cloudops/internal/metrics"
	"cloudops/internal/models"
	"cloudops/internal/retry"
)

// ReadPolicy allows the given number of retries after the first read.
func ReadPolicy(retries int) retry.Policy {
	return retry.Policy{
		Attempts:     max(retries, 0) + 1,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Factor:       2,
		Jitter:       0.1,
	}
}

// RetryingService retries transient failures on reads. Mutations go straight
// through: a create or update that timed out may still have been accepted,
// and replaying it is not safe.
type RetryingService struct {
	next   NamespaceService
	policy retry.Policy
	logger *slog.Logger
}

var _ NamespaceService = (*RetryingService)(nil)

func NewRetryingService(next NamespaceService, policy retry.Policy, logger *slog.Logger) *RetryingService {
	return &RetryingService{next: next, policy: policy, logger: logger}
}

func (r *RetryingService) GetNamespace(ctx context.Context, namespaceID string) (*models.Namespace, error) {
	var ns *models.Namespace
	err := r.retryRead(ctx, "get_namespace", func(ctx context.Context) error {
		var err error
		ns, err = r.next.GetNamespace(ctx, namespaceID)
		return err
	})
	return ns, err
}

func (r *RetryingService) ListNamespaces(ctx context.Context) ([]models.Namespace, error) {
	var namespaces []models.Namespace
	err := r.retryRead(ctx, "list_namespaces", func(ctx context.Context) error {
		var err error
		namespaces, err = r.next.ListNamespaces(ctx)
		return err
	})
	return namespaces, err
}

func (r *RetryingService) CreateNamespace(ctx context.Context, spec models.NamespaceSpec) (*models.AsyncOperation, error) {
	return r.next.CreateNamespace(ctx, spec)
}

func (r *RetryingService) UpdateNamespace(ctx context.Context, namespaceID string, spec models.NamespaceSpec, resourceVersion string) (*models.AsyncOperation, error) {
	return r.next.UpdateNamespace(ctx, namespaceID, spec, resourceVersion)
}

func (r *RetryingService) retryRead(ctx context.Context, op string, read func(context.Context) error) error {
	var lastErr error
	attempt := 0
	err := retry.Do(ctx, r.policy, func(ctx context.Context) (bool, error) {
		attempt++
		lastErr = read(ctx)
		if lastErr == nil {
			return true, nil
		}
		if !IsTransient(lastErr) {
			return false, lastErr
		}
		metrics.APIReadRetries.WithLabelValues(op).Inc()
		r.logger.Debug("transient read failure", "op", op, "attempt", attempt, "error", lastErr)
		return false, nil
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, retry.ErrExhausted) && lastErr != nil {
		return lastErr
	}
	return err
}
