package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloudops/internal/config"
	"cloudops/internal/models"
	"cloudops/internal/rotation"
)

type TrustChainRotator interface {
	NeedsRotation(ctx context.Context, namespaceID string) (bool, error)
	Rotate(ctx context.Context, namespaceID string) (*rotation.Result, error)
}

// RotationJob rotates the client CA of declared mTLS namespaces before the
// newest CA in their bundle expires.
type RotationJob struct {
	rotator    TrustChainRotator
	namespaces []config.NamespaceConfig
	accountID  string
	interval   time.Duration
	logger     *slog.Logger
}

func NewRotationJob(r TrustChainRotator, cfg *config.Config, logger *slog.Logger) *RotationJob {
	return &RotationJob{
		rotator:    r,
		namespaces: cfg.Namespaces,
		accountID:  cfg.API.AccountID,
		interval:   cfg.Rotation.CheckInterval,
		logger:     logger.With("job", "ca_rotation"),
	}
}

func (j *RotationJob) Name() string {
	return "ca_rotation"
}

func (j *RotationJob) RequiresLeadership() bool {
	return true
}

func (j *RotationJob) Interval() time.Duration {
	return j.interval
}

func (j *RotationJob) Run(ctx context.Context) error {
	return runEvery(ctx, j.interval, j.logger, j.checkAll)
}

func (j *RotationJob) checkAll(ctx context.Context) error {
	var errs []error
	for _, ns := range j.namespaces {
		if !ns.RotationEnabled() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		namespaceID := models.FullyQualifiedName(ns.Name, j.accountID)
		due, err := j.rotator.NeedsRotation(ctx, namespaceID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !due {
			j.logger.Debug("trust bundle is current", "namespace", namespaceID)
			continue
		}

		res, err := j.rotator.Rotate(ctx, namespaceID)
		if err != nil {
			errs = append(errs, fmt.Errorf("rotate %s: %w", namespaceID, err))
			continue
		}
		j.logger.Info("rotated client CA", "namespace", namespaceID, "fingerprint", res.CA.Fingerprint())
	}
	return errors.Join(errs...)
}
