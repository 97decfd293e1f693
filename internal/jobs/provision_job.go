package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloudops/internal/config"
	"cloudops/internal/provisioner"
)

type NamespaceProvisioner interface {
	CreateOrGet(ctx context.Context, req provisioner.Request) (*provisioner.Result, error)
}

// ProvisionJob keeps every declared namespace created and active.
type ProvisionJob struct {
	provisioner NamespaceProvisioner
	namespaces  []config.NamespaceConfig
	interval    time.Duration
	logger      *slog.Logger
}

func NewProvisionJob(p NamespaceProvisioner, namespaces []config.NamespaceConfig, interval time.Duration, logger *slog.Logger) *ProvisionJob {
	return &ProvisionJob{
		provisioner: p,
		namespaces:  namespaces,
		interval:    interval,
		logger:      logger.With("job", "namespace_provision"),
	}
}

func (j *ProvisionJob) Name() string {
	return "namespace_provision"
}

func (j *ProvisionJob) RequiresLeadership() bool {
	return true
}

func (j *ProvisionJob) Interval() time.Duration {
	return j.interval
}

func (j *ProvisionJob) Run(ctx context.Context) error {
	return runEvery(ctx, j.interval, j.logger, j.reconcile)
}

// reconcile provisions each namespace in turn. One failing namespace does
// not stop the others.
func (j *ProvisionJob) reconcile(ctx context.Context) error {
	var errs []error
	for _, ns := range j.namespaces {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := j.provisioner.CreateOrGet(ctx, provisioner.Request{
			Name:          ns.Name,
			AuthMode:      ns.AuthMode,
			Regions:       ns.Regions,
			RetentionDays: ns.RetentionDays,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("namespace %s: %w", ns.Name, err))
			continue
		}
		if res.Created {
			j.logger.Info("provisioned namespace", "namespace", res.NamespaceID, "states", res.States)
		}
	}
	return errors.Join(errs...)
}
