package provisioner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloudops/internal/cloudapi"
	"cloudops/internal/config"
	"cloudops/internal/metrics"
	"cloudops/internal/models"
	"cloudops/internal/pki"

	"k8s.io/apimachinery/pkg/util/wait"
)

// CAGenerator produces the initial client CA for mTLS namespaces.
type CAGenerator interface {
	Generate(commonNameSuffix string) (*pki.Certificate, error)
}

type Provisioner struct {
	svc     cloudapi.NamespaceService
	factory CAGenerator
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

func New(svc cloudapi.NamespaceService, factory CAGenerator, opts Options, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		svc:     svc,
		factory: factory,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateOrGet makes sure the namespace exists and is active. An existing
// namespace is never recreated; one that exists but has not converged yet is
// polled. Running it again after a failure or restart resumes safely.
func (p *Provisioner) CreateOrGet(ctx context.Context, req Request) (*Result, error) {
	if err := p.validate(req); err != nil {
		return nil, err
	}

	namespaceID := models.FullyQualifiedName(req.Name, p.opts.AccountID)
	res := &Result{NamespaceID: namespaceID}
	logger := p.logger.With("namespace", namespaceID, "auth_mode", req.AuthMode)

	start := p.now()
	defer func() {
		metrics.ProvisionDuration.WithLabelValues(req.AuthMode).Observe(p.now().Sub(start).Seconds())
	}()

	p.transition(logger, res, StateChecking)
	lookup := cloudapi.LookupNamespace(ctx, p.svc, namespaceID)

	switch lookup.Status {
	case cloudapi.LookupFound:
		res.Namespace = lookup.Namespace
		if lookup.Namespace.IsActive() {
			logger.Info("namespace already exists")
			p.transition(logger, res, StateActive)
			metrics.ProvisionsTotal.WithLabelValues(req.AuthMode, metrics.OutcomeNoop).Inc()
			return res, nil
		}
		if models.IsFailedState(lookup.Namespace.State) {
			return res, p.fail(logger, res, req, StateChecking, errFailedState)
		}
		logger.Info("namespace exists but is not active yet", "state", lookup.Namespace.State)

	case cloudapi.LookupNotFound:
		p.transition(logger, res, StateCreating)
		if err := p.create(ctx, logger, req, res); err != nil {
			return res, p.fail(logger, res, req, StateCreating, err)
		}

	default:
		return res, p.fail(logger, res, req, StateChecking, lookup.Err)
	}

	p.transition(logger, res, StatePolling)
	ns, err := p.poll(ctx, namespaceID)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			metrics.ProvisionsTotal.WithLabelValues(req.AuthMode, metrics.OutcomeFailed).Inc()
			logger.Warn("provisioning canceled", "error", ctx.Err())
			return res, &Error{Namespace: namespaceID, State: StatePolling, Err: ctx.Err()}
		case wait.Interrupted(err):
			metrics.ProvisionsTotal.WithLabelValues(req.AuthMode, metrics.OutcomeTimeout).Inc()
			logger.Error("namespace did not become active in time", "timeout", p.opts.timeout())
			return res, &Error{Namespace: namespaceID, State: StatePolling, Err: ErrTimeout}
		default:
			return res, p.fail(logger, res, req, StatePolling, err)
		}
	}

	res.Namespace = ns
	p.transition(logger, res, StateActive)
	metrics.ProvisionsTotal.WithLabelValues(req.AuthMode, metrics.OutcomeSuccess).Inc()
	return res, nil
}

func (p *Provisioner) validate(req Request) error {
	if req.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if p.opts.AccountID == "" {
		return fmt.Errorf("%w: account id is required to resolve %q", ErrInvalidRequest, req.Name)
	}
	switch req.AuthMode {
	case config.AuthModeAPIKey, config.AuthModeMTLS:
	default:
		return fmt.Errorf("%w: unknown auth mode %q", ErrInvalidRequest, req.AuthMode)
	}
	if req.AuthMode == config.AuthModeMTLS && p.factory == nil {
		return fmt.Errorf("%w: mtls namespaces need a CA factory", ErrInvalidRequest)
	}
	return nil
}

func (p *Provisioner) create(ctx context.Context, logger *slog.Logger, req Request, res *Result) error {
	spec, ca, err := p.buildSpec(req)
	if err != nil {
		return err
	}

	op, err := p.svc.CreateNamespace(ctx, spec)
	switch {
	case err == nil:
		res.Created = true
		res.CA = ca
		attrs := []any{"regions", spec.Regions, "retention_days", spec.RetentionDays}
		if op != nil {
			attrs = append(attrs, "async_operation_id", op.ID)
		}
		logger.Info("namespace creation accepted", attrs...)
		return nil
	case cloudapi.IsAlreadyExists(err):
		// another runner created it between our lookup and create
		logger.Info("namespace was created concurrently, waiting for it")
		return nil
	default:
		return err
	}
}

func (p *Provisioner) buildSpec(req Request) (models.NamespaceSpec, *pki.Certificate, error) {
	spec := models.NamespaceSpec{
		Name:          req.Name,
		Regions:       req.Regions,
		RetentionDays: req.RetentionDays,
	}
	if len(spec.Regions) == 0 {
		spec.Regions = p.opts.DefaultRegions
	}
	if len(spec.Regions) == 0 {
		spec.Regions = config.DefaultProvisioningConfig.DefaultRegions
	}
	if spec.RetentionDays == 0 {
		spec.RetentionDays = p.opts.DefaultRetentionDays
	}
	if spec.RetentionDays == 0 {
		spec.RetentionDays = config.DefaultProvisioningConfig.DefaultRetentionDays
	}

	if req.AuthMode == config.AuthModeAPIKey {
		spec.APIKeyAuth = &models.APIKeyAuthSpec{Enabled: true}
		return spec, nil, nil
	}

	ca, err := p.factory.Generate(req.Name + "-" + pki.UniqueSuffix(p.now()))
	if err != nil {
		return spec, nil, err
	}
	spec.MTLSAuth = &models.MTLSAuthSpec{
		Enabled:          true,
		AcceptedClientCA: string(pki.Initial(ca)),
	}
	return spec, ca, nil
}

// poll refetches the namespace until it is active. Not found keeps polling
// because a freshly accepted create may not be readable yet.
func (p *Provisioner) poll(ctx context.Context, namespaceID string) (*models.Namespace, error) {
	var active *models.Namespace
	err := wait.PollUntilContextTimeout(ctx, p.opts.pollInterval(), p.opts.timeout(), false, func(ctx context.Context) (bool, error) {
		ns, err := p.svc.GetNamespace(ctx, namespaceID)
		switch {
		case cloudapi.IsNotFound(err):
			p.logger.Debug("namespace not visible yet", "namespace", namespaceID)
			return false, nil
		case err != nil:
			return false, err
		case ns.IsActive():
			active = ns
			return true, nil
		case models.IsFailedState(ns.State):
			return false, errFailedState
		default:
			p.logger.Debug("namespace still provisioning", "namespace", namespaceID, "state", ns.State)
			return false, nil
		}
	})
	if err != nil {
		return nil, err
	}
	return active, nil
}

func (p *Provisioner) transition(logger *slog.Logger, res *Result, next State) {
	prev := res.State()
	res.States = append(res.States, next)
	logger.Debug("provisioning state transition", "from", prev, "to", next)
}

func (p *Provisioner) fail(logger *slog.Logger, res *Result, req Request, state State, err error) error {
	p.transition(logger, res, StateFailed)
	metrics.ProvisionsTotal.WithLabelValues(req.AuthMode, metrics.OutcomeFailed).Inc()
	logger.Error("provisioning failed", "state", state, "error", err)
	return &Error{Namespace: res.NamespaceID, State: state, Err: err}
}
