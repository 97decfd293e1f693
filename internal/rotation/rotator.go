package rotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloudops/internal/cloudapi"
	"cloudops/internal/config"
	"cloudops/internal/metrics"
	"cloudops/internal/models"
	"cloudops/internal/pki"
	"cloudops/internal/retry"
)

type CAGenerator interface {
	Generate(commonNameSuffix string) (*pki.Certificate, error)
}

// Rotator maintains the accepted client CA bundle of mTLS namespaces. All
// writes go through a fetch, modify, versioned update loop that retries on
// version conflicts.
type Rotator struct {
	svc     cloudapi.NamespaceService
	factory CAGenerator
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

func New(svc cloudapi.NamespaceService, factory CAGenerator, opts Options, logger *slog.Logger) *Rotator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = config.DefaultRotationConfig.MaxAttempts
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = config.DefaultRotationConfig.InitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = config.DefaultRotationConfig.MaxBackoff
	}
	if opts.RenewBefore <= 0 {
		opts.RenewBefore = config.DefaultRotationConfig.RenewBefore
	}
	return &Rotator{
		svc:     svc,
		factory: factory,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// mutation computes the next bundle from a freshly fetched namespace. A nil
// next bundle with a nil error means there is nothing to write.
type mutation func(ns *models.Namespace, current pki.Bundle) (next *pki.Bundle, err error)

type outcome struct {
	attempts  int
	conflicts int
	bundle    pki.Bundle
	version   string
	op        *models.AsyncOperation
	updated   bool
}

func (r *Rotator) retryPolicy() retry.Policy {
	return retry.Policy{
		Attempts:     r.opts.MaxAttempts,
		InitialDelay: r.opts.InitialBackoff,
		MaxDelay:     r.opts.MaxBackoff,
		Factor:       2,
		Jitter:       0.1,
	}
}

// update runs mutate against the latest namespace until the update is
// accepted, mutate reports nothing to do, or a non-conflict error occurs.
// Every attempt starts from a fresh fetch so a stale version is never reused.
func (r *Rotator) update(ctx context.Context, op, namespaceID string, mutate mutation) (outcome, error) {
	var (
		out          outcome
		lastConflict error
	)
	logger := r.logger.With("namespace", namespaceID, "op", op)

	err := retry.Do(ctx, r.retryPolicy(), func(ctx context.Context) (bool, error) {
		out.attempts++

		ns, err := r.svc.GetNamespace(ctx, namespaceID)
		if err != nil {
			return false, fmt.Errorf("fetch namespace: %w", err)
		}
		if !ns.MTLSEnabled() {
			return false, ErrNotMTLS
		}
		current := pki.Bundle(ns.Spec.MTLSAuth.AcceptedClientCA)

		next, err := mutate(ns, current)
		if err != nil {
			return false, err
		}
		if next == nil {
			out.bundle = current
			out.version = ns.ResourceVersion
			return true, nil
		}
		if err := pki.Validate(*next); err != nil {
			return false, fmt.Errorf("new bundle does not validate: %w", err)
		}

		spec := ns.Spec.Clone()
		spec.MTLSAuth.AcceptedClientCA = string(*next)

		asyncOp, err := r.svc.UpdateNamespace(ctx, namespaceID, spec, ns.ResourceVersion)
		switch {
		case err == nil:
			out.bundle = *next
			out.version = ns.ResourceVersion
			out.op = asyncOp
			out.updated = true
			return true, nil
		case cloudapi.IsVersionConflict(err):
			out.conflicts++
			lastConflict = err
			metrics.VersionConflicts.WithLabelValues(op).Inc()
			logger.Warn("namespace changed concurrently, refetching",
				"resource_version", ns.ResourceVersion, "attempt", out.attempts)
			return false, nil
		default:
			return false, fmt.Errorf("update namespace: %w", err)
		}
	})

	switch {
	case err == nil:
		return out, nil
	case ctx.Err() != nil:
		return out, ctx.Err()
	case errors.Is(err, retry.ErrExhausted):
		return out, fmt.Errorf("%w after %d attempts: %w", ErrConflictRetriesExhausted, out.attempts, lastConflict)
	default:
		return out, err
	}
}

// Rotate appends a freshly generated CA to the namespace's trust bundle. The
// CA is generated once and reused across conflict retries. If a refetched
// bundle already holds it, an earlier attempt landed and nothing more is
// written.
func (r *Rotator) Rotate(ctx context.Context, namespaceID string) (*Result, error) {
	res := &Result{NamespaceID: namespaceID}
	logger := r.logger.With("namespace", namespaceID)

	out, err := r.update(ctx, "rotate", namespaceID, func(ns *models.Namespace, current pki.Bundle) (*pki.Bundle, error) {
		if res.CA == nil {
			ca, err := r.factory.Generate(caSuffix(namespaceID, r.now()))
			if err != nil {
				return nil, err
			}
			res.CA = ca
		} else if !current.IsEmpty() {
			present, err := pki.Contains(current, res.CA.Cert)
			if err != nil {
				return nil, fmt.Errorf("inspect current bundle: %w", err)
			}
			if present {
				logger.Info("new CA already present in trust bundle", "resource_version", ns.ResourceVersion)
				return nil, nil
			}
		}

		next, err := pki.Append(current, res.CA)
		if err != nil {
			return nil, err
		}
		return &next, nil
	})

	res.Attempts = out.attempts
	res.Conflicts = out.conflicts
	if err != nil {
		metrics.RotationsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		logger.Error("CA rotation failed", "attempts", out.attempts, "error", err)
		return res, &Error{Op: "rotate CA for", Namespace: namespaceID, Err: err}
	}

	res.Bundle = out.bundle
	res.BaseResourceVersion = out.version
	res.Operation = out.op
	metrics.RotationsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	r.observeBundle(namespaceID, res.Bundle)

	logger.Info("rotated namespace CA",
		"fingerprint", res.CA.Fingerprint(),
		"not_after", res.CA.Cert.NotAfter,
		"attempts", res.Attempts,
		"conflicts", res.Conflicts,
	)
	return res, nil
}

// Inspect describes every CA in the namespace's trust bundle.
func (r *Rotator) Inspect(ctx context.Context, namespaceID string) ([]models.CertificateDetails, error) {
	ns, err := r.svc.GetNamespace(ctx, namespaceID)
	if err != nil {
		return nil, &Error{Op: "inspect trust bundle of", Namespace: namespaceID, Err: err}
	}
	if !ns.MTLSEnabled() {
		return nil, &Error{Op: "inspect trust bundle of", Namespace: namespaceID, Err: ErrNotMTLS}
	}

	bundle := pki.Bundle(ns.Spec.MTLSAuth.AcceptedClientCA)
	details, err := pki.Describe(bundle)
	if err != nil {
		return nil, &Error{Op: "inspect trust bundle of", Namespace: namespaceID, Err: err}
	}
	r.observeBundle(namespaceID, bundle)
	return details, nil
}

// NeedsRotation reports whether the newest CA in the bundle expires within
// RenewBefore. An empty bundle always needs one.
func (r *Rotator) NeedsRotation(ctx context.Context, namespaceID string) (bool, error) {
	ns, err := r.svc.GetNamespace(ctx, namespaceID)
	if err != nil {
		return false, &Error{Op: "check rotation of", Namespace: namespaceID, Err: err}
	}
	if !ns.MTLSEnabled() {
		return false, &Error{Op: "check rotation of", Namespace: namespaceID, Err: ErrNotMTLS}
	}

	bundle := pki.Bundle(ns.Spec.MTLSAuth.AcceptedClientCA)
	certs, err := pki.Decode(bundle)
	if err != nil {
		return false, &Error{Op: "check rotation of", Namespace: namespaceID, Err: err}
	}
	r.observeBundle(namespaceID, bundle)
	if len(certs) == 0 {
		return true, nil
	}
	return pki.LatestExpiry(certs).Before(r.now().Add(r.opts.RenewBefore)), nil
}

func (r *Rotator) observeBundle(namespaceID string, bundle pki.Bundle) {
	certs, err := pki.Decode(bundle)
	if err != nil {
		return
	}
	metrics.TrustBundleSize.WithLabelValues(namespaceID).Set(float64(len(certs)))
	if latest := pki.LatestExpiry(certs); !latest.IsZero() {
		metrics.TrustBundleExpiry.WithLabelValues(namespaceID).Set(float64(latest.Unix()))
	}
}

func caSuffix(namespaceID string, now time.Time) string {
	name, _, _ := strings.Cut(namespaceID, ".")
	return name + "-" + pki.UniqueSuffix(now)
}
