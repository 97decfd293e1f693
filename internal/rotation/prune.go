package rotation

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"

	"cloudops/internal/metrics"
	"cloudops/internal/models"
	"cloudops/internal/pki"
)

// Prune removes retired CAs from the namespace's trust bundle. It is the
// only operation that shrinks a bundle and it never leaves it empty.
func (r *Rotator) Prune(ctx context.Context, namespaceID string, opts PruneOptions) (*PruneResult, error) {
	res := &PruneResult{NamespaceID: namespaceID}
	logger := r.logger.With("namespace", namespaceID)

	if err := opts.validate(); err != nil {
		return res, &Error{Op: "prune trust bundle of", Namespace: namespaceID, Err: err}
	}
	wanted := normalizeFingerprints(opts.Fingerprints)

	var removed []models.CertificateDetails
	out, err := r.update(ctx, "prune", namespaceID, func(_ *models.Namespace, current pki.Bundle) (*pki.Bundle, error) {
		certs, err := pki.Decode(current)
		if err != nil {
			return nil, err
		}
		if err := checkFingerprints(certs, wanted); err != nil {
			return nil, err
		}

		now := r.now()
		removed = removed[:0]
		next, dropped, err := pki.Filter(current, func(i int, cert *x509.Certificate) bool {
			drop := (opts.RemoveExpired && now.After(cert.NotAfter)) ||
				(opts.KeepNewest > 0 && i < len(certs)-opts.KeepNewest) ||
				wanted[pki.Fingerprint(cert)]
			if drop {
				removed = append(removed, pki.CertificateDetails(i, cert))
			}
			return !drop
		})
		if errors.Is(err, pki.ErrEmptyBundle) {
			return nil, ErrWouldEmptyBundle
		}
		if err != nil {
			return nil, err
		}

		if len(dropped) == 0 {
			return nil, nil
		}
		return &next, nil
	})

	res.Attempts = out.attempts
	res.Conflicts = out.conflicts
	if err != nil {
		metrics.PrunesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		logger.Error("trust bundle prune failed", "error", err)
		return res, &Error{Op: "prune trust bundle of", Namespace: namespaceID, Err: err}
	}

	res.Bundle = out.bundle
	res.Noop = !out.updated
	if remaining, err := pki.Decode(out.bundle); err == nil {
		res.Remaining = len(remaining)
	}
	res.Removed = removed

	if res.Noop {
		metrics.PrunesTotal.WithLabelValues(metrics.OutcomeNoop).Inc()
		logger.Info("nothing to prune", "certificates", res.Remaining)
		return res, nil
	}

	metrics.PrunesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	r.observeBundle(namespaceID, res.Bundle)
	logger.Info("pruned trust bundle", "removed", len(res.Removed), "remaining", res.Remaining)
	return res, nil
}

func normalizeFingerprints(fingerprints []string) map[string]bool {
	out := make(map[string]bool, len(fingerprints))
	for _, fp := range fingerprints {
		fp = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(fp), ":", ""))
		if fp != "" {
			out[fp] = true
		}
	}
	return out
}

func checkFingerprints(certs []*x509.Certificate, wanted map[string]bool) error {
	if len(wanted) == 0 {
		return nil
	}
	present := make(map[string]bool, len(certs))
	for _, cert := range certs {
		present[pki.Fingerprint(cert)] = true
	}
	for fp := range wanted {
		if !present[fp] {
			return fmt.Errorf("%w: %s", ErrFingerprintNotFound, fp)
		}
	}
	return nil
}
