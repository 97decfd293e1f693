package rotation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cloudops/internal/cloudapi"
	"cloudops/internal/config"
	"cloudops/internal/mocks"
	"cloudops/internal/models"
	"cloudops/internal/pki"
	"cloudops/internal/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testOptions() Options {
	return Options{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
		RenewBefore:    30 * 24 * time.Hour,
	}
}

func newFactory(validity time.Duration) *pki.Factory {
	return pki.NewFactory(config.CAConfig{
		Validity:         validity,
		KeyBits:          2048,
		Organization:     "Acme Corp",
		CommonNamePrefix: "acme-ca",
	})
}

func mustCA(t testing.TB, f *pki.Factory, suffix string) *pki.Certificate {
	t.Helper()
	ca, err := f.Generate(suffix)
	require.NoError(t, err)
	return ca
}

func mtlsNamespace(id, version string, bundle pki.Bundle) models.Namespace {
	name, _, _ := strings.Cut(id, ".")
	return models.Namespace{
		ID:              id,
		ResourceVersion: version,
		State:           models.NamespaceStateActive,
		Spec: models.NamespaceSpec{
			Name:          name,
			Regions:       []string{"aws-us-east-1"},
			RetentionDays: 90,
			MTLSAuth:      &models.MTLSAuthSpec{Enabled: true, AcceptedClientCA: string(bundle)},
		},
	}
}

func storedCerts(t *testing.T, cloud *testutil.FakeControlPlane, id string) []string {
	t.Helper()
	ns, ok := cloud.Namespace(id)
	require.True(t, ok)
	certs, err := pki.Decode(pki.Bundle(ns.Spec.MTLSAuth.AcceptedClientCA))
	require.NoError(t, err)
	out := make([]string, 0, len(certs))
	for _, c := range certs {
		out = append(out, pki.Fingerprint(c))
	}
	return out
}

type countingGenerator struct {
	next  CAGenerator
	calls atomic.Int32
}

func (g *countingGenerator) Generate(suffix string) (*pki.Certificate, error) {
	g.calls.Add(1)
	return g.next.Generate(suffix)
}

type failingGenerator struct{}

func (failingGenerator) Generate(string) (*pki.Certificate, error) {
	return nil, pki.ErrCryptoGeneration
}

func TestRotate_RefetchesAfterExternalUpdate(t *testing.T) {
	factory := newFactory(365 * 24 * time.Hour)
	ca1 := mustCA(t, factory, "initial")

	cloud := testutil.NewFakeControlPlane("prod")
	cloud.Put(mtlsNamespace("acme.prod", "v7", pki.Initial(ca1)))

	var once sync.Once
	cloud.BeforeUpdate = func(id string) {
		once.Do(func() {
			cloud.ModifyExternally(id, func(spec *models.NamespaceSpec) {
				spec.RetentionDays = 60
			})
		})
	}

	logger, logs := testutil.NewTestLogger()
	res, err := New(cloud, factory, testOptions(), logger).Rotate(context.Background(), "acme.prod")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 1, res.Conflicts)
	assert.Equal(t, "v8", res.BaseResourceVersion)
	assert.Equal(t, 2, cloud.Updates)

	stored, _ := cloud.Namespace("acme.prod")
	assert.Equal(t, "v9", stored.ResourceVersion)
	assert.Equal(t, 60, stored.Spec.RetentionDays, "external change must survive the rotation")

	want := []string{ca1.Fingerprint(), res.CA.Fingerprint()}
	if diff := cmp.Diff(want, storedCerts(t, cloud, "acme.prod")); diff != "" {
		t.Errorf("trust bundle mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, pki.EncodingBase64, pki.DetectEncoding(pki.Bundle(stored.Spec.MTLSAuth.AcceptedClientCA)))
	assert.True(t, logs.ContainsMessage(slog.LevelWarn, "namespace changed concurrently, refetching"))
}

func TestRotate_ConcurrentRotationsKeepBothCAs(t *testing.T) {
	factory := newFactory(365 * 24 * time.Hour)
	ca0 := mustCA(t, factory, "initial")

	cloud := testutil.NewFakeControlPlane("prod")
	cloud.Put(mtlsNamespace("acme.prod", "1", pki.Initial(ca0)))

	// hold the first two updates until both rotations have fetched version 1
	var (
		arrived sync.WaitGroup
		calls   atomic.Int32
	)
	arrived.Add(2)
	cloud.BeforeUpdate = func(string) {
		if calls.Add(1) <= 2 {
			arrived.Done()
			arrived.Wait()
		}
	}

	logger, _ := testutil.NewTestLogger()
	results := make([]*Result, 2)
	errs := make([]error, 2)

	var wg sync.WaitGroup
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = New(cloud, factory, testOptions(), logger).Rotate(context.Background(), "acme.prod")
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, results[0].Conflicts+results[1].Conflicts)
	assert.Equal(t, 3, cloud.Updates)

	got := storedCerts(t, cloud, "acme.prod")
	require.Len(t, got, 3)
	assert.Equal(t, ca0.Fingerprint(), got[0])
	assert.ElementsMatch(t, []string{results[0].CA.Fingerprint(), results[1].CA.Fingerprint()}, got[1:])

	stored, _ := cloud.Namespace("acme.prod")
	assert.Equal(t, "3", stored.ResourceVersion)
}

func TestRotate_BackoffCapDoesNotShortenAttempts(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockNamespaceService(ctrl)
	factory := newFactory(365 * 24 * time.Hour)
	ns := mtlsNamespace("acme.prod", "7", pki.Initial(mustCA(t, factory, "initial")))
	conflict := &cloudapi.Error{Code: cloudapi.CodeVersionConflict, Op: "update_namespace", Status: 400}

	svc.EXPECT().GetNamespace(gomock.Any(), "acme.prod").DoAndReturn(func(context.Context, string) (*models.Namespace, error) {
		copied := ns
		copied.Spec = ns.Spec.Clone()
		return &copied, nil
	}).Times(3)
	gomock.InOrder(
		svc.EXPECT().UpdateNamespace(gomock.Any(), "acme.prod", gomock.Any(), "7").Return(nil, conflict).Times(2),
		svc.EXPECT().UpdateNamespace(gomock.Any(), "acme.prod", gomock.Any(), "7").Return(&models.AsyncOperation{ID: "op-1"}, nil),
	)

	opts := Options{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	logger, _ := testutil.NewTestLogger()
	res, err := New(svc, factory, opts, logger).Rotate(context.Background(), "acme.prod")

	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 2, res.Conflicts)
	assert.Equal(t, "op-1", res.Operation.ID)
}

func TestRotate_ConflictRetriesExhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockNamespaceService(ctrl)
	factory := newFactory(365 * 24 * time.Hour)
	ns := mtlsNamespace("acme.prod", "7", pki.Initial(mustCA(t, factory, "initial")))
	conflict := &cloudapi.Error{Code: cloudapi.CodeVersionConflict, Op: "update_namespace", Status: 400}

	svc.EXPECT().GetNamespace(gomock.Any(), "acme.prod").DoAndReturn(func(context.Context, string) (*models.Namespace, error) {
		copied := ns
		copied.Spec = ns.Spec.Clone()
		return &copied, nil
	}).Times(3)
	svc.EXPECT().UpdateNamespace(gomock.Any(), "acme.prod", gomock.Any(), "7").Return(nil, conflict).Times(3)

	gen := &countingGenerator{next: factory}
	logger, _ := testutil.NewTestLogger()
	res, err := New(svc, gen, testOptions(), logger).Rotate(context.Background(), "acme.prod")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflictRetriesExhausted)
	assert.True(t, cloudapi.IsVersionConflict(err), "last conflict should stay in the chain")
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, res.Conflicts)
	assert.EqualValues(t, 1, gen.calls.Load(), "the CA is generated once per rotation")
}

func TestRotate_CAAlreadyAppliedIsNotResubmitted(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockNamespaceService(ctrl)
	factory := newFactory(365 * 24 * time.Hour)
	initial := mtlsNamespace("acme.prod", "4", pki.Initial(mustCA(t, factory, "initial")))

	var submitted models.NamespaceSpec
	gomock.InOrder(
		svc.EXPECT().GetNamespace(gomock.Any(), "acme.prod").Return(&initial, nil),
		svc.EXPECT().UpdateNamespace(gomock.Any(), "acme.prod", gomock.Any(), "4").DoAndReturn(
			func(_ context.Context, _ string, spec models.NamespaceSpec, _ string) (*models.AsyncOperation, error) {
				submitted = spec
				return nil, &cloudapi.Error{Code: cloudapi.CodeVersionConflict}
			}),
		svc.EXPECT().GetNamespace(gomock.Any(), "acme.prod").DoAndReturn(func(context.Context, string) (*models.Namespace, error) {
			landed := mtlsNamespace("acme.prod", "5", pki.Bundle(submitted.MTLSAuth.AcceptedClientCA))
			return &landed, nil
		}),
	)

	logger, _ := testutil.NewTestLogger()
	res, err := New(svc, factory, testOptions(), logger).Rotate(context.Background(), "acme.prod")

	require.NoError(t, err)
	assert.Equal(t, 1, res.Conflicts)
	assert.Equal(t, "5", res.BaseResourceVersion)
	assert.Nil(t, res.Operation)
	ok, err := pki.Contains(res.Bundle, res.CA.Cert)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRotate_EmptyBundleStartsNewChain(t *testing.T) {
	factory := newFactory(365 * 24 * time.Hour)
	cloud := testutil.NewFakeControlPlane("prod")
	cloud.Put(mtlsNamespace("acme.prod", "1", ""))

	logger, _ := testutil.NewTestLogger()
	res, err := New(cloud, factory, testOptions(), logger).Rotate(context.Background(), "acme.prod")
	require.NoError(t, err)

	assert.Equal(t, pki.Initial(res.CA), res.Bundle)
	assert.Equal(t, []string{res.CA.Fingerprint()}, storedCerts(t, cloud, "acme.prod"))
}

func TestRotate_PreservesPEMEncoding(t *testing.T) {
	factory := newFactory(365 * 24 * time.Hour)
	ca1 := mustCA(t, factory, "initial")

	cloud := testutil.NewFakeControlPlane("prod")
	cloud.Put(mtlsNamespace("acme.prod", "1", pki.Bundle(ca1.CertPEM)))

	logger, _ := testutil.NewTestLogger()
	res, err := New(cloud, factory, testOptions(), logger).Rotate(context.Background(), "acme.prod")
	require.NoError(t, err)

	assert.Equal(t, pki.EncodingPEM, pki.DetectEncoding(res.Bundle))
	assert.Equal(t, []string{ca1.Fingerprint(), res.CA.Fingerprint()}, storedCerts(t, cloud, "acme.prod"))
}

func TestRotate_FatalErrors(t *testing.T) {
	factory := newFactory(365 * 24 * time.Hour)
	bundle := pki.Initial(mustCA(t, factory, "initial"))
	unauthorized := &cloudapi.Error{Code: cloudapi.CodeUnauthorized, Status: 401}
	invalid := &cloudapi.Error{Code: cloudapi.CodeValidation, Status: 400, Message: "bad bundle"}

	tests := map[string]struct {
		setup     func(svc *mocks.MockNamespaceServiceMockRecorder)
		generator CAGenerator
		wantErr   error
	}{
		"fetch failure": {
			setup: func(svc *mocks.MockNamespaceServiceMockRecorder) {
				svc.GetNamespace(gomock.Any(), "acme.prod").Return(nil, unauthorized)
			},
			generator: factory,
			wantErr:   unauthorized,
		},
		"namespace without mtls": {
			setup: func(svc *mocks.MockNamespaceServiceMockRecorder) {
				svc.GetNamespace(gomock.Any(), "acme.prod").Return(&models.Namespace{
					ID:   "acme.prod",
					Spec: models.NamespaceSpec{Name: "acme", APIKeyAuth: &models.APIKeyAuthSpec{Enabled: true}},
				}, nil)
			},
			generator: factory,
			wantErr:   ErrNotMTLS,
		},
		"update rejected": {
			setup: func(svc *mocks.MockNamespaceServiceMockRecorder) {
				ns := mtlsNamespace("acme.prod", "2", bundle)
				svc.GetNamespace(gomock.Any(), "acme.prod").Return(&ns, nil)
				svc.UpdateNamespace(gomock.Any(), "acme.prod", gomock.Any(), "2").Return(nil, invalid)
			},
			generator: factory,
			wantErr:   invalid,
		},
		"ca generation failure": {
			setup: func(svc *mocks.MockNamespaceServiceMockRecorder) {
				ns := mtlsNamespace("acme.prod", "2", bundle)
				svc.GetNamespace(gomock.Any(), "acme.prod").Return(&ns, nil)
			},
			generator: failingGenerator{},
			wantErr:   pki.ErrCryptoGeneration,
		},
		"malformed current bundle": {
			setup: func(svc *mocks.MockNamespaceServiceMockRecorder) {
				ns := mtlsNamespace("acme.prod", "2", "-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----\n")
				svc.GetNamespace(gomock.Any(), "acme.prod").Return(&ns, nil)
			},
			generator: factory,
			wantErr:   pki.ErrMalformedBundle,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := mocks.NewMockNamespaceService(ctrl)
			tc.setup(svc.EXPECT())
			logger, _ := testutil.NewTestLogger()

			res, err := New(svc, tc.generator, testOptions(), logger).Rotate(context.Background(), "acme.prod")

			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, 1, res.Attempts, "fatal errors are not retried")

			var rotErr *Error
			require.ErrorAs(t, err, &rotErr)
			assert.Equal(t, "acme.prod", rotErr.Namespace)
		})
	}
}

func TestRotate_CancelledDuringBackoff(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockNamespaceService(ctrl)
	factory := newFactory(365 * 24 * time.Hour)
	ns := mtlsNamespace("acme.prod", "1", pki.Initial(mustCA(t, factory, "initial")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.EXPECT().GetNamespace(gomock.Any(), "acme.prod").Return(&ns, nil)
	svc.EXPECT().UpdateNamespace(gomock.Any(), "acme.prod", gomock.Any(), "1").DoAndReturn(
		func(context.Context, string, models.NamespaceSpec, string) (*models.AsyncOperation, error) {
			cancel()
			return nil, &cloudapi.Error{Code: cloudapi.CodeVersionConflict}
		})

	opts := testOptions()
	opts.InitialBackoff = time.Minute
	opts.MaxBackoff = time.Hour
	logger, _ := testutil.NewTestLogger()

	_, err := New(svc, factory, opts, logger).Rotate(ctx, "acme.prod")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrConflictRetriesExhausted)
}

func TestInspect(t *testing.T) {
	factory := newFactory(365 * 24 * time.Hour)
	ca1, ca2 := mustCA(t, factory, "one"), mustCA(t, factory, "two")
	bundle, err := pki.Append(pki.Initial(ca1), ca2)
	require.NoError(t, err)

	cloud := testutil.NewFakeControlPlane("prod")
	cloud.Put(mtlsNamespace("acme.prod", "1", bundle))
	cloud.Put(models.Namespace{ID: "plain.prod", ResourceVersion: "1", Spec: models.NamespaceSpec{Name: "plain"}})

	logger, _ := testutil.NewTestLogger()
	r := New(cloud, factory, testOptions(), logger)

	details, err := r.Inspect(context.Background(), "acme.prod")
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, 0, details[0].Index)
	assert.Equal(t, ca1.Fingerprint(), details[0].Fingerprint)
	assert.Equal(t, "acme-ca-two", details[1].CommonName)
	assert.True(t, details[1].IsCA)

	_, err = r.Inspect(context.Background(), "plain.prod")
	assert.ErrorIs(t, err, ErrNotMTLS)

	_, err = r.Inspect(context.Background(), "missing.prod")
	assert.True(t, cloudapi.IsNotFound(err))
}

func TestNeedsRotation(t *testing.T) {
	factory := newFactory(365 * 24 * time.Hour)
	cloud := testutil.NewFakeControlPlane("prod")
	cloud.Put(mtlsNamespace("fresh.prod", "1", pki.Initial(mustCA(t, factory, "fresh"))))
	cloud.Put(mtlsNamespace("empty.prod", "1", ""))

	logger, _ := testutil.NewTestLogger()
	r := New(cloud, factory, testOptions(), logger)

	tests := []struct {
		name      string
		namespace string
		now       time.Time
		want      bool
	}{
		{name: "newest CA far from expiry", namespace: "fresh.prod", now: time.Now(), want: false},
		{name: "newest CA inside renewal window", namespace: "fresh.prod", now: time.Now().Add(340 * 24 * time.Hour), want: true},
		{name: "empty bundle", namespace: "empty.prod", now: time.Now(), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r.now = func() time.Time { return tt.now }
			got, err := r.NeedsRotation(context.Background(), tt.namespace)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
