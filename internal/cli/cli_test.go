package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cloudops/internal/cloudapi"
	"cloudops/internal/config"
	"cloudops/internal/mocks"
	"cloudops/internal/models"
	"cloudops/internal/pki"
	"cloudops/internal/rotation"
	"cloudops/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gopkg.in/yaml.v3"
)

const testConfig = `
api:
  key: test-key
  account_id: acct
log:
  level: error
provisioning:
  poll_interval: 10ms
  timeout: 2s
rotation:
  initial_backoff: 1ms
  max_backoff: 10ms
`

// testCLI runs fresh command trees against one config file, with the API
// services injected so no client is built.
type testCLI struct {
	configPath string
	namespaces cloudapi.NamespaceService
	identity   cloudapi.IdentityService
}

func setupTest(t *testing.T, ns cloudapi.NamespaceService, id cloudapi.IdentityService) *testCLI {
	t.Helper()
	t.Setenv(config.EnvAccountID, "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))
	return &testCLI{configPath: path, namespaces: ns, identity: id}
}

func (c *testCLI) execute(args ...string) (string, string, error) {
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	root := newRootCmd(&app{namespaces: c.namespaces, identity: c.identity})
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(append([]string{"--config", c.configPath}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func testFactory() *pki.Factory {
	return pki.NewFactory(config.CAConfig{
		Validity:         365 * 24 * time.Hour,
		KeyBits:          2048,
		Organization:     "Acme Corp",
		CommonNamePrefix: "acme-ca",
	})
}

func seedMTLS(t *testing.T, fake *testutil.FakeControlPlane, name string, cas int) []*pki.Certificate {
	t.Helper()
	f := testFactory()

	var bundle pki.Bundle
	generated := make([]*pki.Certificate, 0, cas)
	for i := 0; i < cas; i++ {
		ca, err := f.Generate(name + "-" + pki.UniqueSuffix(time.Now()))
		require.NoError(t, err)
		if i == 0 {
			bundle = pki.Initial(ca)
		} else {
			bundle, err = pki.Append(bundle, ca)
			require.NoError(t, err)
		}
		generated = append(generated, ca)
	}

	fake.Put(models.Namespace{
		ID:              name + ".acct",
		ResourceVersion: "3",
		State:           models.NamespaceStateActive,
		Spec: models.NamespaceSpec{
			Name:          name,
			Regions:       []string{"aws-us-east-1"},
			RetentionDays: 30,
			MTLSAuth:      &models.MTLSAuthSpec{Enabled: true, AcceptedClientCA: string(bundle)},
		},
	})
	return generated
}

func TestVersionCommand(t *testing.T) {
	cli := &testCLI{configPath: filepath.Join(t.TempDir(), "unused.yaml")}
	out, _, err := cli.execute("version")
	require.NoError(t, err)
	assert.Contains(t, out, "cloudops, version")
}

func TestReadRetriesCountAfterFirstAttempt(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	t.Setenv(config.EnvAccountID, "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := fmt.Sprintf("api:\n  url: %s\n  key: test-key\n  account_id: acct\n  read_retries: 1\nlog:\n  level: error\n", srv.URL)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	// no injected services, so the root builds the real retrying client
	cli := &testCLI{configPath: path}
	_, _, err := cli.execute("namespace", "list")
	require.Error(t, err)
	assert.True(t, cloudapi.IsTransient(err))
	assert.Equal(t, int32(2), requests.Load())
}

func TestCommandTreesDoNotShareFlagValues(t *testing.T) {
	fake := testutil.NewFakeControlPlane("acct")
	cli := setupTest(t, fake, mocks.NewMockIdentityService(gomock.NewController(t)))

	_, _, err := cli.execute("namespace", "create", "orders", "--retention-days", "14", "--region", "aws-eu-west-1")
	require.NoError(t, err)
	_, _, err = cli.execute("namespace", "create", "billing")
	require.NoError(t, err)

	orders, ok := fake.Namespace("orders.acct")
	require.True(t, ok)
	assert.Equal(t, 14, orders.Spec.RetentionDays)
	assert.Equal(t, []string{"aws-eu-west-1"}, orders.Spec.Regions)

	billing, ok := fake.Namespace("billing.acct")
	require.True(t, ok)
	assert.Equal(t, config.DefaultProvisioningConfig.DefaultRetentionDays, billing.Spec.RetentionDays)
	assert.Equal(t, config.DefaultProvisioningConfig.DefaultRegions, billing.Spec.Regions)
}

func TestUnknownOutputFormat(t *testing.T) {
	cli := setupTest(t, testutil.NewFakeControlPlane("acct"), mocks.NewMockIdentityService(gomock.NewController(t)))

	_, _, err := cli.execute("-o", "xml", "namespace", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestNamespaceList(t *testing.T) {
	fake := testutil.NewFakeControlPlane("acct")
	fake.Put(models.Namespace{
		ID: "orders.acct", ResourceVersion: "1", State: models.NamespaceStateActive,
		Spec: models.NamespaceSpec{Name: "orders", Regions: []string{"aws-us-east-1"}, RetentionDays: 90, APIKeyAuth: &models.APIKeyAuthSpec{Enabled: true}},
	})
	seedMTLS(t, fake, "billing", 1)
	cli := setupTest(t, fake, mocks.NewMockIdentityService(gomock.NewController(t)))

	t.Run("table", func(t *testing.T) {
		out, _, err := cli.execute("namespace", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "NAMESPACE")
		assert.Contains(t, out, "orders.acct")
		assert.Contains(t, out, "billing.acct")
		assert.Contains(t, out, "api_key")
		assert.Contains(t, out, "mtls")
	})

	t.Run("json", func(t *testing.T) {
		out, _, err := cli.execute("ns", "list", "-o", "json")
		require.NoError(t, err)

		var list []models.Namespace
		require.NoError(t, json.Unmarshal([]byte(out), &list))
		assert.Len(t, list, 2)
	})
}

func TestNamespaceGet(t *testing.T) {
	fake := testutil.NewFakeControlPlane("acct")
	seedMTLS(t, fake, "billing", 1)
	cli := setupTest(t, fake, mocks.NewMockIdentityService(gomock.NewController(t)))

	out, _, err := cli.execute("namespace", "get", "billing", "-o", "yaml")
	require.NoError(t, err)

	var ns models.Namespace
	require.NoError(t, yaml.Unmarshal([]byte(out), &ns))
	assert.Equal(t, "billing.acct", ns.ID)
	assert.Equal(t, "3", ns.ResourceVersion)
	assert.True(t, ns.MTLSEnabled())

	_, _, err = cli.execute("namespace", "get", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "namespace missing.acct not found")
}

func TestNamespaceCreate(t *testing.T) {
	fake := testutil.NewFakeControlPlane("acct")
	cli := setupTest(t, fake, mocks.NewMockIdentityService(gomock.NewController(t)))

	out, _, err := cli.execute("namespace", "create", "orders", "--auth-mode", "mtls", "--retention-days", "14", "-o", "json")
	require.NoError(t, err)

	var view provisionView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "orders.acct", view.Namespace)
	assert.Equal(t, "ACTIVE", view.State)
	assert.True(t, view.Created)
	assert.Equal(t, "CHECKING -> CREATING -> POLLING -> ACTIVE", view.Transitions)
	assert.Len(t, view.CAFingerprint, 64)

	stored, ok := fake.Namespace("orders.acct")
	require.True(t, ok)
	assert.True(t, stored.MTLSEnabled())
	assert.Equal(t, 14, stored.Spec.RetentionDays)
	assert.Equal(t, []string{"aws-us-east-1"}, stored.Spec.Regions)

	// a second run finds the namespace and creates nothing
	out, _, err = cli.execute("namespace", "create", "orders", "--auth-mode", "mtls", "-o", "json")
	require.NoError(t, err)
	view = provisionView{}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.False(t, view.Created)
	assert.Empty(t, view.CAFingerprint)
	assert.Equal(t, 1, fake.Creates)
}

func TestNamespaceCreateRejectsUnknownAuthMode(t *testing.T) {
	fake := testutil.NewFakeControlPlane("acct")
	cli := setupTest(t, fake, mocks.NewMockIdentityService(gomock.NewController(t)))

	_, _, err := cli.execute("namespace", "create", "orders", "--auth-mode", "oidc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown auth mode")
	assert.Zero(t, fake.Creates)
}

func TestNamespaceRotateAndInspect(t *testing.T) {
	fake := testutil.NewFakeControlPlane("acct")
	existing := seedMTLS(t, fake, "billing", 1)
	cli := setupTest(t, fake, mocks.NewMockIdentityService(gomock.NewController(t)))

	out, _, err := cli.execute("namespace", "rotate-ca", "billing", "-o", "json")
	require.NoError(t, err)

	var view rotationView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "billing.acct", view.Namespace)
	assert.Equal(t, 2, view.BundleSize)
	assert.Equal(t, "3", view.BaseResourceVersion)
	assert.Equal(t, 1, view.Attempts)
	assert.NotEqual(t, existing[0].Fingerprint(), view.CAFingerprint)

	out, _, err = cli.execute("namespace", "inspect-ca", "billing")
	require.NoError(t, err)
	assert.Contains(t, out, existing[0].Fingerprint())
	assert.Contains(t, out, view.CAFingerprint)
	assert.Equal(t, 2, strings.Count(out, "valid"))
}

func TestNamespaceRotateRequiresMTLS(t *testing.T) {
	fake := testutil.NewFakeControlPlane("acct")
	fake.Put(models.Namespace{
		ID: "orders.acct", ResourceVersion: "1", State: models.NamespaceStateActive,
		Spec: models.NamespaceSpec{Name: "orders", APIKeyAuth: &models.APIKeyAuthSpec{Enabled: true}},
	})
	cli := setupTest(t, fake, mocks.NewMockIdentityService(gomock.NewController(t)))

	_, _, err := cli.execute("namespace", "rotate-ca", "orders")
	assert.ErrorIs(t, err, rotation.ErrNotMTLS)
	assert.Zero(t, fake.Updates)
}

func TestNamespacePrune(t *testing.T) {
	t.Run("keep newest", func(t *testing.T) {
		fake := testutil.NewFakeControlPlane("acct")
		cas := seedMTLS(t, fake, "billing", 3)
		cli := setupTest(t, fake, mocks.NewMockIdentityService(gomock.NewController(t)))

		out, _, err := cli.execute("namespace", "prune-ca", "billing", "--keep-newest", "1", "-o", "json")
		require.NoError(t, err)

		var view pruneView
		require.NoError(t, json.Unmarshal([]byte(out), &view))
		assert.Equal(t, 1, view.Remaining)
		require.Len(t, view.Removed, 2)
		assert.Equal(t, cas[0].Fingerprint(), view.Removed[0].Fingerprint)
		assert.Equal(t, cas[1].Fingerprint(), view.Removed[1].Fingerprint)
	})

	t.Run("by fingerprint", func(t *testing.T) {
		fake := testutil.NewFakeControlPlane("acct")
		cas := seedMTLS(t, fake, "billing", 2)
		cli := setupTest(t, fake, mocks.NewMockIdentityService(gomock.NewController(t)))

		out, _, err := cli.execute("namespace", "prune-ca", "billing", "--fingerprint", strings.ToUpper(cas[1].Fingerprint()))
		require.NoError(t, err)
		assert.Contains(t, out, cas[1].Fingerprint())
		assert.NotContains(t, out, cas[0].Fingerprint())
	})

	t.Run("nothing matched", func(t *testing.T) {
		fake := testutil.NewFakeControlPlane("acct")
		seedMTLS(t, fake, "billing", 2)
		cli := setupTest(t, fake, mocks.NewMockIdentityService(gomock.NewController(t)))

		out, _, err := cli.execute("namespace", "prune-ca", "billing", "--keep-newest", "5")
		require.NoError(t, err)
		assert.Contains(t, out, "left unchanged")
		assert.Zero(t, fake.Updates)
	})

	t.Run("no criteria", func(t *testing.T) {
		fake := testutil.NewFakeControlPlane("acct")
		seedMTLS(t, fake, "billing", 2)
		cli := setupTest(t, fake, mocks.NewMockIdentityService(gomock.NewController(t)))

		_, _, err := cli.execute("namespace", "prune-ca", "billing")
		assert.ErrorIs(t, err, rotation.ErrNoPruneCriteria)
	})
}

func TestUserCommands(t *testing.T) {
	ctrl := gomock.NewController(t)
	id := mocks.NewMockIdentityService(ctrl)
	cli := setupTest(t, testutil.NewFakeControlPlane("acct"), id)

	t.Run("list", func(t *testing.T) {
		id.EXPECT().ListUsers(gomock.Any()).Return([]models.User{{
			ID:    "u-1",
			State: "active",
			Spec: models.UserSpec{
				Email:  "dev@example.com",
				Access: models.NewAccess("developer", nil),
			},
		}}, nil)

		out, _, err := cli.execute("user", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "dev@example.com")
		assert.Contains(t, out, "developer")
	})

	t.Run("create", func(t *testing.T) {
		want := models.UserSpec{
			Email:  "ops@example.com",
			Access: models.NewAccess("read", map[string]string{"orders.acct": "write"}),
		}
		id.EXPECT().CreateUser(gomock.Any(), want).Return("u-2", &models.AsyncOperation{ID: "op-9", State: "pending"}, nil)

		out, _, err := cli.execute("user", "create", "ops@example.com", "--account-role", "read", "--namespace-permission", "orders=write", "-o", "json")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"u-2","operation_id":"op-9","state":"pending"}`, out)
	})

	t.Run("malformed permission", func(t *testing.T) {
		_, _, err := cli.execute("user", "create", "ops@example.com", "--namespace-permission", "orders")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected <namespace>=<permission>")
	})
}

func TestServiceAccountCommands(t *testing.T) {
	ctrl := gomock.NewController(t)
	id := mocks.NewMockIdentityService(ctrl)
	cli := setupTest(t, testutil.NewFakeControlPlane("acct"), id)

	id.EXPECT().ListServiceAccounts(gomock.Any()).Return(nil, nil)
	out, _, err := cli.execute("service-account", "list")
	require.NoError(t, err)
	assert.Equal(t, "No resources found.\n", out)

	want := models.ServiceAccountSpec{
		Name:        "ci",
		Description: "deploys workers",
		Access:      models.NewAccess("", map[string]string{"orders.acct": "read", "billing.acct": "write"}),
	}
	id.EXPECT().CreateServiceAccount(gomock.Any(), want).Return("sa-1", nil, nil)

	out, _, err = cli.execute("sa", "create", "ci",
		"--description", "deploys workers",
		"--namespace-permission", "orders=read",
		"--namespace-permission", "billing.acct=write",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "sa-1")
}

func TestAPIKeyCreate(t *testing.T) {
	ctrl := gomock.NewController(t)
	id := mocks.NewMockIdentityService(ctrl)
	cli := setupTest(t, testutil.NewFakeControlPlane("acct"), id)

	t.Run("defaults", func(t *testing.T) {
		var got models.APIKeySpec
		id.EXPECT().CreateAPIKey(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ any, spec models.APIKeySpec) (*models.CreatedAPIKey, error) {
				got = spec
				return &models.CreatedAPIKey{KeyID: "key-1", Token: "secret-token"}, nil
			})

		out, errOut, err := cli.execute("api-key", "create", "ci", "--owner-id", "sa-1")
		require.NoError(t, err)
		assert.Contains(t, out, "secret-token")
		assert.Contains(t, errOut, "cannot be shown again")

		assert.Equal(t, "sa-1", got.OwnerID)
		assert.Equal(t, models.OwnerTypeServiceAccount, got.OwnerType)
		assert.Equal(t, "ci", got.DisplayName)
		assert.Equal(t, "ci API Key Description", got.Description)
		assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), got.ExpiryTime, time.Minute)
	})

	t.Run("user owner with custom expiry", func(t *testing.T) {
		var got models.APIKeySpec
		id.EXPECT().CreateAPIKey(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ any, spec models.APIKeySpec) (*models.CreatedAPIKey, error) {
				got = spec
				return &models.CreatedAPIKey{KeyID: "key-2", Token: "t"}, nil
			})

		_, _, err := cli.execute("api-key", "create", "laptop", "--owner-id", "u-1", "--owner-type", "user", "--expiry", "24h")
		require.NoError(t, err)
		assert.Equal(t, models.OwnerTypeUser, got.OwnerType)
		assert.WithinDuration(t, time.Now().Add(24*time.Hour), got.ExpiryTime, time.Minute)
	})

	t.Run("invalid flags", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
			want string
		}{
			{name: "missing owner", args: []string{"api-key", "create", "ci"}, want: "--owner-id"},
			{name: "bad owner type", args: []string{"api-key", "create", "ci", "--owner-id", "x", "--owner-type", "robot"}, want: "invalid --owner-type"},
			{name: "negative expiry", args: []string{"api-key", "create", "ci", "--owner-id", "x", "--expiry", "-1h"}, want: "must be positive"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, _, err := cli.execute(tt.args...)
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.want)
			})
		}
	})
}
