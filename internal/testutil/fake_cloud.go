package testutil

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"cloudops/internal/cloudapi"
	"cloudops/internal/models"
)

// FakeControlPlane is an in-memory NamespaceService with resource version
// checks. New namespaces start in the "activating" state and turn active
// after ActivateAfterGets reads.
type FakeControlPlane struct {
	mu         sync.Mutex
	namespaces map[string]*fakeNamespace
	opSeq      int

	AccountID         string
	ActivateAfterGets int

	// BeforeUpdate runs under no lock before each update is applied. Tests
	// use it to simulate a concurrent writer.
	BeforeUpdate func(namespaceID string)

	// GetErrors are returned, in order, by the next GetNamespace calls.
	GetErrors []error

	Creates int
	Updates int
	Gets    int
}

type fakeNamespace struct {
	ns       models.Namespace
	version  int
	prefix   string
	getsLeft int
}

const stateActivating = "activating"

var _ cloudapi.NamespaceService = (*FakeControlPlane)(nil)

func NewFakeControlPlane(accountID string) *FakeControlPlane {
	return &FakeControlPlane{
		namespaces: make(map[string]*fakeNamespace),
		AccountID:  accountID,
	}
}

// Put seeds a namespace. The resource version must be a number with an
// optional letter prefix, like "7" or "v7"; bumps keep the prefix.
func (f *FakeControlPlane) Put(ns models.Namespace) {
	f.mu.Lock()
	defer f.mu.Unlock()

	digits := strings.TrimLeftFunc(ns.ResourceVersion, unicode.IsLetter)
	version, err := strconv.Atoi(digits)
	if err != nil {
		panic(fmt.Sprintf("fake control plane needs numeric resource versions, got %q", ns.ResourceVersion))
	}
	ns.Spec = ns.Spec.Clone()
	f.namespaces[ns.ID] = &fakeNamespace{
		ns:      ns,
		version: version,
		prefix:  strings.TrimSuffix(ns.ResourceVersion, digits),
	}
}

// Namespace returns a copy of the stored namespace.
func (f *FakeControlPlane) Namespace(namespaceID string) (models.Namespace, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.namespaces[namespaceID]
	if !ok {
		return models.Namespace{}, false
	}
	return entry.snapshot(), true
}

// ModifyExternally applies fn to the stored spec and bumps the version, the
// way a write from another client would.
func (f *FakeControlPlane) ModifyExternally(namespaceID string, fn func(spec *models.NamespaceSpec)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.namespaces[namespaceID]
	if !ok {
		return
	}
	fn(&entry.ns.Spec)
	entry.bump()
}

func (f *FakeControlPlane) GetNamespace(ctx context.Context, namespaceID string) (*models.Namespace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Gets++

	if len(f.GetErrors) > 0 {
		err := f.GetErrors[0]
		f.GetErrors = f.GetErrors[1:]
		if err != nil {
			return nil, err
		}
	}

	entry, ok := f.namespaces[namespaceID]
	if !ok {
		return nil, &cloudapi.Error{Code: cloudapi.CodeNotFound, Op: "get_namespace", Resource: namespaceID, Status: 404, Message: "namespace not found"}
	}

	if entry.ns.State == stateActivating {
		if entry.getsLeft <= 0 {
			entry.ns.State = models.NamespaceStateActive
		} else {
			entry.getsLeft--
		}
	}

	ns := entry.snapshot()
	return &ns, nil
}

func (f *FakeControlPlane) ListNamespaces(ctx context.Context) ([]models.Namespace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.Namespace, 0, len(f.namespaces))
	for _, entry := range f.namespaces {
		out = append(out, entry.snapshot())
	}
	return out, nil
}

func (f *FakeControlPlane) CreateNamespace(ctx context.Context, spec models.NamespaceSpec) (*models.AsyncOperation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Creates++

	namespaceID := models.FullyQualifiedName(spec.Name, f.AccountID)
	if _, exists := f.namespaces[namespaceID]; exists {
		return nil, &cloudapi.Error{Code: cloudapi.CodeAlreadyExists, Op: "create_namespace", Resource: spec.Name, Status: 409, Message: "namespace already exists"}
	}

	f.namespaces[namespaceID] = &fakeNamespace{
		ns: models.Namespace{
			ID:              namespaceID,
			ResourceVersion: "1",
			Spec:            spec.Clone(),
			State:           stateActivating,
		},
		version:  1,
		getsLeft: f.ActivateAfterGets,
	}
	return f.nextOperation("create_namespace"), nil
}

func (f *FakeControlPlane) UpdateNamespace(ctx context.Context, namespaceID string, spec models.NamespaceSpec, resourceVersion string) (*models.AsyncOperation, error) {
	if f.BeforeUpdate != nil {
		f.BeforeUpdate(namespaceID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Updates++

	entry, ok := f.namespaces[namespaceID]
	if !ok {
		return nil, &cloudapi.Error{Code: cloudapi.CodeNotFound, Op: "update_namespace", Resource: namespaceID, Status: 404, Message: "namespace not found"}
	}
	if resourceVersion != entry.ns.ResourceVersion {
		return nil, &cloudapi.Error{
			Code:     cloudapi.CodeVersionConflict,
			Op:       "update_namespace",
			Resource: namespaceID,
			Status:   400,
			Message:  fmt.Sprintf("resource version %s does not match current %s", resourceVersion, entry.ns.ResourceVersion),
		}
	}

	entry.ns.Spec = spec.Clone()
	entry.bump()
	return f.nextOperation("update_namespace"), nil
}

func (f *FakeControlPlane) nextOperation(kind string) *models.AsyncOperation {
	f.opSeq++
	return &models.AsyncOperation{
		ID:            fmt.Sprintf("op-%d", f.opSeq),
		State:         "pending",
		OperationType: kind,
	}
}

func (e *fakeNamespace) bump() {
	e.version++
	e.ns.ResourceVersion = e.prefix + strconv.Itoa(e.version)
}

func (e *fakeNamespace) snapshot() models.Namespace {
	ns := e.ns
	ns.Spec = e.ns.Spec.Clone()
	return ns
}
