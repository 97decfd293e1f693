package cloudapi

import (
	"context"
	"net/http"
	"net/url"

	"cloudops/internal/models"
)

type getNamespaceResponse struct {
	Namespace *models.Namespace `json:"namespace"`
}

type listNamespacesResponse struct {
	Namespaces    []models.Namespace `json:"namespaces"`
	NextPageToken string             `json:"nextPageToken"`
}

type createNamespaceRequest struct {
	Spec             models.NamespaceSpec `json:"spec"`
	AsyncOperationID string               `json:"asyncOperationId"`
}

type updateNamespaceRequest struct {
	Spec             models.NamespaceSpec `json:"spec"`
	ResourceVersion  string               `json:"resourceVersion"`
	AsyncOperationID string               `json:"asyncOperationId"`
}

type mutationResponse struct {
	Namespace      string                 `json:"namespace,omitempty"`
	AsyncOperation *models.AsyncOperation `json:"asyncOperation"`
}

func namespacePath(namespaceID string) string {
	return "/cloud/namespaces/" + url.PathEscape(namespaceID)
}

func (c *Client) GetNamespace(ctx context.Context, namespaceID string) (*models.Namespace, error) {
	var resp getNamespaceResponse
	if err := c.do(ctx, "get_namespace", namespaceID, http.MethodGet, namespacePath(namespaceID), nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Namespace == nil {
		return nil, &Error{Code: CodeNotFound, Op: "get_namespace", Resource: namespaceID, Message: "empty namespace in response"}
	}
	return resp.Namespace, nil
}

func (c *Client) ListNamespaces(ctx context.Context) ([]models.Namespace, error) {
	var (
		namespaces []models.Namespace
		pageToken  string
	)
	for {
		var resp listNamespacesResponse
		if err := c.do(ctx, "list_namespaces", "", http.MethodGet, "/cloud/namespaces", pageQuery(pageToken), nil, &resp); err != nil {
			return nil, err
		}
		namespaces = append(namespaces, resp.Namespaces...)
		if resp.NextPageToken == "" || resp.NextPageToken == pageToken {
			return namespaces, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (c *Client) CreateNamespace(ctx context.Context, spec models.NamespaceSpec) (*models.AsyncOperation, error) {
	req := createNamespaceRequest{Spec: spec, AsyncOperationID: c.newOpID()}
	var resp mutationResponse
	if err := c.do(ctx, "create_namespace", spec.Name, http.MethodPost, "/cloud/namespaces", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.AsyncOperation, nil
}

func (c *Client) UpdateNamespace(ctx context.Context, namespaceID string, spec models.NamespaceSpec, resourceVersion string) (*models.AsyncOperation, error) {
	req := updateNamespaceRequest{Spec: spec, ResourceVersion: resourceVersion, AsyncOperationID: c.newOpID()}
	var resp mutationResponse
	if err := c.do(ctx, "update_namespace", namespaceID, http.MethodPost, namespacePath(namespaceID), nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.AsyncOperation, nil
}
