package cloudapi

import (
	"context"
	"net/http"

	"cloudops/internal/models"
)

type listUsersResponse struct {
	Users         []models.User `json:"users"`
	NextPageToken string        `json:"nextPageToken"`
}

type listServiceAccountsResponse struct {
	ServiceAccounts []models.ServiceAccount `json:"serviceAccount"`
	NextPageToken   string                  `json:"nextPageToken"`
}

type createUserRequest struct {
	Spec             models.UserSpec `json:"spec"`
	AsyncOperationID string          `json:"asyncOperationId"`
}

type createUserResponse struct {
	UserID         string                 `json:"userId"`
	AsyncOperation *models.AsyncOperation `json:"asyncOperation"`
}

type createServiceAccountRequest struct {
	Spec             models.ServiceAccountSpec `json:"spec"`
	AsyncOperationID string                    `json:"asyncOperationId"`
}

type createServiceAccountResponse struct {
	ServiceAccountID string                 `json:"serviceAccountId"`
	AsyncOperation   *models.AsyncOperation `json:"asyncOperation"`
}

type createAPIKeyRequest struct {
	Spec             models.APIKeySpec `json:"spec"`
	AsyncOperationID string            `json:"asyncOperationId"`
}

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var (
		users     []models.User
		pageToken string
	)
	for {
		var resp listUsersResponse
		if err := c.do(ctx, "list_users", "", http.MethodGet, "/cloud/users", pageQuery(pageToken), nil, &resp); err != nil {
			return nil, err
		}
		users = append(users, resp.Users...)
		if resp.NextPageToken == "" || resp.NextPageToken == pageToken {
			return users, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (c *Client) CreateUser(ctx context.Context, spec models.UserSpec) (string, *models.AsyncOperation, error) {
	req := createUserRequest{Spec: spec, AsyncOperationID: c.newOpID()}
	var resp createUserResponse
	if err := c.do(ctx, "create_user", spec.Email, http.MethodPost, "/cloud/users", nil, req, &resp); err != nil {
		return "", nil, err
	}
	return resp.UserID, resp.AsyncOperation, nil
}

func (c *Client) ListServiceAccounts(ctx context.Context) ([]models.ServiceAccount, error) {
	var (
		accounts  []models.ServiceAccount
		pageToken string
	)
	for {
		var resp listServiceAccountsResponse
		if err := c.do(ctx, "list_service_accounts", "", http.MethodGet, "/cloud/service-accounts", pageQuery(pageToken), nil, &resp); err != nil {
			return nil, err
		}
		accounts = append(accounts, resp.ServiceAccounts...)
		if resp.NextPageToken == "" || resp.NextPageToken == pageToken {
			return accounts, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (c *Client) CreateServiceAccount(ctx context.Context, spec models.ServiceAccountSpec) (string, *models.AsyncOperation, error) {
	req := createServiceAccountRequest{Spec: spec, AsyncOperationID: c.newOpID()}
	var resp createServiceAccountResponse
	if err := c.do(ctx, "create_service_account", spec.Name, http.MethodPost, "/cloud/service-accounts", nil, req, &resp); err != nil {
		return "", nil, err
	}
	return resp.ServiceAccountID, resp.AsyncOperation, nil
}

func (c *Client) CreateAPIKey(ctx context.Context, spec models.APIKeySpec) (*models.CreatedAPIKey, error) {
	req := createAPIKeyRequest{Spec: spec, AsyncOperationID: c.newOpID()}
	var resp models.CreatedAPIKey
	if err := c.do(ctx, "create_api_key", spec.OwnerID, http.MethodPost, "/cloud/api-keys", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
