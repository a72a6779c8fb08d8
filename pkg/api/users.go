package api

import (
	"context"
	"fmt"
	"net/http"

	"sharednotes/pkg/models"
)

type accessResponse struct {
	Access string `json:"access"`
}

type activationResponse struct {
	AccessToken string `json:"access_token"`
}

// MessageResponse is the generic {"message": ...} body of several endpoints
type MessageResponse struct {
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Status  string `json:"status,omitempty"`
}

// CreateUser registers an account
func (c *Client) CreateUser(ctx context.Context, profile models.Profile) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, "users.create", http.MethodPost, "/users/users/", profile, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Me returns the current user
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, "users.me", http.MethodGet, "/users/users/me/", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateMe replaces the current user's username and email
func (c *Client) UpdateMe(ctx context.Context, update models.ProfileUpdate) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, "users.update", http.MethodPut, "/users/users/me/", update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteMe deletes the current user's account
func (c *Client) DeleteMe(ctx context.Context) error {
	return c.do(ctx, "users.delete", http.MethodDelete, "/users/users/me/", nil, nil)
}

// ChangePassword changes the current user's password
func (c *Client) ChangePassword(ctx context.Context, change models.PasswordChange) error {
	return c.do(ctx, "users.change_password", http.MethodPost, "/users/users/change_password/", change, nil)
}

// ListUsers returns the user directory
func (c *Client) ListUsers(ctx context.Context) ([]models.DirectoryUser, error) {
	var users []models.DirectoryUser
	if err := c.do(ctx, "users.list", http.MethodGet, "/users/users/", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateToken exchanges credentials for an access token. The backend also
// sets the refresh cookie.
func (c *Client) CreateToken(ctx context.Context, username, password string) (string, error) {
	body := map[string]string{"username": username, "password": password}
	var resp accessResponse
	if err := c.do(ctx, "jwt.create", http.MethodPost, "/users/jwt/create/", body, &resp); err != nil {
		return "", err
	}
	if resp.Access == "" {
		return "", fmt.Errorf("jwt create: response carries no access token")
	}
	return resp.Access, nil
}

// RefreshToken trades the refresh cookie for a new access token.
// The token is returned, not stored.
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	var resp accessResponse
	if err := c.do(ctx, "jwt.refresh", http.MethodPost, refreshPath, nil, &resp); err != nil {
		return "", err
	}
	if resp.Access == "" {
		return "", fmt.Errorf("jwt refresh: response carries no access token")
	}
	return resp.Access, nil
}

// ExpireToken revokes the refresh cookie
func (c *Client) ExpireToken(ctx context.Context) error {
	return c.do(ctx, "jwt.expire", http.MethodPost, "/users/jwt/expire/", nil, nil)
}

// UploadPublicKey stores the current user's public key. The key is opaque.
func (c *Client) UploadPublicKey(ctx context.Context, publicKey string) error {
	body := map[string]string{"public_key": publicKey}
	return c.do(ctx, "keys.create", http.MethodPost, "/users/keys/", body, nil)
}

// Activate marks the account with email verified and returns an access token
func (c *Client) Activate(ctx context.Context, email string) (string, error) {
	body := map[string]string{"email": email}
	var resp activationResponse
	if err := c.do(ctx, "users.activate", http.MethodPost, "/users/activate/", body, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("activate: response carries no access token")
	}
	return resp.AccessToken, nil
}

// ResendActivation asks the backend to send the verification email again
func (c *Client) ResendActivation(ctx context.Context, email, username string) (*MessageResponse, error) {
	body := map[string]string{"email": email, "username": username}
	var resp MessageResponse
	if err := c.do(ctx, "users.resend_email", http.MethodPost, "/users/resend-email/", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
