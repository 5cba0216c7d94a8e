package client

import (
	"context"
	"fmt"

	"github.com/pt-nexus/webgate/internal/storage"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Success            bool   `json:"success"`
	Message            string `json:"message,omitempty"`
	Token              string `json:"token"`
	IsTempPassword     bool   `json:"is_temp_password"`
	MustChangePassword bool   `json:"must_change_password"`
}

// StatusResponse represents the auth status response
type StatusResponse struct {
	Success            bool   `json:"success"`
	Username           string `json:"username"`
	MustChangePassword bool   `json:"must_change_password"`
}

// ChangePasswordRequest represents the change-password request body
type ChangePasswordRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	OldPassword string `json:"old_password"`
}

// Login authenticates against the backend and stores the returned token
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.Post(ctx, c.session.AuthPath("login"), LoginRequest{
		Username: username,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	if !resp.Success || resp.Token == "" {
		msg := resp.Message
		if msg == "" {
			msg = "no token in response"
		}
		return nil, fmt.Errorf("login failed: %s", msg)
	}

	if err := storage.SaveToken(c.session.Storage(), resp.Token); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Logout forgets the stored token
func (c *Client) Logout() error {
	return storage.DeleteToken(c.session.Storage())
}

// Status returns the backend's view of the account
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.Get(ctx, c.session.AuthPath("status"), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ChangePassword replaces the account's credentials
func (c *Client) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	err := c.Post(ctx, c.session.AuthPath("change_password"), ChangePasswordRequest{
		Username:    username,
		Password:    newPassword,
		OldPassword: oldPassword,
	}, &resp)
	if err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("failed to change password: %s", resp.Message)
	}
	return nil
}
