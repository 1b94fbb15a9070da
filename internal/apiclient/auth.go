package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/starford/lifeos/internal/models"
)

type authResponse struct {
	User *models.User `json:"user"`
}

// Login authenticates with email and password. The backend sets the session cookies.
func (c *Client) Login(ctx context.Context, email, password string) (models.User, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.Request(ctx, http.MethodPost, "/auth/login", &resp, WithJSON(body), WithoutRefresh()); err != nil {
		return models.User{}, err
	}
	return c.afterLogin(ctx, resp)
}

// Signup creates an account and signs in.
func (c *Client) Signup(ctx context.Context, email, password, name string) (models.User, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password, "name": name}
	if err := c.Request(ctx, http.MethodPost, "/auth/signup", &resp, WithJSON(body), WithoutRefresh()); err != nil {
		return models.User{}, err
	}
	return c.afterLogin(ctx, resp)
}

func (c *Client) afterLogin(ctx context.Context, resp authResponse) (models.User, error) {
	c.session.MarkAuthenticated()
	if resp.User != nil && resp.User.ID != "" {
		return *resp.User, nil
	}
	return c.Me(ctx)
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var u models.User
	err := c.Request(ctx, http.MethodGet, "/auth/me", &u)
	return u, err
}

// Logout ends the session on the backend and forgets the local cookies even if
// the backend call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.Request(ctx, http.MethodPost, "/auth/logout", nil, WithoutRefresh())
	c.jar.clear()
	return err
}

// Refresh exchanges the refresh cookie for a new access token outside of the
// automatic retry cycle.
func (c *Client) Refresh(ctx context.Context) error {
	if err := c.refresh(ctx); err != nil {
		return err
	}
	c.session.MarkAuthenticated()
	return nil
}

// ChangePassword changes the password of the signed-in user.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	body := map[string]string{"currentPassword": current, "newPassword": next}
	return c.Request(ctx, http.MethodPost, "/auth/change-password", nil, WithJSON(body))
}

// ForgotPassword asks the backend to mail a reset link.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.Request(ctx, http.MethodPost, "/auth/forgot-password", nil,
		WithJSON(map[string]string{"email": email}), WithoutRefresh())
}

// ResetPassword sets a new password using a reset token.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	return c.Request(ctx, http.MethodPost, "/auth/reset-password", nil,
		WithJSON(map[string]string{"token": token, "password": password}), WithoutRefresh())
}

// UploadAvatar replaces the avatar of the signed-in user.
func (c *Client) UploadAvatar(ctx context.Context, filename string, content io.Reader) (models.User, error) {
	var u models.User
	err := c.Request(ctx, http.MethodPost, "/auth/avatar", &u,
		WithMultipart(nil, FilePart{Field: "file", Filename: filename, Content: content}))
	return u, err
}

// Bootstrap checks for an existing session. A timeout or an expired session
// means the user is logged out and is not reported as an error.
func (c *Client) Bootstrap(ctx context.Context) (user models.User, loggedIn bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.sessionCheckTimeout)
	defer cancel()

	u, err := c.Me(ctx)
	switch {
	case err == nil:
		return u, true, nil
	case errors.Is(err, context.DeadlineExceeded), ctx.Err() != nil, errors.Is(err, ErrSessionExpired), IsKind(err, KindAuth):
		return models.User{}, false, nil
	}
	return models.User{}, false, err
}

// AccessTokenExpiry reports when the stored access token expires. The token is
// decoded without verifying its signature.
func (c *Client) AccessTokenExpiry() (time.Time, bool) {
	raw, ok := c.jar.value(c.accessCookie)
	if !ok || raw == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// HasSession reports whether any session cookie is stored.
func (c *Client) HasSession() bool {
	c.jar.mu.Lock()
	defer c.jar.mu.Unlock()
	return len(c.jar.cookies) > 0
}
