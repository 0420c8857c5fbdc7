package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// Auth endpoints on the gateway.
const (
	PathLogin          = "/api/auth/login"
	PathRegister       = "/api/auth/register"
	PathRefresh        = "/api/auth/refresh"
	PathProfile        = "/api/auth/profile"
	PathForgotPassword = "/api/auth/forgot-password"
	PathResetPassword  = "/api/auth/reset-password"
	PathChangePassword = "/api/auth/change-password"
)

// FlexString accepts JSON strings and numbers.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// User is the identity the auth service reports.
type User struct {
	ID        FlexString     `json:"id"`
	Username  string         `json:"username"`
	Role      string         `json:"role"`
	Email     string         `json:"email"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	IsActive  *bool          `json:"isActive,omitempty"`
	Profile   map[string]any `json:"profile,omitempty"`
}

// FullName is "first last", falling back to the username.
func (u User) FullName() string {
	if n := strings.TrimSpace(u.FirstName + " " + u.LastName); n != "" {
		return n
	}
	return u.Username
}

// Tokens is a bearer token pair.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginData is the payload of a successful login.
type LoginData struct {
	Tokens
	User User `json:"user"`
}

// ParseUser reads a user from either {"user":{...}} or the user object itself.
func ParseUser(data json.RawMessage) (User, bool) {
	var nested struct {
		User *User `json:"user"`
	}
	if err := json.Unmarshal(data, &nested); err == nil && nested.User != nil && nested.User.ID != "" {
		return *nested.User, true
	}
	var direct User
	if err := json.Unmarshal(data, &direct); err != nil || direct.ID == "" {
		return User{}, false
	}
	return direct, true
}

// Login exchanges credentials for a token pair and identity.
func (c *Client) Login(ctx context.Context, username, password string) (LoginData, Result) {
	res := c.Request(ctx, http.MethodPost, PathLogin, "", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	if !res.OK() {
		return LoginData{}, res
	}
	var d LoginData
	if err := res.Decode(&d); err != nil || d.AccessToken == "" || d.User.ID == "" || d.User.Role == "" {
		return LoginData{}, Malformed(res.Status)
	}
	return d, res
}

// Profile probes the access token by fetching the caller's profile.
func (c *Client) Profile(ctx context.Context, accessToken string) (User, Result) {
	res := c.Request(ctx, http.MethodGet, PathProfile, accessToken, nil, nil)
	if !res.OK() {
		return User{}, res
	}
	u, ok := ParseUser(res.Envelope.Data)
	if !ok {
		return User{}, Malformed(res.Status)
	}
	return u, res
}

// Refresh trades a refresh token for a new pair. A response without a new
// refresh token keeps the old one.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Tokens, Result) {
	res := c.Request(ctx, http.MethodPost, PathRefresh, "", map[string]string{
		"refreshToken": refreshToken,
	}, nil)
	if !res.OK() {
		return Tokens{}, res
	}
	var t Tokens
	if err := res.Decode(&t); err != nil || t.AccessToken == "" {
		return Tokens{}, Malformed(res.Status)
	}
	if t.RefreshToken == "" {
		t.RefreshToken = refreshToken
	}
	return t, res
}

// Register forwards a sign-up payload.
func (c *Client) Register(ctx context.Context, payload any) Result {
	return c.Request(ctx, http.MethodPost, PathRegister, "", payload, nil)
}

// ForgotPassword requests a reset email.
func (c *Client) ForgotPassword(ctx context.Context, email string) Result {
	return c.Request(ctx, http.MethodPost, PathForgotPassword, "", map[string]string{"email": email}, nil)
}

// ResetPassword completes a reset with the emailed token.
func (c *Client) ResetPassword(ctx context.Context, resetToken, newPassword string) Result {
	return c.Request(ctx, http.MethodPost, PathResetPassword, "", map[string]string{
		"token":       resetToken,
		"newPassword": newPassword,
	}, nil)
}

// UpdateProfile saves the caller's own profile.
func (c *Client) UpdateProfile(ctx context.Context, accessToken string, payload any) Result {
	return c.Request(ctx, http.MethodPut, PathProfile, accessToken, payload, nil)
}

// ChangePassword changes the caller's password.
func (c *Client) ChangePassword(ctx context.Context, accessToken string, payload any) Result {
	return c.Request(ctx, http.MethodPost, PathChangePassword, accessToken, payload, nil)
}
