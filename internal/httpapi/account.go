package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"hospital-frontend/internal/auth"
	"hospital-frontend/internal/gateway"
	"hospital-frontend/internal/session"
	"hospital-frontend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Page paths for the account flow.
const (
	LogoutPath         = "/auth/logout/"
	RegisterPath       = "/auth/register/"
	ForgotPasswordPath = "/auth/forgot-password/"
	ResetPasswordPath  = "/auth/reset-password/"
	ProfilePath        = "/auth/profile/"
	ProfileEditPath    = "/auth/profile/edit/"
	ChangePasswordPath = "/auth/change-password/"
)

// LoginForm shows the login page, or sends a signed-in user to the dashboard.
func (h Handlers) LoginForm(c *gin.Context) {
	if session.FromGin(c).IsAuthenticated() {
		redirect(c, auth.DashboardPath)
		return
	}
	render(c, http.StatusOK, "login", gin.H{"next": c.Query("next")})
}

// Login exchanges credentials for a session.
func (h Handlers) Login(c *gin.Context) {
	ctx := c.Request.Context()
	s := session.FromGin(c)
	ajax := auth.IsAJAX(c.Request)

	var f loginForm
	if err := c.ShouldBind(&f); err != nil {
		h.loginFailed(c, f, ajax, http.StatusBadRequest, formErrors(err)[0], "invalid_form")
		return
	}

	data, res := h.Gateway.Login(ctx, f.Username, f.Password)
	if !res.OK() {
		status := http.StatusUnauthorized
		if res.Kind != gateway.KindBackend {
			status = statusFor(res)
		}
		h.loginFailed(c, f, ajax, status, res.Message(), string(res.Kind))
		return
	}

	if err := s.Login(data.AccessToken, data.RefreshToken, auth.IdentityOf(data.User)); err != nil {
		logger.From(ctx).Warn("login returned an unusable identity", slog.Any("err", err))
		h.loginFailed(c, f, ajax, http.StatusBadGateway, gateway.MsgInvalidResponse, "invalid_identity")
		return
	}
	s.SetRememberMe(f.RememberMe)

	id, _ := s.Identity()
	h.Audit.LogLogin(ctx, id.UserID, string(id.Role), id.Username, auth.RequestInfo(c))
	logger.From(ctx).Info("user logged in", slog.String("user_id", id.UserID), slog.String("role", string(id.Role)))

	name := data.User.FirstName
	if name == "" {
		name = id.Username
	}
	s.AddFlash(session.FlashSuccess, "Welcome back, "+name+"!")

	next := c.Query("next")
	if next == "" {
		next = f.Next
	}
	next = auth.SafeNext(next)
	if ajax {
		c.JSON(http.StatusOK, gin.H{"success": true, "redirect": next})
		return
	}
	redirect(c, next)
}

func (h Handlers) loginFailed(c *gin.Context, f loginForm, ajax bool, status int, msg, reason string) {
	h.Audit.LogLoginFailed(c.Request.Context(), f.Username, auth.RequestInfo(c), reason)
	if ajax {
		c.JSON(status, gin.H{"success": false, "message": msg})
		return
	}
	flash(c, session.FlashError, msg)
	render(c, status, "login", gin.H{"next": f.Next, "username": f.Username})
}

// Logout flushes the session. GET and POST both work.
func (h Handlers) Logout(c *gin.Context) {
	s := session.FromGin(c)
	if sub := auth.SubjectFromSession(s); sub.Authenticated {
		h.Audit.LogLogout(c.Request.Context(), sub.UserID, string(sub.Role), auth.RequestInfo(c))
		logger.From(c.Request.Context()).Info("user logged out", slog.String("user_id", sub.UserID))
	}
	s.Flush()
	s.AddFlash(session.FlashSuccess, "You have been logged out successfully.")
	redirect(c, auth.LoginPath)
}

func (h Handlers) RegisterForm(c *gin.Context) {
	if session.FromGin(c).IsAuthenticated() {
		redirect(c, auth.DashboardPath)
		return
	}
	render(c, http.StatusOK, "register", nil)
}

// Register forwards a sign-up to the auth service.
func (h Handlers) Register(c *gin.Context) {
	var f registerForm
	if err := c.ShouldBind(&f); err != nil {
		h.formFailed(c, "register", formErrors(err))
		return
	}
	if msg := passwordProblem(f.Password); msg != "" {
		h.formFailed(c, "register", []string{msg})
		return
	}
	if f.Password != f.ConfirmPassword {
		h.formFailed(c, "register", []string{"Passwords don't match"})
		return
	}
	dob, ok := isoDate(f.DateOfBirth)
	if !ok {
		h.formFailed(c, "register", []string{"Enter a valid date of birth."})
		return
	}

	res := h.Gateway.Register(c.Request.Context(), map[string]any{
		"username": f.Username,
		"email":    f.Email,
		"password": f.Password,
		"role":     f.Role,
		"profile": map[string]any{
			"firstName":   f.FirstName,
			"lastName":    f.LastName,
			"phone":       f.Phone,
			"dateOfBirth": dob,
			"address":     f.Address,
			"avatarUrl":   "",
		},
	})
	if !res.OK() {
		msgs := envelopeErrors(res)
		if len(msgs) == 0 {
			msgs = []string{res.Message()}
		}
		for _, m := range msgs {
			flash(c, session.FlashError, m)
		}
		render(c, statusFor(res), "register", nil)
		return
	}
	flash(c, session.FlashSuccess, "Registration successful! You can now login with your credentials.")
	redirect(c, auth.LoginPath)
}

func (h Handlers) ForgotPasswordForm(c *gin.Context) {
	if session.FromGin(c).IsAuthenticated() {
		redirect(c, auth.DashboardPath)
		return
	}
	render(c, http.StatusOK, "forgot_password", nil)
}

func (h Handlers) ForgotPassword(c *gin.Context) {
	var f forgotPasswordForm
	if err := c.ShouldBind(&f); err != nil {
		h.formFailed(c, "forgot_password", formErrors(err))
		return
	}
	res := h.Gateway.ForgotPassword(c.Request.Context(), f.Email)
	if !res.OK() {
		h.resultFailed(c, "forgot_password", res, nil)
		return
	}
	flash(c, session.FlashSuccess, "If your email address exists in our system, you will receive password reset instructions shortly.")
	redirect(c, auth.LoginPath)
}

func (h Handlers) ResetPasswordForm(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		flash(c, session.FlashError, "Invalid or missing reset token.")
		redirect(c, auth.LoginPath)
		return
	}
	render(c, http.StatusOK, "reset_password", gin.H{"token": token})
}

func (h Handlers) ResetPassword(c *gin.Context) {
	var f resetPasswordForm
	bindErr := c.ShouldBind(&f)
	token := c.Query("token")
	if token == "" {
		token = f.Token
	}
	if token == "" {
		flash(c, session.FlashError, "Invalid or missing reset token.")
		redirect(c, auth.LoginPath)
		return
	}
	data := gin.H{"token": token}
	if bindErr != nil {
		h.formFailedWith(c, "reset_password", formErrors(bindErr), data)
		return
	}
	if f.NewPassword != f.ConfirmPassword {
		h.formFailedWith(c, "reset_password", []string{"Passwords do not match."}, data)
		return
	}
	res := h.Gateway.ResetPassword(c.Request.Context(), token, f.NewPassword)
	if !res.OK() {
		h.resultFailed(c, "reset_password", res, data)
		return
	}
	flash(c, session.FlashSuccess, "Password reset successfully! You can now login with your new password.")
	redirect(c, auth.LoginPath)
}

// Profile shows the caller's live profile with PII revealed.
func (h Handlers) Profile(c *gin.Context) {
	ctx := c.Request.Context()
	res := h.Gateway.Request(ctx, http.MethodGet, gateway.PathProfile, tokenOf(c), nil, nil)
	data := gin.H{"profile": nil}
	if res.OK() {
		if doc, ok := userDocument(res.Envelope.Data); ok {
			data["profile"] = h.Codec.RevealUser(ctx, doc)
		}
	} else {
		data["api_error"] = res.Message()
	}
	render(c, http.StatusOK, "profile", data)
}

// UpdateProfile saves the caller's own profile.
func (h Handlers) UpdateProfile(c *gin.Context) {
	var f profileForm
	if err := c.ShouldBind(&f); err != nil {
		h.formFailed(c, "profile_edit", formErrors(err))
		return
	}
	profile := map[string]any{
		"firstName": f.FirstName,
		"lastName":  f.LastName,
		"phone":     f.Phone,
		"address":   f.Address,
		"avatarUrl": f.AvatarURL,
	}
	dob, ok := isoDate(f.DateOfBirth)
	if !ok {
		h.formFailed(c, "profile_edit", []string{"Enter a valid date of birth."})
		return
	}
	if dob != nil {
		profile["dateOfBirth"] = dob
	}
	res := h.Gateway.UpdateProfile(c.Request.Context(), tokenOf(c), map[string]any{"profile": profile})
	if !res.OK() {
		h.resultFailed(c, "profile_edit", res, nil)
		return
	}
	flash(c, session.FlashSuccess, "Profile updated successfully!")
	redirect(c, ProfilePath)
}

func (h Handlers) ChangePassword(c *gin.Context) {
	var f changePasswordForm
	if err := c.ShouldBind(&f); err != nil {
		h.formFailed(c, "change_password", formErrors(err))
		return
	}
	if f.NewPassword != f.ConfirmPassword {
		h.formFailed(c, "change_password", []string{"New passwords don't match."})
		return
	}
	res := h.Gateway.ChangePassword(c.Request.Context(), tokenOf(c), map[string]string{
		"currentPassword": f.CurrentPassword,
		"newPassword":     f.NewPassword,
	})
	if !res.OK() {
		h.resultFailed(c, "change_password", res, nil)
		return
	}
	flash(c, session.FlashSuccess, "Password changed successfully.")
	redirect(c, ProfilePath)
}

func (h Handlers) formFailed(c *gin.Context, page string, msgs []string) {
	h.formFailedWith(c, page, msgs, nil)
}

func (h Handlers) formFailedWith(c *gin.Context, page string, msgs []string, data gin.H) {
	for _, m := range msgs {
		flash(c, session.FlashError, m)
	}
	render(c, http.StatusBadRequest, page, data)
}

func (h Handlers) resultFailed(c *gin.Context, page string, res gateway.Result, data gin.H) {
	flash(c, session.FlashError, res.Message())
	render(c, statusFor(res), page, data)
}

// envelopeErrors returns the envelope's errors when they are a list of strings.
func envelopeErrors(res gateway.Result) []string {
	if len(res.Envelope.Errors) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(res.Envelope.Errors, &list); err != nil {
		return nil
	}
	return list
}

// userDocument reads a user from {"user":{...}} or the user object itself.
func userDocument(data json.RawMessage) (map[string]any, bool) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		return nil, false
	}
	if nested, ok := doc["user"].(map[string]any); ok {
		return nested, true
	}
	return doc, true
}
