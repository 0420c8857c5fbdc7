package httpapi

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

type loginForm struct {
	Username   string `form:"username" json:"username" binding:"required,max=150"`
	Password   string `form:"password" json:"password" binding:"required"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
	Next       string `form:"next" json:"next"`
}

type registerForm struct {
	Username        string `form:"username" json:"username" binding:"required,max=150"`
	Email           string `form:"email" json:"email" binding:"required,email"`
	Password        string `form:"password" json:"password" binding:"required,min=8"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password" binding:"required"`
	Role            string `form:"role" json:"role" binding:"required,oneof=staff doctor nurse admin"`
	FirstName       string `form:"first_name" json:"first_name" binding:"required,max=100"`
	LastName        string `form:"last_name" json:"last_name" binding:"required,max=100"`
	Phone           string `form:"phone" json:"phone" binding:"max=20"`
	DateOfBirth     string `form:"date_of_birth" json:"date_of_birth"`
	Address         string `form:"address" json:"address"`
}

type forgotPasswordForm struct {
	Email string `form:"email" json:"email" binding:"required,email"`
}

type resetPasswordForm struct {
	Token           string `form:"token" json:"token"`
	NewPassword     string `form:"newPassword" json:"newPassword" binding:"required"`
	ConfirmPassword string `form:"confirmPassword" json:"confirmPassword" binding:"required"`
}

type changePasswordForm struct {
	CurrentPassword string `form:"current_password" json:"current_password" binding:"required"`
	NewPassword     string `form:"new_password" json:"new_password" binding:"required,min=8"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password" binding:"required"`
}

type profileForm struct {
	FirstName   string `form:"first_name" json:"first_name" binding:"required,max=50"`
	LastName    string `form:"last_name" json:"last_name" binding:"required,max=50"`
	Phone       string `form:"phone" json:"phone" binding:"max=20"`
	DateOfBirth string `form:"date_of_birth" json:"date_of_birth"`
	Address     string `form:"address" json:"address"`
	AvatarURL   string `form:"avatar_url" json:"avatar_url" binding:"omitempty,url"`
}

const dateLayout = "2006-01-02"

var fieldLabels = map[string]string{
	"Username":        "Username",
	"Email":           "Email",
	"Password":        "Password",
	"ConfirmPassword": "Password confirmation",
	"CurrentPassword": "Current password",
	"NewPassword":     "New password",
	"Role":            "Role",
	"FirstName":       "First name",
	"LastName":        "Last name",
	"Phone":           "Phone",
	"AvatarURL":       "Avatar URL",
}

// formErrors turns a binding error into user-facing messages.
func formErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{"Invalid form submission."}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		label, ok := fieldLabels[fe.Field()]
		if !ok {
			label = fe.Field()
		}
		switch fe.Tag() {
		case "required":
			out = append(out, label+" is required.")
		case "email":
			out = append(out, "Enter a valid email address.")
		case "url":
			out = append(out, "Enter a valid URL.")
		case "min":
			out = append(out, fmt.Sprintf("%s must be at least %s characters.", label, fe.Param()))
		case "max":
			out = append(out, fmt.Sprintf("%s must be at most %s characters.", label, fe.Param()))
		case "oneof":
			out = append(out, "Select a valid "+strings.ToLower(label)+".")
		default:
			out = append(out, label+" is invalid.")
		}
	}
	return out
}

// passwordProblem returns why password is too weak, or "".
func passwordProblem(password string) string {
	var special, upper, lower, digit bool
	for _, r := range password {
		switch {
		case strings.ContainsRune("!@#$%^&*", r):
			special = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	switch {
	case !special:
		return "Password must contain at least one special character (!@#$%^&*)."
	case !upper:
		return "Password must contain at least one uppercase letter."
	case !lower:
		return "Password must contain at least one lowercase letter."
	case !digit:
		return "Password must contain at least one digit."
	}
	return ""
}

// isoDate validates an optional yyyy-mm-dd date. An empty value yields nil.
func isoDate(v string) (any, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, true
	}
	if _, err := time.Parse(dateLayout, v); err != nil {
		return nil, false
	}
	return v, true
}
