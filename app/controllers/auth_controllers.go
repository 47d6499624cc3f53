package controllers

import (
	"errors"
	"net/http"

	"github.com/opsipintar/catalog/app/providers"
	"github.com/opsipintar/catalog/app/services"
	"github.com/opsipintar/catalog/pkg/auth"
	"github.com/opsipintar/catalog/pkg/bind"
	"github.com/opsipintar/catalog/pkg/container"
	"github.com/opsipintar/catalog/pkg/response"
)

type AuthController struct{}

func NewAuthController() *AuthController {
	return &AuthController{}
}

type loginInput struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

// Login handles POST /api/admin/login.
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := bind.JSON(w, r, &in); err != nil {
		bad(w, err)
		return
	}

	token, err := container.Make[*services.AuthService](providers.Auth).Login(r.Context(), in.Email, in.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		response.Error(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	response.Success(w, map[string]string{"token": token})
}
