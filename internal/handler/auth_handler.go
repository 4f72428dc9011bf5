package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/classboard/conduct-api/internal/dto"
	appErrors "github.com/classboard/conduct-api/pkg/errors"
	"github.com/classboard/conduct-api/pkg/response"
)

type authService interface {
	Login(req dto.LoginRequest) (*dto.LoginResponse, error)
}

// AuthHandler exposes the TOTP login endpoint.
type AuthHandler struct {
	service authService
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(service authService) *AuthHandler {
	return &AuthHandler{service: service}
}

// Login verifies a one-time password and returns a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "请求体格式错误"))
		return
	}

	resp, err := h.service.Login(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}
