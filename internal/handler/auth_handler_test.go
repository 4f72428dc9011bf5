package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classboard/conduct-api/internal/dto"
	appErrors "github.com/classboard/conduct-api/pkg/errors"
)

type fakeAuthSrv struct {
	resp *dto.LoginResponse
	err  error
	last dto.LoginRequest
}

func (f *fakeAuthSrv) Login(req dto.LoginRequest) (*dto.LoginResponse, error) {
	f.last = req
	return f.resp, f.err
}

func TestAuthHandlerLoginSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeAuthSrv{resp: &dto.LoginResponse{User: "admin", Token: "token-1"}}
	handler := NewAuthHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = newJSONRequest(t, http.MethodPost, "/api/login", dto.LoginRequest{User: "admin", TOTPPass: "123456"})

	handler.Login(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", service.last.User)
	var body struct {
		Success bool              `json:"success"`
		Data    dto.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "token-1", body.Data.Token)
}

func TestAuthHandlerLoginRejectsBadCode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&fakeAuthSrv{err: appErrors.Clone(appErrors.ErrForbidden, "验证码错误")})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = newJSONRequest(t, http.MethodPost, "/api/login", dto.LoginRequest{User: "admin", TOTPPass: "000000"})

	handler.Login(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthHandlerLoginRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&fakeAuthSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader([]byte(`{`)))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Login(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
