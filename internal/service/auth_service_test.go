package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classboard/conduct-api/internal/dto"
	"github.com/classboard/conduct-api/pkg/config"
	appErrors "github.com/classboard/conduct-api/pkg/errors"
)

const testTOTPSecret = "JBSWY3DPEHPK3PXP"

func writeCredentialFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "2fabase.json")
	content := `[{"user":"admin","totp_secret":"` + testTOTPSecret + `"}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestAuthService(t *testing.T, secret string) *AuthService {
	t.Helper()
	svc := NewAuthService(
		config.AuthConfig{CredentialFile: writeCredentialFile(t), TOTPWindow: 1},
		config.JWTConfig{Secret: secret, Expiration: time.Hour},
		zap.NewNop(),
	)
	return svc
}

func TestLoginWithValidCode(t *testing.T) {
	svc := newTestAuthService(t, "test-secret")

	code, err := totp.GenerateCode(testTOTPSecret, svc.now())
	require.NoError(t, err)

	resp, err := svc.Login(dto.LoginRequest{User: "admin", TOTPPass: code})
	require.NoError(t, err)
	require.Equal(t, "admin", resp.User)
	require.NotEmpty(t, resp.Token)

	claims, err := svc.VerifyToken(resp.Token)
	require.NoError(t, err)
	require.Equal(t, "admin", claims.User)
}

func TestLoginAcceptsUsernameAlias(t *testing.T) {
	svc := newTestAuthService(t, "")

	code, err := totp.GenerateCode(testTOTPSecret, svc.now())
	require.NoError(t, err)

	resp, err := svc.Login(dto.LoginRequest{Username: "admin", TOTPPass: code})
	require.NoError(t, err)
	require.Equal(t, "admin", resp.User)
	// no token without a configured signing secret
	require.Empty(t, resp.Token)
}

func TestLoginRejectsWrongCode(t *testing.T) {
	svc := newTestAuthService(t, "test-secret")

	_, err := svc.Login(dto.LoginRequest{User: "admin", TOTPPass: "000000"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Status, appErrors.FromError(err).Status)
}

func TestLoginRejectsUnknownAccount(t *testing.T) {
	svc := newTestAuthService(t, "test-secret")

	_, err := svc.Login(dto.LoginRequest{User: "ghost", TOTPPass: "123456"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Status, appErrors.FromError(err).Status)
}

func TestLoginRejectsMalformedInput(t *testing.T) {
	svc := newTestAuthService(t, "test-secret")

	cases := []dto.LoginRequest{
		{TOTPPass: "123456"},
		{User: "admin"},
		{User: "admin", TOTPPass: "123"},
		{User: "admin", TOTPPass: "1234567"},
	}
	for _, req := range cases {
		_, err := svc.Login(req)
		require.Error(t, err)
		require.Equal(t, appErrors.ErrValidation.Status, appErrors.FromError(err).Status)
	}
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	svc := newTestAuthService(t, "test-secret")

	_, err := svc.VerifyToken("not-a-token")
	require.Error(t, err)
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	svc := newTestAuthService(t, "test-secret")
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	code, err := totp.GenerateCode(testTOTPSecret, svc.now())
	require.NoError(t, err)
	resp, err := svc.Login(dto.LoginRequest{User: "admin", TOTPPass: code})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.VerifyToken(resp.Token)
	require.Error(t, err)
}
