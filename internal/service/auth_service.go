package service

import (
	"encoding/json"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"github.com/classboard/conduct-api/internal/dto"
	"github.com/classboard/conduct-api/internal/models"
	"github.com/classboard/conduct-api/pkg/config"
	appErrors "github.com/classboard/conduct-api/pkg/errors"
)

// AuthService verifies one-time passwords against the static credential
// file and issues session tokens.
type AuthService struct {
	cfg    config.AuthConfig
	jwtCfg config.JWTConfig
	logger *zap.Logger

	now func() time.Time
}

// NewAuthService loads nothing eagerly; credentials are read per login so
// the file can be rotated without a restart.
func NewAuthService(cfg config.AuthConfig, jwtCfg config.JWTConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{cfg: cfg, jwtCfg: jwtCfg, logger: logger, now: time.Now}
}

// Login validates the TOTP code for the given account and returns a signed
// token when a JWT secret is configured.
func (s *AuthService) Login(req dto.LoginRequest) (*dto.LoginResponse, error) {
	account := req.Account()
	if account == "" || req.TOTPPass == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "缺少用户名或验证码")
	}
	if len(req.TOTPPass) != 6 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "验证码必须是6位数字")
	}

	cred, err := s.lookup(account)
	if err != nil {
		s.logger.Warn("login for unknown account", zap.String("user", account))
		return nil, appErrors.Clone(appErrors.ErrForbidden, "用户不存在")
	}

	window := s.cfg.TOTPWindow
	if window == 0 {
		window = 1
	}
	valid, err := totp.ValidateCustom(req.TOTPPass, cred.TOTPSecret, s.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      window,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !valid {
		s.logger.Warn("totp verification failed", zap.String("user", account))
		return nil, appErrors.Clone(appErrors.ErrForbidden, "验证码错误")
	}

	resp := &dto.LoginResponse{User: account}
	if s.jwtCfg.Secret != "" {
		token, err := s.issueToken(account)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue token")
		}
		resp.Token = token
	}

	s.logger.Info("login succeeded", zap.String("user", account))
	return resp, nil
}

// VerifyToken parses and validates a bearer token.
func (s *AuthService) VerifyToken(raw string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, appErrors.ErrUnauthorized
		}
		return []byte(s.jwtCfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.ErrUnauthorized
	}
	return claims, nil
}

func (s *AuthService) issueToken(account string) (string, error) {
	now := s.now()
	claims := models.JWTClaims{
		User: account,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtCfg.Expiration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtCfg.Secret))
}

func (s *AuthService) lookup(account string) (*models.Credential, error) {
	raw, err := os.ReadFile(s.cfg.CredentialFile)
	if err != nil {
		return nil, err
	}
	var creds []models.Credential
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, err
	}
	for i := range creds {
		if creds[i].User == account {
			return &creds[i], nil
		}
	}
	return nil, appErrors.ErrNotFound
}
