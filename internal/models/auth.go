package models

import "github.com/golang-jwt/jwt/v5"

// Credential is one entry of the TOTP credential file.
type Credential struct {
	User       string `json:"user"`
	TOTPSecret string `json:"totp_secret"`
}

// JWTClaims is the token payload issued after a successful login.
type JWTClaims struct {
	User string `json:"user"`
	jwt.RegisteredClaims
}
