package dto

// LoginRequest carries the TOTP login form. The frontend historically sent
// the account under either `user` or `username`.
type LoginRequest struct {
	User     string `json:"user"`
	Username string `json:"username"`
	TOTPPass string `json:"totppass" validate:"required,len=6,numeric"`
}

// Account returns whichever account field was populated.
func (r LoginRequest) Account() string {
	if r.User != "" {
		return r.User
	}
	return r.Username
}

// LoginResponse is returned on successful verification.
type LoginResponse struct {
	User  string `json:"user"`
	Token string `json:"token,omitempty"`
}
