package dto

type AuthRequest struct {
	InitData string `json:"initData"`
}

// AuthResponse is returned by POST /api/auth for both outcomes. A rejected
// credential is reported with ok=false and a short reason in error.
type AuthResponse struct {
	OK           bool           `json:"ok"`
	User         map[string]any `json:"user"`
	IsAdmin      bool           `json:"is_admin"`
	Error        string         `json:"error,omitempty"`
	AccessToken  string         `json:"access_token,omitempty"`
	ExpiresInSec int64          `json:"expires_in_sec,omitempty"`
}
