package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	authsvc "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/services/auth"
	"github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/transport/http/dto"
	httperrors "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/transport/http/errors"
)

type AuthHandler struct {
	service *authsvc.Service
	log     *zap.Logger
	now     func() time.Time
}

func NewAuthHandler(service *authsvc.Service, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{service: service, log: log, now: time.Now}
}

// Handle verifies the initData posted by the Mini App. Rejected credentials
// answer 200 with ok=false, like the client expects.
func (h *AuthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	var req dto.AuthRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	identity, err := h.service.Authenticate(req.InitData)
	if err != nil {
		h.log.Debug("initdata rejected", zap.String("kind", string(authsvc.KindOf(err))))
		httperrors.Write(w, http.StatusOK, dto.AuthResponse{
			OK:    false,
			Error: authsvc.Reason(err),
		})
		return
	}

	resp := dto.AuthResponse{
		OK:      true,
		User:    identity.User,
		IsAdmin: h.service.IsAdmin(identity),
	}

	if h.service.TokensEnabled() && identity.HasID {
		token, expiresAt, err := h.service.IssueAccessToken(identity)
		if err != nil {
			h.log.Error("issue access token", zap.Int64("user_id", identity.ID), zap.Error(err))
			writeInternal(w, "TOKEN_ISSUE_FAILED", "could not issue access token")
			return
		}
		resp.AccessToken = token
		resp.ExpiresInSec = max(0, int64(expiresAt.Sub(h.now()).Seconds()))
	}

	httperrors.Write(w, http.StatusOK, resp)
}
