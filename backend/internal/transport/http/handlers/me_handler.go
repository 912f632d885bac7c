package handlers

import (
	"net/http"

	authsvc "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/services/auth"
	"github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/transport/http/dto"
	httperrors "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/transport/http/errors"
)

type MeHandler struct {
	auth *authsvc.Service
}

func NewMeHandler(auth *authsvc.Service) *MeHandler {
	return &MeHandler{auth: auth}
}

func (h *MeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok || !identity.HasID {
		writeUnauthorized(w)
		return
	}

	resp := dto.MeResponse{
		OK:           true,
		ID:           identity.ID,
		User:         identity.User,
		IsAdmin:      h.auth != nil && h.auth.IsAdmin(identity),
		ChatType:     identity.ChatType,
		ChatInstance: identity.ChatInstance,
	}
	if identity.HasAuthDate {
		authDate := identity.AuthDate
		resp.AuthDate = &authDate
	}

	httperrors.Write(w, http.StatusOK, resp)
}
