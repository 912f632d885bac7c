package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	actionssvc "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/services/actions"
	authsvc "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/services/auth"
	"github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/transport/http/dto"
	httperrors "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/transport/http/errors"
)

type ActionsHandler struct {
	service *actionssvc.Service
	auth    *authsvc.Service
	log     *zap.Logger
}

func NewActionsHandler(service *actionssvc.Service, auth *authsvc.Service, log *zap.Logger) *ActionsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ActionsHandler{service: service, auth: auth, log: log}
}

// Handle serves GET /api/actions. Callers see their own history; admins may
// pass user_id to read someone else's.
func (h *ActionsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	requested, err := optionalInt64(q.Get("user_id"))
	if err != nil {
		writeBadRequest(w, "INVALID_USER_ID", "user_id must be an integer")
		return
	}
	limit, err := optionalInt(q.Get("limit"), 0)
	if err != nil {
		writeBadRequest(w, "INVALID_LIMIT", "limit must be an integer")
		return
	}
	offset, err := optionalInt(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		writeBadRequest(w, "INVALID_OFFSET", "offset must be a non-negative integer")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	target, err := h.auth.ResolveTarget(identity, ok, requested)
	if err != nil {
		writePolicyError(w, err)
		return
	}

	page, err := h.service.Query(r.Context(), actionssvc.Filter{
		UserID: &target,
		Action: q.Get("action"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		if errors.Is(err, actionssvc.ErrInvalidFilter) {
			writeBadRequest(w, "INVALID_FILTER", "invalid filter")
			return
		}
		h.log.Error("query actions", zap.Int64("user_id", target), zap.Error(err))
		writeInternal(w, "ACTIONS_UNAVAILABLE", "action log is unavailable")
		return
	}

	items := make([]dto.ActionItem, 0, len(page.Items))
	for _, rec := range page.Items {
		items = append(items, dto.ActionItem{
			Time:   rec.Time.Format(actionssvc.TimeLayout),
			UserID: rec.UserID,
			Action: rec.Action,
			Detail: rec.Detail,
			Fields: rec.Fields,
		})
	}

	httperrors.Write(w, http.StatusOK, dto.ActionsResponse{
		OK:     true,
		Items:  items,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}
