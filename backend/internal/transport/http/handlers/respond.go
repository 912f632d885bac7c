package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	authsvc "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/services/auth"
	httperrors "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/transport/http/errors"
)

const maxJSONBodyBytes = 64 << 10

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	return json.NewDecoder(r.Body).Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.WriteError(w, http.StatusBadRequest, code, message)
}

func writeUnauthorized(w http.ResponseWriter) {
	httperrors.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
}

func writeForbidden(w http.ResponseWriter) {
	httperrors.WriteError(w, http.StatusForbidden, "FORBIDDEN", "access to another user's data requires admin rights")
}

func writeNotFound(w http.ResponseWriter, message string) {
	httperrors.WriteError(w, http.StatusNotFound, "NOT_FOUND", message)
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.WriteError(w, http.StatusInternalServerError, code, message)
}

// writePolicyError maps ResolveTarget failures to 401/403.
func writePolicyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authsvc.ErrForbidden):
		writeForbidden(w)
	default:
		writeUnauthorized(w)
	}
}

func optionalInt64(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optionalInt(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
