package handlers

import (
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authsvc "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/services/auth"
	midisvc "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/services/midi"
	"github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/transport/http/dto"
	httperrors "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/transport/http/errors"
)

const (
	midiContentType     = "audio/midi"
	multipartMemory     = 1 << 20
	multipartOverhead   = 1 << 20
	notFoundSearchedLen = 3
	uploadsPageSize     = 50
)

type MIDIHandler struct {
	service *midisvc.Service
	auth    *authsvc.Service
	log     *zap.Logger
}

func NewMIDIHandler(service *midisvc.Service, auth *authsvc.Service, log *zap.Logger) *MIDIHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &MIDIHandler{service: service, auth: auth, log: log}
}

// File serves GET /api/midi/{filename}.
func (h *MIDIHandler) File(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.ResolveFilename(r.Context(), chi.URLParam(r, "filename"))
	if err != nil {
		switch {
		case errors.Is(err, midisvc.ErrInvalidFilename):
			writeBadRequest(w, "INVALID_FILENAME", "Invalid filename")
		case errors.Is(err, midisvc.ErrNotFound):
			writeNotFound(w, "MIDI file not found")
		default:
			h.log.Error("resolve midi file", zap.Error(err))
			writeInternal(w, "STORAGE_ERROR", "failed to read MIDI")
		}
		return
	}

	h.serve(w, r, info)
}

// Latest serves GET /api/latest-midi?midi_id= with the file inlined as base64.
func (h *MIDIHandler) Latest(w http.ResponseWriter, r *http.Request) {
	rawID := r.URL.Query().Get("midi_id")
	if rawID == "" {
		httperrors.Write(w, http.StatusBadRequest, dto.OKErrorResponse{OK: false, Error: "midi_id is required"})
		return
	}

	loaded, err := h.service.Load(r.Context(), rawID)
	if err != nil {
		switch {
		case errors.Is(err, midisvc.ErrInvalidID):
			httperrors.Write(w, http.StatusBadRequest, dto.OKErrorResponse{OK: false, Error: "Invalid midi_id"})
		case errors.Is(err, midisvc.ErrNotFound):
			searched := midisvc.Candidates(loaded.MIDIID)[:notFoundSearchedLen]
			httperrors.Write(w, http.StatusNotFound, dto.MIDINotFoundResponse{
				OK:       false,
				Error:    "MIDI file not found",
				Searched: searched,
			})
		default:
			h.log.Error("load midi", zap.String("midi_id", loaded.MIDIID), zap.Error(err))
			httperrors.Write(w, http.StatusInternalServerError, dto.OKErrorResponse{OK: false, Error: "Failed to read MIDI"})
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.LatestMIDIResponse{
		OK:       true,
		Filename: loaded.Object.Name,
		MIDIID:   loaded.MIDIID,
		Size:     int64(len(loaded.Data)),
		Data:     base64.StdEncoding.EncodeToString(loaded.Data),
	})
}

// Download serves GET /api/midi-file/{midi_id} as a binary attachment.
func (h *MIDIHandler) Download(w http.ResponseWriter, r *http.Request) {
	info, _, err := h.service.Resolve(r.Context(), chi.URLParam(r, "midi_id"))
	if err != nil {
		switch {
		case errors.Is(err, midisvc.ErrInvalidID):
			writeBadRequest(w, "INVALID_MIDI_ID", "Invalid midi_id")
		case errors.Is(err, midisvc.ErrNotFound):
			writeNotFound(w, "MIDI file not found")
		default:
			h.log.Error("resolve midi id", zap.Error(err))
			writeInternal(w, "STORAGE_ERROR", "failed to read MIDI")
		}
		return
	}

	h.serve(w, r, info)
}

func (h *MIDIHandler) serve(w http.ResponseWriter, r *http.Request, info midisvc.ObjectInfo) {
	rc, err := h.service.Open(r.Context(), info)
	if err != nil {
		if errors.Is(err, midisvc.ErrNotFound) {
			writeNotFound(w, "MIDI file not found")
			return
		}
		h.log.Error("open midi", zap.String("key", info.Key), zap.Error(err))
		writeInternal(w, "STORAGE_ERROR", "failed to read MIDI")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", midiContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": info.Name}))

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, info.Name, info.ModTime, rs)
		return
	}

	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn("stream midi", zap.String("key", info.Key), zap.Error(err))
	}
}

// Upload serves POST /api/upload-midi (multipart "file", optional "user_id").
func (h *MIDIHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.service.MaxBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httperrors.WriteError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "MIDI file is too large")
			return
		}
		writeBadRequest(w, "INVALID_MULTIPART", "multipart form with a file field is required")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "FILE_REQUIRED", "file is required")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeBadRequest(w, "FILENAME_REQUIRED", "No filename provided")
		return
	}

	userID, err := optionalInt64(r.FormValue("user_id"))
	if err != nil {
		writeBadRequest(w, "INVALID_USER_ID", "user_id must be an integer")
		return
	}

	res, err := h.service.Upload(r.Context(), midisvc.UploadInput{
		Filename: header.Filename,
		Body:     file,
		UserID:   userID,
	})
	if err != nil {
		switch {
		case errors.Is(err, midisvc.ErrNotMIDI):
			writeBadRequest(w, "INVALID_MIDI", "Invalid MIDI file")
		case errors.Is(err, midisvc.ErrTooLarge):
			httperrors.WriteError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "MIDI file is too large")
		case errors.Is(err, midisvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid upload")
		default:
			h.log.Error("upload midi", zap.Error(err))
			writeInternal(w, "UPLOAD_FAILED", "failed to store MIDI")
		}
		return
	}

	h.log.Info("midi uploaded",
		zap.String("midi_id", res.MIDIID),
		zap.Int64("size", res.Size),
		zap.String("storage", h.service.StorageName()),
	)

	httperrors.Write(w, http.StatusOK, dto.UploadMIDIResponse{
		OK:       true,
		MIDIID:   res.MIDIID,
		Filename: res.Filename,
		Size:     res.Size,
		UserID:   res.UserID,
	})
}

// List serves GET /api/list. Admin rights are checked by the router.
func (h *MIDIHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.log.Error("list midi", zap.Error(err))
		writeInternal(w, "STORAGE_ERROR", "failed to list MIDI files")
		return
	}

	files := make([]dto.MIDIFileItem, 0, len(items))
	for _, item := range items {
		files = append(files, dto.MIDIFileItem{Name: item.Name, Path: item.Key, Size: item.Size})
	}

	httperrors.Write(w, http.StatusOK, dto.MIDIListResponse{OK: true, Files: files})
}

// Uploads serves GET /api/uploads?user_id=&limit= from the upload history.
func (h *MIDIHandler) Uploads(w http.ResponseWriter, r *http.Request) {
	requested, err := optionalInt64(r.URL.Query().Get("user_id"))
	if err != nil {
		writeBadRequest(w, "INVALID_USER_ID", "user_id must be an integer")
		return
	}
	limit, err := optionalInt(r.URL.Query().Get("limit"), uploadsPageSize)
	if err != nil || limit < 0 {
		writeBadRequest(w, "INVALID_LIMIT", "limit must be a non-negative integer")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	target, err := h.auth.ResolveTarget(identity, ok, requested)
	if err != nil {
		writePolicyError(w, err)
		return
	}

	records, err := h.service.Uploads(r.Context(), target, limit)
	if err != nil {
		if errors.Is(err, midisvc.ErrUnavailable) {
			httperrors.WriteError(w, http.StatusServiceUnavailable, "UPLOADS_UNAVAILABLE", "upload history is unavailable")
			return
		}
		h.log.Error("list uploads", zap.Int64("user_id", target), zap.Error(err))
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	items := make([]dto.UploadItem, 0, len(records))
	for _, rec := range records {
		items = append(items, dto.UploadItem{
			MIDIID:    rec.MIDIID,
			Filename:  rec.Filename,
			Size:      rec.Size,
			Storage:   rec.Storage,
			CreatedAt: rec.CreatedAt,
		})
	}

	httperrors.Write(w, http.StatusOK, dto.UploadsResponse{OK: true, UserID: target, Items: items})
}
