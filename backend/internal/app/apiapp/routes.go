package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/config"
	actionssvc "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/services/actions"
	authsvc "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/services/auth"
	midisvc "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/services/midi"
	ratesvc "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/services/rate"
	"github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService    *authsvc.Service
	MIDIService    *midisvc.Service
	ActionsService *actionssvc.Service
	Limiter        *ratesvc.Limiter
	Logger         *zap.Logger
	Config         config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.AuthService, deps.Logger)
	healthHandler := handlers.NewHealthHandler(deps.MIDIService.StorageName())
	meHandler := handlers.NewMeHandler(deps.AuthService)
	midiHandler := handlers.NewMIDIHandler(deps.MIDIService, deps.AuthService, deps.Logger)
	actionsHandler := handlers.NewActionsHandler(deps.ActionsService, deps.AuthService, deps.Logger)

	authLimit := RateLimit(deps.Limiter, ratesvc.PerMinute("auth", deps.Config.Rate.AuthPerMinute), deps.Logger)
	uploadLimit := RateLimit(deps.Limiter, ratesvc.PerMinute("upload", deps.Config.Rate.UploadPerMinute), deps.Logger)

	r.Use(IdentityMiddleware(deps.AuthService, deps.Logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Handle)
		r.With(authLimit).Post("/auth", authHandler.Handle)

		r.Get("/midi/{filename}", midiHandler.File)
		r.Get("/latest-midi", midiHandler.Latest)
		r.Get("/midi-file/{midi_id}", midiHandler.Download)
		r.With(uploadLimit, UploadToken(deps.Config.Upload.Token)).Post("/upload-midi", midiHandler.Upload)

		r.With(RequireAdmin(deps.AuthService)).Get("/list", midiHandler.List)

		r.Group(func(r chi.Router) {
			r.Use(RequireIdentity)
			r.Get("/me", meHandler.Handle)
			r.Get("/actions", actionsHandler.Handle)
			r.Get("/uploads", midiHandler.Uploads)
		})
	})
}
