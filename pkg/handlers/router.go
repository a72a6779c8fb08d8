package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"sharednotes/pkg/metrics"
	"sharednotes/pkg/middleware"
	"sharednotes/pkg/services"
)

// Services are the operations the facade exposes
type Services struct {
	Session *services.SessionService
	Notes   *services.NoteService
	Sharing *services.SharingService
	Metrics *metrics.Metrics
}

// NewRouter builds the local HTTP facade
func NewRouter(svc Services, logger zerolog.Logger) http.Handler {
	logger = logger.With().Str("component", "http").Logger()
	sessionHandlers := NewSessionHandlers(svc.Session, svc.Notes, logger)
	noteHandlers := NewNoteHandlers(svc.Notes, svc.Sharing, logger)
	requireSession := middleware.RequireSession(svc.Session)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)

	r.Handle("/metrics", svc.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", sessionHandlers.GetSessionHandler)
		r.Delete("/session", sessionHandlers.LogoutHandler)
		r.Post("/session/register", sessionHandlers.RegisterHandler)
		r.Post("/session/verify", sessionHandlers.VerifyHandler)
		r.Post("/session/login", sessionHandlers.LoginHandler)
		r.Post("/session/resume", sessionHandlers.ResumeHandler)
		r.Post("/session/resend", sessionHandlers.ResendHandler)

		r.Group(func(r chi.Router) {
			r.Use(requireSession)

			r.Put("/profile", sessionHandlers.UpdateProfileHandler)
			r.Delete("/profile", sessionHandlers.DeleteAccountHandler)
			r.Post("/profile/password", sessionHandlers.ChangePasswordHandler)
			r.Post("/profile/key", sessionHandlers.UploadKeyHandler)

			r.Get("/notes", noteHandlers.GetNotesHandler)
			r.Post("/notes", noteHandlers.CreateNoteHandler)
			r.Post("/notes/refresh", noteHandlers.RefreshNotesHandler)
			r.Get("/notes/{id}", noteHandlers.GetNoteHandler)
			r.Put("/notes/{id}", noteHandlers.UpdateNoteHandler)
			r.Delete("/notes/{id}", noteHandlers.DeleteNoteHandler)
			r.Get("/notes/{id}/shareable-users", noteHandlers.ShareableUsersHandler)
			r.Get("/notes/{id}/share", noteHandlers.CollaboratorsHandler)
			r.Post("/notes/{id}/share", noteHandlers.ShareNoteHandler)
			r.Put("/notes/{id}/encryption", noteHandlers.ChangeEncryptionHandler)
			r.Get("/notes/{id}/keys", noteHandlers.PublicKeysHandler)

			r.Get("/writes", noteHandlers.GetWritesHandler)
			r.Post("/writes/flush", noteHandlers.FlushWritesHandler)
			r.Post("/writes/{id}/retry", noteHandlers.RetryWriteHandler)
			r.Delete("/writes/{id}", noteHandlers.DiscardWriteHandler)
		})
	})

	return r
}
