package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"sharednotes/pkg/models"
	"sharednotes/pkg/services"
)

// SessionHandlers serves the account lifecycle
type SessionHandlers struct {
	session *services.SessionService
	notes   *services.NoteService
	logger  zerolog.Logger
}

// NewSessionHandlers creates the session handlers
func NewSessionHandlers(session *services.SessionService, notes *services.NoteService, logger zerolog.Logger) *SessionHandlers {
	return &SessionHandlers{
		session: session,
		notes:   notes,
		logger:  logger,
	}
}

// loadNotes fetches the collection after the user signed in. A failure
// leaves the session in place.
func (h *SessionHandlers) loadNotes(r *http.Request) {
	if _, err := h.notes.FetchAll(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("signed in but notes could not be fetched")
	}
}

// GetSessionHandler returns the session state
func (h *SessionHandlers) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, "", h.session.Snapshot(), h.session.Busy())
}

// RegisterHandler creates an account awaiting email verification
func (h *SessionHandlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req models.Profile
	if !decode(w, r, &req) {
		return
	}

	if err := h.session.Register(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusCreated, "Registration successful. Check your email for the verification code.",
		h.session.Snapshot(), false)
}

// VerifyHandler confirms the email with the code and signs in
func (h *SessionHandlers) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
		Code     string `json:"code"`
	}
	if !decode(w, r, &req) {
		return
	}

	if _, err := h.session.VerifyEmail(r.Context(), req.Email, req.Username, req.Password, req.Code); err != nil {
		writeError(w, err)
		return
	}
	h.loadNotes(r)
	respond(w, http.StatusOK, "Email verified", h.session.Snapshot(), false)
}

// LoginHandler signs in with username and password
func (h *SessionHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}

	if _, err := h.session.Login(r.Context(), req.Username, req.Password); err != nil {
		writeError(w, err)
		return
	}
	h.loadNotes(r)
	respond(w, http.StatusOK, "Logged in", h.session.Snapshot(), false)
}

// ResumeHandler restores the session from the refresh cookie
func (h *SessionHandlers) ResumeHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := h.session.ResumeSession(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.loadNotes(r)
	respond(w, http.StatusOK, "Session resumed", h.session.Snapshot(), false)
}

// ResendHandler sends the verification email again
func (h *SessionHandlers) ResendHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
	}
	if !decode(w, r, &req) {
		return
	}

	msg, err := h.session.ResendVerificationEmail(r.Context(), req.Email, req.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, msg, nil, false)
}

// LogoutHandler ends the session
func (h *SessionHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	h.session.Logout(r.Context())
	respond(w, http.StatusOK, "Logged out", h.session.Snapshot(), false)
}

// UpdateProfileHandler changes username and email
func (h *SessionHandlers) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ProfileUpdate
	if !decode(w, r, &req) {
		return
	}

	result, err := h.session.UpdateProfile(r.Context(), req.Username, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, result.Message, result, false)
}

// ChangePasswordHandler replaces the password
func (h *SessionHandlers) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordChange
	if !decode(w, r, &req) {
		return
	}

	if err := h.session.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, "Password updated successfully.", nil, false)
}

// UploadKeyHandler stores the user's public key
func (h *SessionHandlers) UploadKeyHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PublicKey string `json:"public_key"`
	}
	if !decode(w, r, &req) {
		return
	}

	if err := h.session.UploadPublicKey(r.Context(), req.PublicKey); err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusCreated, "Public key saved", nil, false)
}

// DeleteAccountHandler deletes the account and ends the session
func (h *SessionHandlers) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.session.DeleteAccount(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, "Account deleted", h.session.Snapshot(), false)
}
