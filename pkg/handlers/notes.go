package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"sharednotes/pkg/errors"
	"sharednotes/pkg/models"
	"sharednotes/pkg/services"
	"sharednotes/pkg/storage"
)

// NoteHandlers serves the note collection, sharing and pending writes
type NoteHandlers struct {
	notes   *services.NoteService
	sharing *services.SharingService
	logger  zerolog.Logger
}

// NewNoteHandlers creates the note handlers
func NewNoteHandlers(notes *services.NoteService, sharing *services.SharingService, logger zerolog.Logger) *NoteHandlers {
	return &NoteHandlers{
		notes:   notes,
		sharing: sharing,
		logger:  logger,
	}
}

// GetNotesHandler lists notes. scope=mine or scope=shared narrows the
// list, q filters by title and body.
func (h *NoteHandlers) GetNotesHandler(w http.ResponseWriter, r *http.Request) {
	var notes []*models.Note
	switch r.URL.Query().Get("scope") {
	case "mine":
		notes = h.notes.MyNotes()
	case "shared":
		notes = h.notes.SharedNotes()
	case "":
		notes = h.notes.Notes()
	default:
		writeError(w, errors.New(errors.ErrTypeValidation, "INVALID_SCOPE", "unknown note scope").
			WithUserMessage("scope must be mine or shared"))
		return
	}

	if q := r.URL.Query().Get("q"); q != "" {
		matches := make(map[string]bool)
		for _, n := range h.notes.Search(q) {
			matches[n.ID] = true
		}
		filtered := notes[:0]
		for _, n := range notes {
			if matches[n.ID] {
				filtered = append(filtered, n)
			}
		}
		notes = filtered
	}
	respond(w, http.StatusOK, "", notes, h.notes.Busy())
}

// GetNoteHandler returns one note
func (h *NoteHandlers) GetNoteHandler(w http.ResponseWriter, r *http.Request) {
	note, ok := h.notes.Note(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, errors.ErrNoteNotFound)
		return
	}
	respond(w, http.StatusOK, "", note, false)
}

// CreateNoteHandler creates a note
func (h *NoteHandlers) CreateNoteHandler(w http.ResponseWriter, r *http.Request) {
	var req models.NewNote
	if !decode(w, r, &req) {
		return
	}

	note, err := h.notes.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusCreated, "Note created", note, false)
}

// RefreshNotesHandler reloads the collection from the backend
func (h *NoteHandlers) RefreshNotesHandler(w http.ResponseWriter, r *http.Request) {
	notes, err := h.notes.FetchAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, "", notes, false)
}

// UpdateNoteHandler applies an update locally and answers before the
// backend has stored it
func (h *NoteHandlers) UpdateNoteHandler(w http.ResponseWriter, r *http.Request) {
	var req models.NoteUpdate
	if !decode(w, r, &req) {
		return
	}

	write, err := h.notes.Update(r.Context(), chi.URLParam(r, "id"), req.Title, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	snap := write.Snapshot()
	respond(w, http.StatusAccepted, "Saving", snap, snap.State == storage.WritePending)
}

// DeleteNoteHandler removes the note for the current user: owners delete
// it, collaborators leave it
func (h *NoteHandlers) DeleteNoteHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.sharing.RemoveAccess(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, "Note removed", nil, false)
}

// ShareableUsersHandler lists the users a note can be shared with
func (h *NoteHandlers) ShareableUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.sharing.ListShareableUsers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, "", users, false)
}

// CollaboratorsHandler lists the users holding a grant on a note
func (h *NoteHandlers) CollaboratorsHandler(w http.ResponseWriter, r *http.Request) {
	collaborators, err := h.sharing.ListCollaborators(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, "", collaborators, false)
}

// ShareNoteHandler grants a tier on a note to another user
func (h *NoteHandlers) ShareNoteHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ShareGrant
	if !decode(w, r, &req) {
		return
	}

	msg, err := h.sharing.ShareNote(r.Context(), chi.URLParam(r, "id"), req.User, req.Permission, req.EncryptionKey)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, msg, nil, false)
}

// ChangeEncryptionHandler replaces a note's body and encryption state
func (h *NoteHandlers) ChangeEncryptionHandler(w http.ResponseWriter, r *http.Request) {
	var req models.EncryptionChange
	if !decode(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	msg, err := h.notes.ChangeEncryption(r.Context(), id, req.NewBody, req.IsEncrypted, req.Keys)
	if err != nil {
		writeError(w, err)
		return
	}
	note, _ := h.notes.Note(id)
	respond(w, http.StatusOK, msg, note, false)
}

// PublicKeysHandler lists the public keys of the users holding a grant on a
// note
func (h *NoteHandlers) PublicKeysHandler(w http.ResponseWriter, r *http.Request) {
	keys, err := h.sharing.PublicKeys(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, "", keys, false)
}

// GetWritesHandler lists queued writes
func (h *NoteHandlers) GetWritesHandler(w http.ResponseWriter, r *http.Request) {
	writes := h.notes.Writes()
	pending := false
	for _, wr := range writes {
		if wr.State == storage.WritePending {
			pending = true
			break
		}
	}
	respond(w, http.StatusOK, "", writes, pending)
}

// RetryWriteHandler starts another attempt of a failed write
func (h *NoteHandlers) RetryWriteHandler(w http.ResponseWriter, r *http.Request) {
	write, err := h.notes.RetryWrite(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusAccepted, "Saving", write.Snapshot(), true)
}

// FlushWritesHandler retries every failed write and waits for the outcome
func (h *NoteHandlers) FlushWritesHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.FlushFailed(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, "All changes saved", h.notes.Writes(), false)
}

// DiscardWriteHandler drops a failed write
func (h *NoteHandlers) DiscardWriteHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.DiscardWrite(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, "Change discarded", nil, false)
}
