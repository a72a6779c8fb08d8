package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"sharednotes/pkg/api"
	"sharednotes/pkg/errors"
	"sharednotes/pkg/metrics"
	"sharednotes/pkg/models"
	"sharednotes/pkg/storage"
)

// NoteBackend is the part of the backend API the note service calls
type NoteBackend interface {
	ListMyNotes(ctx context.Context) ([]*models.Note, error)
	CreateNote(ctx context.Context, note models.NewNote) (*models.Note, error)
	UpdateNote(ctx context.Context, id string, update models.NoteUpdate) error
	DeleteNote(ctx context.Context, id string) error
	ChangeEncryption(ctx context.Context, id string, change models.EncryptionChange) (*api.MessageResponse, error)
	RemoveAccess(ctx context.Context, noteID, userID string) error
}

// UserSource reports the signed in user, nil when anonymous
type UserSource interface {
	CurrentUser() *models.User
}

// NoteService keeps the local note collection in step with the backend.
// Updates are applied locally first and persisted in the background.
type NoteService struct {
	opState

	backend   NoteBackend
	users     UserSource
	store     *storage.NoteStore
	writes    *storage.WriteQueue
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	validator *errors.Validator
	retries   int
}

// NewNoteService creates a note service with an empty collection.
// retries bounds the attempts FlushFailed makes per write.
func NewNoteService(backend NoteBackend, users UserSource, logger zerolog.Logger, m *metrics.Metrics, retries int) *NoteService {
	s := &NoteService{
		backend:   backend,
		users:     users,
		store:     storage.NewNoteStore(),
		writes:    storage.NewWriteQueue(),
		logger:    logger.With().Str("component", "notes").Logger(),
		metrics:   m,
		validator: errors.NewValidator(),
		retries:   retries,
	}
	s.writes.OnChange = m.SetPendingWrites
	return s
}

func (s *NoteService) requireUser() (*models.User, error) {
	if user := s.users.CurrentUser(); user != nil {
		return user, nil
	}
	return nil, errors.ErrNotAuthenticated
}

// requireNote returns the held note with id
func (s *NoteService) requireNote(id string) (*models.Note, error) {
	if err := s.validator.ValidateNoteID(id).Err(); err != nil {
		return nil, err
	}
	note, ok := s.store.Get(id)
	if !ok {
		return nil, errors.ErrNoteNotFound
	}
	return note, nil
}

// FetchAll replaces the local collection with the backend's
func (s *NoteService) FetchAll(ctx context.Context) (notes []*models.Note, err error) {
	s.begin()
	defer func() { s.end(err) }()

	fetched, err := s.backend.ListMyNotes(ctx)
	if err != nil {
		return nil, fail(s.logger, err, "NOTES_FETCH_FAILED", "fetching notes failed", "Failed to fetch notes",
			backendFields("message", "detail"))
	}
	s.store.Replace(fetched)
	s.logger.Debug().Int("count", len(fetched)).Msg("notes fetched")
	return s.store.GetAllNotes(), nil
}

// Create creates a note owned by the current user and appends it locally
func (s *NoteService) Create(ctx context.Context, note models.NewNote) (created *models.Note, err error) {
	s.begin()
	defer func() { s.end(err) }()

	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	if err := errors.NewErrorHandler(s.logger).Validate(
		func() *errors.ValidationResult { return s.validator.ValidateNoteTitle(note.Title) },
		func() *errors.ValidationResult { return s.validator.ValidateNoteContent(note.Body) },
	); err != nil {
		return nil, fail(s.logger, err, "", "", "")
	}

	created, err = s.backend.CreateNote(ctx, note)
	if err != nil {
		return nil, fail(s.logger, err, "NOTE_CREATE_FAILED", "note creation failed", "Failed to create note",
			backendFields("message"), backendFields("non_field_errors"), rawBody)
	}

	// The create response reports the owner by id and no tier.
	created.Permission = models.PermissionOwner
	created.Owner = user.Username
	s.store.Add(created)
	s.logger.Info().Str("note", created.ID).Msg("note created")
	return created.Clone(), nil
}

// Update applies title and body locally and persists them in the
// background. The returned write settles once the backend answers; local
// changes are never rolled back.
func (s *NoteService) Update(ctx context.Context, id, title, body string) (*storage.PendingWrite, error) {
	if err := errors.NewErrorHandler(s.logger).Validate(
		func() *errors.ValidationResult { return s.validator.ValidateNoteID(id) },
		func() *errors.ValidationResult { return s.validator.ValidateNoteTitle(title) },
		func() *errors.ValidationResult { return s.validator.ValidateNoteContent(body) },
	); err != nil {
		return nil, fail(s.logger, err, "", "", "")
	}

	if !s.store.Apply(id, title, body) {
		s.logger.Debug().Str("note", id).Msg("updating a note that is not held locally")
	}

	w := s.writes.Enqueue(id, title, body)
	go s.persist(context.WithoutCancel(ctx), w)
	return w, nil
}

func (s *NoteService) persist(ctx context.Context, w *storage.PendingWrite) {
	err := s.backend.UpdateNote(ctx, w.NoteID, models.NoteUpdate{Title: w.Title, Body: w.Body})
	s.metrics.ObserveWrite(err == nil)
	if err != nil {
		err = fail(s.logger, err, "NOTE_UPDATE_FAILED", "note update failed", "Failed to update note",
			backendFields("message", "detail"))
	}
	s.writes.Settle(w, err)
}

// RetryWrite starts another attempt of a failed write
func (s *NoteService) RetryWrite(ctx context.Context, id string) (*storage.PendingWrite, error) {
	w, ok := s.writes.Restart(id)
	if !ok {
		return nil, errors.ErrWriteNotFound
	}
	go s.persist(context.WithoutCancel(ctx), w)
	return w, nil
}

// DiscardWrite drops a failed write. The local change stays applied.
func (s *NoteService) DiscardWrite(id string) error {
	if !s.writes.Discard(id) {
		return errors.ErrWriteNotFound
	}
	return nil
}

// FlushFailed retries every failed write in order, each up to the configured
// number of attempts, and waits for the outcome
func (s *NoteService) FlushFailed(ctx context.Context) (err error) {
	s.begin()
	defer func() { s.end(err) }()

	var failed int
	for _, w := range s.writes.Failed() {
		id := w.ID
		retry := errors.NewRetryHandler(s.retries, s.logger)
		if err := retry.Execute(func() error {
			w, ok := s.writes.Restart(id)
			if !ok {
				// settled or discarded meanwhile
				return nil
			}
			s.persist(ctx, w)
			return w.Err()
		}); err != nil {
			failed++
		}
	}

	if failed > 0 {
		return errors.New(errors.ErrTypeNetwork, "WRITES_FAILED", fmt.Sprintf("%d writes still failing", failed)).
			WithUserMessage("Some changes could not be saved").
			WithRetryable(true).
			WithContext("failed", failed)
	}
	return nil
}

// Delete deletes an owned note on the backend and then locally
func (s *NoteService) Delete(ctx context.Context, id string) (err error) {
	s.begin()
	defer func() { s.end(err) }()

	note, err := s.requireNote(id)
	if err != nil {
		return err
	}
	if !note.Permission.CanDelete() {
		return errors.ErrPermissionDenied
	}

	if err := s.backend.DeleteNote(ctx, id); err != nil {
		return fail(s.logger, err, "NOTE_DELETE_FAILED", "note deletion failed", "Failed to delete note",
			backendFields("message", "detail"))
	}
	s.store.Remove(id)
	s.logger.Info().Str("note", id).Msg("note deleted")
	return nil
}

// ChangeEncryption replaces a note's body and turns encryption on or off.
// Turning it on needs a key for every user holding a grant on the note.
// Readers are refused without a network call.
func (s *NoteService) ChangeEncryption(ctx context.Context, id, body string, encrypted bool, keys []models.NoteKey) (message string, err error) {
	s.begin()
	defer func() { s.end(err) }()

	user, err := s.requireUser()
	if err != nil {
		return "", err
	}
	note, err := s.requireNote(id)
	if err != nil {
		return "", err
	}
	if !note.Permission.CanWrite() {
		return "", errors.ErrPermissionDenied
	}
	if err := s.validator.ValidateNoteKeys(encrypted, keys).Err(); err != nil {
		return "", fail(s.logger, err, "", "", "")
	}

	change := models.EncryptionChange{NewBody: body, IsEncrypted: encrypted}
	if encrypted {
		change.Keys = keys
	}
	resp, err := s.backend.ChangeEncryption(ctx, id, change)
	if err != nil {
		return "", fail(s.logger, err, "ENCRYPTION_CHANGE_FAILED", "changing encryption failed", "Failed to change encryption",
			backendFields("detail", "encryption_keys", "new_body", "is_encrypted"), anyField)
	}

	key := ""
	if encrypted {
		for _, k := range keys {
			if k.UserID == user.ID {
				key = k.Key
			}
		}
	}
	s.store.SetEncryption(id, body, encrypted, key)
	s.logger.Info().Str("note", id).Bool("encrypted", encrypted).Msg("note encryption changed")
	if resp.Detail != "" {
		return resp.Detail, nil
	}
	return "Encryption changed", nil
}

// RevokeAccess drops userID's grant on a note. When userID is the current
// user the note leaves the local collection.
func (s *NoteService) RevokeAccess(ctx context.Context, noteID, userID string) (err error) {
	s.begin()
	defer func() { s.end(err) }()

	if err := errors.NewErrorHandler(s.logger).Validate(
		func() *errors.ValidationResult { return s.validator.ValidateNoteID(noteID) },
		func() *errors.ValidationResult { return s.validator.ValidateUserID(userID) },
	); err != nil {
		return fail(s.logger, err, "", "", "")
	}

	if err := s.backend.RemoveAccess(ctx, noteID, userID); err != nil {
		return fail(s.logger, err, "ACCESS_REMOVE_FAILED", "removing access failed", "Failed to remove access",
			backendFields("message", "detail"), anyField)
	}
	if user := s.users.CurrentUser(); user != nil && user.ID == userID {
		s.store.Remove(noteID)
	}
	s.logger.Info().Str("note", noteID).Str("user", userID).Msg("access removed")
	return nil
}

// Clear drops every note and queued write. It runs on logout.
func (s *NoteService) Clear() {
	s.store.ClearAllNotes()
	s.writes.Clear()
}

// Notes returns every visible note
func (s *NoteService) Notes() []*models.Note {
	return s.store.GetAllNotes()
}

// MyNotes returns the notes the current user owns
func (s *NoteService) MyNotes() []*models.Note {
	return s.store.MyNotes()
}

// SharedNotes returns the notes shared with the current user
func (s *NoteService) SharedNotes() []*models.Note {
	return s.store.SharedNotes()
}

// Search returns the notes whose title or body contains query
func (s *NoteService) Search(query string) []*models.Note {
	return s.store.SearchNotes(query)
}

// Note returns a held note
func (s *NoteService) Note(id string) (*models.Note, bool) {
	return s.store.Get(id)
}

// Writes returns the queued writes, oldest first
func (s *NoteService) Writes() []storage.WriteSnapshot {
	writes := s.writes.List()
	out := make([]storage.WriteSnapshot, 0, len(writes))
	for _, w := range writes {
		out = append(out, w.Snapshot())
	}
	return out
}

// Write returns a queued write
func (s *NoteService) Write(id string) (*storage.PendingWrite, bool) {
	return s.writes.Get(id)
}
