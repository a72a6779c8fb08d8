package services

import (
	"context"

	"github.com/rs/zerolog"

	"sharednotes/pkg/api"
	"sharednotes/pkg/errors"
	"sharednotes/pkg/models"
)

// DirectoryBackend is the part of the backend API the sharing service calls
type DirectoryBackend interface {
	ListUsers(ctx context.Context) ([]models.DirectoryUser, error)
	ShareNote(ctx context.Context, grant models.ShareGrant) (*api.MessageResponse, error)
	ListCollaborators(ctx context.Context, noteID string) ([]models.Collaborator, error)
	PublicKeys(ctx context.Context, noteID string) ([]models.PublicKey, error)
}

// SharingService decides who a note can be shared with and how the current
// user leaves a note
type SharingService struct {
	opState

	backend   DirectoryBackend
	notes     *NoteService
	users     UserSource
	logger    zerolog.Logger
	validator *errors.Validator
}

// NewSharingService creates a sharing service over the notes held by notes
func NewSharingService(backend DirectoryBackend, notes *NoteService, users UserSource, logger zerolog.Logger) *SharingService {
	return &SharingService{
		backend:   backend,
		notes:     notes,
		users:     users,
		logger:    logger.With().Str("component", "sharing").Logger(),
		validator: errors.NewValidator(),
	}
}

// ListShareableUsers returns the directory without the current user and the
// note's owner
func (s *SharingService) ListShareableUsers(ctx context.Context, noteID string) (users []models.DirectoryUser, err error) {
	s.begin()
	defer func() { s.end(err) }()

	me := s.users.CurrentUser()
	if me == nil {
		return nil, errors.ErrNotAuthenticated
	}
	note, err := s.notes.requireNote(noteID)
	if err != nil {
		return nil, err
	}

	directory, err := s.backend.ListUsers(ctx)
	if err != nil {
		return nil, fail(s.logger, err, "USERS_FETCH_FAILED", "fetching users failed", "Failed to fetch users",
			backendFields("message", "detail"))
	}

	users = make([]models.DirectoryUser, 0, len(directory))
	for _, u := range directory {
		if u.ID == me.ID || u.Username == note.Owner {
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

// ShareNote grants tier on a note to another user. It is refused without a
// network call unless the current user owns the note or holds share access,
// and tier is never ownership. The local collection is not changed.
func (s *SharingService) ShareNote(ctx context.Context, noteID, userID string, tier models.Permission, encryptionKey string) (message string, err error) {
	s.begin()
	defer func() { s.end(err) }()

	if err := errors.NewErrorHandler(s.logger).Validate(
		func() *errors.ValidationResult { return s.validator.ValidateUserID(userID) },
		func() *errors.ValidationResult { return s.validator.ValidateShareTier(tier) },
	); err != nil {
		return "", fail(s.logger, err, "", "", "")
	}
	note, err := s.notes.requireNote(noteID)
	if err != nil {
		return "", err
	}
	if !note.Permission.CanShare() {
		return "", errors.ErrPermissionDenied
	}

	grant := models.ShareGrant{Note: noteID, User: userID, Permission: tier, EncryptionKey: encryptionKey}
	resp, err := s.backend.ShareNote(ctx, grant)
	if err != nil {
		return "", fail(s.logger, err, "NOTE_SHARE_FAILED", "sharing note failed", "Failed to share note",
			backendFields("message", "detail"), anyField)
	}

	s.logger.Info().Str("note", noteID).Str("user", userID).Str("permission", tier.Code()).Msg("note shared")
	for _, msg := range []string{resp.Message, resp.Detail} {
		if msg != "" {
			return msg, nil
		}
	}
	return "Note shared", nil
}

// RemoveAccess makes the current user leave a note: owners delete it,
// everyone else drops their own grant
func (s *SharingService) RemoveAccess(ctx context.Context, noteID string) error {
	me := s.users.CurrentUser()
	if me == nil {
		return errors.ErrNotAuthenticated
	}
	note, err := s.notes.requireNote(noteID)
	if err != nil {
		return err
	}
	if !note.Permission.Valid() {
		return errors.ErrPermissionDenied
	}

	leave := func() error { return s.notes.RevokeAccess(ctx, noteID, me.ID) }
	return models.MatchPermission(note.Permission,
		func() error { return s.notes.Delete(ctx, noteID) },
		leave,
		leave,
		leave,
	)
}

// ListCollaborators returns the users holding a grant on a note
func (s *SharingService) ListCollaborators(ctx context.Context, noteID string) (collaborators []models.Collaborator, err error) {
	s.begin()
	defer func() { s.end(err) }()

	if err := s.validator.ValidateNoteID(noteID).Err(); err != nil {
		return nil, err
	}
	collaborators, err = s.backend.ListCollaborators(ctx, noteID)
	if err != nil {
		return nil, fail(s.logger, err, "COLLABORATORS_FETCH_FAILED", "fetching collaborators failed", "Failed to fetch collaborators",
			backendFields("message", "detail"))
	}
	return collaborators, nil
}

// PublicKeys returns the public key of every user holding a grant on a
// note, for encrypting its key before sharing or changing encryption. It is
// refused without a network call unless the current tier can share.
func (s *SharingService) PublicKeys(ctx context.Context, noteID string) (keys []models.PublicKey, err error) {
	s.begin()
	defer func() { s.end(err) }()

	note, err := s.notes.requireNote(noteID)
	if err != nil {
		return nil, err
	}
	if !note.Permission.CanShare() {
		return nil, errors.ErrPermissionDenied
	}

	keys, err = s.backend.PublicKeys(ctx, noteID)
	if err != nil {
		return nil, fail(s.logger, err, "PUBLIC_KEYS_FETCH_FAILED", "fetching public keys failed", "Failed to fetch public keys",
			backendFields("message", "detail"))
	}
	return keys, nil
}
