package api

import (
	"context"
	"net/http"
	"net/url"

	"sharednotes/pkg/models"
)

type shareListResponse struct {
	SharedWith []models.Collaborator `json:"shared_with"`
}

type publicKeysResponse struct {
	ID   string             `json:"id"`
	Keys []models.PublicKey `json:"keys"`
}

func notePath(id string) string {
	return "/notes/notes/" + url.PathEscape(id) + "/"
}

// ListMyNotes returns every note the current user holds a tier on
func (c *Client) ListMyNotes(ctx context.Context) ([]*models.Note, error) {
	var notes []*models.Note
	if err := c.do(ctx, "notes.me", http.MethodGet, "/notes/notes/me/", nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// CreateNote creates a note owned by the current user.
// The response does not report a tier.
func (c *Client) CreateNote(ctx context.Context, note models.NewNote) (*models.Note, error) {
	var created models.Note
	if err := c.do(ctx, "notes.create", http.MethodPost, "/notes/notes/", note, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateNote saves a note's title and body
func (c *Client) UpdateNote(ctx context.Context, id string, update models.NoteUpdate) error {
	return c.do(ctx, "notes.update", http.MethodPut, notePath(id), update, nil)
}

// DeleteNote deletes a note for everybody
func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.do(ctx, "notes.delete", http.MethodDelete, notePath(id), nil, nil)
}

// ChangeEncryption replaces a note's body and encryption state
func (c *Client) ChangeEncryption(ctx context.Context, id string, change models.EncryptionChange) (*MessageResponse, error) {
	var resp MessageResponse
	if err := c.do(ctx, "notes.change_encryption", http.MethodPut, notePath(id)+"change_encryption/", change, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PublicKeys returns the public key of every user holding a grant on a note
func (c *Client) PublicKeys(ctx context.Context, noteID string) ([]models.PublicKey, error) {
	var resp publicKeysResponse
	if err := c.do(ctx, "notes.public_keys", http.MethodGet, notePath(noteID)+"get_public_keys/", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

// RemoveAccess drops a user's grant on a note
func (c *Client) RemoveAccess(ctx context.Context, noteID, userID string) error {
	body := models.AccessRevocation{Note: noteID, User: userID}
	return c.do(ctx, "notes.remove_access", http.MethodDelete, "/notes/notes/remove_access/", body, nil)
}

// ShareNote grants or changes a user's tier on a note
func (c *Client) ShareNote(ctx context.Context, grant models.ShareGrant) (*MessageResponse, error) {
	var resp MessageResponse
	if err := c.do(ctx, "notes.share", http.MethodPost, notePath(grant.Note)+"share/", grant, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListCollaborators returns the users holding a grant on a note
func (c *Client) ListCollaborators(ctx context.Context, noteID string) ([]models.Collaborator, error) {
	var resp shareListResponse
	if err := c.do(ctx, "notes.share_list", http.MethodGet, notePath(noteID)+"share/", nil, &resp); err != nil {
		return nil, err
	}
	return resp.SharedWith, nil
}
