package fakebackend

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"sharednotes/pkg/models"
	"sharednotes/pkg/utils"
)

type noteResponse struct {
	ID            string             `json:"id"`
	Title         string             `json:"title"`
	Body          string             `json:"body"`
	Owner         string             `json:"owner"`
	IsEncrypted   bool               `json:"is_encrypted"`
	CreatedAt     string             `json:"created_at"`
	EncryptionKey *string            `json:"encryption_key"`
	Permission    *models.Permission `json:"permission,omitempty"`
}

var errForbidden = detail("You do not have permission to perform this action.")

func (s *Server) tier(noteID, userID string) (models.Permission, bool) {
	g, ok := s.grants[noteID][userID]
	if !ok {
		return 0, false
	}
	return g.Permission, true
}

// noteFor loads the note in the URL and checks the caller's tier with allowed
func (s *Server) noteFor(w http.ResponseWriter, r *http.Request, me *User, allowed func(models.Permission) bool) (*note, bool) {
	n, ok := s.notes[chi.URLParam(r, "id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, detail("No Note matches the given query."))
		return nil, false
	}
	p, ok := s.tier(n.ID, me.ID)
	if !ok || !allowed(p) {
		writeJSON(w, http.StatusForbidden, errForbidden)
		return nil, false
	}
	return n, true
}

func (s *Server) listMyNotes(w http.ResponseWriter, r *http.Request, me *User) {
	out := []noteResponse{}
	for _, n := range s.sortedNotes() {
		g, ok := s.grants[n.ID][me.ID]
		if !ok {
			continue
		}
		owner := ""
		if u, ok := s.users[n.OwnerID]; ok {
			owner = u.Username
		}
		perm := g.Permission
		var key *string
		if g.EncryptionKey != "" {
			k := g.EncryptionKey
			key = &k
		}
		out = append(out, noteResponse{
			ID:            n.ID,
			Title:         n.Title,
			Body:          n.Body,
			Owner:         owner,
			IsEncrypted:   n.IsEncrypted,
			CreatedAt:     n.CreatedAt,
			EncryptionKey: key,
			Permission:    &perm,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createNote(w http.ResponseWriter, r *http.Request, me *User) {
	var req struct {
		Title         string  `json:"title"`
		Body          *string `json:"body"`
		IsEncrypted   bool    `json:"is_encrypted"`
		EncryptionKey string  `json:"encryption_key"`
	}
	if !decode(w, r, &req) {
		return
	}

	switch {
	case req.Body == nil:
		writeJSON(w, http.StatusBadRequest, fieldError("body", "This field is required."))
		return
	case len(req.Title) > 255:
		writeJSON(w, http.StatusBadRequest, fieldError("title", "Ensure this field has no more than 255 characters."))
		return
	case req.IsEncrypted && me.PublicKey == "":
		writeJSON(w, http.StatusBadRequest, fieldError("non_field_errors", "Public key is required for encrypted notes."))
		return
	case req.IsEncrypted && req.EncryptionKey == "":
		writeJSON(w, http.StatusBadRequest, fieldError("detail", "'encryption_key' field is required for encrypted notes"))
		return
	}

	n := &note{
		ID:          utils.NewID(),
		Title:       req.Title,
		Body:        *req.Body,
		OwnerID:     me.ID,
		IsEncrypted: req.IsEncrypted,
		CreatedAt:   time.Now().UTC().Format(time.DateOnly),
	}
	s.notes[n.ID] = n
	s.grants[n.ID] = map[string]*grant{
		me.ID: {Permission: models.PermissionOwner, EncryptionKey: req.EncryptionKey},
	}

	// The create response reports the owner's id and no tier.
	writeJSON(w, http.StatusCreated, noteResponse{
		ID:          n.ID,
		Title:       n.Title,
		Body:        n.Body,
		Owner:       n.OwnerID,
		IsEncrypted: n.IsEncrypted,
		CreatedAt:   n.CreatedAt,
	})
}

func (s *Server) updateNote(w http.ResponseWriter, r *http.Request, me *User) {
	n, ok := s.noteFor(w, r, me, models.Permission.CanWrite)
	if !ok {
		return
	}

	var req struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if !decode(w, r, &req) {
		return
	}
	if len(req.Title) > 255 {
		writeJSON(w, http.StatusBadRequest, fieldError("title", "Ensure this field has no more than 255 characters."))
		return
	}

	n.Title = req.Title
	n.Body = req.Body
	writeJSON(w, http.StatusOK, noteResponse{ID: n.ID, Title: n.Title, Body: n.Body, Owner: n.OwnerID, IsEncrypted: n.IsEncrypted, CreatedAt: n.CreatedAt})
}

func (s *Server) deleteNote(w http.ResponseWriter, r *http.Request, me *User) {
	n, ok := s.noteFor(w, r, me, models.Permission.CanDelete)
	if !ok {
		return
	}
	delete(s.notes, n.ID)
	delete(s.grants, n.ID)
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) removeAccess(w http.ResponseWriter, r *http.Request, _ *User) {
	var req struct {
		Note string `json:"note"`
		User string `json:"user"`
	}
	if !decode(w, r, &req) {
		return
	}
	if !utils.IsValidID(req.Note) {
		writeJSON(w, http.StatusBadRequest, fieldError("note", "Must be a valid UUID."))
		return
	}
	if !utils.IsValidID(req.User) {
		writeJSON(w, http.StatusBadRequest, fieldError("user", "Must be a valid UUID."))
		return
	}

	if _, ok := s.grants[req.Note][req.User]; !ok {
		writeJSON(w, http.StatusNotFound, detail("User doesn't have access to the note"))
		return
	}
	delete(s.grants[req.Note], req.User)
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) listShares(w http.ResponseWriter, r *http.Request, me *User) {
	n, ok := s.noteFor(w, r, me, models.Permission.CanShare)
	if !ok {
		return
	}

	out := []models.Collaborator{}
	for userID, g := range s.grants[n.ID] {
		username := ""
		if u, ok := s.users[userID]; ok {
			username = u.Username
		}
		out = append(out, models.Collaborator{UserID: userID, Username: username, Permission: g.Permission})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	writeJSON(w, http.StatusOK, map[string]interface{}{"shared_with": out})
}

func (s *Server) shareNote(w http.ResponseWriter, r *http.Request, me *User) {
	n, ok := s.noteFor(w, r, me, models.Permission.CanShare)
	if !ok {
		return
	}

	var req struct {
		User          string            `json:"user"`
		Permission    models.Permission `json:"permission"`
		EncryptionKey string            `json:"encryption_key"`
	}
	if !decode(w, r, &req) {
		return
	}
	if !req.Permission.Valid() {
		writeJSON(w, http.StatusBadRequest, fieldError("permission", "This field is required."))
		return
	}
	target, ok := s.users[req.User]
	if !ok {
		writeJSON(w, http.StatusBadRequest, fieldError("user", "Invalid user."))
		return
	}

	if existing, ok := s.grants[n.ID][target.ID]; ok {
		if existing.Permission != models.PermissionOwner {
			existing.Permission = req.Permission
		}
		writeJSON(w, http.StatusOK, detail("Updated "+target.ID+" permissions to the note"))
		return
	}

	if n.IsEncrypted {
		if target.PublicKey == "" {
			writeJSON(w, http.StatusBadRequest, fieldError("non_field_errors",
				"Public key required for encrypted notes. User "+target.ID+" has to create UserKey at /users/users/keys/"))
			return
		}
		if req.EncryptionKey == "" {
			writeJSON(w, http.StatusBadRequest, fieldError("encryption_key", "This field is required."))
			return
		}
	}

	itemID := utils.NewID()
	s.grants[n.ID][target.ID] = &grant{Permission: req.Permission, EncryptionKey: req.EncryptionKey}
	writeJSON(w, http.StatusCreated, detail("Note shared: "+itemID))
}

// changeEncryption replaces the body and encryption flag of a note. Turning
// encryption on needs a key for every user holding a grant; turning it off
// drops every stored key.
func (s *Server) changeEncryption(w http.ResponseWriter, r *http.Request, me *User) {
	n, ok := s.noteFor(w, r, me, models.Permission.CanWrite)
	if !ok {
		return
	}

	var req struct {
		NewBody     *string          `json:"new_body"`
		IsEncrypted *bool            `json:"is_encrypted"`
		Keys        []models.NoteKey `json:"keys"`
	}
	if !decode(w, r, &req) {
		return
	}
	switch {
	case req.NewBody == nil:
		writeJSON(w, http.StatusBadRequest, fieldError("new_body", "This field is required."))
		return
	case req.IsEncrypted == nil:
		writeJSON(w, http.StatusBadRequest, fieldError("is_encrypted", "This field is required."))
		return
	case *req.IsEncrypted && len(req.Keys) == 0:
		writeJSON(w, http.StatusBadRequest, fieldError("encryption_keys", "This field is required if is_encrypted is true"))
		return
	}

	grants := s.grants[n.ID]
	if !*req.IsEncrypted {
		n.Body = *req.NewBody
		n.IsEncrypted = false
		for _, g := range grants {
			g.EncryptionKey = ""
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"detail":         "Encryption disabled successfully",
			"note_id":        n.ID,
			"is_encrypted":   false,
			"users_affected": len(grants),
		})
		return
	}

	provided := make(map[string]string, len(req.Keys))
	for _, k := range req.Keys {
		provided[k.UserID] = k.Key
	}
	var required, missing []string
	for userID := range grants {
		required = append(required, userID)
		if provided[userID] == "" {
			missing = append(missing, userID)
		}
	}
	sort.Strings(required)
	sort.Strings(missing)
	if len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":          "Missing encryption keys",
			"detail":         "Encryption keys required for all users with access to this note",
			"required_users": required,
			"missing_users":  missing,
		})
		return
	}

	n.Body = *req.NewBody
	n.IsEncrypted = true
	for userID, g := range grants {
		g.EncryptionKey = provided[userID]
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"detail":       "Encryption updated successfully",
		"note_id":      n.ID,
		"is_encrypted": true,
		"users":        required,
	})
}

// publicKeys lists the public key of every user holding a grant on a note
func (s *Server) publicKeys(w http.ResponseWriter, r *http.Request, me *User) {
	n, ok := s.noteFor(w, r, me, models.Permission.CanShare)
	if !ok {
		return
	}

	keys := []models.PublicKey{}
	for userID, g := range s.grants[n.ID] {
		key := ""
		if u, ok := s.users[userID]; ok {
			key = u.PublicKey
		}
		keys = append(keys, models.PublicKey{UserID: userID, Key: key, Permission: g.Permission})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].UserID < keys[j].UserID })
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": n.ID, "keys": keys})
}
