package models

// Note represents a note visible to the current user
type Note struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Body          string     `json:"body"` // serialized editor document, never parsed here
	Permission    Permission `json:"permission"`
	Owner         string     `json:"owner,omitempty"` // owner's username
	IsEncrypted   bool       `json:"is_encrypted"`
	CreatedAt     string     `json:"created_at,omitempty"`
	EncryptionKey string     `json:"encryption_key,omitempty"`
}

// IsOwned reports whether the current user owns the note
func (n *Note) IsOwned() bool {
	return n.Permission == PermissionOwner
}

// Clone returns a copy of the note that can be handed out without sharing state
func (n *Note) Clone() *Note {
	c := *n
	return &c
}

// NewNote holds the fields sent when creating a note
type NewNote struct {
	Title         string `json:"title"`
	Body          string `json:"body"`
	IsEncrypted   bool   `json:"is_encrypted"`
	EncryptionKey string `json:"encryption_key,omitempty"`
}

// NoteUpdate holds the fields sent when saving a note
type NoteUpdate struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ShareGrant is one issued permission record for a (note, user) pair.
// It is not retained after the call that issues it.
type ShareGrant struct {
	Note          string     `json:"-"`
	User          string     `json:"user"`
	Permission    Permission `json:"permission"`
	EncryptionKey string     `json:"encryption_key,omitempty"`
}

// AccessRevocation identifies the grant dropped by a remove-access call
type AccessRevocation struct {
	Note string `json:"note"`
	User string `json:"user"`
}

// Collaborator is a user holding a grant on a note
type Collaborator struct {
	UserID     string     `json:"user_id"`
	Username   string     `json:"user"`
	Permission Permission `json:"permission"`
}

// NoteKey is a note's symmetric key encrypted for one user
type NoteKey struct {
	UserID string `json:"user_id"`
	Key    string `json:"key"`
}

// EncryptionChange replaces a note's body and encryption state together.
// Enabling encryption needs a key for every user holding a grant.
type EncryptionChange struct {
	NewBody     string    `json:"new_body"`
	IsEncrypted bool      `json:"is_encrypted"`
	Keys        []NoteKey `json:"keys,omitempty"`
}

// PublicKey is the public key of a user holding a grant on a note
type PublicKey struct {
	UserID     string     `json:"user_id"`
	Key        string     `json:"key"`
	Permission Permission `json:"permission"`
}
