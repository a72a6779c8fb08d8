package fakebackend

import (
	"net/http"
	"sort"
	"time"

	"sharednotes/pkg/models"
	"sharednotes/pkg/utils"
)

// SeedUser adds a verified account with a public key so it shows up in the
// user directory
func (s *Server) SeedUser(username, email, password string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &User{
		ID:        utils.NewID(),
		Username:  username,
		Email:     email,
		Password:  password,
		PublicKey: "pk-" + username,
		Verified:  true,
	}
	s.users[u.ID] = u
	return u
}

// SeedNote adds a note owned by ownerID and returns its id
func (s *Server) SeedNote(ownerID, title, body string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := &note{
		ID:        utils.NewID(),
		Title:     title,
		Body:      body,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC().Format(time.DateOnly),
	}
	s.notes[n.ID] = n
	s.grants[n.ID] = map[string]*grant{ownerID: {Permission: models.PermissionOwner}}
	return n.ID
}

// Grant gives userID the tier p on a note
func (s *Server) Grant(noteID, userID string, p models.Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grants[noteID] == nil {
		s.grants[noteID] = make(map[string]*grant)
	}
	s.grants[noteID][userID] = &grant{Permission: p}
}

// Tier returns the tier userID holds on a note
func (s *Server) Tier(noteID, userID string) (models.Permission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tier(noteID, userID)
}

// NoteContent returns the stored title and body of a note
func (s *Server) NoteContent(noteID string) (title, body string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notes[noteID]
	if !ok {
		return "", "", false
	}
	return n.Title, n.Body, true
}

// Encryption reports whether a note is encrypted and the key stored for
// userID on it
func (s *Server) Encryption(noteID, userID string) (encrypted bool, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notes[noteID]
	if !ok {
		return false, ""
	}
	if g, ok := s.grants[noteID][userID]; ok {
		key = g.EncryptionKey
	}
	return n.IsEncrypted, key
}

// LookupUser returns the account with username
func (s *Server) LookupUser(username string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.userByName(username)
	if u == nil {
		return User{}, false
	}
	return *u, true
}

// EmailsSent returns how many verification emails went to address
func (s *Server) EmailsSent(address string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emails[address]
}

// FailNext queues a canned response for the next call to route
func (s *Server) FailNext(route string, status int, body interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], Failure{Status: status, Body: body})
}

// Calls returns how many requests reached route
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// ResetCalls clears the call counters
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
}

// ExpireAccessTokens invalidates every access token issued so far.
// Refresh cookies stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

// RevokeRefreshTokens invalidates every refresh cookie issued so far
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = make(map[string]string)
}

// IssueAccess returns a valid access token for userID without a login
func (s *Server) IssueAccess(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueAccess(userID)
}

func (s *Server) sortedUsers() []*User {
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func (s *Server) sortedNotes() []*note {
	out := make([]*note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

// Route keys accepted by FailNext and Calls
const (
	RouteCreateUser       = http.MethodPost + " /users/users/"
	RouteListUsers        = http.MethodGet + " /users/users/"
	RouteGetMe            = http.MethodGet + " /users/users/me/"
	RouteUpdateMe         = http.MethodPut + " /users/users/me/"
	RouteDeleteMe         = http.MethodDelete + " /users/users/me/"
	RouteChangePassword   = http.MethodPost + " /users/users/change_password/"
	RouteUploadKey        = http.MethodPost + " /users/keys/"
	RouteActivate         = http.MethodPost + " /users/activate/"
	RouteResendEmail      = http.MethodPost + " /users/resend-email/"
	RouteCreateToken      = http.MethodPost + " /users/jwt/create/"
	RouteRefreshToken     = http.MethodPost + " /users/jwt/refresh/"
	RouteExpireToken      = http.MethodPost + " /users/jwt/expire/"
	RouteListMyNotes      = http.MethodGet + " /notes/notes/me/"
	RouteCreateNote       = http.MethodPost + " /notes/notes/"
	RouteRemoveAccess     = http.MethodDelete + " /notes/notes/remove_access/"
	RouteUpdateNote       = http.MethodPut + " /notes/notes/{id}/"
	RouteDeleteNote       = http.MethodDelete + " /notes/notes/{id}/"
	RouteChangeEncryption = http.MethodPut + " /notes/notes/{id}/change_encryption/"
	RoutePublicKeys       = http.MethodGet + " /notes/notes/{id}/get_public_keys/"
	RouteListShares       = http.MethodGet + " /notes/notes/{id}/share/"
	RouteShareNote        = http.MethodPost + " /notes/notes/{id}/share/"
)
