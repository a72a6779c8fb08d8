// Package fakebackend provides an in-memory fake of the notes backend for
// tests and local development. It serves the same REST surface over
// net/http, issues real HS256 access tokens and an HTTP-only refresh
// cookie, and can inject failures per route.
//
// Routes are identified by "METHOD pattern", for example
// "PUT /notes/notes/{id}/". The same keys are used by FailNext and Calls.
package fakebackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"sharednotes/pkg/models"
)

const refreshCookie = "refresh_token"

// User is an account held by the fake
type User struct {
	ID        string
	Username  string
	Email     string
	Password  string
	PublicKey string
	Verified  bool
}

type note struct {
	ID          string
	Title       string
	Body        string
	OwnerID     string
	IsEncrypted bool
	CreatedAt   string
}

type grant struct {
	Permission    models.Permission
	EncryptionKey string
}

// Failure is a canned error response served instead of the real handler
type Failure struct {
	Status int
	Body   interface{}
}

// Server is the fake backend. It implements http.Handler.
type Server struct {
	mu     sync.Mutex
	router chi.Router

	secret     []byte
	generation int
	// AccessTTL is the lifetime of issued access tokens
	AccessTTL time.Duration

	users    map[string]*User
	notes    map[string]*note
	grants   map[string]map[string]*grant // note id -> user id
	refresh  map[string]string            // refresh token -> user id
	calls    map[string]int
	failures map[string][]Failure
	emails   map[string]int // verification emails sent per address
}

// New creates an empty fake backend
func New() *Server {
	s := &Server{
		secret:    []byte(uuid.NewString()),
		AccessTTL: 5 * time.Minute,
		users:     make(map[string]*User),
		notes:     make(map[string]*note),
		grants:    make(map[string]map[string]*grant),
		refresh:   make(map[string]string),
		calls:     make(map[string]int),
		failures:  make(map[string][]Failure),
		emails:    make(map[string]int),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/users/users/", s.handle(RouteCreateUser, s.createUser))
	r.Get("/users/users/", s.handle(RouteListUsers, s.authed(s.listUsers)))
	r.Get("/users/users/me/", s.handle(RouteGetMe, s.authed(s.getMe)))
	r.Put("/users/users/me/", s.handle(RouteUpdateMe, s.authed(s.updateMe)))
	r.Delete("/users/users/me/", s.handle(RouteDeleteMe, s.authed(s.deleteMe)))
	r.Post("/users/users/change_password/", s.handle(RouteChangePassword, s.authed(s.changePassword)))
	r.Post("/users/keys/", s.handle(RouteUploadKey, s.authed(s.uploadKey)))
	r.Post("/users/activate/", s.handle(RouteActivate, s.activate))
	r.Post("/users/resend-email/", s.handle(RouteResendEmail, s.resendEmail))
	r.Post("/users/jwt/create/", s.handle(RouteCreateToken, s.createToken))
	r.Post("/users/jwt/refresh/", s.handle(RouteRefreshToken, s.refreshToken))
	r.Post("/users/jwt/expire/", s.handle(RouteExpireToken, s.expireToken))

	r.Get("/notes/notes/me/", s.handle(RouteListMyNotes, s.authed(s.listMyNotes)))
	r.Post("/notes/notes/", s.handle(RouteCreateNote, s.authed(s.createNote)))
	r.Delete("/notes/notes/remove_access/", s.handle(RouteRemoveAccess, s.authed(s.removeAccess)))
	r.Put("/notes/notes/{id}/", s.handle(RouteUpdateNote, s.authed(s.updateNote)))
	r.Delete("/notes/notes/{id}/", s.handle(RouteDeleteNote, s.authed(s.deleteNote)))
	r.Put("/notes/notes/{id}/change_encryption/", s.handle(RouteChangeEncryption, s.authed(s.changeEncryption)))
	r.Get("/notes/notes/{id}/get_public_keys/", s.handle(RoutePublicKeys, s.authed(s.publicKeys)))
	r.Get("/notes/notes/{id}/share/", s.handle(RouteListShares, s.authed(s.listShares)))
	r.Post("/notes/notes/{id}/share/", s.handle(RouteShareNote, s.authed(s.shareNote)))

	return r
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handle counts the call under key and serves a queued failure when there
// is one. The handler runs with the server lock held.
func (s *Server) handle(key string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.calls[key]++
		if queued := s.failures[key]; len(queued) > 0 {
			f := queued[0]
			s.failures[key] = queued[1:]
			writeJSON(w, f.Status, f.Body)
			return
		}
		fn(w, r)
	}
}

type claims struct {
	jwt.RegisteredClaims
	Generation int `json:"gen"`
}

// authed resolves the bearer token to a user or answers 401
func (s *Server) authed(fn func(http.ResponseWriter, *http.Request, *User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, detail("Authentication credentials were not provided."))
			return
		}

		var c claims
		_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), &c, func(*jwt.Token) (interface{}, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || c.Generation != s.generation {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}

		user, ok := s.users[c.Subject]
		if !ok {
			writeJSON(w, http.StatusUnauthorized, detail("User not found"))
			return
		}
		fn(w, r, user)
	}
}

func (s *Server) issueAccess(userID string) string {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.AccessTTL)),
			ID:        uuid.NewString(),
		},
		Generation: s.generation,
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		panic(fmt.Sprintf("fakebackend: sign token: %v", err))
	}
	return signed
}

func (s *Server) issueRefresh(w http.ResponseWriter, userID string) {
	token := uuid.NewString()
	s.refresh[token] = userID
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int((24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func detail(msg string) map[string]string {
	return map[string]string{"detail": msg}
}

func fieldError(field, msg string) map[string][]string {
	return map[string][]string{field: {msg}}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	if body == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decode(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeJSON(w, http.StatusBadRequest, detail("JSON parse error - "+err.Error()))
		return false
	}
	return true
}
