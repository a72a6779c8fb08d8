package fakebackend

import (
	"net/http"
	"strings"

	"sharednotes/pkg/utils"
)

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (u *User) response() userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email}
}

func (s *Server) userByName(username string) *User {
	for _, u := range s.users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

func (s *Server) userByEmail(email string) *User {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}

	// The backend folds every validation error into one message.
	switch {
	case req.Username == "" || req.Email == "" || req.Password == "":
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "This field may not be blank."})
		return
	case s.userByName(req.Username) != nil:
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "A user with that username already exists."})
		return
	case s.userByEmail(req.Email) != nil:
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "User with this email already exists."})
		return
	}

	u := &User{ID: utils.NewID(), Username: req.Username, Email: req.Email, Password: req.Password}
	s.users[u.ID] = u
	s.emails[u.Email]++
	writeJSON(w, http.StatusCreated, u.response())
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request, _ *User) {
	type entry struct {
		ID        string `json:"id"`
		Username  string `json:"username"`
		PublicKey string `json:"public_key"`
	}

	out := []entry{}
	for _, u := range s.sortedUsers() {
		if !u.Verified || u.PublicKey == "" {
			continue
		}
		out = append(out, entry{ID: u.ID, Username: u.Username, PublicKey: u.PublicKey})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getMe(w http.ResponseWriter, r *http.Request, me *User) {
	writeJSON(w, http.StatusOK, me.response())
}

func (s *Server) updateMe(w http.ResponseWriter, r *http.Request, me *User) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if !decode(w, r, &req) {
		return
	}

	if req.Username == "" {
		writeJSON(w, http.StatusBadRequest, fieldError("username", "This field may not be blank."))
		return
	}
	if other := s.userByName(req.Username); other != nil && other.ID != me.ID {
		writeJSON(w, http.StatusBadRequest, fieldError("username", "A user with that username already exists."))
		return
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeJSON(w, http.StatusBadRequest, fieldError("email", "Enter a valid email address."))
		return
	}
	if other := s.userByEmail(req.Email); other != nil && other.ID != me.ID {
		writeJSON(w, http.StatusBadRequest, fieldError("email", "User with this email already exists."))
		return
	}

	if req.Email != me.Email {
		me.Verified = false
		s.emails[req.Email]++
	}
	me.Username = req.Username
	me.Email = req.Email
	writeJSON(w, http.StatusOK, me.response())
}

func (s *Server) deleteMe(w http.ResponseWriter, r *http.Request, me *User) {
	delete(s.users, me.ID)
	for noteID, byUser := range s.grants {
		delete(byUser, me.ID)
		if n, ok := s.notes[noteID]; ok && n.OwnerID == me.ID {
			n.OwnerID = ""
		}
	}
	for token, userID := range s.refresh {
		if userID == me.ID {
			delete(s.refresh, token)
		}
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request, me *User) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if !decode(w, r, &req) {
		return
	}

	if req.CurrentPassword != me.Password {
		writeJSON(w, http.StatusBadRequest, map[string]string{"currentPassword": "Current password is incorrect."})
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		writeJSON(w, http.StatusBadRequest, fieldError("confirmPassword", "Passwords do not match."))
		return
	}
	me.Password = req.NewPassword
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully."})
}

func (s *Server) uploadKey(w http.ResponseWriter, r *http.Request, me *User) {
	var req struct {
		PublicKey string `json:"public_key"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.PublicKey == "" {
		writeJSON(w, http.StatusBadRequest, fieldError("public_key", "This field is required."))
		return
	}
	me.PublicKey = req.PublicKey
	writeJSON(w, http.StatusCreated, map[string]string{"id": utils.NewID(), "user": me.ID, "public_key": me.PublicKey})
}

func (s *Server) activate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, fieldError("email", "This field may not be blank."))
		return
	}

	u := s.userByEmail(req.Email)
	if u == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "User not found"})
		return
	}
	u.Verified = true
	s.issueRefresh(w, u.ID)
	writeJSON(w, http.StatusOK, map[string]string{"access_token": s.issueAccess(u.ID)})
}

func (s *Server) resendEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
	}
	if !decode(w, r, &req) {
		return
	}

	u := s.userByEmail(req.Email)
	if u == nil || u.Username != req.Username {
		writeJSON(w, http.StatusBadRequest, fieldError("non_field_errors", "No user found with this email and username combination."))
		return
	}
	if u.Verified {
		writeJSON(w, http.StatusOK, map[string]string{"status": "Email already verified"})
		return
	}
	s.emails[u.Email]++
	writeJSON(w, http.StatusOK, map[string]string{"message": "Email sent successfuly"})
}

func (s *Server) createToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}

	u := s.userByName(req.Username)
	if u == nil || u.Password != req.Password {
		writeJSON(w, http.StatusUnauthorized, detail("Invalid username or password."))
		return
	}
	if !u.Verified {
		writeJSON(w, http.StatusUnauthorized, detail("Your email is not verified. Please verify your email to proceed."))
		return
	}

	s.issueRefresh(w, u.ID)
	writeJSON(w, http.StatusOK, map[string]string{"access": s.issueAccess(u.ID)})
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookie)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusBadRequest, fieldError("refresh_token", "No refresh_token in cookies"))
		return
	}

	userID, ok := s.refresh[cookie.Value]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": s.issueAccess(userID)})
}

func (s *Server) expireToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookie)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No refresh token."})
		return
	}

	msg := "Successfuly logged out"
	if _, ok := s.refresh[cookie.Value]; !ok {
		msg = "Already logged out or invalid token"
	}
	delete(s.refresh, cookie.Value)
	http.SetCookie(w, &http.Cookie{Name: refreshCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}
