package main

import (
	"fmt"
	"net/http"

	"jobportal/auth"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseForm(w, r)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	user, err := s.identity.Register(r.Context(), auth.RegisterRequest{
		FullName:    form.get("fullName"),
		Email:       form.get("email"),
		PhoneNumber: form.get("phoneNumber"),
		Password:    form.get("password"),
		Role:        auth.Role(form.get("role")),
		Avatar:      form.file,
	})
	if err != nil {
		s.writeError(w, r, err, msgRegisterMissing)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{
		Message: "Account Successfully Created.",
		Success: true,
		User:    &user,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseForm(w, r)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	res, err := s.identity.Login(r.Context(), auth.LoginRequest{
		Email:    form.get("email"),
		Password: form.get("password"),
		Role:     auth.Role(form.get("role")),
	})
	if err != nil {
		s.writeError(w, r, err, msgMissing)
		return
	}

	http.SetCookie(w, auth.SessionCookie(res.Token, s.tokenTTL, s.cookieSecure))
	writeJSON(w, http.StatusOK, envelope{
		Message: fmt.Sprintf("Welcome back %s.", res.User.FullName),
		Success: true,
		User:    &res.User,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, auth.ExpiredSessionCookie(s.cookieSecure))
	writeJSON(w, http.StatusOK, envelope{Message: "Successfully Logged Out.", Success: true})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		s.writeError(w, r, auth.ErrTokenInvalid, "")
		return
	}

	form, err := s.parseForm(w, r)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	user, err := s.identity.UpdateProfile(r.Context(), id.UserID, auth.ProfileUpdate{
		FullName:    form.lookup("fullName"),
		Email:       form.lookup("email"),
		PhoneNumber: form.lookup("phoneNumber"),
		Bio:         form.lookup("bio"),
		Skills:      form.lookup("skills"),
		Resume:      form.file,
	})
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Message: "Profile Successfully Updated.",
		Success: true,
		User:    &user,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		s.writeError(w, r, auth.ErrTokenInvalid, "")
		return
	}

	user, err := s.identity.GetUser(r.Context(), id.UserID)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	writeJSON(w, http.StatusOK, envelope{Message: "User found.", Success: true, User: &user})
}
